package metadata

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"reelparty/models"
)

// Service is the metadata provider adapter: paginated discovery with
// server-side filters, per-title certification lookups, and a thin search
// passthrough. Responses are cached on disk; certifications use a longer TTL
// because they essentially never change once assigned.
type Service struct {
	tmdb      *tmdbClient
	cache     *fileCache
	certCache *fileCache
}

// certCacheTTLMultiplier extends the TTL for certification entries, which
// are stable once published.
const certCacheTTLMultiplier = 7

func NewService(apiKey, language, cacheDir string, ttlHours int) *Service {
	// Keep metadata cache files out of the way of other data in cacheDir.
	dir := filepath.Join(cacheDir, "metadata")
	return &Service{
		tmdb:      newTMDBClient(apiKey, language, &http.Client{}),
		cache:     newFileCache(dir, ttlHours),
		certCache: newFileCache(filepath.Join(dir, "certs"), ttlHours*certCacheTTLMultiplier),
	}
}

// cacheKey builds a stable sha1 key from its parts.
func cacheKey(parts ...string) string {
	h := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}

// Discover returns one page of candidates for the media type with the given
// upstream filters applied.
func (s *Service) Discover(ctx context.Context, mediaType string, page int, f models.DiscoverFilters) (models.DiscoverPage, error) {
	mediaType = models.NormalizeMediaType(mediaType)
	if mediaType == "" {
		return models.DiscoverPage{}, fmt.Errorf("unknown media type")
	}

	key := discoverCacheKey(mediaType, page, f)
	var cached models.DiscoverPage
	if ok, _ := s.cache.get(key, &cached); ok {
		return cached, nil
	}

	resp, err := s.tmdb.discover(ctx, mediaType, page, f)
	if err != nil {
		return models.DiscoverPage{}, err
	}

	result := models.DiscoverPage{
		Page:       resp.Page,
		TotalPages: resp.TotalPages,
		Results:    convertItems(mediaType, resp.Results),
	}
	if err := s.cache.set(key, result); err != nil {
		log.Printf("[metadata] cache write failed for discover %s page %d: %v", mediaType, page, err)
	}
	return result, nil
}

func discoverCacheKey(mediaType string, page int, f models.DiscoverFilters) string {
	genres := make([]string, 0, len(f.ExcludedGenreIDs))
	for _, id := range f.ExcludedGenreIDs {
		genres = append(genres, strconv.Itoa(id))
	}
	return cacheKey("discover", mediaType, strconv.Itoa(page),
		strconv.Itoa(f.MinVoteCount), strings.Join(genres, ","), f.ReleaseFrom, f.ReleaseTo)
}

// cachedCertification wraps the certification so "no rating" caches as a
// present-but-empty value rather than a perpetual miss.
type cachedCertification struct {
	Certification string `json:"certification"`
}

// Certification looks up the US certification for a title. Callers batch
// and memoize: every lookup that misses the disk cache is a network
// round-trip.
func (s *Service) Certification(ctx context.Context, mediaType string, tmdbID int64) (string, error) {
	mediaType = models.NormalizeMediaType(mediaType)

	key := cacheKey("cert", mediaType, strconv.FormatInt(tmdbID, 10))
	var cached cachedCertification
	if ok, _ := s.certCache.get(key, &cached); ok {
		return cached.Certification, nil
	}

	var cert string
	var err error
	if mediaType == models.MediaTypeMovie {
		cert, err = s.tmdb.movieCertification(ctx, tmdbID)
	} else {
		cert, err = s.tmdb.tvCertification(ctx, tmdbID)
	}
	if err != nil {
		return "", err
	}

	if err := s.certCache.set(key, cachedCertification{Certification: cert}); err != nil {
		log.Printf("[metadata] cache write failed for certification %s/%d: %v", mediaType, tmdbID, err)
	}
	return cert, nil
}

// Search proxies the provider's title search for the shortlist UI.
func (s *Service) Search(ctx context.Context, query, mediaType string) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	mediaType = models.NormalizeMediaType(mediaType)
	if mediaType == "" {
		mediaType = models.MediaTypeMovie
	}

	resp, err := s.tmdb.search(ctx, mediaType, query)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(resp.Results))
	for _, item := range convertItems(mediaType, resp.Results) {
		results = append(results, models.SearchResult{
			TitleID:    item.TitleID,
			MediaType:  item.MediaType,
			TMDBID:     item.TMDBID,
			Name:       item.Name,
			Year:       item.Year,
			PosterPath: item.PosterPath,
			Overview:   item.Overview,
		})
	}
	return results, nil
}

// convertItems maps raw provider items onto QueueItems with derived title
// ids. Items without a provider id are dropped here; other data-quality
// filtering belongs to the caller.
func convertItems(mediaType string, items []discoverItem) []models.QueueItem {
	out := make([]models.QueueItem, 0, len(items))
	for _, item := range items {
		if item.ID == 0 {
			continue
		}
		name := item.Title
		date := item.ReleaseDate
		if mediaType == models.MediaTypeSeries {
			name = item.Name
			date = item.FirstAirDate
		}
		out = append(out, models.QueueItem{
			TitleID:     models.TitleID(mediaType, item.ID),
			MediaType:   mediaType,
			TMDBID:      item.ID,
			Name:        name,
			Year:        parseYear(date),
			ReleaseDate: date,
			PosterPath:  item.PosterPath,
			Overview:    item.Overview,
			VoteCount:   item.VoteCount,
			FieldKeys:   item.FieldKeys,
		})
	}
	return out
}
