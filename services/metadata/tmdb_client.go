package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"reelparty/models"
)

// Minimal TMDB v3 client: discover, per-title certifications, and search.

const defaultTMDBBaseURL = "https://api.themoviedb.org/3"

// ErrUpstream marks transient provider failures (network errors, 429, 5xx).
// The queue orchestrator aborts a refill on it without marking exhaustion.
var ErrUpstream = errors.New("metadata upstream error")

type tmdbClient struct {
	apiKey   string
	language string
	baseURL  string
	httpc    *http.Client
	limiter  *rate.Limiter
}

func newTMDBClient(apiKey, language string, httpc *http.Client) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &tmdbClient{
		apiKey:   apiKey,
		language: normalizeLanguage(language),
		baseURL:  defaultTMDBBaseURL,
		httpc:    httpc,
		// TMDB allows ~50 req/s; stay well under it.
		limiter: rate.NewLimiter(rate.Every(25*time.Millisecond), 1),
	}
}

// normalizeLanguage converts loose language inputs to TMDB's ll-CC form.
func normalizeLanguage(lang string) string {
	lang = strings.TrimSpace(strings.ReplaceAll(lang, "_", "-"))
	if lang == "" {
		return "en-US"
	}
	parts := strings.SplitN(lang, "-", 2)
	code := strings.ToLower(parts[0])
	if len(code) != 2 {
		return "en-US"
	}
	region := "US"
	if len(parts) == 2 && len(parts[1]) == 2 {
		region = strings.ToUpper(parts[1])
	}
	return code + "-" + region
}

// doGET issues an authenticated GET, retrying 429/5xx and network errors up
// to three times with backoff. Non-success responses surface as ErrUpstream.
func (c *tmdbClient) doGET(ctx context.Context, path string, q url.Values, v any) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", c.apiKey)
	q.Set("language", c.language)
	endpoint := c.baseURL + path + "?" + q.Encode()

	return retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.httpc.Do(req)
			if err != nil {
				return fmt.Errorf("%w: get %s: %v", ErrUpstream, path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
				return fmt.Errorf("%w: get %s: %s", ErrUpstream, path, resp.Status)
			}
			if resp.StatusCode >= 300 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
				return retry.Unrecoverable(fmt.Errorf("%w: get %s: %s: %s",
					ErrUpstream, path, resp.Status, strings.TrimSpace(string(body))))
			}
			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				return retry.Unrecoverable(fmt.Errorf("tmdb decode %s: %w", path, err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

// discoverItem is one discover result. Unmarshaling also records which keys
// the payload carried, for diagnosing provider schema drift.
type discoverItem struct {
	ID           int64
	Title        string
	Name         string
	ReleaseDate  string
	FirstAirDate string
	PosterPath   string
	Overview     string
	VoteCount    int
	FieldKeys    []string
}

func (d *discoverItem) UnmarshalJSON(data []byte) error {
	var fields struct {
		ID           int64  `json:"id"`
		Title        string `json:"title"`
		Name         string `json:"name"`
		ReleaseDate  string `json:"release_date"`
		FirstAirDate string `json:"first_air_date"`
		PosterPath   string `json:"poster_path"`
		Overview     string `json:"overview"`
		VoteCount    int    `json:"vote_count"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	*d = discoverItem{
		ID:           fields.ID,
		Title:        fields.Title,
		Name:         fields.Name,
		ReleaseDate:  fields.ReleaseDate,
		FirstAirDate: fields.FirstAirDate,
		PosterPath:   fields.PosterPath,
		Overview:     fields.Overview,
		VoteCount:    fields.VoteCount,
		FieldKeys:    keys,
	}
	return nil
}

type discoverResponse struct {
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	Results    []discoverItem `json:"results"`
}

// discover fetches one page of /discover/movie or /discover/tv with
// server-side filters applied.
func (c *tmdbClient) discover(ctx context.Context, mediaType string, page int, f models.DiscoverFilters) (*discoverResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("sort_by", "popularity.desc")
	q.Set("include_adult", "false")
	if f.MinVoteCount > 0 {
		q.Set("vote_count.gte", strconv.Itoa(f.MinVoteCount))
	}
	if len(f.ExcludedGenreIDs) > 0 {
		ids := make([]string, 0, len(f.ExcludedGenreIDs))
		for _, id := range f.ExcludedGenreIDs {
			ids = append(ids, strconv.Itoa(id))
		}
		q.Set("without_genres", strings.Join(ids, ","))
	}

	var path string
	if models.NormalizeMediaType(mediaType) == models.MediaTypeMovie {
		path = "/discover/movie"
		if f.ReleaseFrom != "" {
			q.Set("primary_release_date.gte", f.ReleaseFrom)
		}
		if f.ReleaseTo != "" {
			q.Set("primary_release_date.lte", f.ReleaseTo)
		}
	} else {
		path = "/discover/tv"
		if f.ReleaseFrom != "" {
			q.Set("first_air_date.gte", f.ReleaseFrom)
		}
		if f.ReleaseTo != "" {
			q.Set("first_air_date.lte", f.ReleaseTo)
		}
	}

	var resp discoverResponse
	if err := c.doGET(ctx, path, q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// movieCertification returns the US certification from the release_dates
// endpoint, or "" when TMDB has none.
func (c *tmdbClient) movieCertification(ctx context.Context, id int64) (string, error) {
	var resp struct {
		Results []struct {
			Country  string `json:"iso_3166_1"`
			Releases []struct {
				Certification string `json:"certification"`
			} `json:"release_dates"`
		} `json:"results"`
	}
	if err := c.doGET(ctx, fmt.Sprintf("/movie/%d/release_dates", id), nil, &resp); err != nil {
		return "", err
	}
	for _, r := range resp.Results {
		if r.Country != "US" {
			continue
		}
		for _, rel := range r.Releases {
			if cert := strings.TrimSpace(rel.Certification); cert != "" {
				return cert, nil
			}
		}
	}
	return "", nil
}

// tvCertification returns the US content rating, or "" when TMDB has none.
func (c *tmdbClient) tvCertification(ctx context.Context, id int64) (string, error) {
	var resp struct {
		Results []struct {
			Country string `json:"iso_3166_1"`
			Rating  string `json:"rating"`
		} `json:"results"`
	}
	if err := c.doGET(ctx, fmt.Sprintf("/tv/%d/content_ratings", id), nil, &resp); err != nil {
		return "", err
	}
	for _, r := range resp.Results {
		if r.Country == "US" && strings.TrimSpace(r.Rating) != "" {
			return strings.TrimSpace(r.Rating), nil
		}
	}
	return "", nil
}

// search queries /search/movie or /search/tv.
func (c *tmdbClient) search(ctx context.Context, mediaType, query string) (*discoverResponse, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("include_adult", "false")

	path := "/search/tv"
	if models.NormalizeMediaType(mediaType) == models.MediaTypeMovie {
		path = "/search/movie"
	}

	var resp discoverResponse
	if err := c.doGET(ctx, path, q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// parseYear extracts the year from a YYYY-MM-DD date, 0 when absent.
func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
