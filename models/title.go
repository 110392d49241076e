package models

import (
	"fmt"
	"strings"
)

const (
	// MediaTypeMovie selects the film discovery/certification endpoints.
	MediaTypeMovie = "movie"
	// MediaTypeSeries selects the episodic discovery/certification endpoints.
	MediaTypeSeries = "series"
)

// NormalizeMediaType maps the aliases used by clients ("tv", "show", "film")
// onto the two canonical media types. Returns "" for anything unrecognized.
func NormalizeMediaType(mediaType string) string {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "movie", "film":
		return MediaTypeMovie
	case "series", "tv", "show":
		return MediaTypeSeries
	}
	return ""
}

// TitleID derives the stable cross-session key for a title. Two items with the
// same provider id and media type always collapse to the same key.
func TitleID(mediaType string, tmdbID int64) string {
	return fmt.Sprintf("tmdb:%s:%d", mediaType, tmdbID)
}

// QueueItem is one candidate title offered for rating.
type QueueItem struct {
	TitleID     string   `json:"titleId"`
	MediaType   string   `json:"mediaType"`
	TMDBID      int64    `json:"tmdbId"`
	Name        string   `json:"name"`
	Year        int      `json:"year,omitempty"`
	ReleaseDate string   `json:"releaseDate,omitempty"` // YYYY-MM-DD as reported upstream
	PosterPath  string   `json:"posterPath,omitempty"`
	Overview    string   `json:"overview,omitempty"`
	VoteCount   int      `json:"voteCount,omitempty"`
	// FieldKeys records which top-level keys the upstream payload carried,
	// kept for diagnosing provider schema drift.
	FieldKeys []string `json:"fieldKeys,omitempty"`
}

// DiscoverFilters are the server-side filter parameters passed through to the
// provider's discover endpoint.
type DiscoverFilters struct {
	MinVoteCount     int
	ExcludedGenreIDs []int
	ReleaseFrom      string // YYYY-MM-DD, inclusive
	ReleaseTo        string // YYYY-MM-DD, inclusive
}

// DiscoverPage is one page of discovery results.
type DiscoverPage struct {
	Page       int         `json:"page"`
	TotalPages int         `json:"totalPages"`
	Results    []QueueItem `json:"results"`
}

// SearchResult is a single hit from the metadata search proxy.
type SearchResult struct {
	TitleID    string `json:"titleId"`
	MediaType  string `json:"mediaType"`
	TMDBID     int64  `json:"tmdbId"`
	Name       string `json:"name"`
	Year       int    `json:"year,omitempty"`
	PosterPath string `json:"posterPath,omitempty"`
	Overview   string `json:"overview,omitempty"`
}
