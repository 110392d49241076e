package utils

import "strings"

// posterBaseURL is the provider's image CDN prefix.
const posterBaseURL = "https://image.tmdb.org/t/p"

// Poster sizes the frontend asks for.
const (
	PosterSizeSmall    = "w185"
	PosterSizeMedium   = "w342"
	PosterSizeLarge    = "w500"
	PosterSizeOriginal = "original"
)

// PosterURL builds a full image URL from a provider poster path. Paths come
// back from the API as "/abc.jpg"; an empty path yields an empty URL rather
// than a broken one.
func PosterURL(posterPath, size string) string {
	posterPath = strings.TrimSpace(posterPath)
	if posterPath == "" {
		return ""
	}
	if !strings.HasPrefix(posterPath, "/") {
		posterPath = "/" + posterPath
	}
	if size == "" {
		size = PosterSizeMedium
	}
	return posterBaseURL + "/" + size + posterPath
}
