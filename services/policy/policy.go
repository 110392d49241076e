package policy

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"reelparty/models"
)

// Unsupported is the sentinel for a non-empty certification string outside
// the recognized enumeration. It is always denied: the allow list stays
// closed even as new certification strings appear upstream.
const Unsupported = "UNSUPPORTED"

// Recognized certifications per media type. Aliases collapse onto the
// canonical value.
var movieCertifications = map[string]string{
	"G":     "G",
	"PG":    "PG",
	"PG-13": "PG-13",
	"PG13":  "PG-13",
	"R":     "R",
}

var tvCertifications = map[string]string{
	"TV-Y":     "TV-Y",
	"TV-Y7":    "TV-Y7",
	"TV-Y7-FV": "TV-Y7", // fantasy violence variant of TV-Y7
	"TV-G":     "TV-G",
	"TV-PG":    "TV-PG",
	"TV-14":    "TV-14",
	"TV-MA":    "TV-MA",
}

// Normalize maps a raw upstream certification onto the closed enumeration
// for the media type. Empty input stays empty (no rating data); anything
// else unrecognized becomes the Unsupported sentinel, never silently a
// passable value.
func Normalize(mediaType, raw string) string {
	cert := strings.ToUpper(strings.TrimSpace(raw))
	if cert == "" {
		return ""
	}
	var canonical string
	if models.NormalizeMediaType(mediaType) == models.MediaTypeMovie {
		canonical = movieCertifications[cert]
	} else {
		canonical = tvCertifications[cert]
	}
	if canonical == "" {
		return Unsupported
	}
	return canonical
}

// IsAllowed decides whether a title with the given raw certification passes
// the group's content policy.
//
// An empty certification is allowed: absence of rating data must not hide
// content. An unrecognized one is always denied regardless of policy flags.
// Otherwise the normalized value must be on the media type's allow list; an
// empty allow list means that media type is unrestricted.
func IsAllowed(p models.ContentPolicy, mediaType, rawCertification string) bool {
	cert := Normalize(mediaType, rawCertification)
	if cert == "" {
		return true
	}
	if cert == Unsupported {
		return false
	}

	var allowed []string
	if models.NormalizeMediaType(mediaType) == models.MediaTypeMovie {
		allowed = p.AllowedMovieRatings
	} else {
		allowed = p.AllowedTVRatings
	}
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if Normalize(mediaType, a) == cert {
			return true
		}
	}
	return false
}

// ValidateRatings reports whether every entry of an allow list is a
// recognized certification for the media type.
func ValidateRatings(mediaType string, ratings []string) bool {
	for _, r := range ratings {
		if strings.TrimSpace(r) == "" {
			return false
		}
		if Normalize(mediaType, r) == Unsupported {
			return false
		}
	}
	return true
}

// Fingerprint derives the key over every filter input that affects queue
// contents. Cached pagination progress is only reusable while the
// fingerprint is unchanged.
func Fingerprint(p models.ContentPolicy) string {
	genres := make([]string, 0, len(p.ExcludedGenreIDs))
	for _, id := range p.ExcludedGenreIDs {
		genres = append(genres, strconv.Itoa(id))
	}
	sort.Strings(genres)

	parts := []string{
		"scope=" + strings.Join(p.MediaTypes(), ","),
		"floor=" + strconv.FormatBool(p.PopularityFloor),
		"votes=" + strconv.Itoa(p.Filters().MinVoteCount),
		"genres=" + strings.Join(genres, ","),
		"from=" + strings.TrimSpace(p.ReleaseFrom),
		"to=" + strings.TrimSpace(p.ReleaseTo),
		"movie=" + canonicalRatings(models.MediaTypeMovie, p.AllowedMovieRatings),
		"tv=" + canonicalRatings(models.MediaTypeSeries, p.AllowedTVRatings),
	}

	h := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}

func canonicalRatings(mediaType string, ratings []string) string {
	out := make([]string, 0, len(ratings))
	for _, r := range ratings {
		out = append(out, Normalize(mediaType, r))
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}
