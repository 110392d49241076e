package models

import (
	"strings"
	"time"
)

const (
	// MediaScopeMovies limits discovery to films.
	MediaScopeMovies = "movie"
	// MediaScopeSeries limits discovery to episodic titles.
	MediaScopeSeries = "series"
	// MediaScopeBoth discovers across both media types.
	MediaScopeBoth = "both"
)

// Group is a rating circle: a set of members who rate titles together.
type Group struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	OwnerID   string        `json:"ownerId"` // account ID of the creator
	Policy    ContentPolicy `json:"policy"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Member is one account's identity inside a group. Queue state is keyed by
// (group, member), so an account rating in two groups has two independent
// queues.
type Member struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"groupId"`
	AccountID string    `json:"accountId"`
	Name      string    `json:"name"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// ContentPolicy is the group's discovery filter configuration. Every field
// participates in the policy fingerprint: changing any of them invalidates
// cached pagination progress.
type ContentPolicy struct {
	// MediaScope is "movie", "series", or "both".
	MediaScope string `json:"mediaScope"`
	// PopularityFloor, when set, applies MinVoteCount upstream.
	PopularityFloor bool `json:"popularityFloor"`
	// MinVoteCount is the minimum upstream vote count when PopularityFloor is on.
	MinVoteCount int `json:"minVoteCount,omitempty"`
	// ExcludedGenreIDs are provider genre ids filtered out upstream.
	ExcludedGenreIDs []int `json:"excludedGenreIds,omitempty"`
	// ReleaseFrom/ReleaseTo bound the release window (YYYY-MM-DD, inclusive).
	ReleaseFrom string `json:"releaseFrom,omitempty"`
	ReleaseTo   string `json:"releaseTo,omitempty"`
	// AllowedMovieRatings / AllowedTVRatings are the certification allow
	// lists. An empty list means unrestricted for that media type.
	AllowedMovieRatings []string `json:"allowedMovieRatings,omitempty"`
	AllowedTVRatings    []string `json:"allowedTvRatings,omitempty"`
}

// MediaTypes returns the media types in scope, movies first.
func (p ContentPolicy) MediaTypes() []string {
	switch strings.ToLower(strings.TrimSpace(p.MediaScope)) {
	case MediaScopeMovies:
		return []string{MediaTypeMovie}
	case MediaScopeSeries:
		return []string{MediaTypeSeries}
	default:
		return []string{MediaTypeMovie, MediaTypeSeries}
	}
}

// Filters projects the policy onto the provider's server-side filter
// parameters. Certification filtering stays client-side (the provider has no
// per-page certification filter that covers both media types).
func (p ContentPolicy) Filters() DiscoverFilters {
	f := DiscoverFilters{
		ExcludedGenreIDs: p.ExcludedGenreIDs,
		ReleaseFrom:      p.ReleaseFrom,
		ReleaseTo:        p.ReleaseTo,
	}
	if p.PopularityFloor {
		f.MinVoteCount = p.MinVoteCount
		if f.MinVoteCount <= 0 {
			f.MinVoteCount = DefaultMinVoteCount
		}
	}
	return f
}

// DefaultMinVoteCount is applied when the popularity floor is enabled without
// an explicit threshold.
const DefaultMinVoteCount = 200

// DefaultContentPolicy is the policy assigned to new groups: both media
// types, popularity floor on, no certification restrictions.
func DefaultContentPolicy() ContentPolicy {
	return ContentPolicy{
		MediaScope:      MediaScopeBoth,
		PopularityFloor: true,
		MinVoteCount:    DefaultMinVoteCount,
	}
}
