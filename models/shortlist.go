package models

import "time"

// ShortlistEntry is one title on a group's fixed shortlist. Shortlist mode
// has no queue logic: members rate their way through a static list.
type ShortlistEntry struct {
	TitleID    string    `json:"titleId"`
	MediaType  string    `json:"mediaType"`
	TMDBID     int64     `json:"tmdbId"`
	Name       string    `json:"name"`
	Year       int       `json:"year,omitempty"`
	PosterPath string    `json:"posterPath,omitempty"`
	AddedBy    string    `json:"addedBy"` // member ID
	AddedAt    time.Time `json:"addedAt"`
}
