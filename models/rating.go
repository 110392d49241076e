package models

import "time"

// Rating is one member's score for a title within a group. Ratings live in
// the shared relational store and are the authoritative "already rated" set
// for queue deduplication.
type Rating struct {
	ID        int64     `json:"id"`
	GroupID   string    `json:"groupId"`
	MemberID  string    `json:"memberId"`
	TitleID   string    `json:"titleId"`
	MediaType string    `json:"mediaType"`
	TitleName string    `json:"titleName,omitempty"`
	Score     int       `json:"score"` // 1..10
	RatedAt   time.Time `json:"ratedAt"`
}

// GroupResult aggregates all member ratings for one title.
type GroupResult struct {
	TitleID   string         `json:"titleId"`
	MediaType string         `json:"mediaType"`
	TitleName string         `json:"titleName,omitempty"`
	Average   float64        `json:"average"`
	Count     int            `json:"count"`
	ByMember  map[string]int `json:"byMember"` // member ID -> score
}
