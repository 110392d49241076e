package models

import "time"

// Invitation is a single-use join code for a group.
type Invitation struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"` // short human-enterable join code
	GroupID   string     `json:"groupId"`
	CreatedBy string     `json:"createdBy"` // account ID of the inviter
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	UsedBy    string     `json:"usedBy,omitempty"` // account ID of the joiner
	CreatedAt time.Time  `json:"createdAt"`
}

// IsValid checks if the invitation is still usable (not expired and not used).
func (i *Invitation) IsValid() bool {
	return i.UsedAt == nil && time.Now().Before(i.ExpiresAt)
}
