package models

import "time"

const (
	// AdminAccountUsername is the username of the bootstrap admin account.
	AdminAccountUsername = "admin"
)

// Account is a login identity. Accounts join groups as members; the admin
// account can manage every group on the server.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // bcrypt hash, never exposed in API responses
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AccountStorage is the file-persistence representation; unlike Account it
// carries the password hash.
type AccountStorage struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ToStorage converts an Account for persistence.
func (a Account) ToStorage() AccountStorage {
	return AccountStorage(a)
}

// ToAccount converts a stored record back to an Account.
func (as AccountStorage) ToAccount() Account {
	return Account(as)
}
