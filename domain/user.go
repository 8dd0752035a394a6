package domain

import (
	"errors"
	"time"
)

type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u User) ValidateUsername() error {
	if u.Username == "" || len(u.Username) > MaxAuthorLen {
		return errors.New("bad username")
	}
	return nil
}

// Session is the identity the auth flow attaches to a logged-in user.
// It is read-only for the realtime layer and outlives any single
// connection.
type Session struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
}
