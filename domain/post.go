package domain

import (
	"time"
)

const (
	MaxAuthorLen  = 50
	MaxContentLen = 280
)

// Comment belongs to exactly one Post and is immutable once appended.
type Comment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Post is a feed entry. Author and Content never change after creation;
// only the counters and the comment sequence do.
type Post struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Likes     int       `json:"likes"`
	Reposts   int       `json:"reposts"`
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
