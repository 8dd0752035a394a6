package store

import (
	"context"
	"errors"

	"muro/domain"
)

// ErrNotFound is returned when a post id does not resolve to a stored post.
var ErrNotFound = errors.New("post not found")

// PostStore owns all Post and Comment data.
//
// Save writes the counters as absolute values and appends any comments
// past the stored sequence; it never rewrites author, content, or
// already-stored comments. There is no atomic increment: callers that
// read-modify-write a counter can race each other.
type PostStore interface {
	// FindRecent returns up to limit posts, newest first.
	FindRecent(ctx context.Context, limit int) ([]domain.Post, error)

	// Insert assigns the id and creation timestamp and persists the post.
	Insert(ctx context.Context, post domain.Post) (domain.Post, error)

	// FindByID returns ErrNotFound when no post has the given id.
	FindByID(ctx context.Context, id string) (domain.Post, error)

	// Save persists counter and comment changes to an existing post.
	Save(ctx context.Context, post domain.Post) (domain.Post, error)
}
