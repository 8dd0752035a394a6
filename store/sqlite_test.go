package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"

	"muro/domain"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()

	dataSourceName := filepath.Join(t.TempDir(), "muro_test.db") + "?_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		t.Fatalf("migration driver: %v", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://../db/migrations", "sqlite", driver)
	if err != nil {
		t.Fatalf("migration setup: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("migration up: %v", err)
	}

	return NewSQLite(db)
}

func TestInsertAssignsIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, err := s.Insert(ctx, domain.Post{Author: "alice", Content: "hello"})
	assert.Equal(t, err, nil)
	assert.NotEqual(t, "", post.ID)
	assert.Equal(t, false, post.CreatedAt.IsZero())

	stored, err := s.FindByID(ctx, post.ID)
	assert.Equal(t, err, nil)
	assert.Equal(t, "alice", stored.Author)
	assert.Equal(t, "hello", stored.Content)
	assert.Equal(t, 0, stored.Likes)
	assert.Equal(t, 0, stored.Reposts)
	assert.Equal(t, 0, len(stored.Comments))
}

func TestFindByIDNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.FindByID(context.Background(), "no-such-post")
	assert.Equal(t, true, errors.Is(err, ErrNotFound))
}

func TestFindRecentNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		_, err := s.Insert(ctx, domain.Post{Author: "alice", Content: content})
		assert.Equal(t, err, nil)
		time.Sleep(5 * time.Millisecond)
	}

	posts, err := s.FindRecent(ctx, 50)
	assert.Equal(t, err, nil)
	assert.Equal(t, 3, len(posts))
	assert.Equal(t, "third", posts[0].Content)
	assert.Equal(t, "second", posts[1].Content)
	assert.Equal(t, "first", posts[2].Content)

	bounded, err := s.FindRecent(ctx, 2)
	assert.Equal(t, err, nil)
	assert.Equal(t, 2, len(bounded))
	assert.Equal(t, "third", bounded[0].Content)
}

func TestSaveCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, err := s.Insert(ctx, domain.Post{Author: "alice", Content: "hello"})
	assert.Equal(t, err, nil)

	post.Likes++
	post.Reposts++
	_, err = s.Save(ctx, post)
	assert.Equal(t, err, nil)

	stored, err := s.FindByID(ctx, post.ID)
	assert.Equal(t, err, nil)
	assert.Equal(t, 1, stored.Likes)
	assert.Equal(t, 1, stored.Reposts)
	assert.Equal(t, "hello", stored.Content)
}

func TestSaveMissingPost(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save(context.Background(), domain.Post{ID: "no-such-post"})
	assert.Equal(t, true, errors.Is(err, ErrNotFound))
}

func TestSaveAppendsComments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	post, err := s.Insert(ctx, domain.Post{Author: "alice", Content: "hello"})
	assert.Equal(t, err, nil)

	post.Comments = append(post.Comments, domain.Comment{Author: "bob", Text: "one"})
	post, err = s.Save(ctx, post)
	assert.Equal(t, err, nil)

	post.Comments = append(post.Comments, domain.Comment{Author: "carol", Text: "two"})
	post, err = s.Save(ctx, post)
	assert.Equal(t, err, nil)

	// saving again without new comments must not duplicate rows
	_, err = s.Save(ctx, post)
	assert.Equal(t, err, nil)

	stored, err := s.FindByID(ctx, post.ID)
	assert.Equal(t, err, nil)
	assert.Equal(t, 2, len(stored.Comments))
	assert.Equal(t, "bob", stored.Comments[0].Author)
	assert.Equal(t, "one", stored.Comments[0].Text)
	assert.Equal(t, "carol", stored.Comments[1].Author)
	assert.Equal(t, "two", stored.Comments[1].Text)
	assert.Equal(t, false, stored.Comments[0].CreatedAt.IsZero())
}
