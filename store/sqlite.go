package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"muro/domain"
)

// SQLite implements PostStore on a database/sql connection.
type SQLite struct {
	DB *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{DB: db}
}

func (s *SQLite) FindRecent(ctx context.Context, limit int) ([]domain.Post, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT id, author, content, likes, reposts, createdAt, updatedAt FROM posts ORDER BY createdAt DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("error querying table posts: %v", err)
	}
	defer rows.Close()

	posts := []domain.Post{}
	for rows.Next() {
		p := domain.Post{}
		err = rows.Scan(&p.ID, &p.Author, &p.Content, &p.Likes, &p.Reposts, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning row in table posts: %v", err)
		}
		posts = append(posts, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	for i := range posts {
		posts[i].Comments, err = s.loadComments(ctx, posts[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return posts, nil
}

func (s *SQLite) Insert(ctx context.Context, post domain.Post) (domain.Post, error) {
	post.ID = uuid.NewString()
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	stmt, err := s.DB.Prepare("INSERT INTO posts (id, author, content, likes, reposts, createdAt, updatedAt) VALUES (?,?,?,?,?,?,?)")
	if err != nil {
		return domain.Post{}, fmt.Errorf("error preparing statement in table posts: %v", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, post.ID, post.Author, post.Content, post.Likes, post.Reposts, post.CreatedAt, post.UpdatedAt)
	if err != nil {
		return domain.Post{}, fmt.Errorf("error executing statement in table posts: %v", err)
	}
	return post, nil
}

func (s *SQLite) FindByID(ctx context.Context, id string) (domain.Post, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT id, author, content, likes, reposts, createdAt, updatedAt FROM posts WHERE id = $1", id)

	p := domain.Post{}
	err := row.Scan(&p.ID, &p.Author, &p.Content, &p.Likes, &p.Reposts, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Post{}, ErrNotFound
		}
		return domain.Post{}, fmt.Errorf("error scanning row in table posts: %v", err)
	}

	p.Comments, err = s.loadComments(ctx, p.ID)
	if err != nil {
		return domain.Post{}, err
	}
	return p, nil
}

func (s *SQLite) Save(ctx context.Context, post domain.Post) (domain.Post, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Post{}, fmt.Errorf("error in begin transaction: %v", err)
	}
	defer tx.Rollback()

	post.UpdatedAt = time.Now().UTC()
	result, err := tx.ExecContext(ctx, "UPDATE posts SET likes = ?, reposts = ?, updatedAt = ? WHERE id = ?", post.Likes, post.Reposts, post.UpdatedAt, post.ID)
	if err != nil {
		return domain.Post{}, fmt.Errorf("error executing statement in table posts: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Post{}, err
	}
	if affected == 0 {
		return domain.Post{}, ErrNotFound
	}

	// The comment sequence is append-only: rows before the stored count
	// are already persisted and never touched again.
	var stored int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments WHERE post_id = $1", post.ID).Scan(&stored)
	if err != nil {
		return domain.Post{}, fmt.Errorf("error counting rows in table comments: %v", err)
	}
	for i := stored; i < len(post.Comments); i++ {
		c := post.Comments[i]
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
			post.Comments[i] = c
		}
		_, err = tx.ExecContext(ctx, "INSERT INTO comments (post_id, seq, author, text, createdAt) VALUES (?,?,?,?,?)", post.ID, i, c.Author, c.Text, c.CreatedAt)
		if err != nil {
			return domain.Post{}, fmt.Errorf("error executing statement in table comments: %v", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return domain.Post{}, fmt.Errorf("error in commit transaction: %v", err)
	}
	return post, nil
}

func (s *SQLite) loadComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT author, text, createdAt FROM comments WHERE post_id = $1 ORDER BY seq ASC", postID)
	if err != nil {
		return nil, fmt.Errorf("error querying table comments: %v", err)
	}
	defer rows.Close()

	comments := []domain.Comment{}
	for rows.Next() {
		c := domain.Comment{}
		err = rows.Scan(&c.Author, &c.Text, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning row in table comments: %v", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
