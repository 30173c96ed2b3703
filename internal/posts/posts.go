// Package posts is the content store: short text posts built on the
// persistence gateway. Unlike the auth layer it does not mask storage
// failures; callers see the *database.StorageError cause.
package posts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openpost-io/openpost/internal/database"
)

var (
	ErrContentRequired = errors.New("post content is required")
	ErrContentTooLong  = errors.New("post content must be 300 characters or fewer")
)

const (
	// MaxContentLength caps a post at 300 characters.
	MaxContentLength = 300
	// fetchLimit is the fixed row cap on feed reads.
	fetchLimit = 1000
)

// Post is a rendered post with its author resolved.
type Post struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Service reads and writes posts through the gateway.
type Service struct {
	db *database.DB
}

// NewService builds a Service on top of the persistence gateway.
func NewService(db *database.DB) *Service {
	return &Service{db: db}
}

// CreatePost stores a trimmed post for the user and returns it with the
// author's username resolved.
func (s *Service) CreatePost(ctx context.Context, userID int64, content string) (*Post, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrContentRequired
	}
	if len([]rune(content)) > MaxContentLength {
		return nil, ErrContentTooLong
	}

	now := time.Now().UTC()
	res, err := s.db.Exec(ctx,
		"INSERT INTO posts (user_id, content, created_at, updated_at) VALUES (?, ?, ?, ?)",
		userID, trimmed, now, now)
	if err != nil {
		return nil, err
	}

	author := "Unknown"
	rows, err := s.db.Query(ctx, "SELECT username FROM users WHERE id = ?", userID)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		author = rows[0].String("username")
	}

	return &Post{
		ID:        res.InsertedID,
		UserID:    userID,
		Author:    author,
		Content:   trimmed,
		CreatedAt: now,
	}, nil
}

// GetPosts returns the newest posts, most recent first, capped at the fixed
// row limit.
func (s *Service) GetPosts(ctx context.Context) ([]Post, error) {
	rows, err := s.db.Query(ctx,
		`SELECT p.id, p.user_id, p.content, p.created_at, u.username
		 FROM posts p
		 JOIN users u ON p.user_id = u.id
		 ORDER BY p.created_at DESC
		 LIMIT ?`, fetchLimit)
	if err != nil {
		return nil, err
	}
	return collect(rows), nil
}

// GetPostsSince returns posts created strictly after the given instant,
// newest first. The zero time falls back to the full feed.
func (s *Service) GetPostsSince(ctx context.Context, since time.Time) ([]Post, error) {
	if since.IsZero() {
		return s.GetPosts(ctx)
	}

	rows, err := s.db.Query(ctx,
		`SELECT p.id, p.user_id, p.content, p.created_at, u.username
		 FROM posts p
		 JOIN users u ON p.user_id = u.id
		 WHERE p.created_at > ?
		 ORDER BY p.created_at DESC`, since.UTC())
	if err != nil {
		return nil, err
	}
	return collect(rows), nil
}

// GetLatestPostTimestamp returns when the newest post was created, for
// cheap client polling. ok is false when no posts exist.
func (s *Service) GetLatestPostTimestamp(ctx context.Context) (latest time.Time, ok bool, err error) {
	rows, err := s.db.Query(ctx,
		"SELECT created_at FROM posts ORDER BY created_at DESC LIMIT 1")
	if err != nil {
		return time.Time{}, false, err
	}
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	return rows[0].Time("created_at"), true, nil
}

func collect(rows []database.Row) []Post {
	out := make([]Post, 0, len(rows))
	for _, row := range rows {
		out = append(out, Post{
			ID:        row.Int64("id"),
			UserID:    row.Int64("user_id"),
			Author:    row.String("username"),
			Content:   row.String("content"),
			CreatedAt: row.Time("created_at"),
		})
	}
	return out
}
