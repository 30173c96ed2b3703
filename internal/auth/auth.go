// Package auth implements username-only identity and session management.
// A login upserts the user, issues an opaque random token with a 30-day
// lifetime, and hands the token to the caller exactly once. Validation is a
// pure read that fails closed: any uncertainty means "no valid session".
package auth

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openpost-io/openpost/internal/database"
)

var (
	// ErrValidation reports bad caller input, such as an empty username.
	ErrValidation = errors.New("username is required")
	// ErrAuthFailure masks storage failures during login. The cause is
	// logged on the server, never surfaced to the client.
	ErrAuthFailure = errors.New("login failed")
)

// SessionTTL is how long an issued session stays valid.
const SessionTTL = 30 * 24 * time.Hour

// User is the public identity handed to callers. The raw token is not part
// of it; it travels only in LoginResult.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	LastLogin time.Time `json:"last_login"`
}

// LoginResult carries the user and the freshly issued session token.
type LoginResult struct {
	User         User
	SessionToken string
}

// Service is the identity and session manager. One instance is constructed
// at startup and shared by the HTTP handlers and the expiry sweeper.
type Service struct {
	db *database.DB
}

// NewService builds a Service on top of the persistence gateway.
func NewService(db *database.DB) *Service {
	return &Service{db: db}
}

// Login resolves the trimmed username to a user, creating one on first
// sight, and issues a new session. Concurrent first logins with the same
// name race to insert; the UNIQUE constraint on username lets exactly one
// win, and the loser surfaces as ErrAuthFailure (log in again).
func (s *Service) Login(ctx context.Context, username string) (*LoginResult, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return nil, ErrValidation
	}

	now := time.Now().UTC()

	rows, err := s.db.Query(ctx, "SELECT id FROM users WHERE username = ?", name)
	if err != nil {
		log.Printf("Login error: %v", err)
		return nil, ErrAuthFailure
	}

	var userID int64
	if len(rows) == 0 {
		res, err := s.db.Exec(ctx,
			"INSERT INTO users (username, last_login, created_at) VALUES (?, ?, ?)",
			name, now, now)
		if err != nil {
			log.Printf("Login error: %v", err)
			return nil, ErrAuthFailure
		}
		userID = res.InsertedID
	} else {
		userID = rows[0].Int64("id")
		if _, err := s.db.Exec(ctx,
			"UPDATE users SET last_login = ? WHERE id = ?", now, userID); err != nil {
			log.Printf("Login error: %v", err)
			return nil, ErrAuthFailure
		}
	}

	token := uuid.NewString()
	expiresAt := now.Add(SessionTTL)
	if _, err := s.db.Exec(ctx,
		"INSERT INTO sessions (user_id, session_token, expires_at, created_at) VALUES (?, ?, ?, ?)",
		userID, token, expiresAt, now); err != nil {
		log.Printf("Login error: %v", err)
		return nil, ErrAuthFailure
	}

	return &LoginResult{
		User:         User{ID: userID, Username: name, LastLogin: now},
		SessionToken: token,
	}, nil
}

// ValidateSession resolves a token to its user, or nil when the token is
// empty, unknown, or expired. Storage failures also yield nil: inability to
// confirm validity is never treated as validity. Safe to call on every
// request; it mutates nothing.
func (s *Service) ValidateSession(ctx context.Context, token string) *User {
	if token == "" {
		return nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT u.id, u.username, u.last_login
		 FROM sessions s
		 JOIN users u ON s.user_id = u.id
		 WHERE s.session_token = ? AND s.expires_at > ?`,
		token, time.Now().UTC())
	if err != nil {
		log.Printf("Session validation error: %v", err)
		return nil
	}
	if len(rows) == 0 {
		return nil
	}

	return &User{
		ID:        rows[0].Int64("id"),
		Username:  rows[0].String("username"),
		LastLogin: rows[0].Time("last_login"),
	}
}

// Logout deletes the session for the given token. It is idempotent: an
// unknown or already removed token still reports success. Only an empty
// token or a storage failure yields false.
func (s *Service) Logout(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	if _, err := s.db.Exec(ctx, "DELETE FROM sessions WHERE session_token = ?", token); err != nil {
		log.Printf("Logout error: %v", err)
		return false
	}
	return true
}

// CleanupExpiredSessions physically removes sessions whose expiry has
// passed. Validation already ignores them; this is the only path that
// deletes them, so running it concurrently with logins and validations
// cannot invalidate a live session.
func (s *Service) CleanupExpiredSessions(ctx context.Context) error {
	res, err := s.db.Exec(ctx, "DELETE FROM sessions WHERE expires_at <= ?", time.Now().UTC())
	if err != nil {
		return err
	}
	if res.RowsAffected > 0 {
		log.Printf("Removed %d expired sessions", res.RowsAffected)
	}
	return nil
}
