package api

import (
	"context"
	"net/http"

	"github.com/openpost-io/openpost/internal/auth"
)

type contextKey string

const userContextKey contextKey = "user"

// sessionCookieName carries the opaque bearer token.
const sessionCookieName = "session_token"

// sessionAuth resolves the session cookie to a user and stores it in the
// request context. Missing, unknown, and expired tokens all collapse to the
// same 401; the client learns nothing about which case it hit.
func (s *Server) sessionAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		user := s.auth.ValidateSession(r.Context(), cookie.Value)
		if user == nil {
			respondError(w, http.StatusUnauthorized, "invalid session")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext retrieves the authenticated user placed by sessionAuth.
func UserFromContext(ctx context.Context) (*auth.User, bool) {
	user, ok := ctx.Value(userContextKey).(*auth.User)
	return user, ok
}
