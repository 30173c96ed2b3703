package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/openpost-io/openpost/internal/auth"
	"github.com/openpost-io/openpost/internal/posts"
)

type loginRequest struct {
	Username string `json:"username"`
}

type createPostRequest struct {
	Content string `json:"content"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// sessionCookie builds the session_token cookie. maxAge is seconds for a
// fresh session, or negative to clear it on logout.
func (s *Server) sessionCookie(token string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.auth.Login(r.Context(), req.Username)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	http.SetCookie(w, s.sessionCookie(result.SessionToken, int(auth.SessionTTL.Seconds())))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    result.User,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		s.auth.Logout(r.Context(), cookie.Value)
	}

	http.SetCookie(w, s.sessionCookie("", -1))
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	post, err := s.posts.CreatePost(r.Context(), user.ID, req.Content)
	if err != nil {
		if errors.Is(err, posts.ErrContentRequired) || errors.Is(err, posts.ErrContentTooLong) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Error creating post: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create post")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"post":    post,
	})
}

func (s *Server) handleGetPosts(w http.ResponseWriter, r *http.Request) {
	feed, err := s.posts.GetPosts(r.Context())
	if err != nil {
		log.Printf("Error fetching posts: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch posts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"posts": feed})
}

func (s *Server) handleLatestPosts(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		since = parsed
	}

	feed, err := s.posts.GetPostsSince(r.Context(), since)
	if err != nil {
		log.Printf("Error fetching posts: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch posts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"posts": feed})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
