// Package api is the HTTP surface: thin request/response translation over
// the auth and posts services.
package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/openpost-io/openpost/internal/auth"
	"github.com/openpost-io/openpost/internal/config"
	"github.com/openpost-io/openpost/internal/posts"
)

// Server wires the router to the services. Dependencies are injected once
// at startup; there is no package-level state.
type Server struct {
	cfg    *config.Config
	auth   *auth.Service
	posts  *posts.Service
	Router *chi.Mux
}

// New builds the server and its routes.
func New(cfg *config.Config, authSvc *auth.Service, postsSvc *posts.Service) *Server {
	s := &Server{
		cfg:    cfg,
		auth:   authSvc,
		posts:  postsSvc,
		Router: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.Router

	// Production is same-origin only; cross-origin is a dev convenience.
	if !s.cfg.IsProduction() {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)
		r.Get("/posts", s.handleGetPosts)
		r.Get("/posts/latest", s.handleLatestPosts)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.sessionAuth)
			r.Get("/auth/me", s.handleMe)
			r.Post("/posts", s.handleCreatePost)
		})
	})

	// Frontend assets.
	r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
}

// Serve blocks, listening on the configured port.
func (s *Server) Serve() error {
	addr := fmt.Sprintf("0.0.0.0:%d", s.cfg.Port)
	log.Printf("Starting API server on %s (%s)", addr, s.cfg.Environment)
	return http.ListenAndServe(addr, s.Router)
}
