// Package web serves the read-only REST API over scanned tag data.
package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"tagscan/config"
	"tagscan/logging"
	"tagscan/store"
	"tagscan/tagerr"
)

// Server exposes scanned controllers and tag sets over HTTP.
type Server struct {
	config  *config.WebConfig
	store   *store.Store
	server  *http.Server
	router  chi.Router
	running bool
	mu      sync.RWMutex
}

// NewServer creates a server backed by the given store.
func NewServer(cfg *config.WebConfig, st *store.Store) *Server {
	s := &Server{
		config: cfg,
		store:  st,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	r.Get("/api/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/api/controllers", s.handleControllers)
		r.Get("/api/controllers/{id}/tags", s.handleTags)
	})

	s.router = r
}

// debugLogWriter adapts logging.DebugLog to an io.Writer for the
// http.Server error log.
type debugLogWriter string

func (tag debugLogWriter) Write(p []byte) (n int, err error) {
	logging.DebugLog(string(tag), "%s", string(p))
	return len(p), nil
}

// corsMiddleware adds CORS headers for API access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware requires a bearer token matching the configured hash.
// An empty token hash disables authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.TokenHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || bcrypt.CompareHashAndPassword([]byte(s.config.TokenHash), []byte(token)) != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleControllers(w http.ResponseWriter, r *http.Request) {
	controllers, err := s.store.Controllers(r.Context())
	if err != nil {
		logging.DebugLog("web", "list controllers: %v", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	if controllers == nil {
		controllers = []store.Controller{}
	}
	writeJSON(w, http.StatusOK, controllers)
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid controller id")
		return
	}

	roots, err := s.store.TagSet(r.Context(), id)
	if err != nil {
		var notFound *tagerr.NotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, "controller not found")
			return
		}
		logging.DebugLog("web", "tag set %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	writeJSON(w, http.StatusOK, roots)
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.New(debugLogWriter("web"), "", 0),
	}

	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logging.DebugLog("web", "serve: %v", err)
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}
	}()

	s.running = true
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.running = false
	s.server = nil
	return err
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the server's base URL.
func (s *Server) Address() string {
	return fmt.Sprintf("http://%s:%d", s.config.Host, s.config.Port)
}
