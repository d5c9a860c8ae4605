package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/autoapply/internal/analytics"
	"github.com/jonathan/autoapply/internal/cache"
	"github.com/jonathan/autoapply/internal/dispatch"
	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/types"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	store      store.Store
	stats      *analytics.Aggregator
	notifier   dispatch.Notifier
	profiles   *cache.TTL[uuid.UUID, *types.AutomationProfile]
	logger     *slog.Logger
	apiKey     string
	maxRetries int
}

// Config holds server configuration
type Config struct {
	Port       string
	APIKey     string
	MaxRetries int
}

// New creates a new server instance over an already-connected store.
func New(st store.Store, notifier dispatch.Notifier, logger *slog.Logger, cfg Config) *Server {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	s := &Server{
		store:      st,
		stats:      analytics.NewAggregator(st),
		notifier:   notifier,
		profiles:   cache.NewTTL[uuid.UUID, *types.AutomationProfile](30 * time.Second),
		logger:     logger,
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
	}

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler builds the routed handler with middleware applied. Exposed for
// httptest in handler tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Profile endpoints
	mux.HandleFunc("POST /profiles", s.handleCreateProfile)
	mux.HandleFunc("GET /profiles/{id}", s.handleGetProfile)
	mux.HandleFunc("PUT /profiles/{id}", s.handleUpdateProfile)
	mux.HandleFunc("DELETE /profiles/{id}", s.handleDeleteProfile)
	mux.HandleFunc("POST /profiles/{id}/pause", s.handlePauseProfile)
	mux.HandleFunc("POST /profiles/{id}/resume", s.handleResumeProfile)
	mux.HandleFunc("GET /profiles/{id}/analytics", s.handleProfileAnalytics)

	// Candidate ingest
	mux.HandleFunc("POST /profiles/{id}/candidates", s.handleIngestCandidate)

	// Queue item endpoints
	mux.HandleFunc("GET /items", s.handleListItems)
	mux.HandleFunc("GET /items/{id}", s.handleGetItem)
	mux.HandleFunc("GET /items/{id}/attempts", s.handleListAttempts)
	mux.HandleFunc("POST /items/{id}/approve", s.handleApproveItem)
	mux.HandleFunc("POST /items/{id}/reject", s.handleRejectItem)
	mux.HandleFunc("POST /items/{id}/retry", s.handleRetryItem)
	mux.HandleFunc("POST /items/{id}/cancel", s.handleCancelItem)

	mux.HandleFunc("GET /health", s.handleHealth)

	return s.withAuth(s.withLogging(s.withCORS(mux)))
}

// Start begins listening for requests and blocks until shutdown.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
		}
	}()

	<-stop
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// withAuth requires the configured API key on every route except health.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.URL.Path != "/health" {
			if r.Header.Get("X-API-Key") != s.apiKey {
				s.errorResponse(w, http.StatusUnauthorized, "invalid or missing API key")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// respondError maps a domain error to its HTTP status.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("internal error", "error", err)
		s.errorResponse(w, status, "internal error")
		return
	}
	s.errorResponse(w, status, err.Error())
}

// getProfile loads a live (not soft-deleted) profile, through the cache.
func (s *Server) getProfile(ctx context.Context, id uuid.UUID) (*types.AutomationProfile, error) {
	if p, ok := s.profiles.Get(id); ok {
		return p, nil
	}
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ErrProfileNotFound{ProfileID: id}
		}
		return nil, err
	}
	if p.DeletedAt != nil {
		return nil, &ErrProfileNotFound{ProfileID: id}
	}
	s.profiles.Set(id, p)
	return p, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, &ErrValidation{Field: name, Message: "must be a valid UUID"}
	}
	return id, nil
}
