package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumensave/lumensave/internal/config"
	"github.com/lumensave/lumensave/internal/keystore"
	"github.com/lumensave/lumensave/internal/logger"
	"github.com/lumensave/lumensave/internal/middleware"
)

// KeyStore is the subset of keystore.Service used by the API layer.
// It is an interface to allow handler-level unit tests without a database.
type KeyStore interface {
	GetOrCreateWallet(ctx context.Context, userID string) (*keystore.Wallet, error)
	GetPublicAddress(ctx context.Context, userID string) (string, error)
	SignForUser(ctx context.Context, userID, unsignedXDR string) (string, error)
}

// Server represents the HTTP server
type Server struct {
	config      *config.Config
	keyStore    KeyStore
	rateLimiter *middleware.RateLimiter
	httpServer  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, keyStore KeyStore, rateLimiter *middleware.RateLimiter) *Server {
	return &Server{
		config:      cfg,
		keyStore:    keyStore,
		rateLimiter: rateLimiter,
	}
}

// Handler builds the route table. Exposed separately from Start for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Operational endpoints (no rate limiting)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	// Wallet surface: create, address lookup, signing
	mux.Handle("/v1/wallets", s.rateLimiter.Limit(http.HandlerFunc(s.handleWallets)))
	mux.Handle("/v1/wallets/", s.rateLimiter.Limit(http.HandlerFunc(s.handleWalletOperations)))

	return middleware.RequestID(s.loggingMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info(context.Background(), "starting server", "port", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug(r.Context(), "request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
