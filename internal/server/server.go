// Package server exposes the pipeline over HTTP: bucket notification
// intake, health, metrics and the live result feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/raaihank/yt-etl/internal/config"
	"github.com/raaihank/yt-etl/internal/logger"
	"github.com/raaihank/yt-etl/internal/metrics"
	"github.com/raaihank/yt-etl/internal/trigger"
	"github.com/raaihank/yt-etl/internal/websocket"
)

// Version is reported by /info.
var Version = "0.1.0"

// Server represents the HTTP intake server
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	runner   trigger.Runner
	hub      *websocket.Hub
	gatherer prometheus.Gatherer
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	router   *mux.Router
	server   *http.Server
	started  time.Time
}

// New creates a new server instance. hub may be nil to disable /ws.
func New(
	cfg *config.Config,
	runner trigger.Runner,
	hub *websocket.Hub,
	gatherer prometheus.Gatherer,
	m *metrics.Metrics,
	log *logger.Logger,
) *Server {
	limit := rate.Inf
	if cfg.Server.RateLimit > 0 {
		limit = rate.Limit(cfg.Server.RateLimit)
	}

	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		runner:   runner,
		hub:      hub,
		gatherer: gatherer,
		metrics:  m,
		limiter:  rate.NewLimiter(limit, cfg.Server.RateBurst),
		router:   mux.NewRouter(),
		started:  time.Now(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.HandleWebSocket).Methods(http.MethodGet)
	}

	events := s.router.PathPrefix("/events").Subrouter()
	events.Use(s.loggingMiddleware)
	events.Use(s.rateLimitMiddleware)
	events.HandleFunc("", s.handleEvents).Methods(http.MethodPost)
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.logger.Info("Starting ETL intake server",
		zap.Int("port", s.config.Server.Port),
		zap.String("bucket", s.config.Pipeline.Bucket),
		zap.Bool("metrics", s.config.Metrics.Enabled),
		zap.Bool("websocket", s.hub != nil))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping ETL intake server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type info struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	Uptime         string   `json:"uptime"`
	StorageBackend string   `json:"storage_backend"`
	Bucket         string   `json:"bucket"`
	RawPrefix      string   `json:"raw_prefix"`
	ProcessedPref  string   `json:"processed_prefix"`
	Encodings      []string `json:"encodings"`
	CacheEnabled   bool     `json:"cache_enabled"`
	LedgerEnabled  bool     `json:"ledger_enabled"`
	Clients        int64    `json:"websocket_clients"`
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	resp := info{
		Name:           "yt-etl",
		Version:        Version,
		Uptime:         time.Since(s.started).Round(time.Second).String(),
		StorageBackend: s.config.Storage.Backend,
		Bucket:         s.config.Pipeline.Bucket,
		RawPrefix:      s.config.Pipeline.RawPrefix,
		ProcessedPref:  s.config.Pipeline.ProcessedPrefix,
		Encodings:      s.config.Pipeline.Encodings,
		CacheEnabled:   s.config.Cache.Enabled,
		LedgerEnabled:  s.config.Ledger.Enabled,
	}
	if s.hub != nil {
		resp.Clients = s.hub.GetStats().ActiveConnections
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
