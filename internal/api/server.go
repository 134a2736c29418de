// Package api wires the HTTP routes of the backtest service.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apihandler "github.com/newthinker/algotrade/internal/api/handler/api"
	"github.com/newthinker/algotrade/internal/api/job"
	"github.com/newthinker/algotrade/internal/api/middleware"
	"github.com/newthinker/algotrade/internal/metrics"
	"github.com/newthinker/algotrade/internal/storage/run"
	"github.com/newthinker/algotrade/internal/strategy"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP server of the backtest service.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	apiKey     string
}

// Config holds server configuration
type Config struct {
	Host            string
	Port            int
	APIKey          string
	CORSOrigins     []string
	MetricsPath     string // empty disables the metrics endpoint
	BacktestTimeout time.Duration
	Defaults        apihandler.Defaults
}

// Dependencies holds the services the routes use.
type Dependencies struct {
	Backtester apihandler.Runner
	Strategies *strategy.Engine
	Runs       run.Store
	Jobs       *job.Store
	Metrics    *metrics.Registry // optional
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Backtester == nil {
		return nil, errors.New("backtester is required")
	}
	if deps.Strategies == nil {
		return nil, errors.New("strategy engine is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Runs == nil {
		deps.Runs = run.NewMemoryStore(run.DefaultMaxRuns)
	}
	if deps.Jobs == nil {
		deps.Jobs = job.NewStore(100, 24*time.Hour)
	}
	if cfg.BacktestTimeout <= 0 {
		cfg.BacktestTimeout = 5 * time.Minute
	}

	mux := http.NewServeMux()
	s := &Server{
		logger: logger,
		mux:    mux,
		apiKey: cfg.APIKey,
	}
	s.setupRoutes(cfg, deps)

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	handler = middleware.CORS(cfg.CORSOrigins)(handler)
	handler = metrics.LoggingMiddleware(logger)(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.BacktestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	opts := []apihandler.BacktestOption{
		apihandler.WithRunStore(deps.Runs),
		apihandler.WithDefaults(cfg.Defaults),
		apihandler.WithTimeout(cfg.BacktestTimeout),
		apihandler.WithLogger(s.logger),
	}
	if deps.Metrics != nil {
		opts = append(opts, apihandler.WithJobsRecorder(deps.Metrics))
	}
	backtests := apihandler.NewBacktestHandler(deps.Backtester, deps.Jobs, opts...)
	runs := apihandler.NewRunsHandler(deps.Runs)
	strategies := apihandler.NewStrategiesHandler(deps.Strategies)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.Handle("POST /backtest", s.protected(backtests.Run))
	s.mux.Handle("POST /api/v1/backtest", s.protected(backtests.Run))
	s.mux.Handle("POST /api/v1/backtest/jobs", s.protected(backtests.Submit))
	s.mux.Handle("GET /api/v1/backtest/jobs/{id}", s.protected(backtests.JobStatus))
	s.mux.Handle("GET /api/v1/runs", s.protected(runs.List))
	s.mux.Handle("GET /api/v1/runs/{id}", s.protected(runs.Get))
	s.mux.Handle("GET /api/v1/strategies", s.protected(strategies.List))

	if deps.Metrics != nil && cfg.MetricsPath != "" {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}
}

func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return middleware.APIKeyAuth(s.apiKey)(h)
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
