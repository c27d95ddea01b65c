// Package api exposes the REST surface: synchronous transaction queries,
// asynchronous report jobs, usage analytics and operational endpoints.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/ethtracker/internal/analytics"
	"github.com/vietddude/ethtracker/internal/core/config"
	"github.com/vietddude/ethtracker/internal/infra/etherscan"
	"github.com/vietddude/ethtracker/internal/infra/storage"
	"github.com/vietddude/ethtracker/internal/report"
	"github.com/vietddude/ethtracker/internal/tracking"
)

// HealthChecker is anything with a liveness probe (Postgres, Redis).
type HealthChecker interface {
	Health(ctx context.Context) error
}

// FlushableCache can drop every cached entry.
type FlushableCache interface {
	FlushAll(ctx context.Context) error
}

// Server wires the services to HTTP.
type Server struct {
	cfg        config.ServerConfig
	tracking   *tracking.Service
	reports    *report.Service
	analytics  *analytics.Service
	usage      storage.UsageRepository
	upstream   *etherscan.Client
	db         HealthChecker
	cacheProbe HealthChecker
	cache      FlushableCache
	limiter    *ipLimiter
	httpServer *http.Server
	log        *slog.Logger
}

// Deps carries the collaborators the server needs. db, cache and usage may be
// nil (DB-less or cache-less runs degrade the related endpoints).
type Deps struct {
	Tracking  *tracking.Service
	Reports   *report.Service
	Analytics *analytics.Service
	Usage     storage.UsageRepository
	Upstream  *etherscan.Client
	DB        HealthChecker
	Cache     FlushableCache
}

// NewServer creates the REST server.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		cfg:       cfg,
		tracking:  deps.Tracking,
		reports:   deps.Reports,
		analytics: deps.Analytics,
		usage:     deps.Usage,
		upstream:  deps.Upstream,
		db:        deps.DB,
		cache:     deps.Cache,
		log:       slog.Default().With("component", "api"),
	}
	if probe, ok := deps.Cache.(HealthChecker); ok {
		s.cacheProbe = probe
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = newIPLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	router := mux.NewRouter()
	s.registerRoutes(router)
	router.Use(s.usageMiddleware, s.authMiddleware, s.rateLimitMiddleware)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(r *mux.Router) {
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/health/detailed", s.handleHealthDetailed).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/transactions/{address}", s.handleListTransactions).Methods("GET")
	v1.HandleFunc("/transactions/{address}/summary", s.handleTransactionSummary).Methods("GET")
	v1.HandleFunc("/transactions/{address}/export", s.handleExportTransactions).Methods("GET")

	v1.HandleFunc("/reports/{address}", s.handleGenerateReport).Methods("POST")
	v1.HandleFunc("/reports/{address}/status", s.handleReportStatus).Methods("GET")
	v1.HandleFunc("/reports/{address}/download", s.handleReportDownload).Methods("GET")
	v1.HandleFunc("/reports/{address}", s.handleClearReports).Methods("DELETE")

	v1.HandleFunc("/analytics/overview", s.handleAnalyticsOverview).Methods("GET")
	v1.HandleFunc("/analytics/wallets/{address}", s.handleAnalyticsWallet).Methods("GET")

	v1.HandleFunc("/cache/clear", s.handleCacheClear).Methods("POST")
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("API server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
