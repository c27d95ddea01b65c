// Package control wires the application together and manages its lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/vietddude/ethtracker/internal/analytics"
	"github.com/vietddude/ethtracker/internal/api"
	"github.com/vietddude/ethtracker/internal/core/config"
	"github.com/vietddude/ethtracker/internal/infra/etherscan"
	redisclient "github.com/vietddude/ethtracker/internal/infra/redis"
	"github.com/vietddude/ethtracker/internal/infra/storage"
	"github.com/vietddude/ethtracker/internal/infra/storage/memory"
	"github.com/vietddude/ethtracker/internal/infra/storage/postgres"
	"github.com/vietddude/ethtracker/internal/report"
	"github.com/vietddude/ethtracker/internal/tracking"
)

// Tracker is the application: upstream client, services, background runner and
// the REST server.
type Tracker struct {
	cfg    *config.AppConfig
	server *api.Server
	runner *report.Runner
	db     *postgres.DB
	cache  *redisclient.Cache
	log    *slog.Logger
}

// NewTracker builds the application from configuration. With no database URL
// the repositories run in memory; with no Redis URL the upstream cache is
// disabled.
func NewTracker(cfg *config.AppConfig) (*Tracker, error) {
	var (
		db         *postgres.DB
		reportRepo storage.ReportJobRepository
		usageRepo  storage.UsageRepository
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		reportRepo = postgres.NewReportJobRepo(db)
		usageRepo = postgres.NewUsageRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		reportRepo = memory.NewReportJobRepo()
		usageRepo = memory.NewUsageRepo()
		slog.Info("Using Memory storage")
	}

	var cache *redisclient.Cache
	if cfg.Redis.URL != "" {
		var err error
		cache, err = redisclient.NewCache(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, caching disabled", "error", err)
		} else {
			slog.Info("Redis cache connected")
		}
	}

	pacer := etherscan.NewPacer(cfg.Etherscan.RateLimit)
	budget := etherscan.NewBudgetTracker(cfg.Etherscan.DailyQuota)

	var upstreamCache etherscan.Cache
	if cache != nil {
		upstreamCache = cache
	}
	client := etherscan.NewClient(cfg.Etherscan, pacer, budget, upstreamCache)

	runner := report.NewRunner(16)
	trackingSvc := tracking.NewService(client, cfg.Reports.FallbackBlock)
	reportSvc := report.NewService(client, reportRepo, runner, cfg.Reports)
	analyticsSvc := analytics.NewService(usageRepo)

	deps := api.Deps{
		Tracking:  trackingSvc,
		Reports:   reportSvc,
		Analytics: analyticsSvc,
		Usage:     usageRepo,
		Upstream:  client,
	}
	if db != nil {
		deps.DB = db
	}
	if cache != nil {
		deps.Cache = cache
	}
	server := api.NewServer(cfg.Server, deps)

	return &Tracker{
		cfg:    cfg,
		server: server,
		runner: runner,
		db:     db,
		cache:  cache,
		log:    slog.Default(),
	}, nil
}

// Start launches the report worker and the REST server.
func (t *Tracker) Start(ctx context.Context) error {
	t.runner.Start(ctx)

	if t.db != nil {
		t.db.StartMetricsCollector(ctx)
	}

	go func() {
		if err := t.server.Start(); err != nil {
			t.log.Error("API server failed", "error", err)
		}
	}()

	return nil
}

// Stop drains the server and closes connections.
func (t *Tracker) Stop(ctx context.Context) error {
	t.log.Info("Stopping Tracker...")

	if err := t.server.Shutdown(ctx); err != nil {
		t.log.Warn("Server shutdown error", "error", err)
	}
	if t.cache != nil {
		if err := t.cache.Close(); err != nil {
			t.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if t.db != nil {
		if err := t.db.Close(); err != nil {
			t.log.Warn("Failed to close database", "error", err)
		}
	}
	return nil
}
