// Package report implements the asynchronous path: a persistent job per
// address that walks [0, currentBlock] in block-range windows, accumulates the
// filtered history and writes a CSV artifact.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/ethtracker/internal/core/config"
	"github.com/vietddude/ethtracker/internal/core/domain"
	"github.com/vietddude/ethtracker/internal/infra/storage"
	"github.com/vietddude/ethtracker/internal/metrics"
	"github.com/vietddude/ethtracker/internal/tracking"
)

var (
	// ErrNoReport means no job exists for the address.
	ErrNoReport = errors.New("no report found")
	// ErrNotReady means the latest job has not completed.
	ErrNotReady = errors.New("report not ready")
	// ErrQueueFull means the background worker queue rejected the job.
	ErrQueueFull = errors.New("report queue is full")
)

// dedupStatuses are the states that satisfy a creation request within the
// dedup window instead of starting a new run.
var dedupStatuses = []domain.ReportStatus{
	domain.ReportStatusPending,
	domain.ReportStatusInProgress,
	domain.ReportStatusCompleted,
}

// Status is the user-facing view of one job, with completion extrapolation
// while the run is in flight.
type Status struct {
	Job                 *domain.ReportJob `json:"report"`
	EstimatedCompletion *time.Time        `json:"estimated_completion,omitempty"`
}

// Service owns the report job lifecycle: creation with dedup, the background
// segmentation run, status, download and clearing.
type Service struct {
	fetcher    tracking.Fetcher
	normalizer tracking.Normalizer
	repo       storage.ReportJobRepository
	runner     *Runner
	cfg        config.ReportsConfig
	log        *slog.Logger
}

// NewService creates a report service.
func NewService(fetcher tracking.Fetcher, repo storage.ReportJobRepository, runner *Runner, cfg config.ReportsConfig) *Service {
	return &Service{
		fetcher: fetcher,
		repo:    repo,
		runner:  runner,
		cfg:     cfg,
		log:     slog.Default().With("component", "report"),
	}
}

// Create starts report generation for address, or returns the existing job
// when one in {pending, in_progress, completed} was created within the dedup
// window. The boolean reports whether a new job was started.
func (s *Service) Create(ctx context.Context, address string, filter domain.TransactionFilter) (*domain.ReportJob, bool, error) {
	cutoff := time.Now().Add(-s.cfg.DedupWindow)
	existing, err := s.repo.FindRecent(ctx, address, cutoff, dedupStatuses)
	if err != nil {
		return nil, false, fmt.Errorf("dedup lookup: %w", err)
	}
	if existing != nil {
		s.log.Info("Reusing recent report job", "address", address, "job_id", existing.ID, "status", existing.Status)
		return existing, false, nil
	}

	now := time.Now().UTC()
	job := &domain.ReportJob{
		ID:            uuid.New().String(),
		WalletAddress: address,
		Status:        domain.ReportStatusPending,
		Filter:        filter,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, job); err != nil {
		return nil, false, fmt.Errorf("persist report job: %w", err)
	}
	metrics.ReportJobsTotal.WithLabelValues(string(domain.ReportStatusPending)).Inc()

	if !s.runner.Submit(func(runCtx context.Context) { s.run(runCtx, job) }) {
		if err := s.repo.MarkFailed(ctx, job.ID, "report queue is full"); err != nil {
			s.log.Error("Failed to mark rejected job", "job_id", job.ID, "error", err)
		}
		return nil, false, ErrQueueFull
	}

	s.log.Info("Report job created", "address", address, "job_id", job.ID)
	return job, true, nil
}

// run drives one job to exactly one terminal state. A panic escaping the
// window loop lands the job in failed, never in limbo.
func (s *Service) run(ctx context.Context, job *domain.ReportJob) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Report run panicked", "job_id", job.ID, "panic", r)
			s.fail(job.ID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := s.repo.MarkInProgress(ctx, job.ID, time.Now().UTC()); err != nil {
		s.log.Error("Failed to mark job in progress", "job_id", job.ID, "error", err)
		s.fail(job.ID, fmt.Sprintf("persistence error: %v", err))
		return
	}
	metrics.ReportJobsTotal.WithLabelValues(string(domain.ReportStatusInProgress)).Inc()

	txs, err := s.collect(ctx, job)
	if err != nil {
		s.log.Error("Report run failed", "job_id", job.ID, "error", err)
		s.fail(job.ID, err.Error())
		return
	}

	path, sizeMB, err := writeCSVFile(s.cfg.Dir, job.WalletAddress, txs)
	if err != nil {
		s.fail(job.ID, fmt.Sprintf("write artifact: %v", err))
		return
	}

	if err := s.repo.MarkCompleted(ctx, job.ID, path, sizeMB, len(txs)); err != nil {
		s.log.Error("Failed to mark job completed", "job_id", job.ID, "error", err)
		return
	}
	metrics.ReportJobsTotal.WithLabelValues(string(domain.ReportStatusCompleted)).Inc()
	s.log.Info("Report completed",
		"job_id", job.ID, "address", job.WalletAddress,
		"transactions", len(txs), "file", path)
}

// collect walks the chain in ascending windows, accumulating the filtered
// history. Window failures are collected and retried once in a trailing pass;
// a window that fails both times is skipped with a warning.
func (s *Service) collect(ctx context.Context, job *domain.ReportJob) ([]domain.NormalizedTransaction, error) {
	latest, err := s.fetcher.CurrentBlock(ctx)
	if err != nil || latest == 0 {
		s.log.Warn("Falling back to static end block", "job_id", job.ID, "error", err)
		latest = s.cfg.FallbackBlock
	}

	windows := domain.PartitionChain(latest, s.cfg.BlockWindowSize)
	total := len(windows)
	s.log.Info("Segmenting chain history",
		"job_id", job.ID, "latest_block", latest, "windows", total)

	var txs []domain.NormalizedTransaction
	var failed []domain.BlockRange

	for i, window := range windows {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run cancelled: %w", err)
		}

		windowTxs, err := s.fetchWindow(ctx, job, window)
		if err != nil {
			s.log.Warn("Window failed, deferring to retry pass",
				"job_id", job.ID, "window", window.String(), "error", err)
			failed = append(failed, window)
		} else {
			txs = append(txs, windowTxs...)
		}

		progress := int(math.Round(float64(i+1) / float64(total) * 100))
		if err := s.repo.UpdateProgress(ctx, job.ID, progress); err != nil {
			s.log.Warn("Failed to persist progress", "job_id", job.ID, "error", err)
		}

		if i+1 < total {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("run cancelled: %w", ctx.Err())
			case <-time.After(s.cfg.InterWindowDelay):
			}
		}
	}

	for _, window := range failed {
		windowTxs, err := s.fetchWindow(ctx, job, window)
		if err != nil {
			s.log.Warn("Window failed twice, skipping",
				"job_id", job.ID, "window", window.String(), "error", err)
			continue
		}
		txs = append(txs, windowTxs...)
	}

	return txs, nil
}

// fetchWindow aggregates one window across all categories, normalizes and
// filters. A per-category error fails the window so it can be retried whole.
func (s *Service) fetchWindow(ctx context.Context, job *domain.ReportJob, window domain.BlockRange) ([]domain.NormalizedTransaction, error) {
	byCategory, errs := s.fetcher.FetchAllCategories(ctx, job.WalletAddress, window.Start, window.End)
	if len(errs) > 0 {
		for cat, err := range errs {
			return nil, fmt.Errorf("category %s in window %s: %w", cat, window.String(), err)
		}
	}

	all := s.normalizer.NormalizeAll(byCategory)
	out := make([]domain.NormalizedTransaction, 0, len(all))
	for _, tx := range all {
		if job.Filter.Matches(tx) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Service) fail(jobID, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.repo.MarkFailed(ctx, jobID, message); err != nil {
		s.log.Error("Failed to mark job failed", "job_id", jobID, "error", err)
		return
	}
	metrics.ReportJobsTotal.WithLabelValues(string(domain.ReportStatusFailed)).Inc()
}

// GetStatus returns the latest job for address with an estimated completion
// time while the run is in flight.
func (s *Service) GetStatus(ctx context.Context, address string) (*Status, error) {
	job, err := s.repo.FindLatest(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("status lookup: %w", err)
	}
	if job == nil {
		return nil, ErrNoReport
	}

	status := &Status{Job: job}
	if job.Status == domain.ReportStatusInProgress && job.StartedAt != nil && job.ProgressPercentage > 0 {
		elapsed := time.Since(*job.StartedAt)
		remaining := time.Duration(float64(elapsed) * float64(100-job.ProgressPercentage) / float64(job.ProgressPercentage))
		eta := time.Now().UTC().Add(remaining)
		status.EstimatedCompletion = &eta
	}
	return status, nil
}

// Download returns the artifact path of the latest completed job for address.
func (s *Service) Download(ctx context.Context, address string) (string, error) {
	job, err := s.repo.FindLatestByStatus(ctx, address, domain.ReportStatusCompleted)
	if err != nil {
		return "", fmt.Errorf("download lookup: %w", err)
	}
	if job == nil {
		latest, err := s.repo.FindLatest(ctx, address)
		if err != nil {
			return "", fmt.Errorf("download lookup: %w", err)
		}
		if latest == nil {
			return "", ErrNoReport
		}
		return "", fmt.Errorf("%w: latest job is %s", ErrNotReady, latest.Status)
	}
	if _, err := os.Stat(job.FilePath); err != nil {
		return "", fmt.Errorf("report artifact missing: %w", err)
	}
	return job.FilePath, nil
}

// Clear deletes every job for address along with their artifacts. Clearing is
// not cancellation: an in-flight run keeps going but its row is gone.
func (s *Service) Clear(ctx context.Context, address string) (int, error) {
	paths, err := s.repo.DeleteByAddress(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.Warn("Failed to remove report artifact", "path", path, "error", err)
		}
	}
	s.log.Info("Cleared report jobs", "address", address, "artifacts", len(paths))
	return len(paths), nil
}
