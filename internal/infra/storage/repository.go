// Package storage defines the repository interfaces the service depends on.
// PostgreSQL implementations live in storage/postgres, in-memory ones in
// storage/memory.
package storage

import (
	"context"
	"time"

	"github.com/vietddude/ethtracker/internal/core/domain"
)

// ReportJobRepository persists report jobs. The background run owning a job id
// is the only writer of that job's progress; the dedup query enforces that at
// creation time.
type ReportJobRepository interface {
	Insert(ctx context.Context, job *domain.ReportJob) error

	// MarkInProgress records the start of the background run.
	MarkInProgress(ctx context.Context, id string, startedAt time.Time) error

	// UpdateProgress persists progress_percentage for a running job.
	UpdateProgress(ctx context.Context, id string, progress int) error

	// MarkCompleted records the terminal success state with the output
	// artifact's location, size and row count. Progress is forced to 100.
	MarkCompleted(ctx context.Context, id, filePath string, fileSizeMB float64, totalTransactions int) error

	// MarkFailed records the terminal failure state with the error message.
	MarkFailed(ctx context.Context, id, message string) error

	// FindRecent returns the newest job for address created after cutoff
	// whose status is in statuses, or nil when there is none.
	FindRecent(ctx context.Context, address string, cutoff time.Time, statuses []domain.ReportStatus) (*domain.ReportJob, error)

	// FindLatest returns the newest job for address regardless of status,
	// or nil when there is none.
	FindLatest(ctx context.Context, address string) (*domain.ReportJob, error)

	// FindLatestByStatus returns the newest job for address with the given
	// status, or nil when there is none.
	FindLatestByStatus(ctx context.Context, address string, status domain.ReportStatus) (*domain.ReportJob, error)

	// DeleteByAddress removes every job for address and returns the file
	// paths of the deleted jobs so callers can remove the artifacts.
	DeleteByAddress(ctx context.Context, address string) ([]string, error)
}

// UsageRepository records and aggregates API usage.
type UsageRepository interface {
	Insert(ctx context.Context, usage *domain.APIUsage) error

	// TotalsSince returns request count and distinct wallet count since cutoff.
	TotalsSince(ctx context.Context, cutoff time.Time) (requests int, uniqueWallets int, err error)

	// TopEndpoints returns the most-requested endpoints since cutoff.
	TopEndpoints(ctx context.Context, cutoff time.Time, limit int) ([]domain.EndpointCount, error)

	// TopWallets returns the most-queried wallets since cutoff.
	TopWallets(ctx context.Context, cutoff time.Time, limit int) ([]domain.WalletCount, error)

	// WalletEndpoints returns the per-endpoint breakdown for one wallet
	// since cutoff.
	WalletEndpoints(ctx context.Context, address string, cutoff time.Time) ([]domain.EndpointCount, error)
}
