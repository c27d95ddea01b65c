package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/ethtracker/internal/core/domain"
)

// UsageRepo implements storage.UsageRepository on PostgreSQL.
type UsageRepo struct {
	db *DB
}

// NewUsageRepo creates a new usage repository.
func NewUsageRepo(db *DB) *UsageRepo {
	return &UsageRepo{db: db}
}

// Insert records one usage row.
func (r *UsageRepo) Insert(ctx context.Context, usage *domain.APIUsage) error {
	query := `
		INSERT INTO api_usage (wallet_address, endpoint, request_timestamp, response_time_ms, status_code, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		usage.WalletAddress, usage.Endpoint, usage.RequestedAt,
		usage.ResponseTimeMs, usage.StatusCode, usage.IPAddress)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// TotalsSince returns request count and distinct wallet count since cutoff.
func (r *UsageRepo) TotalsSince(ctx context.Context, cutoff time.Time) (int, int, error) {
	query := `
		SELECT COUNT(*) AS requests,
		       COUNT(DISTINCT wallet_address) FILTER (WHERE wallet_address <> '') AS wallets
		FROM api_usage
		WHERE request_timestamp >= $1`

	var row struct {
		Requests int `db:"requests"`
		Wallets  int `db:"wallets"`
	}
	if err := r.db.GetContext(ctx, &row, query, cutoff); err != nil {
		return 0, 0, fmt.Errorf("failed to query usage totals: %w", err)
	}
	return row.Requests, row.Wallets, nil
}

// TopEndpoints returns the most-requested endpoints since cutoff.
func (r *UsageRepo) TopEndpoints(ctx context.Context, cutoff time.Time, limit int) ([]domain.EndpointCount, error) {
	query := `
		SELECT endpoint,
		       COUNT(*) AS requests,
		       COALESCE(AVG(response_time_ms), 0) AS avg_response_ms
		FROM api_usage
		WHERE request_timestamp >= $1
		GROUP BY endpoint
		ORDER BY requests DESC
		LIMIT $2`

	var rows []struct {
		Endpoint      string  `db:"endpoint"`
		Requests      int     `db:"requests"`
		AvgResponseMs float64 `db:"avg_response_ms"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to query top endpoints: %w", err)
	}

	out := make([]domain.EndpointCount, len(rows))
	for i, row := range rows {
		out[i] = domain.EndpointCount{
			Endpoint:      row.Endpoint,
			Requests:      row.Requests,
			AvgResponseMs: row.AvgResponseMs,
		}
	}
	return out, nil
}

// TopWallets returns the most-queried wallets since cutoff.
func (r *UsageRepo) TopWallets(ctx context.Context, cutoff time.Time, limit int) ([]domain.WalletCount, error) {
	query := `
		SELECT wallet_address, COUNT(*) AS requests
		FROM api_usage
		WHERE request_timestamp >= $1 AND wallet_address <> ''
		GROUP BY wallet_address
		ORDER BY requests DESC
		LIMIT $2`

	var rows []struct {
		WalletAddress string `db:"wallet_address"`
		Requests      int    `db:"requests"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to query top wallets: %w", err)
	}

	out := make([]domain.WalletCount, len(rows))
	for i, row := range rows {
		out[i] = domain.WalletCount{WalletAddress: row.WalletAddress, Requests: row.Requests}
	}
	return out, nil
}

// WalletEndpoints returns the per-endpoint breakdown for one wallet since cutoff.
func (r *UsageRepo) WalletEndpoints(ctx context.Context, address string, cutoff time.Time) ([]domain.EndpointCount, error) {
	query := `
		SELECT endpoint,
		       COUNT(*) AS requests,
		       COALESCE(AVG(response_time_ms), 0) AS avg_response_ms
		FROM api_usage
		WHERE wallet_address = $1 AND request_timestamp >= $2
		GROUP BY endpoint
		ORDER BY requests DESC`

	var rows []struct {
		Endpoint      string  `db:"endpoint"`
		Requests      int     `db:"requests"`
		AvgResponseMs float64 `db:"avg_response_ms"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, address, cutoff); err != nil {
		return nil, fmt.Errorf("failed to query wallet endpoints: %w", err)
	}

	out := make([]domain.EndpointCount, len(rows))
	for i, row := range rows {
		out[i] = domain.EndpointCount{
			Endpoint:      row.Endpoint,
			Requests:      row.Requests,
			AvgResponseMs: row.AvgResponseMs,
		}
	}
	return out, nil
}
