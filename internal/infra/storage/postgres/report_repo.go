package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/ethtracker/internal/core/domain"
)

// ReportJobRepo implements storage.ReportJobRepository on PostgreSQL.
type ReportJobRepo struct {
	db *DB
}

// NewReportJobRepo creates a new report job repository.
func NewReportJobRepo(db *DB) *ReportJobRepo {
	return &ReportJobRepo{db: db}
}

type reportJobRow struct {
	ID                 string          `db:"id"`
	WalletAddress      string          `db:"wallet_address"`
	Status             string          `db:"status"`
	Filters            json.RawMessage `db:"filters"`
	ProgressPercentage int             `db:"progress_percentage"`
	ErrorMessage       sql.NullString  `db:"error_message"`
	FilePath           sql.NullString  `db:"file_path"`
	FileSizeMB         sql.NullFloat64 `db:"file_size_mb"`
	TotalTransactions  sql.NullInt64   `db:"total_transactions"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
	StartedAt          sql.NullTime    `db:"started_at"`
	CompletedAt        sql.NullTime    `db:"completed_at"`
}

func (r reportJobRow) toDomain() (*domain.ReportJob, error) {
	job := &domain.ReportJob{
		ID:                 r.ID,
		WalletAddress:      r.WalletAddress,
		Status:             domain.ReportStatus(r.Status),
		ProgressPercentage: r.ProgressPercentage,
		ErrorMessage:       r.ErrorMessage.String,
		FilePath:           r.FilePath.String,
		FileSizeMB:         r.FileSizeMB.Float64,
		TotalTransactions:  int(r.TotalTransactions.Int64),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if len(r.Filters) > 0 {
		if err := json.Unmarshal(r.Filters, &job.Filter); err != nil {
			return nil, fmt.Errorf("failed to decode filters for job %s: %w", r.ID, err)
		}
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		job.StartedAt = &t
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}

// Insert persists a new job.
func (r *ReportJobRepo) Insert(ctx context.Context, job *domain.ReportJob) error {
	filters, err := json.Marshal(job.Filter)
	if err != nil {
		return fmt.Errorf("failed to encode filters: %w", err)
	}

	query := `
		INSERT INTO report_jobs (id, wallet_address, status, filters, progress_percentage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.ExecContext(ctx, query,
		job.ID, job.WalletAddress, string(job.Status), filters,
		job.ProgressPercentage, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert report job: %w", err)
	}
	return nil
}

// MarkInProgress records the start of the background run.
func (r *ReportJobRepo) MarkInProgress(ctx context.Context, id string, startedAt time.Time) error {
	query := `
		UPDATE report_jobs
		SET status = $2, started_at = $3, updated_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, string(domain.ReportStatusInProgress), startedAt); err != nil {
		return fmt.Errorf("failed to mark job in progress: %w", err)
	}
	return nil
}

// UpdateProgress persists progress for a running job.
func (r *ReportJobRepo) UpdateProgress(ctx context.Context, id string, progress int) error {
	query := `
		UPDATE report_jobs
		SET progress_percentage = $2, updated_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, progress); err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// MarkCompleted records the terminal success state.
func (r *ReportJobRepo) MarkCompleted(ctx context.Context, id, filePath string, fileSizeMB float64, totalTransactions int) error {
	query := `
		UPDATE report_jobs
		SET status = $2, progress_percentage = 100, file_path = $3, file_size_mb = $4,
		    total_transactions = $5, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id,
		string(domain.ReportStatusCompleted), filePath, fileSizeMB, totalTransactions); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return nil
}

// MarkFailed records the terminal failure state.
func (r *ReportJobRepo) MarkFailed(ctx context.Context, id, message string) error {
	query := `
		UPDATE report_jobs
		SET status = $2, error_message = $3, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, string(domain.ReportStatusFailed), message); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

// FindRecent returns the newest matching job created after cutoff, or nil.
func (r *ReportJobRepo) FindRecent(ctx context.Context, address string, cutoff time.Time, statuses []domain.ReportStatus) (*domain.ReportJob, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	query := `
		SELECT id, wallet_address, status, filters, progress_percentage, error_message,
		       file_path, file_size_mb, total_transactions, created_at, updated_at,
		       started_at, completed_at
		FROM report_jobs
		WHERE wallet_address = $1 AND created_at > $2 AND status = ANY($3)
		ORDER BY created_at DESC
		LIMIT 1`

	var row reportJobRow
	err := r.db.GetContext(ctx, &row, query, address, cutoff, pq.Array(names))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recent report job: %w", err)
	}
	return row.toDomain()
}

// FindLatest returns the newest job for address, or nil.
func (r *ReportJobRepo) FindLatest(ctx context.Context, address string) (*domain.ReportJob, error) {
	query := `
		SELECT id, wallet_address, status, filters, progress_percentage, error_message,
		       file_path, file_size_mb, total_transactions, created_at, updated_at,
		       started_at, completed_at
		FROM report_jobs
		WHERE wallet_address = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var row reportJobRow
	err := r.db.GetContext(ctx, &row, query, address)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest report job: %w", err)
	}
	return row.toDomain()
}

// FindLatestByStatus returns the newest job for address in the given status, or nil.
func (r *ReportJobRepo) FindLatestByStatus(ctx context.Context, address string, status domain.ReportStatus) (*domain.ReportJob, error) {
	query := `
		SELECT id, wallet_address, status, filters, progress_percentage, error_message,
		       file_path, file_size_mb, total_transactions, created_at, updated_at,
		       started_at, completed_at
		FROM report_jobs
		WHERE wallet_address = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var row reportJobRow
	err := r.db.GetContext(ctx, &row, query, address, string(status))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find report job by status: %w", err)
	}
	return row.toDomain()
}

// DeleteByAddress removes every job for address and returns the file paths
// of jobs that had an output artifact.
func (r *ReportJobRepo) DeleteByAddress(ctx context.Context, address string) ([]string, error) {
	query := `
		DELETE FROM report_jobs
		WHERE wallet_address = $1
		RETURNING file_path`

	rows, err := r.db.QueryxContext(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("failed to delete report jobs: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path sql.NullString
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan deleted job: %w", err)
		}
		if path.Valid && path.String != "" {
			paths = append(paths, path.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deleted jobs: %w", err)
	}
	return paths, nil
}
