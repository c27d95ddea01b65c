package domain

import "time"

// ReportStatus is the lifecycle state of a report job.
type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusInProgress ReportStatus = "in_progress"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusFailed     ReportStatus = "failed"
)

// Terminal reports whether the status is one of the two terminal states.
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusCompleted || s == ReportStatusFailed
}

// ReportJob is one full-history report run for one address. A job is created
// in pending, moves to in_progress when the background run starts, and ends in
// exactly one of completed or failed. The job owns its output file.
type ReportJob struct {
	ID                 string            `json:"report_id"`
	WalletAddress      string            `json:"wallet_address"`
	Status             ReportStatus      `json:"status"`
	Filter             TransactionFilter `json:"filters"`
	ProgressPercentage int               `json:"progress_percentage"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	FilePath           string            `json:"file_path,omitempty"`
	FileSizeMB         float64           `json:"file_size_mb,omitempty"`
	TotalTransactions  int               `json:"total_transactions,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	StartedAt          *time.Time        `json:"started_at,omitempty"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
}
