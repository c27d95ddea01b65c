// Package memory provides in-memory repository implementations used by tests
// and by local runs without PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/ethtracker/internal/core/domain"
)

// ReportJobRepo is an in-memory storage.ReportJobRepository.
type ReportJobRepo struct {
	mu   sync.RWMutex
	jobs map[string]*domain.ReportJob
}

// NewReportJobRepo creates an empty in-memory report job repository.
func NewReportJobRepo() *ReportJobRepo {
	return &ReportJobRepo{jobs: make(map[string]*domain.ReportJob)}
}

func (r *ReportJobRepo) Insert(_ context.Context, job *domain.ReportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *ReportJobRepo) MarkInProgress(_ context.Context, id string, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Status = domain.ReportStatusInProgress
		job.StartedAt = &startedAt
		job.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *ReportJobRepo) UpdateProgress(_ context.Context, id string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.ProgressPercentage = progress
		job.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *ReportJobRepo) MarkCompleted(_ context.Context, id, filePath string, fileSizeMB float64, totalTransactions int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		now := time.Now().UTC()
		job.Status = domain.ReportStatusCompleted
		job.ProgressPercentage = 100
		job.FilePath = filePath
		job.FileSizeMB = fileSizeMB
		job.TotalTransactions = totalTransactions
		job.CompletedAt = &now
		job.UpdatedAt = now
	}
	return nil
}

func (r *ReportJobRepo) MarkFailed(_ context.Context, id, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		now := time.Now().UTC()
		job.Status = domain.ReportStatusFailed
		job.ErrorMessage = message
		job.CompletedAt = &now
		job.UpdatedAt = now
	}
	return nil
}

func (r *ReportJobRepo) FindRecent(_ context.Context, address string, cutoff time.Time, statuses []domain.ReportStatus) (*domain.ReportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var newest *domain.ReportJob
	for _, job := range r.jobs {
		if job.WalletAddress != address || !job.CreatedAt.After(cutoff) {
			continue
		}
		match := false
		for _, s := range statuses {
			if job.Status == s {
				match = true
				break
			}
		}
		if !match {
			continue
		}
		if newest == nil || job.CreatedAt.After(newest.CreatedAt) {
			newest = job
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

func (r *ReportJobRepo) FindLatest(_ context.Context, address string) (*domain.ReportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var newest *domain.ReportJob
	for _, job := range r.jobs {
		if job.WalletAddress != address {
			continue
		}
		if newest == nil || job.CreatedAt.After(newest.CreatedAt) {
			newest = job
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

func (r *ReportJobRepo) FindLatestByStatus(_ context.Context, address string, status domain.ReportStatus) (*domain.ReportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var newest *domain.ReportJob
	for _, job := range r.jobs {
		if job.WalletAddress != address || job.Status != status {
			continue
		}
		if newest == nil || job.CreatedAt.After(newest.CreatedAt) {
			newest = job
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

func (r *ReportJobRepo) DeleteByAddress(_ context.Context, address string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var paths []string
	for id, job := range r.jobs {
		if job.WalletAddress != address {
			continue
		}
		if job.FilePath != "" {
			paths = append(paths, job.FilePath)
		}
		delete(r.jobs, id)
	}
	return paths, nil
}

// Get returns a copy of the job with the given id, for tests.
func (r *ReportJobRepo) Get(id string) (*domain.ReportJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

// UsageRepo is an in-memory storage.UsageRepository.
type UsageRepo struct {
	mu      sync.RWMutex
	records []domain.APIUsage
}

// NewUsageRepo creates an empty in-memory usage repository.
func NewUsageRepo() *UsageRepo {
	return &UsageRepo{}
}

func (r *UsageRepo) Insert(_ context.Context, usage *domain.APIUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *usage)
	return nil
}

func (r *UsageRepo) TotalsSince(_ context.Context, cutoff time.Time) (int, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	requests := 0
	wallets := make(map[string]struct{})
	for _, rec := range r.records {
		if rec.RequestedAt.Before(cutoff) {
			continue
		}
		requests++
		if rec.WalletAddress != "" {
			wallets[rec.WalletAddress] = struct{}{}
		}
	}
	return requests, len(wallets), nil
}

func (r *UsageRepo) TopEndpoints(_ context.Context, cutoff time.Time, limit int) ([]domain.EndpointCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	type acc struct {
		requests int
		totalMs  int
	}
	byEndpoint := make(map[string]*acc)
	for _, rec := range r.records {
		if rec.RequestedAt.Before(cutoff) {
			continue
		}
		a, ok := byEndpoint[rec.Endpoint]
		if !ok {
			a = &acc{}
			byEndpoint[rec.Endpoint] = a
		}
		a.requests++
		a.totalMs += rec.ResponseTimeMs
	}

	out := make([]domain.EndpointCount, 0, len(byEndpoint))
	for endpoint, a := range byEndpoint {
		out = append(out, domain.EndpointCount{
			Endpoint:      endpoint,
			Requests:      a.requests,
			AvgResponseMs: float64(a.totalMs) / float64(a.requests),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Requests > out[j].Requests })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *UsageRepo) TopWallets(_ context.Context, cutoff time.Time, limit int) ([]domain.WalletCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byWallet := make(map[string]int)
	for _, rec := range r.records {
		if rec.RequestedAt.Before(cutoff) || rec.WalletAddress == "" {
			continue
		}
		byWallet[rec.WalletAddress]++
	}

	out := make([]domain.WalletCount, 0, len(byWallet))
	for wallet, n := range byWallet {
		out = append(out, domain.WalletCount{WalletAddress: wallet, Requests: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Requests > out[j].Requests })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *UsageRepo) WalletEndpoints(_ context.Context, address string, cutoff time.Time) ([]domain.EndpointCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	type acc struct {
		requests int
		totalMs  int
	}
	byEndpoint := make(map[string]*acc)
	for _, rec := range r.records {
		if rec.WalletAddress != address || rec.RequestedAt.Before(cutoff) {
			continue
		}
		a, ok := byEndpoint[rec.Endpoint]
		if !ok {
			a = &acc{}
			byEndpoint[rec.Endpoint] = a
		}
		a.requests++
		a.totalMs += rec.ResponseTimeMs
	}

	out := make([]domain.EndpointCount, 0, len(byEndpoint))
	for endpoint, a := range byEndpoint {
		out = append(out, domain.EndpointCount{
			Endpoint:      endpoint,
			Requests:      a.requests,
			AvgResponseMs: float64(a.totalMs) / float64(a.requests),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Requests > out[j].Requests })
	return out, nil
}
