// Package analytics aggregates the API usage log into simple read models.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/ethtracker/internal/core/domain"
	"github.com/vietddude/ethtracker/internal/infra/storage"
)

// Overview is the service-wide usage picture for one period.
type Overview struct {
	PeriodDays    int                    `json:"period_days"`
	TotalRequests int                    `json:"total_requests"`
	UniqueWallets int                    `json:"unique_wallets"`
	TopEndpoints  []domain.EndpointCount `json:"top_endpoints"`
	TopWallets    []domain.WalletCount   `json:"top_wallets"`
}

// WalletStats is the per-wallet usage breakdown.
type WalletStats struct {
	WalletAddress string                 `json:"wallet_address"`
	PeriodDays    int                    `json:"period_days"`
	TotalRequests int                    `json:"total_requests"`
	ByEndpoint    []domain.EndpointCount `json:"by_endpoint"`
}

// Service reads usage aggregates.
type Service struct {
	usage storage.UsageRepository
}

// NewService creates an analytics service.
func NewService(usage storage.UsageRepository) *Service {
	return &Service{usage: usage}
}

// Overview returns the service-wide picture over the last days.
func (s *Service) Overview(ctx context.Context, days int) (*Overview, error) {
	if days < 1 {
		days = 7
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	requests, wallets, err := s.usage.TotalsSince(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("usage totals: %w", err)
	}
	endpoints, err := s.usage.TopEndpoints(ctx, cutoff, 10)
	if err != nil {
		return nil, fmt.Errorf("top endpoints: %w", err)
	}
	topWallets, err := s.usage.TopWallets(ctx, cutoff, 10)
	if err != nil {
		return nil, fmt.Errorf("top wallets: %w", err)
	}

	return &Overview{
		PeriodDays:    days,
		TotalRequests: requests,
		UniqueWallets: wallets,
		TopEndpoints:  endpoints,
		TopWallets:    topWallets,
	}, nil
}

// Wallet returns the per-endpoint breakdown for one wallet over the last days.
func (s *Service) Wallet(ctx context.Context, address string, days int) (*WalletStats, error) {
	if days < 1 {
		days = 7
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	byEndpoint, err := s.usage.WalletEndpoints(ctx, address, cutoff)
	if err != nil {
		return nil, fmt.Errorf("wallet endpoints: %w", err)
	}

	total := 0
	for _, e := range byEndpoint {
		total += e.Requests
	}

	return &WalletStats{
		WalletAddress: address,
		PeriodDays:    days,
		TotalRequests: total,
		ByEndpoint:    byEndpoint,
	}, nil
}
