package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"time"

	"github.com/vietddude/ethtracker/internal/core/domain"
	"github.com/vietddude/ethtracker/internal/infra/etherscan"
)

// ErrLargeDataset marks an address whose history exceeds the upstream's
// pagination ceiling. Callers should direct the user to the report path.
var ErrLargeDataset = errors.New("dataset exceeds upstream pagination limit")

// Fetcher is the upstream surface the service consumes.
type Fetcher interface {
	FetchAllCategories(ctx context.Context, address string, startBlock, endBlock uint64) (map[domain.Category][]domain.RawTransaction, map[domain.Category]error)
	CurrentBlock(ctx context.Context) (uint64, error)
}

// TransactionPage is one page of the synchronous result.
type TransactionPage struct {
	WalletAddress string                         `json:"wallet_address"`
	Page          int                            `json:"page"`
	PageSize      int                            `json:"page_size"`
	TotalCount    int                            `json:"total_count"`
	TotalPages    int                            `json:"total_pages"`
	Transactions  []domain.NormalizedTransaction `json:"transactions"`
}

// Summary aggregates one address's filtered history.
type Summary struct {
	WalletAddress     string                         `json:"wallet_address"`
	TotalTransactions int                            `json:"total_transactions"`
	ByType            map[domain.TransactionType]int `json:"by_type"`
	TotalGasFeesETH   string                         `json:"total_gas_fees_eth"`
	FirstActivity     *time.Time                     `json:"first_activity,omitempty"`
	LastActivity      *time.Time                     `json:"last_activity,omitempty"`
}

// Service drives the synchronous path: fetch the whole history across all four
// categories, normalize, filter, sort newest-first and paginate in memory.
type Service struct {
	fetcher       Fetcher
	normalizer    Normalizer
	fallbackBlock uint64
	log           *slog.Logger
}

// NewService creates a transaction service. fallbackBlock bounds the fetch
// range when the chain tip cannot be determined.
func NewService(fetcher Fetcher, fallbackBlock uint64) *Service {
	return &Service{
		fetcher:       fetcher,
		fallbackBlock: fallbackBlock,
		log:           slog.Default().With("component", "tracking"),
	}
}

// History returns the full filtered history for address, newest first.
// A pagination-ceiling hit in any category fails the whole call with
// ErrLargeDataset; other per-category failures degrade to partial results.
func (s *Service) History(ctx context.Context, address string, filter domain.TransactionFilter) ([]domain.NormalizedTransaction, error) {
	endBlock, err := s.fetcher.CurrentBlock(ctx)
	if err != nil || endBlock == 0 {
		s.log.Warn("Falling back to static end block", "error", err)
		endBlock = s.fallbackBlock
	}

	byCategory, errs := s.fetcher.FetchAllCategories(ctx, address, 0, endBlock)
	for cat, catErr := range errs {
		if errors.Is(catErr, etherscan.ErrPaginationLimit) {
			return nil, fmt.Errorf("%w: category %s for %s", ErrLargeDataset, cat, address)
		}
		s.log.Warn("Category fetch failed, returning partial results",
			"category", cat, "address", address, "error", catErr)
	}

	txs := s.normalizer.NormalizeAll(byCategory)
	txs = applyFilter(txs, filter)
	sortNewestFirst(txs)
	return txs, nil
}

// List returns one page of the filtered history.
func (s *Service) List(ctx context.Context, address string, filter domain.TransactionFilter, page, pageSize int) (*TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	txs, err := s.History(ctx, address, filter)
	if err != nil {
		return nil, err
	}

	total := len(txs)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &TransactionPage{
		WalletAddress: address,
		Page:          page,
		PageSize:      pageSize,
		TotalCount:    total,
		TotalPages:    totalPages,
		Transactions:  txs[start:end],
	}, nil
}

// Summarize computes aggregate statistics over the filtered history.
func (s *Service) Summarize(ctx context.Context, address string, filter domain.TransactionFilter) (*Summary, error) {
	txs, err := s.History(ctx, address, filter)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		WalletAddress:     address,
		TotalTransactions: len(txs),
		ByType:            make(map[domain.TransactionType]int),
	}

	totalGas := new(big.Rat)
	for _, tx := range txs {
		summary.ByType[tx.Type]++
		if fee, ok := new(big.Rat).SetString(tx.GasFee); ok {
			totalGas.Add(totalGas, fee)
		}
		ts := tx.Timestamp
		if summary.FirstActivity == nil || ts.Before(*summary.FirstActivity) {
			t := ts
			summary.FirstActivity = &t
		}
		if summary.LastActivity == nil || ts.After(*summary.LastActivity) {
			t := ts
			summary.LastActivity = &t
		}
	}
	summary.TotalGasFeesETH = formatRat(totalGas)

	return summary, nil
}

func applyFilter(txs []domain.NormalizedTransaction, filter domain.TransactionFilter) []domain.NormalizedTransaction {
	if filter.IsZero() {
		return txs
	}
	out := txs[:0]
	for _, tx := range txs {
		if filter.Matches(tx) {
			out = append(out, tx)
		}
	}
	return out
}

func sortNewestFirst(txs []domain.NormalizedTransaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Timestamp.After(txs[j].Timestamp)
		}
		return txs[i].BlockNumber > txs[j].BlockNumber
	})
}

// formatRat renders a rational as a trimmed decimal string with up to 18
// fractional digits.
func formatRat(r *big.Rat) string {
	if r.Sign() == 0 {
		return "0"
	}
	s := r.FloatString(18)
	s = trimRightZeros(s)
	return s
}

func trimRightZeros(s string) string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '0' {
			continue
		}
		if s[i] == '.' {
			return s[:i]
		}
		return s[:i+1]
	}
	return s
}
