package etherscan

import (
	"context"
	"sync"

	"github.com/vietddude/ethtracker/internal/core/domain"
)

// CategoryResult is the outcome of one category fetch. Exactly one of
// Transactions and Err is meaningful.
type CategoryResult struct {
	Category     domain.Category
	Transactions []domain.RawTransaction
	Err          error
}

// FetchAllCategories runs the four category fetches concurrently for one
// block range. A failure in one category never aborts the others: every
// outcome is captured independently and the merged map always carries all
// four category keys, with a failing category contributing an empty slice.
// The returned error map is keyed by category and empty on full success.
func (c *Client) FetchAllCategories(
	ctx context.Context,
	address string,
	startBlock, endBlock uint64,
) (map[domain.Category][]domain.RawTransaction, map[domain.Category]error) {
	results := make(chan CategoryResult, len(domain.Categories()))

	var wg sync.WaitGroup
	for _, category := range domain.Categories() {
		wg.Add(1)
		go func(cat domain.Category) {
			defer wg.Done()
			txs, err := c.FetchCategory(ctx, cat, address, startBlock, endBlock, "")
			results <- CategoryResult{Category: cat, Transactions: txs, Err: err}
		}(category)
	}

	wg.Wait()
	close(results)

	// Merge deterministically by category key regardless of completion order.
	byCategory := make(map[domain.Category][]domain.RawTransaction, len(domain.Categories()))
	errs := make(map[domain.Category]error)
	for _, cat := range domain.Categories() {
		byCategory[cat] = nil
	}
	for r := range results {
		if r.Err != nil {
			errs[r.Category] = r.Err
			continue
		}
		byCategory[r.Category] = r.Transactions
	}

	return byCategory, errs
}
