package etherscan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/vietddude/ethtracker/internal/core/domain"
	"github.com/vietddude/ethtracker/internal/metrics"
)

// categoryActions maps a category to its upstream account-module action.
var categoryActions = map[domain.Category]string{
	domain.CategoryNative:   "txlist",
	domain.CategoryInternal: "txlistinternal",
	domain.CategoryToken:    "tokentx",
	domain.CategoryNFT:      "tokennfttx",
}

// CacheKey builds a deterministic cache key from its parts.
func CacheKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return "ethtracker:" + hex.EncodeToString(sum[:16])
}

// FetchCategory retrieves the full history of one category for an address
// within [startBlock, endBlock], paging through the upstream until a short
// page signals the end of data. Identical queries are served from cache.
//
// Before each page request the fetcher checks page*pageSize against the
// safety threshold and fails with ErrPaginationLimit pre-emptively; waiting
// for the upstream to reject the page is unreliable because the ceiling can
// surface as a generic error inside a 200 OK envelope.
func (c *Client) FetchCategory(
	ctx context.Context,
	category domain.Category,
	address string,
	startBlock, endBlock uint64,
	contractAddress string,
) ([]domain.RawTransaction, error) {
	action, ok := categoryActions[category]
	if !ok {
		return nil, fmt.Errorf("unknown category: %s", category)
	}

	cacheKey := CacheKey(
		string(category), address,
		strconv.FormatUint(startBlock, 10), strconv.FormatUint(endBlock, 10),
		contractAddress,
	)
	if raw, err := c.cache.Get(ctx, cacheKey); err == nil && raw != nil {
		var cached []domain.RawTransaction
		if err := json.Unmarshal(raw, &cached); err == nil {
			metrics.CacheHitsTotal.Inc()
			return cached, nil
		}
	}
	metrics.CacheMissesTotal.Inc()

	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", action)
	params.Set("address", address)
	params.Set("startblock", strconv.FormatUint(startBlock, 10))
	params.Set("endblock", strconv.FormatUint(endBlock, 10))
	params.Set("sort", "asc")
	if contractAddress != "" {
		params.Set("contractaddress", contractAddress)
	}

	var all []domain.RawTransaction
	page := 1

	for {
		if page*c.cfg.PageSize > c.cfg.SafetyThreshold() {
			c.log.Warn("Approaching pagination ceiling",
				"category", category, "address", address, "page", page)
			return nil, fmt.Errorf(
				"%w: address %s has more than %d %s records in range %d-%d",
				ErrPaginationLimit, address, c.cfg.SafetyThreshold(), category, startBlock, endBlock,
			)
		}

		params.Set("page", strconv.Itoa(page))
		params.Set("offset", strconv.Itoa(c.cfg.PageSize))

		resp, err := c.request(ctx, params)
		if err != nil {
			return nil, err
		}

		txs := decodeTransactions(resp.Result)
		if len(txs) == 0 {
			break
		}

		all = append(all, txs...)

		if len(txs) < c.cfg.PageSize {
			break
		}
		page++
	}

	if raw, err := json.Marshal(all); err == nil {
		if err := c.cache.Set(ctx, cacheKey, raw, c.cfg.CacheTTL); err != nil {
			c.log.Warn("Failed to cache category result", "category", category, "error", err)
		}
	}

	return all, nil
}

// decodeTransactions parses the result payload. On non-OK envelopes the
// upstream puts a plain string here; that decodes to no rows, which the
// pagination loop treats as end of data.
func decodeTransactions(raw json.RawMessage) []domain.RawTransaction {
	if len(raw) == 0 {
		return nil
	}
	var txs []domain.RawTransaction
	if err := json.Unmarshal(raw, &txs); err != nil {
		return nil
	}
	return txs
}
