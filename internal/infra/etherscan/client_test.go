package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/ethtracker/internal/core/domain"
)

func testClient(baseURL string, pageSize, ceiling int) *Client {
	cfg := Config{
		APIKey:            "test-key",
		BaseURL:           baseURL,
		ChainID:           1,
		PageSize:          pageSize,
		PaginationCeiling: ceiling,
		MaxRetries:        2,
		Timeout:           5 * time.Second,
		CacheTTL:          time.Minute,
	}
	return NewClient(cfg, NewPacer(1000), NewBudgetTracker(0), nil)
}

func writeEnvelope(w http.ResponseWriter, status, message string, result any) {
	raw, _ := json.Marshal(result)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"message": message,
		"result":  json.RawMessage(raw),
	})
}

func TestRequestRetriesTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeEnvelope(w, "1", "OK", []domain.RawTransaction{{Hash: "0x1"}})
	}))
	defer srv.Close()

	client := testClient(srv.URL, 1000, 10000)
	params := url.Values{}
	params.Set("action", "txlist")

	resp, err := client.request(context.Background(), params)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.Status != "1" {
		t.Errorf("status = %s", resp.Status)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("made %d calls, want 2", n)
	}
}

func TestRequestExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := testClient(srv.URL, 1000, 10000)
	params := url.Values{}
	params.Set("action", "txlist")

	_, err := client.request(context.Background(), params)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("made %d calls, want 3 (initial + 2 retries)", n)
	}
}

func TestPaginationLimitInOKEnvelopeNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeEnvelope(w, "0", "Result window is too large, PageNo x Offset size must be less than or equal to 10000", "")
	}))
	defer srv.Close()

	client := testClient(srv.URL, 1000, 10000)
	params := url.Values{}
	params.Set("action", "txlist")

	_, err := client.request(context.Background(), params)
	if !errors.Is(err, ErrPaginationLimit) {
		t.Fatalf("err = %v, want ErrPaginationLimit", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("made %d calls, want 1; the ceiling must never be retried", n)
	}
}

func TestFetchCategoryPagesToEnd(t *testing.T) {
	page := func(n int) []domain.RawTransaction {
		var txs []domain.RawTransaction
		for i := 0; i < n; i++ {
			txs = append(txs, domain.RawTransaction{Hash: fmt.Sprintf("0x%d", i)})
		}
		return txs
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			writeEnvelope(w, "1", "OK", page(2))
		case "2":
			writeEnvelope(w, "1", "OK", page(1))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
			writeEnvelope(w, "0", "No transactions found", "")
		}
	}))
	defer srv.Close()

	client := testClient(srv.URL, 2, 100)
	txs, err := client.FetchCategory(context.Background(), domain.CategoryNative, "0xabc", 0, 100, "")
	if err != nil {
		t.Fatalf("FetchCategory failed: %v", err)
	}
	if len(txs) != 3 {
		t.Errorf("got %d transactions, want 3", len(txs))
	}
}

func TestFetchCategoryPreemptiveCeiling(t *testing.T) {
	full := []domain.RawTransaction{{Hash: "0x1"}, {Hash: "0x2"}}
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeEnvelope(w, "1", "OK", full)
	}))
	defer srv.Close()

	// pageSize 2, ceiling 6: threshold 4, so page 3 (2*3=6 > 4) is refused
	// before it is issued.
	client := testClient(srv.URL, 2, 6)
	_, err := client.FetchCategory(context.Background(), domain.CategoryNative, "0xabc", 0, 100, "")
	if !errors.Is(err, ErrPaginationLimit) {
		t.Fatalf("err = %v, want ErrPaginationLimit", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("made %d upstream calls, want 2 before the pre-emptive abort", n)
	}
}

func TestFetchCategoryEmptyHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, "0", "No transactions found", "")
	}))
	defer srv.Close()

	client := testClient(srv.URL, 1000, 10000)
	txs, err := client.FetchCategory(context.Background(), domain.CategoryToken, "0xabc", 0, 100, "")
	if err != nil {
		t.Fatalf("FetchCategory failed: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("got %d transactions, want 0", len(txs))
	}
}

func TestFetchAllCategoriesIndependentFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "tokentx":
			writeEnvelope(w, "0", "Result window is too large, PageNo x Offset size must be less than or equal to 10000", "")
		case "txlist":
			writeEnvelope(w, "1", "OK", []domain.RawTransaction{{Hash: "0xaaa"}})
		default:
			writeEnvelope(w, "0", "No transactions found", "")
		}
	}))
	defer srv.Close()

	client := testClient(srv.URL, 1000, 10000)
	byCategory, errs := client.FetchAllCategories(context.Background(), "0xabc", 0, 100)

	if !errors.Is(errs[domain.CategoryToken], ErrPaginationLimit) {
		t.Fatalf("token err = %v, want ErrPaginationLimit", errs[domain.CategoryToken])
	}
	if len(byCategory[domain.CategoryNative]) != 1 {
		t.Errorf("native results lost alongside the token failure: %v", byCategory[domain.CategoryNative])
	}
	for _, cat := range domain.Categories() {
		if _, ok := byCategory[cat]; !ok {
			t.Errorf("category %s missing from the merged map", cat)
		}
	}
	if len(errs) != 1 {
		t.Errorf("errs = %v, want only the token ceiling", errs)
	}
}

func TestCurrentBlockParsesHex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "eth_blockNumber" {
			t.Errorf("unexpected action %s", r.URL.Query().Get("action"))
		}
		writeEnvelope(w, "1", "OK", "0x1312d00")
	}))
	defer srv.Close()

	client := testClient(srv.URL, 1000, 10000)
	n, err := client.CurrentBlock(context.Background())
	if err != nil {
		t.Fatalf("CurrentBlock failed: %v", err)
	}
	if n != 20000000 {
		t.Errorf("block = %d, want 20000000", n)
	}
}

func TestCacheShortCircuitsFetch(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeEnvelope(w, "1", "OK", []domain.RawTransaction{{Hash: "0x1"}})
	}))
	defer srv.Close()

	cache := newMapCache()
	cfg := Config{
		APIKey:            "k",
		BaseURL:           srv.URL,
		ChainID:           1,
		PageSize:          1000,
		PaginationCeiling: 10000,
		MaxRetries:        0,
		Timeout:           5 * time.Second,
		CacheTTL:          time.Minute,
	}
	client := NewClient(cfg, NewPacer(1000), NewBudgetTracker(0), cache)

	for i := 0; i < 3; i++ {
		txs, err := client.FetchCategory(context.Background(), domain.CategoryNative, "0xabc", 0, 100, "")
		if err != nil {
			t.Fatalf("FetchCategory failed: %v", err)
		}
		if len(txs) != 1 {
			t.Fatalf("got %d transactions", len(txs))
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("made %d upstream calls, want 1 with a warm cache", n)
	}
}

type mapCache struct {
	data map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	return c.data[key], nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.data[key] = value
	return nil
}
