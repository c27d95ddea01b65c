package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/ethtracker/internal/core/domain"
	"github.com/vietddude/ethtracker/internal/infra/etherscan"
)

type mockFetcher struct {
	byCategory map[domain.Category][]domain.RawTransaction
	errs       map[domain.Category]error
	tip        uint64
	tipErr     error
}

func (m *mockFetcher) FetchAllCategories(_ context.Context, _ string, _, _ uint64) (map[domain.Category][]domain.RawTransaction, map[domain.Category]error) {
	byCategory := make(map[domain.Category][]domain.RawTransaction)
	for _, cat := range domain.Categories() {
		byCategory[cat] = m.byCategory[cat]
	}
	errs := m.errs
	if errs == nil {
		errs = map[domain.Category]error{}
	}
	return byCategory, errs
}

func (m *mockFetcher) CurrentBlock(_ context.Context) (uint64, error) {
	return m.tip, m.tipErr
}

func rawNative(hash, ts string) domain.RawTransaction {
	return domain.RawTransaction{
		Hash:      hash,
		TimeStamp: ts,
		Value:     "1000000000000000000",
		GasUsed:   "21000",
		GasPrice:  "50000000000",
	}
}

func TestHistorySortsNewestFirst(t *testing.T) {
	fetcher := &mockFetcher{
		tip: 100,
		byCategory: map[domain.Category][]domain.RawTransaction{
			domain.CategoryNative: {rawNative("0x1", "100"), rawNative("0x3", "300")},
			domain.CategoryToken:  {{Hash: "0x2", TimeStamp: "200", Value: "1", TokenDecimal: "0"}},
		},
	}
	svc := NewService(fetcher, 20000000)

	txs, err := svc.History(context.Background(), "0xabc", domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txs))
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].Timestamp.After(txs[i-1].Timestamp) {
			t.Errorf("not newest first at %d: %v after %v", i, txs[i].Timestamp, txs[i-1].Timestamp)
		}
	}
	if txs[0].TxHash != "0x3" {
		t.Errorf("first tx = %s, want 0x3", txs[0].TxHash)
	}
}

func TestHistoryPaginationLimitBecomesLargeDataset(t *testing.T) {
	fetcher := &mockFetcher{
		tip: 100,
		errs: map[domain.Category]error{
			domain.CategoryNative: etherscan.ErrPaginationLimit,
		},
	}
	svc := NewService(fetcher, 20000000)

	_, err := svc.History(context.Background(), "0xabc", domain.TransactionFilter{})
	if !errors.Is(err, ErrLargeDataset) {
		t.Fatalf("err = %v, want ErrLargeDataset", err)
	}
}

func TestHistoryPartialResultsOnCategoryFailure(t *testing.T) {
	fetcher := &mockFetcher{
		tip: 100,
		byCategory: map[domain.Category][]domain.RawTransaction{
			domain.CategoryNative: {rawNative("0x1", "100")},
		},
		errs: map[domain.Category]error{
			domain.CategoryToken: errors.New("upstream exploded"),
		},
	}
	svc := NewService(fetcher, 20000000)

	txs, err := svc.History(context.Background(), "0xabc", domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1 partial result", len(txs))
	}
}

func TestHistoryFilterByType(t *testing.T) {
	fetcher := &mockFetcher{
		tip: 100,
		byCategory: map[domain.Category][]domain.RawTransaction{
			domain.CategoryNative: {rawNative("0x1", "100")},
			domain.CategoryToken:  {{Hash: "0x2", TimeStamp: "200", Value: "5", TokenDecimal: "0"}},
		},
	}
	svc := NewService(fetcher, 20000000)

	filter := domain.TransactionFilter{TransactionTypes: []domain.TransactionType{domain.TxTypeERC20}}
	txs, err := svc.History(context.Background(), "0xabc", filter)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(txs) != 1 || txs[0].Type != domain.TxTypeERC20 {
		t.Fatalf("filter by type returned %+v", txs)
	}
}

func TestListPaginates(t *testing.T) {
	var native []domain.RawTransaction
	for i := 0; i < 25; i++ {
		native = append(native, rawNative("0x1", "100"))
	}
	fetcher := &mockFetcher{
		tip:        100,
		byCategory: map[domain.Category][]domain.RawTransaction{domain.CategoryNative: native},
	}
	svc := NewService(fetcher, 20000000)

	page, err := svc.List(context.Background(), "0xabc", domain.TransactionFilter{}, 2, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.TotalCount != 25 || page.TotalPages != 3 {
		t.Errorf("totals = %d/%d, want 25/3", page.TotalCount, page.TotalPages)
	}
	if len(page.Transactions) != 10 {
		t.Errorf("page len = %d, want 10", len(page.Transactions))
	}

	last, err := svc.List(context.Background(), "0xabc", domain.TransactionFilter{}, 3, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(last.Transactions) != 5 {
		t.Errorf("last page len = %d, want 5", len(last.Transactions))
	}

	beyond, err := svc.List(context.Background(), "0xabc", domain.TransactionFilter{}, 9, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(beyond.Transactions) != 0 {
		t.Errorf("page beyond end len = %d, want 0", len(beyond.Transactions))
	}
}

func TestHistoryFallsBackWhenTipUnavailable(t *testing.T) {
	fetcher := &mockFetcher{
		tipErr: errors.New("proxy down"),
		byCategory: map[domain.Category][]domain.RawTransaction{
			domain.CategoryNative: {rawNative("0x1", "100")},
		},
	}
	svc := NewService(fetcher, 20000000)

	txs, err := svc.History(context.Background(), "0xabc", domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txs))
	}
}

func TestSummarize(t *testing.T) {
	fetcher := &mockFetcher{
		tip: 100,
		byCategory: map[domain.Category][]domain.RawTransaction{
			domain.CategoryNative: {rawNative("0x1", "100"), rawNative("0x2", "300")},
			domain.CategoryToken:  {{Hash: "0x3", TimeStamp: "200", Value: "5", TokenDecimal: "0"}},
		},
	}
	svc := NewService(fetcher, 20000000)

	summary, err := svc.Summarize(context.Background(), "0xabc", domain.TransactionFilter{})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.TotalTransactions != 3 {
		t.Errorf("total = %d, want 3", summary.TotalTransactions)
	}
	if summary.ByType[domain.TxTypeETH] != 2 || summary.ByType[domain.TxTypeERC20] != 1 {
		t.Errorf("by type = %v", summary.ByType)
	}
	if summary.TotalGasFeesETH != "0.0021" {
		t.Errorf("total gas = %s, want 0.0021", summary.TotalGasFeesETH)
	}
	if summary.FirstActivity == nil || !summary.FirstActivity.Equal(time.Unix(100, 0).UTC()) {
		t.Errorf("first activity = %v", summary.FirstActivity)
	}
	if summary.LastActivity == nil || !summary.LastActivity.Equal(time.Unix(300, 0).UTC()) {
		t.Errorf("last activity = %v", summary.LastActivity)
	}
}
