package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/ethtracker/internal/analytics"
	"github.com/vietddude/ethtracker/internal/core/config"
	"github.com/vietddude/ethtracker/internal/core/domain"
	"github.com/vietddude/ethtracker/internal/infra/etherscan"
	"github.com/vietddude/ethtracker/internal/infra/storage/memory"
	"github.com/vietddude/ethtracker/internal/report"
	"github.com/vietddude/ethtracker/internal/tracking"
)

const testAddress = "0xd8da6bf26964af9d7eed9e03e53415d37aa96045"

type fakeFetcher struct {
	txs         []domain.RawTransaction
	categoryErr error
}

func (f *fakeFetcher) CurrentBlock(_ context.Context) (uint64, error) { return 1000, nil }

func (f *fakeFetcher) FetchAllCategories(_ context.Context, _ string, _, _ uint64) (map[domain.Category][]domain.RawTransaction, map[domain.Category]error) {
	byCategory := make(map[domain.Category][]domain.RawTransaction)
	for _, cat := range domain.Categories() {
		byCategory[cat] = nil
	}
	errs := map[domain.Category]error{}
	if f.categoryErr != nil {
		errs[domain.CategoryNative] = f.categoryErr
	} else {
		byCategory[domain.CategoryNative] = f.txs
	}
	return byCategory, errs
}

func newTestServer(t *testing.T, fetcher tracking.Fetcher, apiKey string) *Server {
	t.Helper()

	runner := report.NewRunner(4)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	runner.Start(ctx)

	reportsCfg := config.ReportsConfig{
		Dir:              t.TempDir(),
		BlockWindowSize:  10000,
		InterWindowDelay: time.Millisecond,
		DedupWindow:      24 * time.Hour,
		FallbackBlock:    1000,
	}
	usage := memory.NewUsageRepo()

	return NewServer(config.ServerConfig{Port: 0, APIKey: apiKey}, Deps{
		Tracking:  tracking.NewService(fetcher, 1000),
		Reports:   report.NewService(fetcher, memory.NewReportJobRepo(), runner, reportsCfg),
		Analytics: analytics.NewService(usage),
		Usage:     usage,
	})
}

func doRequest(s *Server, method, path, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, "secret")

	rec := doRequest(s, "GET", "/api/v1/transactions/"+testAddress, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without key: status = %d, want 401", rec.Code)
	}

	rec = doRequest(s, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("health must not require auth: status = %d", rec.Code)
	}
}

func TestListTransactions(t *testing.T) {
	fetcher := &fakeFetcher{txs: []domain.RawTransaction{
		{Hash: "0x1", TimeStamp: "100", Value: "1000000000000000000", GasUsed: "21000", GasPrice: "50000000000"},
	}}
	s := newTestServer(t, fetcher, "secret")

	rec := doRequest(s, "GET", "/api/v1/transactions/"+testAddress, "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var page tracking.TransactionPage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if page.TotalCount != 1 || len(page.Transactions) != 1 {
		t.Errorf("page = %+v", page)
	}
	if page.Transactions[0].Value != "1" {
		t.Errorf("value = %s, want 1", page.Transactions[0].Value)
	}
}

func TestListTransactionsInvalidAddress(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, "secret")

	rec := doRequest(s, "GET", "/api/v1/transactions/0x1234", "secret")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListTransactionsLargeDataset(t *testing.T) {
	fetcher := &fakeFetcher{categoryErr: etherscan.ErrPaginationLimit}
	s := newTestServer(t, fetcher, "secret")

	rec := doRequest(s, "GET", "/api/v1/transactions/"+testAddress, "secret")
	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want 416", rec.Code)
	}

	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error != "dataset_too_large" {
		t.Errorf("error = %s", body.Error)
	}
	if body.Detail == "" {
		t.Error("response does not point at the report path")
	}
}

func TestReportLifecycle(t *testing.T) {
	fetcher := &fakeFetcher{txs: []domain.RawTransaction{
		{Hash: "0x1", TimeStamp: "100", Value: "1"},
	}}
	s := newTestServer(t, fetcher, "secret")

	rec := doRequest(s, "POST", "/api/v1/reports/"+testAddress, "secret")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.ReportJob
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode job: %v", err)
	}

	// dedup within 24h returns the existing job with 200
	rec = doRequest(s, "POST", "/api/v1/reports/"+testAddress, "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("dedup status = %d", rec.Code)
	}
	var dup domain.ReportJob
	if err := json.Unmarshal(rec.Body.Bytes(), &dup); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if dup.ID != created.ID {
		t.Errorf("dedup returned %s, want %s", dup.ID, created.ID)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = doRequest(s, "GET", "/api/v1/reports/"+testAddress+"/status", "secret")
		if rec.Code != http.StatusOK {
			t.Fatalf("status endpoint = %d", rec.Code)
		}
		var status report.Status
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if status.Job.Status.Terminal() {
			if status.Job.Status != domain.ReportStatusCompleted {
				t.Fatalf("job ended %s: %s", status.Job.Status, status.Job.ErrorMessage)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never completed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = doRequest(s, "GET", "/api/v1/reports/"+testAddress+"/download", "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %s", ct)
	}

	rec = doRequest(s, "DELETE", "/api/v1/reports/"+testAddress, "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
	rec = doRequest(s, "GET", "/api/v1/reports/"+testAddress+"/status", "secret")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status after clear = %d, want 404", rec.Code)
	}
}

func TestReportStatusNotFound(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, "secret")
	rec := doRequest(s, "GET", "/api/v1/reports/"+testAddress+"/status", "secret")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestExportCSV(t *testing.T) {
	fetcher := &fakeFetcher{txs: []domain.RawTransaction{
		{Hash: "0x1", TimeStamp: "100", Value: "1000000000000000000"},
	}}
	s := newTestServer(t, fetcher, "secret")

	rec := doRequest(s, "GET", "/api/v1/transactions/"+testAddress+"/export", "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %s", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "0x1") {
		t.Errorf("csv missing the transaction: %q", body)
	}
}

func TestAnalyticsOverviewEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{}, "secret")
	rec := doRequest(s, "GET", "/api/v1/analytics/overview?days=7", "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestFilterParsing(t *testing.T) {
	req := httptest.NewRequest("GET",
		"/api/v1/transactions/x?start_date=2024-01-01&end_date=2024-06-30T23:59:59Z&types=ERC-20,eth&min_value=0.5", nil)
	filter, err := parseFilter(req)
	if err != nil {
		t.Fatalf("parseFilter failed: %v", err)
	}
	if filter.StartDate == nil || filter.EndDate == nil {
		t.Fatal("dates not parsed")
	}
	if len(filter.TransactionTypes) != 2 ||
		filter.TransactionTypes[0] != domain.TxTypeERC20 ||
		filter.TransactionTypes[1] != domain.TxTypeETH {
		t.Errorf("types = %v", filter.TransactionTypes)
	}
	if filter.MinValue != "0.5" {
		t.Errorf("min value = %s", filter.MinValue)
	}

	if _, err := parseFilter(httptest.NewRequest("GET", "/x?types=bogus", nil)); err == nil {
		t.Error("unknown type accepted")
	}
}
