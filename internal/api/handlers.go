package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/vietddude/ethtracker/internal/core/domain"
	"github.com/vietddude/ethtracker/internal/report"
	"github.com/vietddude/ethtracker/internal/tracking"
)

func pathAddress(r *http.Request) (string, error) {
	return domain.ValidateAddress(mux.Vars(r)["address"])
}

// parseFilter reads filter fields from query parameters. Dates accept RFC 3339
// or plain YYYY-MM-DD.
func parseFilter(r *http.Request) (domain.TransactionFilter, error) {
	var filter domain.TransactionFilter
	q := r.URL.Query()

	if v := q.Get("start_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return filter, fmt.Errorf("invalid start_date: %w", err)
		}
		filter.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return filter, fmt.Errorf("invalid end_date: %w", err)
		}
		filter.EndDate = &t
	}
	if v := q.Get("types"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			txType, err := parseTxType(strings.TrimSpace(raw))
			if err != nil {
				return filter, err
			}
			filter.TransactionTypes = append(filter.TransactionTypes, txType)
		}
	}
	filter.MinValue = q.Get("min_value")
	filter.MaxValue = q.Get("max_value")
	return filter, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

var txTypes = map[string]domain.TransactionType{
	"eth":      domain.TxTypeETH,
	"erc-20":   domain.TxTypeERC20,
	"erc-721":  domain.TxTypeERC721,
	"erc-1155": domain.TxTypeERC1155,
	"internal": domain.TxTypeInternal,
}

func parseTxType(v string) (domain.TransactionType, error) {
	if t, ok := txTypes[strings.ToLower(v)]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", v)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	address, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err.Error())
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	result, err := s.tracking.List(r.Context(), address, filter, page, pageSize)
	if err != nil {
		if errors.Is(err, tracking.ErrLargeDataset) {
			writeLargeDataset(w, address)
			return
		}
		s.log.Error("Transaction list failed", "address", address, "error", err)
		writeError(w, http.StatusBadGateway, "upstream_error", "failed to fetch transaction history")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTransactionSummary(w http.ResponseWriter, r *http.Request) {
	address, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err.Error())
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	summary, err := s.tracking.Summarize(r.Context(), address, filter)
	if err != nil {
		if errors.Is(err, tracking.ErrLargeDataset) {
			writeLargeDataset(w, address)
			return
		}
		s.log.Error("Transaction summary failed", "address", address, "error", err)
		writeError(w, http.StatusBadGateway, "upstream_error", "failed to fetch transaction history")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	address, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err.Error())
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	txs, err := s.tracking.History(r.Context(), address, filter)
	if err != nil {
		if errors.Is(err, tracking.ErrLargeDataset) {
			writeLargeDataset(w, address)
			return
		}
		s.log.Error("Transaction export failed", "address", address, "error", err)
		writeError(w, http.StatusBadGateway, "upstream_error", "failed to fetch transaction history")
		return
	}

	short := address
	if len(short) > 8 {
		short = short[:8]
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="ethereum_transactions_%s.csv"`, short))
	if err := report.WriteCSV(w, txs); err != nil {
		s.log.Warn("CSV stream aborted", "address", address, "error", err)
	}
}

// reportFilterBody is the optional POST body for report generation.
type reportFilterBody struct {
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	TransactionTypes []string `json:"transaction_types"`
	MinValue         string   `json:"min_value"`
	MaxValue         string   `json:"max_value"`
}

func (b reportFilterBody) toFilter() (domain.TransactionFilter, error) {
	var filter domain.TransactionFilter
	if b.StartDate != "" {
		t, err := parseDate(b.StartDate)
		if err != nil {
			return filter, fmt.Errorf("invalid start_date: %w", err)
		}
		filter.StartDate = &t
	}
	if b.EndDate != "" {
		t, err := parseDate(b.EndDate)
		if err != nil {
			return filter, fmt.Errorf("invalid end_date: %w", err)
		}
		filter.EndDate = &t
	}
	for _, raw := range b.TransactionTypes {
		txType, err := parseTxType(raw)
		if err != nil {
			return filter, err
		}
		filter.TransactionTypes = append(filter.TransactionTypes, txType)
	}
	filter.MinValue = b.MinValue
	filter.MaxValue = b.MaxValue
	return filter, nil
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	address, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err.Error())
		return
	}

	var body reportFilterBody
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err.Error() != "EOF" {
			writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
			return
		}
	}
	filter, err := body.toFilter()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	job, created, err := s.reports.Create(r.Context(), address, filter)
	if err != nil {
		if errors.Is(err, report.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "queue_full", "report queue is full, retry later")
			return
		}
		s.log.Error("Report creation failed", "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create report")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusAccepted
	}
	writeJSON(w, status, job)
}

func (s *Server) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	address, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err.Error())
		return
	}

	status, err := s.reports.GetStatus(r.Context(), address)
	if err != nil {
		if errors.Is(err, report.ErrNoReport) {
			writeError(w, http.StatusNotFound, "not_found", "no report for this address")
			return
		}
		s.log.Error("Report status failed", "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to read report status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleReportDownload(w http.ResponseWriter, r *http.Request) {
	address, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err.Error())
		return
	}

	path, err := s.reports.Download(r.Context(), address)
	if err != nil {
		switch {
		case errors.Is(err, report.ErrNoReport):
			writeError(w, http.StatusNotFound, "not_found", "no report for this address")
		case errors.Is(err, report.ErrNotReady):
			writeError(w, http.StatusConflict, "not_ready", err.Error())
		default:
			s.log.Error("Report download failed", "address", address, "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to serve report")
		}
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *Server) handleClearReports(w http.ResponseWriter, r *http.Request) {
	address, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err.Error())
		return
	}

	removed, err := s.reports.Clear(r.Context(), address)
	if err != nil {
		s.log.Error("Report clear failed", "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to clear reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet_address":  address,
		"reports_removed": removed,
	})
}

func (s *Server) handleAnalyticsOverview(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	overview, err := s.analytics.Overview(r.Context(), days)
	if err != nil {
		s.log.Error("Analytics overview failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to aggregate usage")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleAnalyticsWallet(w http.ResponseWriter, r *http.Request) {
	address, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", err.Error())
		return
	}
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	stats, err := s.analytics.Wallet(r.Context(), address, days)
	if err != nil {
		s.log.Error("Wallet analytics failed", "address", address, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to aggregate usage")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusNotImplemented, "no_cache", "no cache backend configured")
		return
	}
	if err := s.cache.FlushAll(r.Context()); err != nil {
		s.log.Error("Cache clear failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to clear cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	probe := func(name string, hc HealthChecker) {
		if hc == nil {
			checks[name] = "not configured"
			return
		}
		if err := hc.Health(ctx); err != nil {
			checks[name] = fmt.Sprintf("unhealthy: %v", err)
			healthy = false
			return
		}
		checks[name] = "healthy"
	}
	probe("database", s.db)
	probe("redis", s.cacheProbe)

	payload := map[string]any{
		"status": "healthy",
		"checks": checks,
	}
	if s.upstream != nil {
		payload["upstream_quota"] = s.upstream.Usage()
	}

	status := http.StatusOK
	if !healthy {
		payload["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, payload)
}
