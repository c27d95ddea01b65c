package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/ethtracker/internal/metrics"
)

// Config holds explorer API settings.
type Config struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	ChainID           int           `yaml:"chain_id"`
	RateLimit         float64       `yaml:"rate_limit"` // requests per second
	PageSize          int           `yaml:"page_size"`
	PaginationCeiling int           `yaml:"pagination_ceiling"` // upstream page*offset hard limit
	MaxRetries        int           `yaml:"max_retries"`
	Timeout           time.Duration `yaml:"timeout"`
	DailyQuota        int           `yaml:"daily_quota"` // 0 = unlimited
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

// SafetyThreshold is the page*offset value beyond which a page request is
// refused pre-emptively, one page size short of the documented ceiling. The
// margin exists because the upstream sometimes reports the ceiling inside a
// 200 OK envelope where it cannot be told apart from other errors reliably.
func (c Config) SafetyThreshold() int {
	return c.PaginationCeiling - c.PageSize
}

// Cache memoizes raw upstream results for a short TTL. Get returns nil bytes
// on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// nopCache is used when no cache backend is configured.
type nopCache struct{}

func (nopCache) Get(ctx context.Context, key string) ([]byte, error) { return nil, nil }
func (nopCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

// Client issues explorer API calls with pacing, bounded retries and
// classification of the upstream's pagination ceiling.
type Client struct {
	cfg        Config
	httpClient *http.Client
	pacer      *Pacer
	budget     *BudgetTracker
	cache      Cache
	log        *slog.Logger
}

// NewClient creates an explorer API client. The pacer is shared by every
// request the client makes; cache may be nil.
func NewClient(cfg Config, pacer *Pacer, budget *BudgetTracker, cache Cache) *Client {
	if cache == nil {
		cache = nopCache{}
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		pacer:  pacer,
		budget: budget,
		cache:  cache,
		log:    slog.Default().With("component", "etherscan"),
	}
}

// apiResponse is the upstream envelope. Result is left raw: on success it is
// a JSON array, on errors it can be a plain string.
type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// request issues one upstream call with pacing and bounded retries. Transient
// transport failures and throttles are retried with exponential backoff plus
// jitter; the pagination ceiling propagates immediately and is never retried.
func (c *Client) request(ctx context.Context, params url.Values) (*apiResponse, error) {
	action := params.Get("action")

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.pacer.Acquire(ctx); err != nil {
			return nil, err
		}

		resp, err := c.doOnce(ctx, params, action)
		if err == nil {
			return resp, nil
		}
		// The ceiling is structural; retrying cannot clear it.
		if errors.Is(err, ErrPaginationLimit) {
			return nil, err
		}

		lastErr = err
		if attempt == c.cfg.MaxRetries {
			break
		}
		if err := c.backoff(ctx, attempt); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrUpstream, lastErr)
}

// doOnce performs a single HTTP round trip and classifies the envelope.
func (c *Client) doOnce(ctx context.Context, params url.Values, action string) (*apiResponse, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("chainid", strconv.Itoa(c.cfg.ChainID))
	q.Set("apikey", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	c.budget.RecordCall(action)
	metrics.UpstreamCallsTotal.WithLabelValues(action).Inc()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues("transport").Inc()
		return nil, fmt.Errorf("explorer call: %w", err)
	}
	defer resp.Body.Close()

	metrics.UpstreamLatency.WithLabelValues(action).Observe(time.Since(start).Seconds())

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.UpstreamErrorsTotal.WithLabelValues("rate_limited").Inc()
		return nil, fmt.Errorf("rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamErrorsTotal.WithLabelValues("http").Inc()
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	var data apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		metrics.UpstreamErrorsTotal.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// The ceiling can arrive inside an otherwise-successful envelope.
	if isPaginationLimitMessage(data.Message) {
		metrics.UpstreamErrorsTotal.WithLabelValues("pagination_limit").Inc()
		return nil, fmt.Errorf("%w: %s", ErrPaginationLimit, data.Message)
	}

	if data.Status == "1" {
		return &data, nil
	}

	if isRateLimitMessage(data.Message) {
		metrics.UpstreamErrorsTotal.WithLabelValues("rate_limited").Inc()
		return nil, fmt.Errorf("rate limited: %s", data.Message)
	}

	// Status "0" without a throttle signal covers benign outcomes such as
	// "No transactions found". Hand the envelope back to the caller.
	c.log.Debug("Upstream returned non-OK envelope", "action", action, "message", data.Message)
	return &data, nil
}

// backoff sleeps 2^attempt seconds plus fractional jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	wait := time.Duration((math.Pow(2, float64(attempt)) + rand.Float64()) * float64(time.Second))
	c.log.Warn("Retrying upstream request", "attempt", attempt+1, "wait", wait.Round(10*time.Millisecond))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// CurrentBlock returns the chain tip height via proxy/eth_blockNumber. The
// result is memoized for 30 seconds.
func (c *Client) CurrentBlock(ctx context.Context) (uint64, error) {
	cacheKey := CacheKey("current_block")
	if raw, err := c.cache.Get(ctx, cacheKey); err == nil && raw != nil {
		if n, err := strconv.ParseUint(string(raw), 10, 64); err == nil {
			metrics.CacheHitsTotal.Inc()
			return n, nil
		}
	}
	metrics.CacheMissesTotal.Inc()

	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_blockNumber")

	resp, err := c.request(ctx, params)
	if err != nil {
		return 0, err
	}

	var hexNum string
	if err := json.Unmarshal(resp.Result, &hexNum); err != nil {
		return 0, fmt.Errorf("parse block number: %w", err)
	}

	n, err := strconv.ParseUint(strings.TrimPrefix(hexNum, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse block number %q: %w", hexNum, err)
	}

	if err := c.cache.Set(ctx, cacheKey, []byte(strconv.FormatUint(n, 10)), 30*time.Second); err != nil {
		c.log.Warn("Failed to cache current block", "error", err)
	}
	return n, nil
}

// Usage returns today's quota usage.
func (c *Client) Usage() UsageStats {
	return c.budget.GetUsage()
}
