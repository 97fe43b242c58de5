// Package fmp provides a client for the Financial Modeling Prep stable API.
//
// FMP deprecated /api/v3 in late 2025; the /stable/ endpoints take the ticker
// as a symbol query parameter instead of a path segment.
package fmp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/claim-auditor/internal/cache"
	"github.com/sells-group/claim-auditor/internal/resilience"
)

// Client defines the FMP operations the ingest stage needs.
type Client interface {
	// Profile fetches the company profile for a ticker.
	Profile(ctx context.Context, ticker string) (*Profile, error)
	// Transcript fetches one earnings-call transcript. It returns nil
	// without error when FMP has no transcript for that quarter or the
	// endpoint is restricted on the current plan.
	Transcript(ctx context.Context, ticker string, year, quarter int) (*Transcript, error)
	// IncomeStatements fetches up to limit quarterly income statements,
	// most recent first.
	IncomeStatements(ctx context.Context, ticker string, limit int) ([]IncomeStatement, error)
	// CashFlowStatements fetches up to limit quarterly cash-flow statements.
	CashFlowStatements(ctx context.Context, ticker string, limit int) ([]CashFlowStatement, error)
	// BalanceSheetStatements fetches up to limit quarterly balance sheets.
	BalanceSheetStatements(ctx context.Context, ticker string, limit int) ([]BalanceSheetStatement, error)
}

// Option configures the FMP client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithCache enables the disk response cache. Cache keys exclude the API key.
func WithCache(d *cache.Disk) Option {
	return func(c *httpClient) {
		c.cache = d
	}
}

// WithRateLimit caps outbound request rate. FMP's starter plans throttle
// around 300 requests per minute.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetryConfig overrides the default retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	cache   *cache.Disk
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates an FMP stable-API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://financialmodelingprep.com/stable",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(4), 8),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get fetches one endpoint, consulting the disk cache first. params must not
// contain the API key; it is appended only to the outbound URL.
func (c *httpClient) get(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	key := cache.Key(endpoint, params)
	if c.cache != nil {
		if data, ok := c.cache.Get(key); ok {
			return data, nil
		}
	}

	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("fmp", endpoint)

	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, endpoint, params)
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(key, body); err != nil {
			zap.L().Warn("fmp cache write failed", zap.String("endpoint", endpoint), zap.Error(err))
		}
	}
	return body, nil
}

func (c *httpClient) fetch(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fmp: rate limit wait")
		}
	}

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("apikey", c.apiKey)
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "fmp: create request %s", endpoint)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fmp: %s request", endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "fmp: read %s response", endpoint)
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("fmp: %s status %d: %s", endpoint, resp.StatusCode, truncate(string(body), 200))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}
	return body, nil
}

func (c *httpClient) Profile(ctx context.Context, ticker string) (*Profile, error) {
	body, err := c.get(ctx, "profile", map[string]string{"symbol": strings.ToUpper(ticker)})
	if err != nil {
		return nil, err
	}

	var profiles []Profile
	if err := json.Unmarshal(body, &profiles); err != nil {
		return nil, eris.Wrap(err, "fmp: unmarshal profile")
	}
	if len(profiles) == 0 {
		return nil, eris.Errorf("fmp: no profile for %s", ticker)
	}
	return &profiles[0], nil
}

func (c *httpClient) Transcript(ctx context.Context, ticker string, year, quarter int) (*Transcript, error) {
	body, err := c.get(ctx, "earning_call_transcript", map[string]string{
		"symbol":  strings.ToUpper(ticker),
		"year":    fmt.Sprintf("%d", year),
		"quarter": fmt.Sprintf("%d", quarter),
	})
	if err != nil {
		return nil, err
	}

	// Restricted plans answer with a bare JSON string instead of an array.
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, `"`) {
		zap.L().Warn("fmp transcript endpoint restricted",
			zap.String("ticker", ticker),
			zap.Int("year", year),
			zap.Int("quarter", quarter),
		)
		return nil, nil
	}

	var transcripts []Transcript
	if err := json.Unmarshal(body, &transcripts); err != nil {
		return nil, eris.Wrap(err, "fmp: unmarshal transcript")
	}
	if len(transcripts) == 0 || transcripts[0].Content == "" {
		return nil, nil
	}
	return &transcripts[0], nil
}

func (c *httpClient) IncomeStatements(ctx context.Context, ticker string, limit int) ([]IncomeStatement, error) {
	body, err := c.get(ctx, "income-statement", statementParams(ticker, limit))
	if err != nil {
		return nil, err
	}
	var statements []IncomeStatement
	if err := json.Unmarshal(body, &statements); err != nil {
		return nil, eris.Wrap(err, "fmp: unmarshal income statements")
	}
	return statements, nil
}

func (c *httpClient) CashFlowStatements(ctx context.Context, ticker string, limit int) ([]CashFlowStatement, error) {
	body, err := c.get(ctx, "cash-flow-statement", statementParams(ticker, limit))
	if err != nil {
		return nil, err
	}
	var statements []CashFlowStatement
	if err := json.Unmarshal(body, &statements); err != nil {
		return nil, eris.Wrap(err, "fmp: unmarshal cash-flow statements")
	}
	return statements, nil
}

func (c *httpClient) BalanceSheetStatements(ctx context.Context, ticker string, limit int) ([]BalanceSheetStatement, error) {
	body, err := c.get(ctx, "balance-sheet-statement", statementParams(ticker, limit))
	if err != nil {
		return nil, err
	}
	var statements []BalanceSheetStatement
	if err := json.Unmarshal(body, &statements); err != nil {
		return nil, eris.Wrap(err, "fmp: unmarshal balance sheets")
	}
	return statements, nil
}

func statementParams(ticker string, limit int) map[string]string {
	return map[string]string{
		"symbol": strings.ToUpper(ticker),
		"period": "quarter",
		"limit":  fmt.Sprintf("%d", limit),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
