// Package serper is a client for the Serper web search and scrape API.
//
// A Client holds configuration only. Each Search or Scrape call runs its own
// attempt loop: 2xx returns the body, 4xx fails at once, and 5xx or transport
// failures are retried with a linear backoff (RetryDelay * attempt) until
// MaxRetries attempts have been made. Canceling the caller's context ends the
// call immediately with domain.ErrCanceled.
package serper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/trace"

	"landowebtool/internal/domain"
	"landowebtool/internal/infra/tracer"
)

// Defaults applied to zero-valued Config fields.
const (
	DefaultSearchURL  = "https://google.serper.dev/search"
	DefaultScrapeURL  = "https://scrape.serper.dev"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

const (
	defaultNumResults = 10
	defaultPage       = 1

	// maxResponseBody caps how much of a response body is read.
	maxResponseBody = 10 * 1024 * 1024 // 10 MB

	validationQuery = "test query"
)

// Config holds the client settings. Zero fields take the package defaults.
type Config struct {
	SearchURL  string
	ScrapeURL  string
	Timeout    time.Duration // per attempt
	MaxRetries int           // total attempts, including the first
	RetryDelay time.Duration // base of the linear backoff
	Transport  TransportConfig
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		SearchURL:  DefaultSearchURL,
		ScrapeURL:  DefaultScrapeURL,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

// withDefaults merges cfg over DefaultConfig and rejects negative values.
func (cfg Config) withDefaults() (Config, error) {
	if cfg.Timeout < 0 || cfg.MaxRetries < 0 || cfg.RetryDelay < 0 {
		return cfg, fmt.Errorf("%w: timeout, max retries and retry delay must not be negative", domain.ErrConfig)
	}
	def := DefaultConfig()
	if cfg.SearchURL == "" {
		cfg.SearchURL = def.SearchURL
	}
	if cfg.ScrapeURL == "" {
		cfg.ScrapeURL = def.ScrapeURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if !IsValidURL(cfg.SearchURL) || !IsValidURL(cfg.ScrapeURL) {
		return cfg, fmt.Errorf("%w: endpoints must be absolute URLs", domain.ErrConfig)
	}
	return cfg, nil
}

// SearchOptions tunes a search request. Zero Num and Page take 10 and 1.
type SearchOptions struct {
	Num  int
	Page int
	Type string
}

type searchRequest struct {
	Q    string `json:"q"`
	Num  int    `json:"num"`
	Page int    `json:"page"`
	Type string `json:"type,omitempty"`
}

type scrapeRequest struct {
	URL string `json:"url"`
}

// Client talks to the Serper API. It is safe for concurrent use.
type Client struct {
	apiKey string
	cfg    Config
	http   *retryablehttp.Client
	logger *slog.Logger

	// onBackoff, when set, observes each backoff wait before it happens.
	onBackoff func(attempt int, wait time.Duration)
}

// New creates a client for apiKey. It fails with domain.ErrAPIKeyMissing when the
// key is blank and with domain.ErrConfig when cfg is unusable.
func New(apiKey string, cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.ErrAPIKeyMissing
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		apiKey: apiKey,
		cfg:    cfg,
		logger: logger.With("component", "serper"),
	}
	c.http = &retryablehttp.Client{
		HTTPClient: &http.Client{
			Transport: NewPooledTransport(cfg.Transport),
			Timeout:   cfg.Timeout,
		},
		RetryWaitMin:   cfg.RetryDelay,
		RetryWaitMax:   cfg.RetryDelay * time.Duration(cfg.MaxRetries),
		RetryMax:       cfg.MaxRetries - 1,
		CheckRetry:     checkRetry,
		Backoff:        c.backoff,
		ErrorHandler:   retryablehttp.PassthroughErrorHandler,
		RequestLogHook: c.logAttempt,
	}
	return c, nil
}

// Search runs a web search for query and returns the raw JSON response.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) (json.RawMessage, error) {
	if !IsValidQuery(query) {
		return nil, domain.ErrInvalidQuery
	}
	if opts.Num <= 0 {
		opts.Num = defaultNumResults
	}
	if opts.Page <= 0 {
		opts.Page = defaultPage
	}
	return c.do(ctx, "search", c.cfg.SearchURL, searchRequest{
		Q:    strings.TrimSpace(query),
		Num:  opts.Num,
		Page: opts.Page,
		Type: opts.Type,
	})
}

// Scrape fetches the page at pageURL through the scrape endpoint and returns the raw JSON response.
func (c *Client) Scrape(ctx context.Context, pageURL string) (json.RawMessage, error) {
	if !IsValidURL(pageURL) {
		return nil, domain.ErrInvalidURL
	}
	return c.do(ctx, "scrape", c.cfg.ScrapeURL, scrapeRequest{URL: pageURL})
}

// ValidateAPIKey runs a one-result search. It returns false only when the API
// rejected the key; any other failure is inconclusive and reported as true so a
// transient outage does not disable the tools.
func (c *Client) ValidateAPIKey(ctx context.Context) bool {
	_, err := c.Search(ctx, validationQuery, SearchOptions{Num: 1})
	if err == nil {
		return true
	}
	if isAuthFailure(err) {
		c.logger.Info("api key rejected", "error", err)
		return false
	}
	c.logger.Warn("api key check inconclusive, treating key as valid", "error", err)
	return true
}

type attemptsKey struct{}

// callState is per logical call; the request log hook counts attempts into it.
type callState struct {
	attempts int
}

// do POSTs body to endpoint, retrying per the client policy.
func (c *Client) do(ctx context.Context, op, endpoint string, body any) (json.RawMessage, error) {
	state := &callState{}
	ctx = context.WithValue(ctx, attemptsKey{}, state)
	ctx, span := tracer.StartSpan(ctx, "serper."+op,
		trace.WithAttributes(tracer.StringAttr("serper.endpoint", endpoint)),
	)
	defer span.End()

	payload, err := json.Marshal(body)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("%w: create request: %w", domain.ErrConfig, err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		err = transportError(ctx, err)
		c.finish(ctx, span, endpoint, 0, start, state, err)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		err = transportError(ctx, fmt.Errorf("read response: %w", err))
		c.finish(ctx, span, endpoint, resp.StatusCode, start, state, err)
		return nil, err
	}

	if !isSuccess(resp.StatusCode) {
		apiErr := newAPIError(resp.StatusCode, respBody)
		c.finish(ctx, span, endpoint, resp.StatusCode, start, state, apiErr)
		return nil, apiErr
	}

	if !json.Valid(respBody) {
		err = fmt.Errorf("%w: %w: body is not valid JSON", domain.ErrRequestFailed, domain.ErrResponseFormat)
		c.finish(ctx, span, endpoint, resp.StatusCode, start, state, err)
		return nil, err
	}

	c.finish(ctx, span, endpoint, resp.StatusCode, start, state, nil)
	return json.RawMessage(respBody), nil
}

// finish logs the terminal outcome of a logical call and closes out its span.
func (c *Client) finish(ctx context.Context, span trace.Span, endpoint string, status int, start time.Time, state *callState, err error) {
	elapsed := time.Since(start)
	span.SetAttributes(
		tracer.IntAttr("http.status_code", status),
		tracer.IntAttr("serper.attempts", state.attempts),
	)
	c.logger.Debug("api response",
		"endpoint", endpoint,
		"status", status,
		"attempts", state.attempts,
		"duration_ms", elapsed.Milliseconds(),
		"call_id", domain.CallIDFromContext(ctx),
	)
	if err != nil {
		tracer.RecordError(span, err)
		return
	}
	tracer.SetOK(span)
}

// logAttempt is the retryablehttp request hook; retry is 0 for the first attempt.
func (c *Client) logAttempt(_ retryablehttp.Logger, req *http.Request, retry int) {
	ctx := req.Context()
	if state, ok := ctx.Value(attemptsKey{}).(*callState); ok {
		state.attempts = retry + 1
	}
	c.logger.Debug("api request",
		"method", req.Method,
		"endpoint", req.URL.String(),
		"attempt", retry+1,
		"call_id", domain.CallIDFromContext(ctx),
	)
}

// backoff waits RetryDelay * attempt, where attempt is the 1-based ordinal of the
// attempt that just failed.
func (c *Client) backoff(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
	attempt := attemptNum + 1
	wait := c.cfg.RetryDelay * time.Duration(attempt)
	if c.onBackoff != nil {
		c.onBackoff(attempt, wait)
	}
	return wait
}

// checkRetry decides whether a finished attempt is retried. A done context stops
// the loop with the context error; transport failures, 5xx and other non-2xx,
// non-4xx statuses are retried.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		return true, nil
	}
	return !isSuccess(resp.StatusCode) && !isClientError(resp.StatusCode), nil
}
