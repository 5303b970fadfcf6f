package serper

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landowebtool/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// backoffRecorder collects the waits the client schedules between attempts.
type backoffRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *backoffRecorder) record(_ int, wait time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, wait)
}

func (r *backoffRecorder) get() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

const testDelay = 5 * time.Millisecond

func newTestClient(t *testing.T, srv *httptest.Server) (*Client, *backoffRecorder) {
	t.Helper()
	c, err := New("test-key", Config{
		SearchURL:  srv.URL + "/search",
		ScrapeURL:  srv.URL + "/scrape",
		RetryDelay: testDelay,
		Timeout:    2 * time.Second,
	}, newTestLogger())
	require.NoError(t, err)
	rec := &backoffRecorder{}
	c.onBackoff = rec.record
	return c, rec
}

// statusSequence serves the given statuses in order, repeating the last one.
func statusSequence(calls *atomic.Int32, statuses ...int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`{"organic":[]}`))
			return
		}
		w.Write([]byte(`{"message":"status ` + http.StatusText(status) + `"}`))
	}
}

func TestNewRejectsBlankKey(t *testing.T) {
	for _, key := range []string{"", "   ", "\t"} {
		_, err := New(key, Config{}, newTestLogger())
		assert.ErrorIs(t, err, domain.ErrAPIKeyMissing)
		assert.ErrorIs(t, err, domain.ErrConfig)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	c, err := New("abc", Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().SearchURL, c.cfg.SearchURL)
	assert.Equal(t, DefaultScrapeURL, c.cfg.ScrapeURL)
	assert.Equal(t, DefaultTimeout, c.cfg.Timeout)
	assert.Equal(t, DefaultMaxRetries, c.cfg.MaxRetries)
	assert.Equal(t, DefaultRetryDelay, c.cfg.RetryDelay)
	assert.Equal(t, DefaultMaxRetries-1, c.http.RetryMax)
}

func TestNewRejectsNegativeConfig(t *testing.T) {
	tests := []Config{
		{Timeout: -time.Second},
		{MaxRetries: -1},
		{RetryDelay: -time.Millisecond},
		{SearchURL: "not a url"},
	}
	for _, cfg := range tests {
		_, err := New("abc", cfg, newTestLogger())
		assert.ErrorIs(t, err, domain.ErrConfig, "cfg %+v", cfg)
	}
}

func TestSearchSendsRequest(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"organic":[{"title":"A"}]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	raw, err := c.Search(context.Background(), "  golang  ", SearchOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"organic":[{"title":"A"}]}`, string(raw))
	assert.Equal(t, searchRequest{Q: "golang", Num: 10, Page: 1}, got)
}

func TestSearchOmitsEmptyType(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	_, err := c.Search(context.Background(), "q", SearchOptions{Num: 3, Page: 2})
	require.NoError(t, err)
	assert.NotContains(t, body, "type")
	assert.EqualValues(t, 3, body["num"])
	assert.EqualValues(t, 2, body["page"])

	_, err = c.Search(context.Background(), "q", SearchOptions{Type: "news"})
	require.NoError(t, err)
	assert.Equal(t, "news", body["type"])
}

func TestSearchInvalidQueryNeverHitsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(statusSequence(&calls, http.StatusOK))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	_, err := c.Search(context.Background(), "   ", SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, calls.Load())
}

func TestScrapeInvalidURLNeverHitsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(statusSequence(&calls, http.StatusOK))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	_, err := c.Scrape(context.Background(), "not a url")
	assert.ErrorIs(t, err, domain.ErrInvalidURL)
	assert.Zero(t, calls.Load())
}

func TestScrapeSendsURL(t *testing.T) {
	var got scrapeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scrape", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"text":"hi"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	_, err := c.Scrape(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", got.URL)
}

func TestRetryThenSucceed(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(statusSequence(&calls, 500, 500, 200))
	defer srv.Close()

	c, rec := newTestClient(t, srv)
	_, err := c.Search(context.Background(), "q", SearchOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []time.Duration{testDelay, 2 * testDelay}, rec.get())
}

func TestClientErrorIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(statusSequence(&calls, http.StatusNotFound))
	defer srv.Close()

	c, rec := newTestClient(t, srv)
	_, err := c.Search(context.Background(), "q", SearchOptions{})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.Empty(t, rec.get())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "status Not Found", apiErr.Message)
	assert.ErrorIs(t, err, domain.ErrClientRequest)
	assert.ErrorIs(t, err, domain.ErrRequestFailed)
	assert.False(t, domain.IsRetryableError(err))
}

func TestServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(statusSequence(&calls, 500, 500, 503))
	defer srv.Close()

	c, rec := newTestClient(t, srv)
	_, err := c.Search(context.Background(), "q", SearchOptions{})
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load())
	assert.Len(t, rec.get(), 2)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode, "last error is reported")
	assert.ErrorIs(t, err, domain.ErrServer)
	assert.True(t, apiErr.Retryable())
}

func TestMaxRetriesOne(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(statusSequence(&calls, 500))
	defer srv.Close()

	c, err := New("k", Config{SearchURL: srv.URL, MaxRetries: 1, RetryDelay: testDelay}, newTestLogger())
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "q", SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrServer)
	assert.EqualValues(t, 1, calls.Load())
}

func TestNetworkFailureIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New("k", Config{SearchURL: url, RetryDelay: testDelay}, newTestLogger())
	require.NoError(t, err)
	rec := &backoffRecorder{}
	c.onBackoff = rec.record

	_, err = c.Search(context.Background(), "q", SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.ErrorIs(t, err, domain.ErrRequestFailed)
	assert.NotErrorIs(t, err, domain.ErrCanceled)
	assert.Len(t, rec.get(), 2)
}

func TestAttemptTimeoutIsRetryable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := New("k", Config{SearchURL: srv.URL, Timeout: 50 * time.Millisecond, RetryDelay: testDelay}, newTestLogger())
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "q", SearchOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestCancellationIsTerminal(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, rec := newTestClient(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := c.Search(ctx, "q", SearchOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrNetwork)
	assert.False(t, domain.IsRetryableError(err))
	assert.EqualValues(t, 1, calls.Load())
	assert.Empty(t, rec.get())
}

func TestCancellationDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(statusSequence(&calls, 500))
	defer srv.Close()

	c, err := New("k", Config{SearchURL: srv.URL, RetryDelay: time.Minute}, newTestLogger())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	c.onBackoff = func(int, time.Duration) { cancel() }

	start := time.Now()
	_, err = c.Search(ctx, "q", SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrCanceled)
	assert.EqualValues(t, 1, calls.Load())
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestInvalidJSONBodyIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	_, err := c.Search(context.Background(), "q", SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrResponseFormat)
	assert.EqualValues(t, 1, calls.Load())
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"ok", http.StatusOK, `{}`, true},
		{"unauthorized", http.StatusUnauthorized, `{"message":"Unauthorized."}`, false},
		{"forbidden mentions key", http.StatusForbidden, `{"message":"Invalid API key"}`, false},
		{"bad request", http.StatusBadRequest, `{"message":"bad"}`, true},
		{"server error", http.StatusInternalServerError, `{}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got searchRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, _ := newTestClient(t, srv)
			assert.Equal(t, tt.want, c.ValidateAPIKey(context.Background()))
			assert.Equal(t, "test query", got.Q)
			assert.Equal(t, 1, got.Num)
		})
	}
}

func TestValidateAPIKeyUnreachableIsInconclusive(t *testing.T) {
	c, err := New("k", Config{SearchURL: "http://127.0.0.1:1", RetryDelay: time.Millisecond, MaxRetries: 1}, newTestLogger())
	require.NoError(t, err)
	assert.True(t, c.ValidateAPIKey(context.Background()))
}

func TestClientDoesNotExposeKey(t *testing.T) {
	c, err := New("secret-key", Config{}, newTestLogger())
	require.NoError(t, err)
	assert.NotContains(t, c.cfg.SearchURL, "secret-key")

	before := c.apiKey
	srv := httptest.NewServer(statusSequence(new(atomic.Int32), http.StatusUnauthorized))
	defer srv.Close()
	c.cfg.SearchURL = srv.URL
	_, err = c.Search(context.Background(), "q", SearchOptions{})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-key")
	assert.Equal(t, before, c.apiKey)
}

func TestConcurrentCallsAreIndependent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Search(context.Background(), "q", SearchOptions{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 8, calls.Load())
}

func TestCheckRetry(t *testing.T) {
	ctx := context.Background()
	canceled, cancel := context.WithCancel(ctx)
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		status  int
		err     error
		want    bool
		wantErr bool
	}{
		{"2xx", ctx, 200, nil, false, false},
		{"4xx", ctx, 404, nil, false, false},
		{"429", ctx, 429, nil, false, false},
		{"5xx", ctx, 502, nil, true, false},
		{"3xx", ctx, 304, nil, true, false},
		{"transport", ctx, 0, errors.New("boom"), true, false},
		{"canceled", canceled, 0, errors.New("boom"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *http.Response
			if tt.err == nil {
				resp = &http.Response{StatusCode: tt.status}
			}
			got, err := checkRetry(tt.ctx, resp, tt.err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}
