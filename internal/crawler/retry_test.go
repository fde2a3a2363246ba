package crawler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/manthanjain6106/crawler-service/internal/config"
	"github.com/manthanjain6106/crawler-service/internal/fetcher"
	"github.com/manthanjain6106/crawler-service/internal/model"
	"github.com/manthanjain6106/crawler-service/internal/ratelimit"
)

// newTestEngine builds a retry engine wired to the given server with
// instant backoff sleeps.
func newTestEngine(t *testing.T, server *httptest.Server, mutate func(*config.Config)) *retryEngine {
	t.Helper()

	cfg := config.NewConfig()
	if mutate != nil {
		mutate(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := fetcher.New(server.Client(), fetcher.Options{
		UserAgent:    cfg.UserAgent,
		Timeout:      cfg.Timeout,
		MaxBodyBytes: cfg.MaxBodySize,
	})
	limiter := ratelimit.New(cfg.RateLimitEnabled, cfg.DefaultRateLimit, cfg.RateLimitWindow)

	engine := newRetryEngine(newRetryPolicy(cfg), f, limiter, logger)
	engine.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return engine
}

func TestFetchPageSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Hello</title></head><body><p>text</p></body></html>`))
	}))
	defer server.Close()

	engine := newTestEngine(t, server, nil)
	req := model.DefaultCrawlRequest(server.URL)

	page := engine.FetchPage(context.Background(), server.URL, req, 0)

	if !page.Success() {
		t.Fatalf("expected success, got error %+v", page.Error)
	}
	if page.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", page.StatusCode)
	}
	if page.Title != "Hello" {
		t.Errorf("expected title %q, got %q", "Hello", page.Title)
	}
	if page.RetryAttempts != 0 {
		t.Errorf("expected 0 retry attempts, got %d", page.RetryAttempts)
	}

	stats := engine.Stats()
	if stats != (model.RetryStats{}) {
		t.Errorf("expected zero retry stats, got %+v", stats)
	}
}

func TestFetchPagePermanentErrorNoRetry(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	engine := newTestEngine(t, server, nil)
	page := engine.FetchPage(context.Background(), server.URL, model.DefaultCrawlRequest(server.URL), 0)

	if got := hits.Load(); got != 1 {
		t.Errorf("expected exactly 1 request, got %d", got)
	}
	if page.Error == nil {
		t.Fatal("expected an error on the page")
	}
	if page.Error.Type != model.ErrorPermanent {
		t.Errorf("expected permanent error, got %s", page.Error.Type)
	}
	if page.Error.IsRetryable {
		t.Error("permanent error must not be retryable")
	}
	if page.Error.RetryAttempts != 0 {
		t.Errorf("expected 0 attempts recorded, got %d", page.Error.RetryAttempts)
	}
	if page.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404 on page, got %d", page.StatusCode)
	}

	stats := engine.Stats()
	if stats.PermanentErrors != 1 {
		t.Errorf("expected 1 permanent error, got %d", stats.PermanentErrors)
	}
	if stats.TotalRetries != 0 || stats.FailedRetries != 0 {
		t.Errorf("expected no retry activity, got %+v", stats)
	}
}

func TestFetchPageTransientExhaustion(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	engine := newTestEngine(t, server, func(cfg *config.Config) {
		cfg.MaxRetries = 2
	})
	page := engine.FetchPage(context.Background(), server.URL, model.DefaultCrawlRequest(server.URL), 0)

	// Initial attempt plus two retries.
	if got := hits.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
	if page.Error == nil {
		t.Fatal("expected an error on the page")
	}
	if page.Error.Type != model.ErrorTransient {
		t.Errorf("expected transient error, got %s", page.Error.Type)
	}
	if page.Error.IsRetryable {
		t.Error("exhausted transient error must not be retryable")
	}
	if page.RetryAttempts != 2 {
		t.Errorf("expected attempts to equal the retry budget 2, got %d", page.RetryAttempts)
	}

	stats := engine.Stats()
	if stats.TotalRetries != 2 {
		t.Errorf("expected 2 total retries, got %d", stats.TotalRetries)
	}
	if stats.FailedRetries != 1 {
		t.Errorf("expected 1 failed retry sequence, got %d", stats.FailedRetries)
	}
	if stats.TransientErrors != 3 {
		t.Errorf("expected 3 transient errors, got %d", stats.TransientErrors)
	}
	if stats.SuccessfulRetries != 0 {
		t.Errorf("expected 0 successful retries, got %d", stats.SuccessfulRetries)
	}
}

func TestFetchPageRetryThenSuccess(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`<html><head><title>Recovered</title></head><body></body></html>`))
	}))
	defer server.Close()

	engine := newTestEngine(t, server, nil)
	page := engine.FetchPage(context.Background(), server.URL, model.DefaultCrawlRequest(server.URL), 0)

	if !page.Success() {
		t.Fatalf("expected success after retry, got error %+v", page.Error)
	}
	if page.RetryAttempts != 1 {
		t.Errorf("expected 1 retry attempt, got %d", page.RetryAttempts)
	}
	if page.Title != "Recovered" {
		t.Errorf("expected title %q, got %q", "Recovered", page.Title)
	}

	stats := engine.Stats()
	if stats.TotalRetries != 1 {
		t.Errorf("expected 1 total retry, got %d", stats.TotalRetries)
	}
	if stats.SuccessfulRetries != 1 {
		t.Errorf("expected 1 successful retry, got %d", stats.SuccessfulRetries)
	}
	if stats.TransientErrors != 1 {
		t.Errorf("expected 1 transient error, got %d", stats.TransientErrors)
	}
	if stats.FailedRetries != 0 {
		t.Errorf("expected 0 failed retries, got %d", stats.FailedRetries)
	}
}

func TestFetchPageConnectionErrorNotRetriedWhenDisabled(t *testing.T) {
	t.Parallel()

	// Close the server before fetching so every attempt fails to connect.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := server.URL
	client := server.Client()
	server.Close()

	cfg := config.NewConfig()
	cfg.RetryOnConnectionError = false

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := fetcher.New(client, fetcher.Options{
		UserAgent:    cfg.UserAgent,
		Timeout:      cfg.Timeout,
		MaxBodyBytes: cfg.MaxBodySize,
	})
	limiter := ratelimit.New(cfg.RateLimitEnabled, cfg.DefaultRateLimit, cfg.RateLimitWindow)
	engine := newRetryEngine(newRetryPolicy(cfg), f, limiter, logger)
	engine.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	page := engine.FetchPage(context.Background(), target, model.DefaultCrawlRequest(target), 0)

	if page.Error == nil {
		t.Fatal("expected an error on the page")
	}
	if page.Error.Type != model.ErrorTransient {
		t.Errorf("expected transient error, got %s", page.Error.Type)
	}
	if page.RetryAttempts != 0 {
		t.Errorf("expected 0 attempts when connection retries are disabled, got %d", page.RetryAttempts)
	}

	stats := engine.Stats()
	if stats.TransientErrors != 1 {
		t.Errorf("expected 1 transient error, got %d", stats.TransientErrors)
	}
	if stats.TotalRetries != 0 || stats.FailedRetries != 0 {
		t.Errorf("expected no retry activity, got %+v", stats)
	}
}

func TestFetchPageRecordsRateLimiterOnSuccessOnly(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`<html><body>ok</body></html>`))
	}))
	defer server.Close()

	engine := newTestEngine(t, server, nil)
	page := engine.FetchPage(context.Background(), server.URL, model.DefaultCrawlRequest(server.URL), 0)

	if !page.Success() {
		t.Fatalf("expected success, got %+v", page.Error)
	}

	// Two HTTP requests were made but only the successful one counts
	// against the domain's rate-limit window.
	domain := ratelimit.Domain(server.URL)
	stats := engine.limiter.DomainStats(domain)
	if stats.Current != 1 {
		t.Errorf("expected 1 recorded request for %s, got %d", domain, stats.Current)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()
	engine := newTestEngine(t, server, nil)

	tests := []struct {
		name          string
		err           error
		statusCode    int
		wantType      model.ErrorType
		wantRetryable bool
	}{
		{name: "500", statusCode: 500, wantType: model.ErrorTransient, wantRetryable: true},
		{name: "503", statusCode: 503, wantType: model.ErrorTransient, wantRetryable: true},
		{name: "429", statusCode: 429, wantType: model.ErrorTransient, wantRetryable: true},
		{name: "404", statusCode: 404, wantType: model.ErrorPermanent, wantRetryable: false},
		{name: "403", statusCode: 403, wantType: model.ErrorPermanent, wantRetryable: false},
		{name: "301", statusCode: 301, wantType: model.ErrorUnknown, wantRetryable: false},
		{
			name:          "timeout",
			err:           &fetcher.Error{Kind: fetcher.KindTimeout, URL: "https://example.com", Err: context.DeadlineExceeded},
			wantType:      model.ErrorTransient,
			wantRetryable: true,
		},
		{
			name:          "connection refused",
			err:           &fetcher.Error{Kind: fetcher.KindConnection, URL: "https://example.com", Err: io.EOF},
			wantType:      model.ErrorTransient,
			wantRetryable: true,
		},
		{
			name:          "unclassified error",
			err:           io.ErrUnexpectedEOF,
			wantType:      model.ErrorUnknown,
			wantRetryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gotType, gotRetryable := engine.classify(tt.err, tt.statusCode)
			if gotType != tt.wantType || gotRetryable != tt.wantRetryable {
				t.Errorf("classify(%v, %d) = (%s, %v), want (%s, %v)",
					tt.err, tt.statusCode, gotType, gotRetryable, tt.wantType, tt.wantRetryable)
			}
		})
	}
}

// TestRetryDelayBounds verifies the jittered backoff never leaves
// [0, delayMax] and that retry zero costs nothing.
func TestRetryDelayBounds(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()
	engine := newTestEngine(t, server, func(cfg *config.Config) {
		cfg.RetryDelayBase = time.Second
		cfg.RetryDelayMax = 10 * time.Second
		cfg.RetryBackoffMultiplier = 2.0
	})

	if got := engine.retryDelay(0); got != 0 {
		t.Errorf("retryDelay(0) = %v, want 0", got)
	}

	for retry := 1; retry <= 8; retry++ {
		for range 50 {
			d := engine.retryDelay(retry)
			if d < 0 || d > 10*time.Second {
				t.Fatalf("retryDelay(%d) = %v, outside [0, 10s]", retry, d)
			}
		}
	}

	// The first retry's pre-jitter base is one second; with ±25% jitter
	// the delay stays within [750ms, 1250ms].
	for range 50 {
		d := engine.retryDelay(1)
		if d < 750*time.Millisecond || d > 1250*time.Millisecond {
			t.Fatalf("retryDelay(1) = %v, outside jitter envelope", d)
		}
	}
}

func TestFetchPageCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	engine := newTestEngine(t, server, nil)
	engine.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	page := engine.FetchPage(context.Background(), server.URL, model.DefaultCrawlRequest(server.URL), 0)

	if page.Error == nil {
		t.Fatal("expected the page to carry the pre-cancellation failure")
	}
	if page.Error.Type != model.ErrorTransient {
		t.Errorf("expected transient error, got %s", page.Error.Type)
	}
	if page.RetryAttempts != 0 {
		t.Errorf("expected 0 completed attempts, got %d", page.RetryAttempts)
	}

	stats := engine.Stats()
	if stats.FailedRetries != 1 {
		t.Errorf("expected 1 failed retry sequence, got %d", stats.FailedRetries)
	}
}
