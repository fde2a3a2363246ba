package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
	"time"
)

// ErrorKind distinguishes the transport failure classes the retry engine
// cares about.
type ErrorKind int

// Fetch error kinds.
const (
	// KindTimeout means the request exceeded its deadline.
	KindTimeout ErrorKind = iota

	// KindConnection means the connection was refused, reset, or could
	// not be established.
	KindConnection

	// KindOther covers every other transport failure.
	KindOther
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	default:
		return "other"
	}
}

// Error is a classified fetch failure.
type Error struct {
	// Kind is the failure class.
	Kind ErrorKind

	// URL is the URL whose fetch failed.
	URL string

	// Err is the underlying transport error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Response is the outcome of a successful HTTP exchange. A response with
// an error status code is still a Response; status handling belongs to
// the retry engine, not the transport.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Body is the response body, truncated to the configured cap.
	Body []byte

	// Elapsed is the wall time of the exchange.
	Elapsed time.Duration
}

// Options configures a Fetcher.
type Options struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Timeout is the default per-request timeout when the caller does
	// not specify one.
	Timeout time.Duration

	// MaxBodyBytes caps how much of a response body is read.
	// Zero means no cap.
	MaxBodyBytes int64
}

// Fetcher performs HTTP GET requests on behalf of the crawl engine.
//
// Design decision: we accept an external *http.Client rather than building
// one internally so tests can supply httptest clients and the caller
// controls transport-level settings in one place.
type Fetcher struct {
	client  *http.Client
	options Options
}

// New creates a Fetcher using the given client. A nil client falls back to
// a plain http.Client; per-request timeouts are applied via context, so no
// client-level timeout is set.
func New(client *http.Client, opts Options) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{client: client, options: opts}
}

// Fetch performs a GET request against the URL.
//
// Custom headers are merged over the defaults (User-Agent included), so a
// request can override any of them. The timeout argument bounds this
// single attempt; zero falls back to the configured default.
//
// The error, when non-nil, is always a *Error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, headers map[string]string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = f.options.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindOther, URL: rawURL, Err: err}
	}

	if f.options.UserAgent != "" {
		req.Header.Set("User-Agent", f.options.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: classify(err), URL: rawURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // Close error on read path is not actionable

	reader := io.Reader(resp.Body)
	if f.options.MaxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, f.options.MaxBodyBytes)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &Error{Kind: classify(err), URL: rawURL, Err: err}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Elapsed:    time.Since(start),
	}, nil
}

// classify maps a transport error onto an ErrorKind.
//
// Order matters: url.Error wraps both timeout and connection failures, so
// we check the timeout interface first, then the connection error chain.
func classify(err error) ErrorKind {
	if err == nil {
		return KindOther
	}

	// Deadline exceeded, either from our context or the transport.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	// Refused/reset connections and DNS failures.
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return KindConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return classify(urlErr.Err)
	}

	return KindOther
}
