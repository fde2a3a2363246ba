package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These mirror the defaults the service has always shipped with; several
// of them (retry and concurrency tuning in particular) feed invariants the
// engine relies on, so change them with care.
const (
	// AppName is the application name used for XDG directory paths and
	// the default config file name.
	AppName = "crawlerd"

	// DefaultTimeout is the per-fetch timeout. 30 seconds is generous
	// enough for slow origins while keeping a stuck crawl bounded.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxConcurrentRequests is the starting value of the primary
	// admission gate. The adaptive governor may move it between
	// MinConcurrentRequests and the burst limit at runtime.
	DefaultMaxConcurrentRequests = 30

	// DefaultConcurrencyBurstLimit is the fixed capacity of the burst
	// gate and the ceiling for adaptive increases.
	DefaultConcurrencyBurstLimit = 50

	// MinConcurrentRequests is the floor the adaptive governor never
	// lowers the primary limit below.
	MinConcurrentRequests = 5

	// ConcurrencyIncreaseStep is how much the governor raises the
	// primary limit when the success ratio is high.
	ConcurrencyIncreaseStep = 5

	// ConcurrencyDecreaseStep is how much the governor lowers the
	// primary limit when the success ratio is low.
	ConcurrencyDecreaseStep = 3

	// DefaultMaxRetries is the number of additional attempts after the
	// first failed fetch of a URL.
	DefaultMaxRetries = 3

	// DefaultRetryDelayBase is the backoff delay before the first retry.
	DefaultRetryDelayBase = 1 * time.Second

	// DefaultRetryDelayMax caps the exponential backoff delay.
	DefaultRetryDelayMax = 10 * time.Second

	// DefaultRetryBackoffMultiplier is the exponential backoff factor.
	DefaultRetryBackoffMultiplier = 2.0

	// DefaultDomainRateLimit is the per-domain request budget within one
	// sliding window when no override is configured.
	DefaultDomainRateLimit = 10

	// DefaultRateLimitWindow is the width of the per-domain sliding
	// window.
	DefaultRateLimitWindow = 60 * time.Second

	// DefaultMaxBodySize limits how much of a response body is read.
	// 5MB covers practically every HTML page while bounding memory.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultUserAgent is sent when the request carries no override.
	// A mainstream browser string avoids the trivial bot blocks the
	// original service worked around the same way.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// DefaultJobConcurrency is how many queued crawl tasks the job
	// runner executes at once.
	DefaultJobConcurrency = 4
)

// Config holds all options for the crawler service.
// It is populated from defaults, an optional config file, and CLI flags,
// then passed through the application via dependency injection.
//
// Design decision: a single flat struct, like the rest of this codebase's
// option types. The field count is manageable and nesting would only add
// indirection at every call site.
type Config struct {
	// Timeout is the per-fetch timeout applied when a request does not
	// carry its own.
	Timeout time.Duration

	// MaxConcurrentRequests is the starting primary concurrency limit.
	MaxConcurrentRequests int

	// ConcurrencyBurstLimit is the fixed burst gate capacity.
	// Must be >= MaxConcurrentRequests.
	ConcurrencyBurstLimit int

	// ConcurrencyGradualIncrease enables the adaptive governor rule.
	// When false the primary limit stays at MaxConcurrentRequests.
	ConcurrencyGradualIncrease bool

	// MaxRetries is the retry budget per URL beyond the first attempt.
	MaxRetries int

	// RetryDelayBase is the backoff delay before the first retry.
	RetryDelayBase time.Duration

	// RetryDelayMax caps the computed backoff delay (before jitter).
	RetryDelayMax time.Duration

	// RetryBackoffMultiplier is the exponential growth factor of the
	// backoff delay.
	RetryBackoffMultiplier float64

	// RetryOnTimeout makes timeout failures retryable.
	RetryOnTimeout bool

	// RetryOnConnectionError makes connection failures retryable.
	RetryOnConnectionError bool

	// RateLimitEnabled toggles per-domain rate limiting. When false all
	// limiter operations are no-ops.
	RateLimitEnabled bool

	// DefaultRateLimit is the per-domain request budget per window for
	// domains without an override.
	DefaultRateLimit int

	// RateLimitWindow is the sliding window width.
	RateLimitWindow time.Duration

	// DomainRateLimits maps a domain (lowercased host, no port) to an
	// override request budget.
	DomainRateLimits map[string]int

	// UserAgent is the default User-Agent header.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// JobConcurrency is the number of background crawl tasks executed
	// concurrently by the job runner.
	JobConcurrency int

	// DBDir is the directory holding the SQLite task database.
	// Empty disables task persistence.
	DBDir string

	// Verbose enables debug-level logging.
	Verbose bool
}

// NewConfig creates a Config with default values.
//
// Design decision: a constructor rather than zero values because most
// defaults are non-zero, and the constructor doubles as documentation of
// what the defaults are.
func NewConfig() *Config {
	return &Config{
		Timeout:                    DefaultTimeout,
		MaxConcurrentRequests:      DefaultMaxConcurrentRequests,
		ConcurrencyBurstLimit:      DefaultConcurrencyBurstLimit,
		ConcurrencyGradualIncrease: true,
		MaxRetries:                 DefaultMaxRetries,
		RetryDelayBase:             DefaultRetryDelayBase,
		RetryDelayMax:              DefaultRetryDelayMax,
		RetryBackoffMultiplier:     DefaultRetryBackoffMultiplier,
		RetryOnTimeout:             true,
		RetryOnConnectionError:     true,
		RateLimitEnabled:           true,
		DefaultRateLimit:           DefaultDomainRateLimit,
		RateLimitWindow:            DefaultRateLimitWindow,
		DomainRateLimits:           make(map[string]int),
		UserAgent:                  DefaultUserAgent,
		MaxBodySize:                DefaultMaxBodySize,
		JobConcurrency:             DefaultJobConcurrency,
	}
}

// XDGDataDir returns the XDG data directory for the crawler service.
// On Linux: ~/.local/share/crawlerd
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks that the configuration is internally consistent.
// It returns the first problem found; fixing one error often makes
// later ones irrelevant.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxConcurrentRequests <= 0 {
		return ErrInvalidConcurrency
	}
	if c.ConcurrencyBurstLimit < c.MaxConcurrentRequests {
		return ErrBurstBelowPrimary
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.RetryDelayBase < 0 || c.RetryDelayMax < 0 {
		return ErrInvalidRetryDelay
	}
	if c.RetryDelayMax < c.RetryDelayBase {
		return ErrRetryDelayMaxBelowBase
	}
	if c.RetryBackoffMultiplier < 1 {
		return ErrInvalidBackoffMultiplier
	}
	if c.RateLimitEnabled {
		if c.DefaultRateLimit <= 0 {
			return ErrInvalidRateLimit
		}
		if c.RateLimitWindow <= 0 {
			return ErrInvalidRateWindow
		}
		for _, limit := range c.DomainRateLimits {
			if limit <= 0 {
				return ErrInvalidRateLimit
			}
		}
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JobConcurrency <= 0 {
		return ErrInvalidJobConcurrency
	}
	return nil
}
