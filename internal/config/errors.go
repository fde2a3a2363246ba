package config

import "errors"

// Configuration validation errors.
//
// Design decision: package-level sentinel errors rather than errors built
// inside Validate(), so callers can use errors.Is() while the messages
// stay human readable.
var (
	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the primary concurrency
	// limit is not positive.
	ErrInvalidConcurrency = errors.New("invalid max concurrent requests: must be positive")

	// ErrBurstBelowPrimary is returned when the burst limit is lower than
	// the primary limit; the burst gate would then be the effective limit
	// and the adaptive rule could never raise the primary limit.
	ErrBurstBelowPrimary = errors.New("invalid burst limit: must be >= max concurrent requests")

	// ErrInvalidMaxRetries is returned when the retry budget is negative.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidRetryDelay is returned when a retry delay is negative.
	ErrInvalidRetryDelay = errors.New("invalid retry delay: must be non-negative")

	// ErrRetryDelayMaxBelowBase is returned when the delay cap is below
	// the base delay, which would make the very first backoff exceed the cap.
	ErrRetryDelayMaxBelowBase = errors.New("invalid retry delay max: must be >= retry delay base")

	// ErrInvalidBackoffMultiplier is returned when the backoff multiplier
	// is below 1; delays must be non-decreasing across attempts.
	ErrInvalidBackoffMultiplier = errors.New("invalid backoff multiplier: must be >= 1")

	// ErrInvalidRateLimit is returned when a per-domain request budget is
	// not positive while rate limiting is enabled.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be positive")

	// ErrInvalidRateWindow is returned when the sliding window width is
	// not positive while rate limiting is enabled.
	ErrInvalidRateWindow = errors.New("invalid rate limit window: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidJobConcurrency is returned when the job runner
	// concurrency is not positive.
	ErrInvalidJobConcurrency = errors.New("invalid job concurrency: must be positive")
)
