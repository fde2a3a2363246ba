package ratelimit

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/manthanjain6106/crawler-service/internal/model"
)

// unknownDomain is used when a URL's host cannot be determined.
// Grouping unparseable URLs under one key keeps them rate limited rather
// than unbounded.
const unknownDomain = "unknown"

// Limiter enforces per-domain sliding-window rate limits.
//
// A domain's window holds the timestamps of requests recorded within the
// last window duration. A request may proceed when the pruned window holds
// fewer entries than the domain's limit; otherwise the caller waits until
// the oldest entry ages out.
type Limiter struct {
	// enabled makes every operation a no-op when false.
	enabled bool

	// defaultLimit is the per-window budget for domains without overrides.
	defaultLimit int

	// window is the sliding window width.
	window time.Duration

	// clock returns the current time. Tests substitute a fake clock to
	// exercise window arithmetic without sleeping.
	clock func() time.Time

	// mu guards the domains map and the overrides map, not the windows
	// themselves. Per-domain state has its own lock.
	mu        sync.Mutex
	overrides map[string]int
	domains   map[string]*domainWindow

	logger *slog.Logger
}

// domainWindow is one domain's timestamp window and its lock.
type domainWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// WithOverrides seeds per-domain limit overrides. Keys are domains as
// produced by domain extraction: lowercased host without port.
func WithOverrides(overrides map[string]int) Option {
	return func(l *Limiter) {
		for domain, limit := range overrides {
			l.overrides[strings.ToLower(domain)] = limit
		}
	}
}

// WithClock substitutes the time source. Intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) {
		l.clock = clock
	}
}

// New creates a Limiter. When enabled is false, Wait and Record return
// immediately and stats report empty.
func New(enabled bool, defaultLimit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		enabled:      enabled,
		defaultLimit: defaultLimit,
		window:       window,
		clock:        time.Now,
		overrides:    make(map[string]int),
		domains:      make(map[string]*domainWindow),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.logger == nil {
		l.logger = slog.Default()
	}

	return l
}

// Domain extracts the rate-limit key from a URL: the lowercased host with
// any port stripped. Unparseable URLs share the "unknown" key.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return unknownDomain
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return unknownDomain
	}
	return host
}

// Wait suspends the caller until the URL's domain has window capacity or
// the context is cancelled. It does not consume a slot; callers must
// invoke Record after the fetch succeeds.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if !l.enabled {
		return nil
	}

	domain := Domain(rawURL)
	wait := l.waitTime(domain)
	if wait <= 0 {
		return nil
	}

	l.logger.Info("rate limiting request",
		"domain", domain,
		"wait", wait,
		"url", rawURL,
	)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Record consumes one window slot for the URL's domain. It must be called
// once per successful fetch, after the response arrived.
func (l *Limiter) Record(rawURL string) {
	if !l.enabled {
		return
	}

	domain := Domain(rawURL)
	dw := l.domain(domain)
	now := l.clock()

	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.prune(now, l.window)
	dw.timestamps = append(dw.timestamps, now)
}

// waitTime computes how long a caller must wait before the domain has
// capacity: zero when under the limit, otherwise the time until the oldest
// window entry ages out.
func (l *Limiter) waitTime(domain string) time.Duration {
	limit := l.limitFor(domain)
	dw := l.domain(domain)
	now := l.clock()

	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.prune(now, l.window)

	if len(dw.timestamps) < limit {
		return 0
	}

	oldest := dw.timestamps[0]
	wait := oldest.Add(l.window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// prune drops timestamps older than the window. Callers must hold dw.mu.
func (dw *domainWindow) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(dw.timestamps) && dw.timestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		dw.timestamps = append(dw.timestamps[:0], dw.timestamps[i:]...)
	}
}

// domain returns the window state for a domain, creating it lazily.
func (l *Limiter) domain(domain string) *domainWindow {
	l.mu.Lock()
	defer l.mu.Unlock()

	dw, ok := l.domains[domain]
	if !ok {
		dw = &domainWindow{}
		l.domains[domain] = dw
	}
	return dw
}

// limitFor returns the effective limit for a domain.
func (l *Limiter) limitFor(domain string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit, ok := l.overrides[domain]; ok {
		return limit
	}
	return l.defaultLimit
}

// SetDomainLimit sets a per-domain override at runtime.
// This is an administrative operation, not part of the crawl hot path.
func (l *Limiter) SetDomainLimit(domain string, limit int) {
	domain = strings.ToLower(domain)

	l.mu.Lock()
	l.overrides[domain] = limit
	l.mu.Unlock()

	l.logger.Info("set domain rate limit",
		"domain", domain,
		"limit", limit,
		"window", l.window,
	)
}

// RemoveDomainLimit removes a per-domain override, reverting the domain to
// the default limit.
func (l *Limiter) RemoveDomainLimit(domain string) {
	domain = strings.ToLower(domain)

	l.mu.Lock()
	_, existed := l.overrides[domain]
	delete(l.overrides, domain)
	l.mu.Unlock()

	if existed {
		l.logger.Info("removed domain rate limit",
			"domain", domain,
			"default", l.defaultLimit,
		)
	}
}

// DomainStats returns the current window statistics for one domain.
// A disabled limiter reports all zeros.
func (l *Limiter) DomainStats(domain string) model.DomainStats {
	if !l.enabled {
		return model.DomainStats{}
	}

	domain = strings.ToLower(domain)
	limit := l.limitFor(domain)
	dw := l.domain(domain)
	now := l.clock()

	dw.mu.Lock()
	dw.prune(now, l.window)
	current := len(dw.timestamps)
	dw.mu.Unlock()

	remaining := limit - current
	if remaining < 0 {
		remaining = 0
	}

	return model.DomainStats{
		Limit:     limit,
		Current:   current,
		Remaining: remaining,
	}
}

// AllDomainStats returns statistics for every domain the limiter has seen.
// A disabled limiter reports an empty map.
func (l *Limiter) AllDomainStats() map[string]model.DomainStats {
	stats := make(map[string]model.DomainStats)
	if !l.enabled {
		return stats
	}

	l.mu.Lock()
	domains := make([]string, 0, len(l.domains))
	for domain := range l.domains {
		domains = append(domains, domain)
	}
	l.mu.Unlock()

	for _, domain := range domains {
		stats[domain] = l.DomainStats(domain)
	}
	return stats
}
