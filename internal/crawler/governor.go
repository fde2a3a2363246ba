package crawler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/manthanjain6106/crawler-service/internal/config"
)

// Adaptive rule thresholds. A success ratio above raiseThreshold grows the
// primary limit, below lowerThreshold shrinks it; in between the limit is
// left alone. The rule never fires before minAdjustSamples fetches have
// completed, so a couple of early failures cannot collapse the limit.
const (
	raiseThreshold   = 0.9
	lowerThreshold   = 0.7
	minAdjustSamples = 10
)

// Governor bounds how many fetches are in flight and adapts that bound to
// the observed success rate.
//
// Two independent gates apply to every fetch: a burst gate with fixed
// capacity, and a primary gate whose capacity starts at the configured
// concurrency limit and may be resized at runtime by the adaptive rule.
// A fetch acquires the burst gate, then the primary gate, performs its
// I/O, and releases both.
//
// Design decision: the primary gate is a permit count plus an explicit
// waiter queue rather than a buffered channel, because a channel's
// capacity cannot change in place. Resizing by swapping channels would
// race with in-flight permit holders; with a counter, raising the limit
// just wakes waiters and lowering it lets excess permits drain naturally
// as holders release. In-flight fetches are never preempted.
type Governor struct {
	// burst is the fixed-capacity burst gate.
	burst chan struct{}

	// burstLimit is the burst gate capacity and the ceiling for
	// adaptive increases of the primary limit.
	burstLimit int

	// adaptive enables the adjustment rule.
	adaptive bool

	// mu guards everything below.
	mu sync.Mutex

	// limit is the primary gate capacity.
	limit int

	// inUse is the number of primary permits currently held.
	inUse int

	// waiters are fetches blocked on the primary gate, in arrival
	// order. Each channel is closed exactly once when its permit is
	// granted.
	waiters []chan struct{}

	// active counts fetches currently performing network I/O. This is
	// observability state, not an admission control.
	active int

	logger *slog.Logger
}

// GovernorOption configures a Governor.
type GovernorOption func(*Governor)

// WithGovernorLogger sets a custom logger.
func WithGovernorLogger(logger *slog.Logger) GovernorOption {
	return func(g *Governor) {
		g.logger = logger
	}
}

// NewGovernor creates a Governor with the given primary and burst limits.
// The adaptive flag corresponds to the gradual-increase configuration
// setting; when false the primary limit never changes.
func NewGovernor(primary, burst int, adaptive bool, opts ...GovernorOption) *Governor {
	g := &Governor{
		burst:      make(chan struct{}, burst),
		burstLimit: burst,
		adaptive:   adaptive,
		limit:      primary,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.logger == nil {
		g.logger = slog.Default()
	}

	return g
}

// Acquire obtains both admission gates, burst first. On success the caller
// must call Release exactly once. On context cancellation neither gate is
// held.
func (g *Governor) Acquire(ctx context.Context) error {
	select {
	case g.burst <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := g.acquirePrimary(ctx); err != nil {
		<-g.burst
		return err
	}

	g.mu.Lock()
	g.active++
	g.mu.Unlock()

	return nil
}

// Release returns both admission gates.
func (g *Governor) Release() {
	g.mu.Lock()
	g.active--
	g.inUse--
	g.wakeLocked()
	g.mu.Unlock()

	<-g.burst
}

// acquirePrimary takes one permit from the resizable primary gate.
func (g *Governor) acquirePrimary(ctx context.Context) error {
	g.mu.Lock()
	if g.inUse < g.limit {
		g.inUse++
		g.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	g.waiters = append(g.waiters, ready)
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		for i, w := range g.waiters {
			if w == ready {
				g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
				g.mu.Unlock()
				return ctx.Err()
			}
		}
		// The permit was granted between cancellation and this point;
		// hand it back so it is not leaked.
		g.inUse--
		g.wakeLocked()
		g.mu.Unlock()
		return ctx.Err()
	}
}

// wakeLocked grants permits to queued waiters while capacity remains.
// Callers must hold g.mu.
func (g *Governor) wakeLocked() {
	for len(g.waiters) > 0 && g.inUse < g.limit {
		ready := g.waiters[0]
		g.waiters = g.waiters[1:]
		g.inUse++
		close(ready)
	}
}

// Adjust applies the adaptive rule for the given rolling success ratio.
// It is a no-op unless adaptive mode is on and at least minAdjustSamples
// fetches have completed. Limit changes only affect subsequently admitted
// fetches.
func (g *Governor) Adjust(successRatio float64, completed int) {
	if !g.adaptive || completed < minAdjustSamples {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case successRatio > raiseThreshold && g.limit < g.burstLimit:
		newLimit := g.limit + config.ConcurrencyIncreaseStep
		if newLimit > g.burstLimit {
			newLimit = g.burstLimit
		}
		if newLimit != g.limit {
			g.limit = newLimit
			g.wakeLocked()
			g.logger.Info("increased concurrency limit",
				"limit", g.limit,
				"success_ratio", successRatio,
			)
		}

	case successRatio < lowerThreshold && g.limit > config.MinConcurrentRequests:
		newLimit := g.limit - config.ConcurrencyDecreaseStep
		if newLimit < config.MinConcurrentRequests {
			newLimit = config.MinConcurrentRequests
		}
		if newLimit != g.limit {
			g.limit = newLimit
			g.logger.Info("decreased concurrency limit",
				"limit", g.limit,
				"success_ratio", successRatio,
			)
		}
	}
}

// Limit returns the current primary gate capacity.
func (g *Governor) Limit() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limit
}

// Active returns the number of fetches currently in flight.
func (g *Governor) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}
