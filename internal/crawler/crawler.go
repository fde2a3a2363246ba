package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/manthanjain6106/crawler-service/internal/config"
	"github.com/manthanjain6106/crawler-service/internal/fetcher"
	"github.com/manthanjain6106/crawler-service/internal/model"
	"github.com/manthanjain6106/crawler-service/internal/ratelimit"
)

// adjustInterval is how many completed fetches pass between invocations
// of the governor's adaptive rule. A final adjustment also runs at crawl
// end so short crawls still feed the rule.
const adjustInterval = 20

// Crawler drives breadth-first traversal of a site.
//
// The Crawler owns the frontier queue and visited set exclusively; no
// other component mutates them. One Crawler handles one crawl at a time;
// run a Crawler per task when executing crawls concurrently, sharing the
// rate limiter between them so per-domain politeness holds process-wide.
type Crawler struct {
	cfg      *config.Config
	fetcher  *fetcher.Fetcher
	limiter  *ratelimit.Limiter
	governor *Governor
	logger   *slog.Logger

	// lastStats is the retry-stat snapshot of the most recent crawl,
	// exposed for the admin/stats surface.
	lastStats model.RetryStats
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithHTTPClient sets the HTTP client used for fetching.
// Tests use this to point the crawler at fixture servers.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Crawler) {
		c.fetcher = fetcher.New(client, fetcher.Options{
			UserAgent:    c.cfg.UserAgent,
			Timeout:      c.cfg.Timeout,
			MaxBodyBytes: c.cfg.MaxBodySize,
		})
	}
}

// WithLimiter shares an existing rate limiter instead of building one
// from the config. Concurrent crawls should share one limiter so their
// combined request rate per domain stays within policy.
func WithLimiter(limiter *ratelimit.Limiter) Option {
	return func(c *Crawler) {
		c.limiter = limiter
	}
}

// New creates a Crawler from configuration.
func New(cfg *config.Config, opts ...Option) *Crawler {
	c := &Crawler{cfg: cfg}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.fetcher == nil {
		c.fetcher = fetcher.New(&http.Client{}, fetcher.Options{
			UserAgent:    cfg.UserAgent,
			Timeout:      cfg.Timeout,
			MaxBodyBytes: cfg.MaxBodySize,
		})
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New(
			cfg.RateLimitEnabled,
			cfg.DefaultRateLimit,
			cfg.RateLimitWindow,
			ratelimit.WithLogger(c.logger),
			ratelimit.WithOverrides(cfg.DomainRateLimits),
		)
	}
	if c.governor == nil {
		c.governor = NewGovernor(
			cfg.MaxConcurrentRequests,
			cfg.ConcurrencyBurstLimit,
			cfg.ConcurrencyGradualIncrease,
			WithGovernorLogger(c.logger),
		)
	}

	return c
}

// frontierEntry is one pending (url, depth) pair in the BFS queue.
type frontierEntry struct {
	url   string
	depth int
}

// Crawl runs a crawl with a generated task ID.
func (c *Crawler) Crawl(ctx context.Context, req model.CrawlRequest) *model.CrawlResult {
	taskID := fmt.Sprintf("crawl_%d", time.Now().Unix())
	return c.CrawlTask(ctx, taskID, req)
}

// CrawlTask runs a crawl under the given task ID and always returns a
// CrawlResult; it never returns an error. Per-page failures are recorded
// on their pages, and only a fault in the traversal loop itself (or
// cancellation) marks the whole result failed. Even then the partial
// result is returned with its duration recorded.
func (c *Crawler) CrawlTask(ctx context.Context, taskID string, req model.CrawlRequest) (result *model.CrawlResult) {
	result = model.NewCrawlResult(taskID)
	engine := newRetryEngine(newRetryPolicy(c.cfg), c.fetcher, c.limiter, c.logger)

	// A fault in the traversal loop must surface as a failed result,
	// never as a panic escaping to the caller.
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("crawl aborted by internal fault",
				"task_id", taskID,
				"panic", r,
			)
			result.Status = model.StatusFailed
			result.Errors = append(result.Errors, fmt.Sprintf("internal fault: %v", r))
			c.finish(result, engine)
		}
	}()

	seed, err := url.Parse(req.URL)
	if err != nil || (seed.Scheme != "http" && seed.Scheme != "https") || seed.Host == "" {
		result.Status = model.StatusFailed
		result.Errors = append(result.Errors, fmt.Sprintf("invalid crawl URL: %s", req.URL))
		c.finish(result, engine)
		return result
	}

	c.logger.Info("starting crawl",
		"task_id", taskID,
		"url", req.URL,
		"max_depth", req.MaxDepth,
		"follow_links", req.FollowLinks,
	)

	visited := make(map[string]bool)
	// queued tracks normalized URLs already in the frontier so link
	// discovery never scans the pending queue.
	queued := make(map[string]bool)
	frontier := []frontierEntry{{url: req.URL, depth: 0}}
	queued[NormalizeURL(req.URL)] = true

	completed := 0
	successful := 0

	for len(frontier) > 0 {
		if ctx.Err() != nil {
			result.Status = model.StatusFailed
			result.Errors = append(result.Errors, fmt.Sprintf("crawl cancelled: %v", ctx.Err()))
			c.finish(result, engine)
			return result
		}

		entry := frontier[0]
		frontier = frontier[1:]

		normalized := NormalizeURL(entry.url)
		if visited[normalized] {
			continue
		}
		if req.MaxDepth > 0 && entry.depth > req.MaxDepth {
			continue
		}
		visited[normalized] = true

		page, fetched := c.fetchOne(ctx, engine, entry, req)
		if !fetched {
			// Admission was cancelled before any I/O happened; the
			// URL produced no page. Surface the cancellation on the
			// next loop check.
			continue
		}

		completed++
		if page.Success() {
			successful++
		}

		result.Pages = append(result.Pages, page)
		if page.Error != nil {
			result.StructuredErrors = append(result.StructuredErrors, *page.Error)
			result.Errors = append(result.Errors, fmt.Sprintf("Error crawling %s: %s", entry.url, page.Error.Message))
		}

		if req.FollowLinks && (req.MaxDepth == 0 || entry.depth < req.MaxDepth) {
			for _, link := range page.Links {
				if !isInternalLink(seed, link) {
					continue
				}
				normalizedLink := NormalizeURL(link)
				if visited[normalizedLink] || queued[normalizedLink] {
					continue
				}
				queued[normalizedLink] = true
				frontier = append(frontier, frontierEntry{url: link, depth: entry.depth + 1})
			}
		}

		if completed%adjustInterval == 0 {
			c.governor.Adjust(float64(successful)/float64(completed), completed)
		}
	}

	if completed > 0 {
		c.governor.Adjust(float64(successful)/float64(completed), completed)
	}

	result.Status = model.StatusCompleted
	c.finish(result, engine)

	c.logger.Info("crawl completed",
		"task_id", taskID,
		"pages", result.TotalPages,
		"errors", len(result.Errors),
		"duration", result.Duration,
	)

	return result
}

// fetchOne runs a single frontier entry through rate limiting, admission,
// and the retry engine. The second return is false when cancellation
// interrupted admission before any fetch happened.
func (c *Crawler) fetchOne(ctx context.Context, engine *retryEngine, entry frontierEntry, req model.CrawlRequest) (model.CrawledPage, bool) {
	if err := c.limiter.Wait(ctx, entry.url); err != nil {
		return model.CrawledPage{}, false
	}

	if err := c.governor.Acquire(ctx); err != nil {
		return model.CrawledPage{}, false
	}
	defer c.governor.Release()

	return engine.FetchPage(ctx, entry.url, req, entry.depth), true
}

// finish freezes the result: totals, retry-stat snapshot, and timing.
func (c *Crawler) finish(result *model.CrawlResult, engine *retryEngine) {
	result.TotalPages = len(result.Pages)
	result.RetryStats = engine.Stats()
	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	c.lastStats = result.RetryStats
}

// RetryStats returns the retry counters of the most recent crawl.
func (c *Crawler) RetryStats() model.RetryStats {
	return c.lastStats
}

// RateLimitStats returns per-domain rate-limit statistics.
func (c *Crawler) RateLimitStats() map[string]model.DomainStats {
	return c.limiter.AllDomainStats()
}

// SetDomainRateLimit sets a per-domain rate-limit override at runtime.
func (c *Crawler) SetDomainRateLimit(domain string, limit int) {
	c.limiter.SetDomainLimit(domain, limit)
}

// RemoveDomainRateLimit removes a per-domain rate-limit override.
func (c *Crawler) RemoveDomainRateLimit(domain string) {
	c.limiter.RemoveDomainLimit(domain)
}

// Governor exposes the concurrency governor for observability.
func (c *Crawler) Governor() *Governor {
	return c.governor
}
