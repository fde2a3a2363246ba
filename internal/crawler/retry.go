package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/manthanjain6106/crawler-service/internal/config"
	"github.com/manthanjain6106/crawler-service/internal/fetcher"
	"github.com/manthanjain6106/crawler-service/internal/model"
	"github.com/manthanjain6106/crawler-service/internal/parser"
	"github.com/manthanjain6106/crawler-service/internal/ratelimit"
)

// jitterFraction is the symmetric jitter applied to backoff delays.
// Spreading retries by ±25% avoids synchronized retry storms when many
// URLs of one host fail at once.
const jitterFraction = 0.25

// retryPolicy is the retry engine's configuration slice, copied out of
// the service config so the engine has no config dependency at run time.
type retryPolicy struct {
	maxRetries             int
	delayBase              time.Duration
	delayMax               time.Duration
	backoffMultiplier      float64
	retryOnTimeout         bool
	retryOnConnectionError bool
}

// newRetryPolicy extracts the retry settings from the service config.
func newRetryPolicy(cfg *config.Config) retryPolicy {
	return retryPolicy{
		maxRetries:             cfg.MaxRetries,
		delayBase:              cfg.RetryDelayBase,
		delayMax:               cfg.RetryDelayMax,
		backoffMultiplier:      cfg.RetryBackoffMultiplier,
		retryOnTimeout:         cfg.RetryOnTimeout,
		retryOnConnectionError: cfg.RetryOnConnectionError,
	}
}

// retryEngine fetches single URLs under the retry policy. One engine
// exists per crawl so its counters never mix between concurrent crawls.
type retryEngine struct {
	policy  retryPolicy
	fetch   *fetcher.Fetcher
	limiter *ratelimit.Limiter
	logger  *slog.Logger

	// sleep suspends between retries. Tests substitute an instant
	// version; production uses a context-aware timer sleep.
	sleep func(ctx context.Context, d time.Duration) error

	// mu guards stats.
	mu    sync.Mutex
	stats model.RetryStats
}

// newRetryEngine creates a retry engine for one crawl.
func newRetryEngine(policy retryPolicy, fetch *fetcher.Fetcher, limiter *ratelimit.Limiter, logger *slog.Logger) *retryEngine {
	return &retryEngine{
		policy:  policy,
		fetch:   fetch,
		limiter: limiter,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// sleepContext suspends for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classify maps a fetch failure to its error class and retry eligibility.
// A present status code wins over the transport error kind.
func (e *retryEngine) classify(err error, statusCode int) (model.ErrorType, bool) {
	if statusCode > 0 {
		switch {
		case statusCode >= 500 && statusCode < 600:
			return model.ErrorTransient, true
		case statusCode == 429:
			// Rate limited by the origin; backing off and retrying
			// is exactly what the server asked for.
			return model.ErrorTransient, true
		case statusCode >= 400 && statusCode < 500:
			return model.ErrorPermanent, false
		default:
			return model.ErrorUnknown, false
		}
	}

	var fe *fetcher.Error
	if errors.As(err, &fe) {
		switch fe.Kind {
		case fetcher.KindTimeout:
			return model.ErrorTransient, e.policy.retryOnTimeout
		case fetcher.KindConnection:
			return model.ErrorTransient, e.policy.retryOnConnectionError
		}
	}

	return model.ErrorUnknown, false
}

// retryDelay computes the backoff before the given 1-based retry number:
// min(delayMax, delayBase * multiplier^(retry-1)) with ±25% jitter,
// floored at zero.
func (e *retryEngine) retryDelay(retry int) time.Duration {
	if retry <= 0 {
		return 0
	}

	delay := float64(e.policy.delayBase) * math.Pow(e.policy.backoffMultiplier, float64(retry-1))
	if delay > float64(e.policy.delayMax) {
		delay = float64(e.policy.delayMax)
	}

	jitter := delay * jitterFraction * (2*rand.Float64() - 1)
	delay += jitter

	// Jitter never pushes the delay outside [0, delayMax].
	if delay < 0 {
		return 0
	}
	if delay > float64(e.policy.delayMax) {
		return e.policy.delayMax
	}
	return time.Duration(delay)
}

// newCrawlError builds the structured error for a classified failure.
// IsRetryable reflects eligibility at creation time: an exhausted
// transient failure is recorded as not retryable.
func (e *retryEngine) newCrawlError(rawURL, message string, errType model.ErrorType, retryable bool, statusCode, attempts int) *model.CrawlError {
	return &model.CrawlError{
		Type:          errType,
		StatusCode:    statusCode,
		Message:       message,
		URL:           rawURL,
		Timestamp:     time.Now(),
		RetryAttempts: attempts,
		MaxRetries:    e.policy.maxRetries,
		IsRetryable:   retryable && attempts < e.policy.maxRetries,
	}
}

// recordFailure updates the class tallies for a classified failure.
// Unknown errors count into the permanent bucket, matching how the
// service has always reported them.
func (e *retryEngine) recordFailure(errType model.ErrorType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if errType == model.ErrorTransient {
		e.stats.TransientErrors++
	} else {
		e.stats.PermanentErrors++
	}
}

// FetchPage fetches one URL, retrying transient failures up to the
// policy's budget, and returns exactly one CrawledPage.
//
// On success the page carries the parsed fields the request asked for and
// the rate limiter is charged one slot. On terminal failure the page
// carries the structured error and the attempt count reached. The
// returned page's ResponseTime spans the whole attempt sequence.
func (e *retryEngine) FetchPage(ctx context.Context, rawURL string, req model.CrawlRequest, depth int) model.CrawledPage {
	start := time.Now()
	attempts := 0

	for {
		resp, fetchErr := e.fetch.Fetch(ctx, rawURL, req.CustomHeaders, req.Timeout)

		var crawlErr *model.CrawlError
		var classRetryable bool
		statusCode := 0
		switch {
		case fetchErr != nil:
			var errType model.ErrorType
			errType, classRetryable = e.classify(fetchErr, 0)
			crawlErr = e.newCrawlError(rawURL, fetchErr.Error(), errType, classRetryable, 0, attempts)
		case resp.StatusCode >= 400:
			statusCode = resp.StatusCode
			var errType model.ErrorType
			errType, classRetryable = e.classify(nil, resp.StatusCode)
			message := fmt.Sprintf("HTTP %d", resp.StatusCode)
			crawlErr = e.newCrawlError(rawURL, message, errType, classRetryable, resp.StatusCode, attempts)
		default:
			// Success. Charge the rate limiter and credit the retry
			// if this was not the first attempt.
			e.limiter.Record(rawURL)
			if attempts > 0 {
				e.mu.Lock()
				e.stats.SuccessfulRetries++
				e.mu.Unlock()
			}
			return e.buildPage(rawURL, req, depth, attempts, resp, start)
		}

		e.recordFailure(crawlErr.Type)

		if !crawlErr.IsRetryable {
			// Terminal: either the class is never retried, or the
			// retry budget is spent.
			if classRetryable && attempts >= e.policy.maxRetries {
				e.mu.Lock()
				e.stats.FailedRetries++
				e.mu.Unlock()
			}
			e.logError(crawlErr)
			return e.errorPage(rawURL, depth, attempts, statusCode, crawlErr, start)
		}

		// Retryable with budget remaining: back off and go again.
		e.mu.Lock()
		e.stats.TotalRetries++
		e.mu.Unlock()

		delay := e.retryDelay(attempts + 1)
		e.logError(crawlErr)
		e.logger.Info("retrying fetch",
			"url", rawURL,
			"delay", delay,
			"attempt", attempts+1,
			"max_retries", e.policy.maxRetries,
		)

		if err := e.sleep(ctx, delay); err != nil {
			// Crawl cancelled mid-backoff; surface the failure we
			// already have rather than inventing a new one.
			e.mu.Lock()
			e.stats.FailedRetries++
			e.mu.Unlock()
			return e.errorPage(rawURL, depth, attempts, statusCode, crawlErr, start)
		}
		attempts++
	}
}

// buildPage parses the body per the request's extraction flags and
// assembles the successful CrawledPage.
func (e *retryEngine) buildPage(rawURL string, req model.CrawlRequest, depth, attempts int, resp *fetcher.Response, start time.Time) model.CrawledPage {
	page := model.CrawledPage{
		URL:           rawURL,
		StatusCode:    resp.StatusCode,
		ResponseTime:  time.Since(start),
		CrawledAt:     time.Now(),
		Depth:         depth,
		RetryAttempts: attempts,
	}

	p, err := parser.New(rawURL)
	if err != nil {
		e.logger.Warn("cannot parse page URL for extraction", "url", rawURL, "error", err)
		return page
	}

	flags := parser.Flags{
		Text:         req.ExtractText,
		Images:       req.ExtractImages,
		Links:        req.ExtractLinks,
		Headings:     req.ExtractHeadings,
		ImageAltText: req.ExtractImageAltText,
		CanonicalURL: req.ExtractCanonicalURL,
	}

	result, err := p.Parse(bytes.NewReader(resp.Body), flags)
	if err != nil {
		// A fetch that succeeded but did not parse is still a fetch;
		// the page keeps its status and timing.
		e.logger.Warn("failed to parse page body", "url", rawURL, "error", err)
		return page
	}

	page.Title = result.Title
	page.MetaDescription = result.MetaDescription
	page.TextContent = result.Text
	page.Images = result.Images
	page.Links = result.Links
	page.Headings = model.Headings{H1: result.H1, H2: result.H2, H3: result.H3}
	page.ImageAltText = result.ImageAltText
	page.CanonicalURL = result.CanonicalURL

	return page
}

// errorPage assembles the CrawledPage for a terminal failure.
func (e *retryEngine) errorPage(rawURL string, depth, attempts, statusCode int, crawlErr *model.CrawlError, start time.Time) model.CrawledPage {
	return model.CrawledPage{
		URL:           rawURL,
		StatusCode:    statusCode,
		ResponseTime:  time.Since(start),
		CrawledAt:     time.Now(),
		Depth:         depth,
		Error:         crawlErr,
		RetryAttempts: attempts,
	}
}

// logError emits the structured form of a classified failure.
func (e *retryEngine) logError(crawlErr *model.CrawlError) {
	e.logger.Warn("fetch failed",
		"error_type", string(crawlErr.Type),
		"status_code", crawlErr.StatusCode,
		"url", crawlErr.URL,
		"retry_attempts", crawlErr.RetryAttempts,
		"is_retryable", crawlErr.IsRetryable,
		"message", crawlErr.Message,
	)
}

// Stats returns a snapshot of the engine's retry counters.
func (e *retryEngine) Stats() model.RetryStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
