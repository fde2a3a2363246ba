package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/manthanjain6106/crawler-service/internal/crawler"
	"github.com/manthanjain6106/crawler-service/internal/database"
	"github.com/manthanjain6106/crawler-service/internal/model"
)

// Runner executes crawl tasks concurrently.
//
// A crawler handles one crawl at a time, so the Runner creates one per
// task via the factory. We use a factory rather than a shared instance to
// ensure task state doesn't leak between crawls.
type Runner struct {
	// crawlerFactory creates a new crawler for each task.
	crawlerFactory func() *crawler.Crawler

	// concurrency is the maximum number of tasks running at once.
	concurrency int

	// store persists task state and results when non-nil.
	store *database.TaskDB

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed crawl results by task index.
	// Access is synchronized via mutex.
	results []*model.CrawlResult
	mu      sync.Mutex
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets a custom logger for task execution.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent tasks.
// Default is 4 if not specified.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithStore attaches a task store. Task status transitions and results
// are persisted as tasks run.
func WithStore(store *database.TaskDB) RunnerOption {
	return func(r *Runner) {
		r.store = store
	}
}

// NewRunner creates a Runner.
//
// The crawlerFactory function is called for each task to create a fresh
// crawler instance. Factories should share a rate limiter between the
// crawlers they build so domain limits apply across concurrent tasks.
func NewRunner(crawlerFactory func() *crawler.Crawler, opts ...RunnerOption) *Runner {
	r := &Runner{
		crawlerFactory: crawlerFactory,
		concurrency:    4,
		results:        make([]*model.CrawlResult, 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Run executes the given tasks concurrently, respecting the configured
// concurrency limit and context cancellation.
//
// Results are returned in task order, even for crawls that failed; a nil
// entry means the task was never started because the batch was cancelled
// first. The error return indicates cancellation, not crawl failure.
func (r *Runner) Run(ctx context.Context, tasks []*model.CrawlTask) ([]*model.CrawlResult, error) {
	r.logger.Info("starting task batch",
		"total_tasks", len(tasks),
		"concurrency", r.concurrency,
	)

	startTime := time.Now()

	// Pre-allocate results slice to maintain order
	r.results = make([]*model.CrawlResult, len(tasks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, task := range tasks {
		g.Go(func() error {
			// Check for cancellation before starting
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			result := r.runTask(ctx, task, i+1, len(tasks))

			r.mu.Lock()
			r.results[i] = result
			r.mu.Unlock()

			return nil
		})
	}

	err := g.Wait()

	r.logger.Info("task batch complete",
		"total_tasks", len(tasks),
		"elapsed", time.Since(startTime),
	)

	return r.results, err
}

// RunWithCallback executes tasks and calls a callback for each completed
// crawl. This is useful for streaming results.
//
// The callback receives the result and the index of the task in the
// original slice. It is called from the goroutine that ran the task, so
// it should be thread-safe if it accesses shared state.
func (r *Runner) RunWithCallback(
	ctx context.Context,
	tasks []*model.CrawlTask,
	callback func(result *model.CrawlResult, index int),
) error {
	r.logger.Info("starting task batch with callback",
		"total_tasks", len(tasks),
		"concurrency", r.concurrency,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, task := range tasks {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			callback(r.runTask(ctx, task, i+1, len(tasks)), i)
			return nil
		})
	}

	return g.Wait()
}

// runTask executes one task through a fresh crawler and persists its
// transitions. Crawl failures are recorded in the result, never returned.
func (r *Runner) runTask(ctx context.Context, task *model.CrawlTask, index, total int) *model.CrawlResult {
	r.logger.Info("running crawl task",
		"task_id", task.TaskID,
		"url", task.Request.URL,
		"index", index,
		"total", total,
	)

	task.Status = model.StatusInProgress
	task.UpdatedAt = time.Now()
	r.persistTask(ctx, task)

	c := r.crawlerFactory()
	result := c.CrawlTask(ctx, task.TaskID, task.Request)

	task.Status = result.Status
	task.Result = result
	task.UpdatedAt = time.Now()
	r.persistResult(ctx, task, result)

	if result.Status == model.StatusCompleted {
		r.logger.Info("crawl task completed",
			"task_id", task.TaskID,
			"pages", result.TotalPages,
		)
	} else {
		r.logger.Warn("crawl task did not complete",
			"task_id", task.TaskID,
			"status", string(result.Status),
			"errors", len(result.Errors),
		)
	}

	return result
}

// persistTask writes the task's current state to the store, if attached.
// Persistence failures are logged, not propagated; the crawl itself is
// the product, storage is best effort.
func (r *Runner) persistTask(ctx context.Context, task *model.CrawlTask) {
	if r.store == nil {
		return
	}
	// Results of cancelled batches must still reach the store.
	if err := r.store.SaveTask(context.WithoutCancel(ctx), task); err != nil {
		r.logger.Warn("failed to persist task",
			"task_id", task.TaskID,
			"error", err,
		)
	}
}

// persistResult writes the task row and its result document to the store,
// if attached.
func (r *Runner) persistResult(ctx context.Context, task *model.CrawlTask, result *model.CrawlResult) {
	if r.store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := r.store.SaveTask(ctx, task); err != nil {
		r.logger.Warn("failed to persist task",
			"task_id", task.TaskID,
			"error", err,
		)
		return
	}
	if err := r.store.SaveResult(ctx, result); err != nil {
		r.logger.Warn("failed to persist result",
			"task_id", task.TaskID,
			"error", err,
		)
	}
}
