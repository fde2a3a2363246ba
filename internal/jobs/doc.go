// Package jobs executes crawl tasks concurrently.
//
// The Runner takes a batch of crawl tasks, runs each through its own
// crawler instance, and persists lifecycle transitions and results to the
// task store when one is attached.
//
// Design decision: We run batches with errgroup.SetLimit rather than a
// hand-built worker pool because:
// 1. errgroup handles the concurrency limit and context propagation
// 2. Each task gets its own goroutine with no channel plumbing
// 3. Cancellation stops admitting new tasks while running ones finish
//
// Each task gets a fresh crawler from the factory so crawl state (frontier,
// visited set, retry counters) never leaks between tasks. Crawlers should
// share one rate limiter so per-domain politeness holds across the batch.
package jobs
