// Package crawler implements the crawl traversal engine.
//
// # Architecture
//
// The Crawler type orchestrates a breadth-first traversal of a site. Each
// URL popped from the frontier passes through three gates before network
// I/O: the per-domain rate limiter, the fixed burst admission gate, and
// the adjustable primary admission gate. The fetch itself runs under the
// retry engine, which classifies failures and backs off between attempts.
// Fetch outcomes feed the adaptive concurrency rule, which resizes the
// primary gate based on the rolling success ratio.
//
// # Components
//
//   - Crawler: owns the frontier and visited set and drives traversal
//   - Governor: the two admission gates plus the adaptive rule
//   - retryEngine: per-crawl retry loop, error classification, backoff
//   - NormalizeURL / isInternalLink: URL canonicalization and filtering
//
// # Traversal ordering
//
// Traversal is strictly serial: one frontier entry is fetched to
// completion before the next is dequeued, so pages complete in frontier
// order and results are deterministic. The admission gates still wrap
// every fetch; they matter when several crawls share a process, and they
// keep the adaptive limit observable. Running multiple crawls
// concurrently is the job runner's responsibility, not this package's.
//
// # Error containment
//
// A page failure terminates that page's fetch with a structured error and
// never aborts the crawl. Only a fault in the traversal loop itself marks
// the whole result failed, and even then the partial result is returned.
package crawler
