// Package ratelimit implements per-domain request pacing for the crawler.
//
// # Architecture
//
// The Limiter tracks a sliding window of request timestamps per domain.
// Before a fetch, Wait suspends the caller until the domain has capacity;
// after a successful fetch, Record consumes a window slot. Failed fetches
// never consume slots, so an unreachable host does not lock out retries.
//
// Design decision: we implement the sliding window ourselves rather than
// using a token-bucket library because the contract is expressed in window
// terms: the wait time is computed from the oldest timestamp still inside
// the window, and slot consumption is deferred until the fetch succeeds.
// A token bucket admits requests at a smoothed rate and spends the token
// at admission time, which changes both observable behaviors.
//
// # Locking
//
// Each domain has its own lock guarding its timestamp window, so crawls of
// unrelated domains never contend. The map of domains is guarded by a
// separate mutex used only for lazy entry creation and snapshots.
package ratelimit
