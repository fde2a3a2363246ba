// Package database provides SQLite-based storage for crawl tasks.
//
// This package implements the TaskDB, which stores:
//   - Crawl tasks with their requests and lifecycle state
//   - Completed crawl results as JSON documents
//   - Per-page fetch records for cross-task queries
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
package database
