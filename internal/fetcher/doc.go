// Package fetcher provides the HTTP fetch primitive used by the crawl
// engine. It wraps a configured http.Client and converts transport
// failures into typed errors so the retry engine can classify them
// without inspecting stdlib error internals.
package fetcher
