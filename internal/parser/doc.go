// Package parser extracts structured content from HTML pages.
//
// Design decision: We use golang.org/x/net/html rather than regex because:
//  1. It correctly handles malformed HTML common on the web
//  2. Provides a proper DOM-like structure
//  3. More maintainable than complex regex patterns
//
// Extraction is driven by per-field flags from the crawl request so
// callers only pay for the fields they asked for.
package parser
