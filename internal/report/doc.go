// Package report formats crawl results for output.
//
// Three formats are supported: JSON for tool integration, Markdown for
// documentation and sharing, and plain text for terminal display. All
// writers implement the Writer interface so output destinations can be
// mixed freely, including writing to several destinations at once via
// MultiWriter.
package report
