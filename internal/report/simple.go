package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/manthanjain6106/crawler-service/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose enables per-page detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full result in human-readable format.
func (w *SimpleWriter) Write(result *model.CrawlResult) (int, error) {
	summary := NewSummary(result)

	var sb strings.Builder
	w.writeHeader(&sb, summary)
	w.writeOutcome(&sb, summary)
	w.writePages(&sb, result)
	w.writeErrors(&sb, result)
	w.writeRetryStats(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs only the summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *Summary) (int, error) {
	var sb strings.Builder
	w.writeHeader(&sb, summary)
	w.writeOutcome(&sb, summary)
	w.writeRetryStats(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with crawl information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                           CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Task ID:   %s\n", summary.TaskID))
	sb.WriteString(fmt.Sprintf("Seed URL:  %s\n", summary.SeedURL))
	sb.WriteString(fmt.Sprintf("Started:   %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:  %s\n", summary.Duration))
	sb.WriteString(fmt.Sprintf("Status:    %s\n", statusText(summary.Status)))
	sb.WriteString("\n")
}

// writeOutcome writes the fetch outcome section.
func (w *SimpleWriter) writeOutcome(sb *strings.Builder, summary *Summary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FETCH OUTCOME\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  SUCCESSFUL: %d\n", summary.SuccessfulPages))
	sb.WriteString(fmt.Sprintf("  FAILED:     %d\n", summary.FailedPages))
	sb.WriteString(fmt.Sprintf("  TOTAL:      %d pages\n", summary.TotalPages))
	if summary.TotalPages > 0 {
		sb.WriteString(fmt.Sprintf("  MAX DEPTH:  %d\n", summary.MaxDepthReached))
	}
	sb.WriteString("\n")
}

// writePages writes the per-page section.
func (w *SimpleWriter) writePages(sb *strings.Builder, result *model.CrawlResult) {
	if len(result.Pages) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(result.Pages) == 0 {
		sb.WriteString("  No pages crawled\n")
	}

	for i := range result.Pages {
		page := &result.Pages[i]
		marker := "+"
		if !page.Success() {
			marker = "!"
		}
		sb.WriteString(fmt.Sprintf("  [%s] %s (status %d, depth %d)\n",
			marker, page.URL, page.StatusCode, page.Depth))

		if w.verbose {
			if page.Title != "" {
				sb.WriteString(fmt.Sprintf("      Title: %s\n", page.Title))
			}
			sb.WriteString(fmt.Sprintf("      Response time: %s\n", page.ResponseTime))
			if len(page.Links) > 0 {
				sb.WriteString(fmt.Sprintf("      Links: %d\n", len(page.Links)))
			}
		}
	}
	sb.WriteString("\n")
}

// writeErrors writes the error details section.
func (w *SimpleWriter) writeErrors(sb *strings.Builder, result *model.CrawlResult) {
	if len(result.StructuredErrors) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("ERRORS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(result.StructuredErrors) == 0 {
		sb.WriteString("  No errors\n")
	}

	for _, crawlErr := range result.StructuredErrors {
		sb.WriteString(fmt.Sprintf("  * %s\n", crawlErr.URL))
		sb.WriteString(fmt.Sprintf("    Type: %s\n", crawlErr.Type))
		if crawlErr.StatusCode > 0 {
			sb.WriteString(fmt.Sprintf("    Status: %d\n", crawlErr.StatusCode))
		}
		sb.WriteString(fmt.Sprintf("    Message: %s\n", crawlErr.Message))
		if crawlErr.RetryAttempts > 0 {
			sb.WriteString(fmt.Sprintf("    Retries: %d of %d\n", crawlErr.RetryAttempts, crawlErr.MaxRetries))
		}
	}
	sb.WriteString("\n")
}

// writeRetryStats writes the retry statistics section.
func (w *SimpleWriter) writeRetryStats(sb *strings.Builder, summary *Summary) {
	stats := summary.RetryStats
	if stats == (model.RetryStats{}) && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("RETRY STATISTICS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  Total retries:      %d\n", stats.TotalRetries))
	sb.WriteString(fmt.Sprintf("  Successful retries: %d\n", stats.SuccessfulRetries))
	sb.WriteString(fmt.Sprintf("  Failed retries:     %d\n", stats.FailedRetries))
	sb.WriteString(fmt.Sprintf("  Transient errors:   %d\n", stats.TransientErrors))
	sb.WriteString(fmt.Sprintf("  Permanent errors:   %d\n", stats.PermanentErrors))
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by crawlerd\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
