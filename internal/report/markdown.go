package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/manthanjain6106/crawler-service/internal/model"
)

// MarkdownWriter outputs results in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full result in Markdown format: the summary sections
// plus a per-page table and error details.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	summary := NewSummary(result)
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeOutcome(md, summary)
	w.writePages(md, result)
	w.writeErrors(md, result)
	w.writeRetryStats(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs only the summary sections in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeOutcome(md, summary)
	w.writeRetryStats(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *Summary) {
	md.H1("Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Task ID", "`" + summary.TaskID + "`"},
			{"Seed URL", "`" + summary.SeedURL + "`"},
			{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", summary.Duration.String()},
			{"Status", w.getStatusText(summary)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on the crawl outcome.
func (w *MarkdownWriter) getStatusText(summary *Summary) string {
	switch summary.Status {
	case model.StatusCompleted:
		return "✅ " + statusText(summary.Status)
	case model.StatusFailed, model.StatusCancelled:
		return "❌ " + statusText(summary.Status)
	default:
		return statusText(summary.Status)
	}
}

// writeOutcome writes the fetch outcome section with counts and a chart.
func (w *MarkdownWriter) writeOutcome(md *markdown.Markdown, summary *Summary) {
	md.H2("Fetch Outcome")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"🟢 Successful", strconv.Itoa(summary.SuccessfulPages)},
			{"🔴 Failed", strconv.Itoa(summary.FailedPages)},
			{"**Total**", "**" + strconv.Itoa(summary.TotalPages) + "**"},
		},
	})
	md.PlainText("")

	if summary.TotalPages > 0 {
		w.writePieChart(md, summary)
	}

	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart for the fetch outcome split.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Fetch Outcome Distribution"),
		piechart.WithShowData(true),
	)

	if summary.SuccessfulPages > 0 {
		chart.LabelAndIntValue("Successful", uint64(summary.SuccessfulPages))
	}
	if summary.FailedPages > 0 {
		chart.LabelAndIntValue("Failed", uint64(summary.FailedPages))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on the crawl outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *Summary) {
	switch {
	case summary.Status != model.StatusCompleted:
		md.Cautionf(
			"The crawl did not complete (%s). Results below are partial.",
			statusText(summary.Status),
		)
	case summary.FailedPages > 0 && summary.SuccessRate() < 0.5:
		md.Warningf(
			"More than half of the visited pages failed (%d of %d).",
			summary.FailedPages, summary.TotalPages,
		)
	case summary.FailedPages > 0:
		md.Importantf(
			"%d page(s) could not be fetched; see the error details.",
			summary.FailedPages,
		)
	default:
		md.Tip("All pages were fetched successfully.")
	}
	md.PlainText("")
}

// writePages writes the per-page table.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Pages")
	md.PlainText("")

	if len(result.Pages) == 0 {
		md.PlainText("No pages were crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(result.Pages))
	for i := range result.Pages {
		page := &result.Pages[i]
		status := strconv.Itoa(page.StatusCode)
		if page.StatusCode == 0 {
			status = "-"
		}
		title := page.Title
		if title == "" {
			title = "-"
		}
		rows[i] = []string{
			truncateString(page.URL, 60),
			status,
			strconv.Itoa(page.Depth),
			truncateString(title, 40),
			page.ResponseTime.String(),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Depth", "Title", "Response Time"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeErrors writes the error details section.
func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, result *model.CrawlResult) {
	if len(result.StructuredErrors) == 0 {
		return
	}

	md.H2("Errors")
	md.PlainText("")

	rows := make([][]string, len(result.StructuredErrors))
	for i, crawlErr := range result.StructuredErrors {
		status := strconv.Itoa(crawlErr.StatusCode)
		if crawlErr.StatusCode == 0 {
			status = "-"
		}
		rows[i] = []string{
			truncateString(crawlErr.URL, 60),
			string(crawlErr.Type),
			status,
			strconv.Itoa(crawlErr.RetryAttempts),
			truncateString(crawlErr.Message, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Type", "Status", "Retries", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeRetryStats writes the retry statistics section.
func (w *MarkdownWriter) writeRetryStats(md *markdown.Markdown, summary *Summary) {
	stats := summary.RetryStats
	if stats == (model.RetryStats{}) {
		return
	}

	md.H2("Retry Statistics")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Total retries", strconv.Itoa(stats.TotalRetries)},
			{"Successful retries", strconv.Itoa(stats.SuccessfulRetries)},
			{"Failed retries", strconv.Itoa(stats.FailedRetries)},
			{"Transient errors", strconv.Itoa(stats.TransientErrors)},
			{"Permanent errors", strconv.Itoa(stats.PermanentErrors)},
		},
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by crawlerd*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
