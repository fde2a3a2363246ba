package report

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/manthanjain6106/crawler-service/internal/model"
)

// Summary condenses a crawl result to the figures a reader wants first:
// outcome, page counts, error counts, and retry behavior.
type Summary struct {
	// TaskID identifies the crawl task.
	TaskID string `json:"task_id"`

	// SeedURL is the URL the crawl started from.
	SeedURL string `json:"seed_url"`

	// Status is the crawl's final lifecycle state.
	Status model.CrawlStatus `json:"status"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the crawl ran.
	Duration time.Duration `json:"duration"`

	// TotalPages is the number of pages visited.
	TotalPages int `json:"total_pages"`

	// SuccessfulPages is the number of pages fetched without error.
	SuccessfulPages int `json:"successful_pages"`

	// FailedPages is the number of pages whose fetch ultimately failed.
	FailedPages int `json:"failed_pages"`

	// MaxDepthReached is the deepest traversal depth visited.
	MaxDepthReached int `json:"max_depth_reached"`

	// Errors holds the human-readable error messages of failed pages.
	Errors []string `json:"errors,omitempty"`

	// RetryStats is the crawl's retry counter snapshot.
	RetryStats model.RetryStats `json:"retry_stats"`
}

// NewSummary builds a Summary from a crawl result.
func NewSummary(result *model.CrawlResult) *Summary {
	s := &Summary{
		TaskID:     result.TaskID,
		Status:     result.Status,
		StartedAt:  result.StartedAt,
		Duration:   result.Duration,
		TotalPages: result.TotalPages,
		Errors:     append([]string(nil), result.Errors...),
		RetryStats: result.RetryStats,
	}

	if len(result.Pages) > 0 {
		s.SeedURL = result.Pages[0].URL
	}

	for i := range result.Pages {
		page := &result.Pages[i]
		if page.Success() {
			s.SuccessfulPages++
		} else {
			s.FailedPages++
		}
		if page.Depth > s.MaxDepthReached {
			s.MaxDepthReached = page.Depth
		}
	}

	return s
}

// SuccessRate returns the fraction of pages fetched successfully, or zero
// when nothing was fetched.
func (s *Summary) SuccessRate() float64 {
	if s.TotalPages == 0 {
		return 0
	}
	return float64(s.SuccessfulPages) / float64(s.TotalPages)
}

// HasErrors reports whether any page failed.
func (s *Summary) HasErrors() bool {
	return s.FailedPages > 0 || len(s.Errors) > 0
}

// statusText renders a crawl status for display, e.g. "In Progress".
func statusText(status model.CrawlStatus) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(status), "_", " "))
}
