package model

import (
	"time"
)

// CrawlStatus represents the lifecycle state of a crawl task.
type CrawlStatus string

// Crawl status values.
const (
	// StatusPending means the task has been created but not started.
	StatusPending CrawlStatus = "pending"

	// StatusInProgress means the crawl is currently running.
	StatusInProgress CrawlStatus = "in_progress"

	// StatusCompleted means the crawl finished normally. Individual pages
	// may still have failed; per-page failures never fail the crawl.
	StatusCompleted CrawlStatus = "completed"

	// StatusFailed means an internal fault aborted the traversal loop itself.
	StatusFailed CrawlStatus = "failed"

	// StatusCancelled means the caller abandoned the task before it ran.
	StatusCancelled CrawlStatus = "cancelled"
)

// ErrorType classifies a fetch failure for retry decisions.
type ErrorType string

// Error classification values.
const (
	// ErrorTransient covers failures that may succeed on retry:
	// timeouts, connection errors, 5xx responses, and 429 responses.
	ErrorTransient ErrorType = "transient"

	// ErrorPermanent covers failures that will not succeed on retry,
	// primarily 4xx responses other than 429.
	ErrorPermanent ErrorType = "permanent"

	// ErrorUnknown covers uncategorized failures. These are never retried.
	ErrorUnknown ErrorType = "unknown"
)

// CrawlRequest describes a single crawl operation.
// It is immutable for the duration of the crawl.
//
// Design decision: extraction toggles are individual booleans rather than a
// flag bitmask because callers set them from CLI flags and config files,
// where named fields are clearer and zero values give sensible defaults.
type CrawlRequest struct {
	// URL is the seed URL where traversal starts.
	URL string `json:"url"`

	// MaxDepth limits how many link levels to follow from the seed.
	// 0 means unlimited depth; traversal is then bounded only by
	// frontier exhaustion.
	MaxDepth int `json:"max_depth"`

	// FollowLinks enables enqueueing of discovered internal links.
	// When false only the seed URL is fetched.
	FollowLinks bool `json:"follow_links"`

	// ExtractText enables extraction of the page's visible text content.
	ExtractText bool `json:"extract_text"`

	// ExtractImages enables collection of image URLs.
	ExtractImages bool `json:"extract_images"`

	// ExtractLinks enables collection of anchor URLs. Link following
	// requires this to be set as well.
	ExtractLinks bool `json:"extract_links"`

	// ExtractHeadings enables collection of h1/h2/h3 heading text.
	ExtractHeadings bool `json:"extract_headings"`

	// ExtractImageAltText enables collection of image alt attributes.
	ExtractImageAltText bool `json:"extract_image_alt_text"`

	// ExtractCanonicalURL enables extraction of the rel=canonical link.
	ExtractCanonicalURL bool `json:"extract_canonical_url"`

	// CustomHeaders are merged into every request, overriding defaults.
	// Values may contain credentials; logging must go through the
	// sanitizing handler.
	CustomHeaders map[string]string `json:"custom_headers,omitempty"`

	// Timeout is the per-fetch timeout. Zero means use the configured
	// default.
	Timeout time.Duration `json:"timeout"`
}

// DefaultCrawlRequest returns a request for the given URL with link
// following on and the usual extraction defaults: text, links, headings,
// and canonical URL on; images and alt text off.
func DefaultCrawlRequest(url string) CrawlRequest {
	return CrawlRequest{
		URL:                 url,
		FollowLinks:         true,
		ExtractText:         true,
		ExtractLinks:        true,
		ExtractHeadings:     true,
		ExtractCanonicalURL: true,
	}
}

// CrawlError is structured information about a failed fetch.
// It is immutable once created and is attached to the CrawledPage of the
// URL that ultimately failed.
type CrawlError struct {
	// Type is the retry-eligibility classification.
	Type ErrorType `json:"error_type"`

	// StatusCode is the HTTP status that produced the error, or 0 when
	// the failure happened before a response was received.
	StatusCode int `json:"status_code,omitempty"`

	// Message is a human-readable description of the failure.
	Message string `json:"message"`

	// URL is the URL whose fetch failed.
	URL string `json:"url"`

	// Timestamp records when the error was classified.
	Timestamp time.Time `json:"timestamp"`

	// RetryAttempts is the number of retries performed when the error
	// was created.
	RetryAttempts int `json:"retry_attempts"`

	// MaxRetries is the configured retry budget at the time of creation.
	MaxRetries int `json:"max_retries"`

	// IsRetryable reports whether the error was eligible for another
	// retry at the time of creation. An exhausted transient error has
	// IsRetryable false.
	IsRetryable bool `json:"is_retryable"`
}

// Headings groups extracted heading text by level.
// Only h1 through h3 are collected; deeper levels rarely carry
// structure worth indexing.
type Headings struct {
	H1 []string `json:"h1,omitempty"`
	H2 []string `json:"h2,omitempty"`
	H3 []string `json:"h3,omitempty"`
}

// Total returns the number of headings across all levels.
func (h Headings) Total() int {
	return len(h.H1) + len(h.H2) + len(h.H3)
}

// CrawledPage is the outcome of fetching one URL. Exactly one CrawledPage
// exists per visited URL regardless of how many retries the fetch took.
type CrawledPage struct {
	// URL is the URL as it was fetched (pre-normalization).
	URL string `json:"url"`

	// Title is the page title, empty when absent or not parsed.
	Title string `json:"title,omitempty"`

	// TextContent is the whitespace-collapsed visible text, populated
	// only when text extraction was requested.
	TextContent string `json:"text_content,omitempty"`

	// Images holds absolute image URLs discovered on the page.
	Images []string `json:"images,omitempty"`

	// Links holds absolute http(s) anchor URLs discovered on the page.
	Links []string `json:"links,omitempty"`

	// MetaDescription is the content of the description meta tag.
	MetaDescription string `json:"meta_description,omitempty"`

	// Headings holds heading text grouped by level.
	Headings Headings `json:"headings"`

	// ImageAltText holds non-empty alt attributes from images.
	ImageAltText []string `json:"image_alt_text,omitempty"`

	// CanonicalURL is the resolved rel=canonical link, if any.
	CanonicalURL string `json:"canonical_url,omitempty"`

	// StatusCode is the final HTTP status, or 0 when no response was
	// received.
	StatusCode int `json:"status_code"`

	// ResponseTime is the elapsed wall time of the fetch attempt
	// sequence, including retries.
	ResponseTime time.Duration `json:"response_time"`

	// CrawledAt is when the page fetch concluded.
	CrawledAt time.Time `json:"crawled_at"`

	// Depth is the distance from the seed URL in link hops.
	Depth int `json:"depth"`

	// Error is the terminal error when the fetch ultimately failed.
	Error *CrawlError `json:"error,omitempty"`

	// RetryAttempts is the number of retries the fetch consumed.
	RetryAttempts int `json:"retry_attempts"`
}

// Success reports whether the page fetch produced a non-error response.
// Status codes below 400 count as success for governor statistics.
func (p *CrawledPage) Success() bool {
	return p.Error == nil && p.StatusCode > 0 && p.StatusCode < 400
}

// RetryStats are crawl-scoped retry counters. They are owned by a single
// crawl instance so concurrent crawls never share state.
//
// At crawl end SuccessfulRetries+FailedRetries <= TotalRetries holds;
// equality is not guaranteed mid-crawl because a retry can be pending.
type RetryStats struct {
	// TotalRetries counts every retry that was scheduled.
	TotalRetries int `json:"total_retries"`

	// SuccessfulRetries counts fetches that succeeded after at least
	// one retry.
	SuccessfulRetries int `json:"successful_retries"`

	// FailedRetries counts fetches that exhausted their retry budget.
	FailedRetries int `json:"failed_retries"`

	// TransientErrors counts failures classified as transient.
	TransientErrors int `json:"transient_errors"`

	// PermanentErrors counts failures classified as permanent or unknown.
	PermanentErrors int `json:"permanent_errors"`
}

// CrawlResult aggregates everything produced by one crawl.
// It is created at crawl start, mutated during traversal, and frozen when
// the crawl ends.
type CrawlResult struct {
	// TaskID identifies the crawl task.
	TaskID string `json:"task_id"`

	// Status is the lifecycle state of the crawl.
	Status CrawlStatus `json:"status"`

	// TotalPages is the number of pages in Pages.
	TotalPages int `json:"total_pages"`

	// Pages holds one entry per visited URL.
	Pages []CrawledPage `json:"pages"`

	// Errors holds human-readable error strings, kept for backward
	// compatibility with the original service's flat error list.
	Errors []string `json:"errors"`

	// StructuredErrors holds the CrawlError of every failed page.
	StructuredErrors []CrawlError `json:"structured_errors"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the crawl ended, successfully or not.
	CompletedAt time.Time `json:"completed_at"`

	// Duration is CompletedAt minus StartedAt.
	Duration time.Duration `json:"duration"`

	// RetryStats is a snapshot of the crawl's retry counters.
	RetryStats RetryStats `json:"retry_stats"`
}

// NewCrawlResult creates an in-progress result for the given task.
func NewCrawlResult(taskID string) *CrawlResult {
	return &CrawlResult{
		TaskID:           taskID,
		Status:           StatusInProgress,
		Pages:            make([]CrawledPage, 0),
		Errors:           make([]string, 0),
		StructuredErrors: make([]CrawlError, 0),
		StartedAt:        time.Now(),
	}
}

// CrawlTask pairs a request with its lifecycle state and eventual result
// for persistence.
type CrawlTask struct {
	// TaskID is the unique task identifier.
	TaskID string `json:"task_id"`

	// Request is the crawl request the task will execute.
	Request CrawlRequest `json:"request"`

	// Status is the task's lifecycle state.
	Status CrawlStatus `json:"status"`

	// Result is populated once the crawl finishes.
	Result *CrawlResult `json:"result,omitempty"`

	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the task last changed state.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCrawlTask creates a pending task for the given request.
func NewCrawlTask(taskID string, req CrawlRequest) *CrawlTask {
	now := time.Now()
	return &CrawlTask{
		TaskID:    taskID,
		Request:   req,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DomainStats is a point-in-time view of one domain's rate-limit window.
type DomainStats struct {
	// Limit is the effective per-window request limit.
	Limit int `json:"limit"`

	// Current is the number of requests recorded inside the window.
	Current int `json:"current"`

	// Remaining is Limit minus Current, floored at zero.
	Remaining int `json:"remaining"`
}
