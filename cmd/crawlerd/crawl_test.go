package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/manthanjain6106/crawler-service/internal/model"
)

// TestNewCrawlCmd tests the crawl command creation.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "crawl [url...]" {
			t.Errorf("expected use 'crawl [url...]', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has long description", func(t *testing.T) {
		t.Parallel()
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	t.Run("requires at least one argument", func(t *testing.T) {
		t.Parallel()
		if cmd.Args == nil {
			t.Error("expected Args validator")
		}
	})

	t.Run("has depth flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("depth")
		if flag == nil {
			t.Fatal("expected depth flag")
		}
		if flag.Shorthand != "d" {
			t.Errorf("expected shorthand 'd', got %q", flag.Shorthand)
		}
	})

	t.Run("has timeout flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("timeout")
		if flag == nil {
			t.Fatal("expected timeout flag")
		}
		if flag.Shorthand != "t" {
			t.Errorf("expected shorthand 't', got %q", flag.Shorthand)
		}
	})

	t.Run("has retries flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("retries")
		if flag == nil {
			t.Fatal("expected retries flag")
		}
		if flag.Shorthand != "r" {
			t.Errorf("expected shorthand 'r', got %q", flag.Shorthand)
		}
	})

	t.Run("has header flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("header")
		if flag == nil {
			t.Fatal("expected header flag")
		}
		if flag.Shorthand != "H" {
			t.Errorf("expected shorthand 'H', got %q", flag.Shorthand)
		}
	})

	t.Run("has batch flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("batch")
		if flag == nil {
			t.Fatal("expected batch flag")
		}
		if flag.Shorthand != "b" {
			t.Errorf("expected shorthand 'b', got %q", flag.Shorthand)
		}
	})

	t.Run("has config flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("config")
		if flag == nil {
			t.Fatal("expected config flag")
		}
		if flag.Shorthand != "c" {
			t.Errorf("expected shorthand 'c', got %q", flag.Shorthand)
		}
	})

	t.Run("has json flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("json")
		if flag == nil {
			t.Fatal("expected json flag")
		}
		if flag.Shorthand != "j" {
			t.Errorf("expected shorthand 'j', got %q", flag.Shorthand)
		}
	})

	t.Run("has markdown flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("markdown")
		if flag == nil {
			t.Fatal("expected markdown flag")
		}
		if flag.Shorthand != "m" {
			t.Errorf("expected shorthand 'm', got %q", flag.Shorthand)
		}
	})

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.Shorthand != "o" {
			t.Errorf("expected shorthand 'o', got %q", flag.Shorthand)
		}
	})

	t.Run("has no-follow flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("no-follow")
		if flag == nil {
			t.Fatal("expected no-follow flag")
		}
		if flag.DefValue != "false" {
			t.Errorf("expected default 'false', got %q", flag.DefValue)
		}
	})

	t.Run("has no-save flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("no-save")
		if flag == nil {
			t.Fatal("expected no-save flag")
		}
	})

	t.Run("does not have db-dir flag (uses XDG)", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("db-dir")
		if flag != nil {
			t.Error("db-dir flag should not exist (always uses XDG data directory)")
		}
	})
}

// TestGetVerboseFlag tests the verbose flag retrieval.
func TestGetVerboseFlag(t *testing.T) {
	t.Run("returns false when flag not set", func(t *testing.T) {
		cmd := NewCrawlCmd()
		result := getVerboseFlag(cmd)
		if result {
			t.Error("expected false when flag not set")
		}
	})

	t.Run("returns value from parent verbose flag", func(t *testing.T) {
		root := NewRootCmd()
		// Set verbose flag to true
		_ = root.PersistentFlags().Set("verbose", "true")

		// Get crawl subcommand
		crawlCmd, _, err := root.Find([]string{"crawl"})
		if err != nil {
			t.Fatalf("failed to find crawl command: %v", err)
		}

		result := getVerboseFlag(crawlCmd)
		if !result {
			t.Error("expected true from parent verbose flag")
		}
	})
}

// TestParseHeaders tests custom header flag parsing.
func TestParseHeaders(t *testing.T) {
	t.Parallel()

	t.Run("returns nil for no headers", func(t *testing.T) {
		t.Parallel()
		headers, err := parseHeaders(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if headers != nil {
			t.Errorf("expected nil, got %v", headers)
		}
	})

	t.Run("parses a single header", func(t *testing.T) {
		t.Parallel()
		headers, err := parseHeaders([]string{"Authorization: Bearer token"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if headers["Authorization"] != "Bearer token" {
			t.Errorf("expected 'Bearer token', got %q", headers["Authorization"])
		}
	})

	t.Run("parses multiple headers", func(t *testing.T) {
		t.Parallel()
		headers, err := parseHeaders([]string{
			"X-First: one",
			"X-Second: two",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(headers) != 2 {
			t.Fatalf("expected 2 headers, got %d", len(headers))
		}
		if headers["X-First"] != "one" || headers["X-Second"] != "two" {
			t.Errorf("unexpected headers: %v", headers)
		}
	})

	t.Run("trims whitespace around key and value", func(t *testing.T) {
		t.Parallel()
		headers, err := parseHeaders([]string{"  X-Key  :  value  "})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if headers["X-Key"] != "value" {
			t.Errorf("expected 'value', got %q", headers["X-Key"])
		}
	})

	t.Run("allows empty value", func(t *testing.T) {
		t.Parallel()
		headers, err := parseHeaders([]string{"X-Empty:"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v, ok := headers["X-Empty"]; !ok || v != "" {
			t.Errorf("expected empty value, got %q (present: %v)", v, ok)
		}
	})

	t.Run("returns error for missing colon", func(t *testing.T) {
		t.Parallel()
		_, err := parseHeaders([]string{"not-a-header"})
		if err == nil {
			t.Error("expected error for header without colon")
		}
	})

	t.Run("returns error for empty key", func(t *testing.T) {
		t.Parallel()
		_, err := parseHeaders([]string{": value"})
		if err == nil {
			t.Error("expected error for empty header key")
		}
	})
}

// TestBuildConfig tests configuration building from flags.
func TestBuildConfig(t *testing.T) {
	t.Run("builds config with default values", func(t *testing.T) {
		cmd := NewCrawlCmd()
		cfg, opts, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg == nil {
			t.Fatal("expected non-nil config")
		}
		if len(opts.urls) != 1 || opts.urls[0] != "https://example.com" {
			t.Errorf("expected urls [https://example.com], got %v", opts.urls)
		}
		if opts.noFollow {
			t.Error("expected noFollow to be false by default")
		}
		if opts.jsonReport || opts.markdownReport {
			t.Error("expected plain text report by default")
		}
		if cfg.DBDir == "" {
			t.Error("expected DBDir to default to the XDG data directory")
		}
	})

	t.Run("builds config with custom depth", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("depth", "3")
		_, opts, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if opts.depth != 3 {
			t.Errorf("expected depth 3, got %d", opts.depth)
		}
	})

	t.Run("builds config with custom timeout", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("timeout", "5s")
		cfg, _, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Timeout != 5*time.Second {
			t.Errorf("expected timeout 5s, got %s", cfg.Timeout)
		}
	})

	t.Run("builds config with custom retries", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("retries", "7")
		cfg, _, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxRetries != 7 {
			t.Errorf("expected MaxRetries 7, got %d", cfg.MaxRetries)
		}
	})

	t.Run("raises burst limit when concurrency exceeds it", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("concurrency", "80")
		cfg, _, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxConcurrentRequests != 80 {
			t.Errorf("expected MaxConcurrentRequests 80, got %d", cfg.MaxConcurrentRequests)
		}
		if cfg.ConcurrencyBurstLimit < 80 {
			t.Errorf("expected burst limit >= 80, got %d", cfg.ConcurrencyBurstLimit)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("builds config with custom batch size", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("batch", "5")
		cfg, _, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.JobConcurrency != 5 {
			t.Errorf("expected JobConcurrency 5, got %d", cfg.JobConcurrency)
		}
	})

	t.Run("builds config with JSON flag", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("json", "true")
		_, opts, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !opts.jsonReport {
			t.Error("expected jsonReport to be true")
		}
	})

	t.Run("builds config with output file", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("output", "/tmp/report.json")
		_, opts, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if opts.reportFile != "/tmp/report.json" {
			t.Errorf("expected reportFile '/tmp/report.json', got %q", opts.reportFile)
		}
	})

	t.Run("no-save disables persistence", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("no-save", "true")
		cfg, _, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.DBDir != "" {
			t.Errorf("expected empty DBDir with --no-save, got %q", cfg.DBDir)
		}
	})

	t.Run("builds config with multiple urls", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_, opts, err := buildConfig(cmd, []string{
			"https://example.com", "https://example.org", "https://example.net",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(opts.urls) != 3 {
			t.Errorf("expected 3 urls, got %d", len(opts.urls))
		}
	})

	t.Run("builds config with valid config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, ".crawlerd")

		content := []byte(`
rate_limit:
  default_limit: 5
  window_seconds: 30
  domains:
    api.example.com: 2
crawl:
  timeout_seconds: 15
  max_retries: 1
`)
		if err := os.WriteFile(configPath, content, 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", configPath)
		cfg, _, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.DefaultRateLimit != 5 {
			t.Errorf("expected DefaultRateLimit 5, got %d", cfg.DefaultRateLimit)
		}
		if cfg.RateLimitWindow != 30*time.Second {
			t.Errorf("expected window 30s, got %s", cfg.RateLimitWindow)
		}
		if cfg.DomainRateLimits["api.example.com"] != 2 {
			t.Errorf("expected api.example.com limit 2, got %d", cfg.DomainRateLimits["api.example.com"])
		}
		if cfg.Timeout != 15*time.Second {
			t.Errorf("expected timeout 15s, got %s", cfg.Timeout)
		}
		if cfg.MaxRetries != 1 {
			t.Errorf("expected MaxRetries 1, got %d", cfg.MaxRetries)
		}
	})

	t.Run("explicit flags override the config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, ".crawlerd")

		content := []byte("crawl:\n  max_retries: 1\n")
		if err := os.WriteFile(configPath, content, 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", configPath)
		_ = cmd.Flags().Set("retries", "9")
		cfg, _, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxRetries != 9 {
			t.Errorf("expected flag to win with MaxRetries 9, got %d", cfg.MaxRetries)
		}
	})

	t.Run("returns error for invalid config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.yaml")

		content := []byte(`{invalid yaml`)
		if err := os.WriteFile(configPath, content, 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", configPath)
		_, _, err := buildConfig(cmd, []string{"https://example.com"})
		if err == nil {
			t.Fatal("expected error for invalid config file")
		}
	})

	t.Run("returns error for missing explicit config file", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", filepath.Join(t.TempDir(), "does-not-exist"))
		_, _, err := buildConfig(cmd, []string{"https://example.com"})
		if err == nil {
			t.Fatal("expected error for missing config file")
		}
	})
}

// TestBuildRequest tests mapping crawl options onto a crawl request.
func TestBuildRequest(t *testing.T) {
	t.Parallel()

	t.Run("applies depth and follow settings", func(t *testing.T) {
		t.Parallel()
		opts := &crawlOptions{depth: 2, noFollow: true}
		req := buildRequest("https://example.com", opts)

		if req.URL != "https://example.com" {
			t.Errorf("expected URL 'https://example.com', got %q", req.URL)
		}
		if req.MaxDepth != 2 {
			t.Errorf("expected MaxDepth 2, got %d", req.MaxDepth)
		}
		if req.FollowLinks {
			t.Error("expected FollowLinks to be false")
		}
	})

	t.Run("follows links by default", func(t *testing.T) {
		t.Parallel()
		req := buildRequest("https://example.com", &crawlOptions{})
		if !req.FollowLinks {
			t.Error("expected FollowLinks to be true")
		}
	})

	t.Run("applies custom headers", func(t *testing.T) {
		t.Parallel()
		opts := &crawlOptions{headers: map[string]string{"X-Key": "value"}}
		req := buildRequest("https://example.com", opts)

		if req.CustomHeaders["X-Key"] != "value" {
			t.Errorf("expected custom header, got %v", req.CustomHeaders)
		}
	})

	t.Run("enables image extraction", func(t *testing.T) {
		t.Parallel()
		req := buildRequest("https://example.com", &crawlOptions{images: true})

		if !req.ExtractImages {
			t.Error("expected ExtractImages to be true")
		}
		if !req.ExtractImageAltText {
			t.Error("expected ExtractImageAltText to be true")
		}
	})
}

// sampleCrawlResult returns a completed result for report output tests.
func sampleCrawlResult() *model.CrawlResult {
	result := model.NewCrawlResult("crawl_test_0")
	result.Status = model.StatusCompleted
	result.TotalPages = 1
	result.Pages = []model.CrawledPage{
		{
			URL:        "https://example.com",
			StatusCode: 200,
			Title:      "Example",
			CrawledAt:  time.Now(),
		},
	}
	result.CompletedAt = time.Now()
	return result
}

// TestOutputReport tests the report output functionality.
func TestOutputReport(t *testing.T) {
	t.Run("outputs JSON report to file", func(t *testing.T) {
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "report.json")

		opts := &crawlOptions{jsonReport: true, reportFile: outputPath}

		if err := outputReport(opts, sampleCrawlResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}

		var parsed map[string]interface{}
		if err := json.Unmarshal(content, &parsed); err != nil {
			t.Fatalf("failed to parse JSON: %v", err)
		}
		if parsed["result"] == nil {
			t.Error("expected result field in JSON report")
		}
		if parsed["summary"] == nil {
			t.Error("expected summary field in JSON report")
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "subdir", "nested", "report.json")

		opts := &crawlOptions{jsonReport: true, reportFile: outputPath}

		if err := outputReport(opts, sampleCrawlResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			t.Error("expected output file to be created in nested directory")
		}
	})

	t.Run("outputs Markdown report to file", func(t *testing.T) {
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "report.md")

		opts := &crawlOptions{markdownReport: true, reportFile: outputPath}

		if err := outputReport(opts, sampleCrawlResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if !strings.Contains(string(content), "# Crawl Report") {
			t.Error("expected Markdown heading in report")
		}
	})

	t.Run("outputs plain text report to file", func(t *testing.T) {
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "report.txt")

		opts := &crawlOptions{reportFile: outputPath}

		if err := outputReport(opts, sampleCrawlResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if !strings.Contains(string(content), "https://example.com") {
			t.Error("expected report to contain crawled URL")
		}
	})

	t.Run("appends subsequent reports to the same file", func(t *testing.T) {
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "report.txt")

		opts := &crawlOptions{reportFile: outputPath}

		if err := outputReport(opts, sampleCrawlResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := outputReport(opts, sampleCrawlResult()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if strings.Count(string(content), "crawl_test_0") < 2 {
			t.Error("expected both reports in the output file")
		}
	})
}

// TestRunCrawlCmdNoArgs tests the crawl command with no arguments.
func TestRunCrawlCmdNoArgs(t *testing.T) {
	t.Parallel()

	rootCmd := NewRootCmd()
	rootCmd.SetArgs([]string{"crawl"})

	err := rootCmd.Execute()
	if err == nil {
		t.Error("expected error for no arguments")
	}
}

// TestRunCrawlCmdConflictingFormats tests the crawl command with both
// --json and --markdown.
func TestRunCrawlCmdConflictingFormats(t *testing.T) {
	t.Parallel()

	rootCmd := NewRootCmd()
	rootCmd.SetArgs([]string{"crawl", "--json", "--markdown", "--no-save", "https://example.com"})

	err := rootCmd.Execute()
	if err == nil {
		t.Error("expected error for conflicting report formats")
	}
	if !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("expected mutually exclusive error, got: %v", err)
	}
}
