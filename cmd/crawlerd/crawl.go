package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/manthanjain6106/crawler-service/internal/config"
	"github.com/manthanjain6106/crawler-service/internal/crawler"
	"github.com/manthanjain6106/crawler-service/internal/database"
	"github.com/manthanjain6106/crawler-service/internal/jobs"
	"github.com/manthanjain6106/crawler-service/internal/log"
	"github.com/manthanjain6106/crawler-service/internal/model"
	"github.com/manthanjain6106/crawler-service/internal/ratelimit"
	"github.com/manthanjain6106/crawler-service/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl one or more websites",
		Long: `Crawl fetches the given URLs and follows their internal links
breadth-first up to the configured depth.

Each URL becomes a crawl task. Tasks run concurrently, share one
per-domain rate limiter, and are stored in the local task database so
results can be inspected later with "crawlerd tasks".

Examples:
  # Crawl a single site two levels deep
  crawlerd crawl --depth 2 https://example.com

  # Crawl several sites concurrently
  crawlerd crawl https://example.com https://example.org

  # Only fetch the seed pages, without following links
  crawlerd crawl --no-follow https://example.com

  # Output a JSON report to a file
  crawlerd crawl --json --output report.json https://example.com

  # Send an authenticated request
  crawlerd crawl --header "Authorization: Bearer token" https://example.com

Configuration file (.crawlerd) example:
  rate_limit:
    default_limit: 10
    window_seconds: 60
    domains:
      api.example.com: 5
  crawl:
    timeout_seconds: 30
    max_retries: 3`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", 0,
		"Maximum crawl depth from the seed URL (0 = unlimited)")
	cmd.Flags().Bool("no-follow", false,
		"Fetch only the seed URLs without following links")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("retries", "r", config.DefaultMaxRetries,
		"Retry budget per URL for transient failures")
	cmd.Flags().StringArrayP("header", "H", nil,
		`Custom request header in "Key: Value" form (repeatable)`)

	// Extraction flags
	cmd.Flags().Bool("images", false,
		"Extract image URLs and alt text in addition to the defaults")

	// Concurrency and rate limiting flags
	cmd.Flags().Int("concurrency", config.DefaultMaxConcurrentRequests,
		"Maximum concurrent requests per crawl")
	cmd.Flags().Int("rate-limit", config.DefaultDomainRateLimit,
		"Per-domain request budget per rate-limit window")
	cmd.Flags().IntP("batch", "b", config.DefaultJobConcurrency,
		"Number of crawl tasks to run concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .crawlerd in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-save", false,
		"Do not persist tasks to the local task database")

	return cmd
}

// crawlOptions holds the flag values that are not part of the service
// config: what to crawl and how to report it.
type crawlOptions struct {
	urls     []string
	depth    int
	noFollow bool
	headers  map[string]string
	images   bool

	jsonReport     bool
	markdownReport bool
	reportFile     string
	noSave         bool
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, opts, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if opts.jsonReport && opts.markdownReport {
		return errors.New("--json and --markdown are mutually exclusive")
	}

	// Set up structured logging with credential sanitization
	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runCrawl(ctx, cfg, opts, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config and crawl options from cobra command flags.
// Precedence: built-in defaults, then the config file, then explicit flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, *crawlOptions, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	// Load the config file first so explicitly set flags win.
	// If the user explicitly specified a config file path, error if not
	// found; otherwise silently run on defaults.
	configFlag, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	configPath := config.FindConfigFile(configFlag)
	if configPath != "" {
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cf.Apply(cfg)
	} else if configFlag != "" {
		return nil, nil, fmt.Errorf("configuration file not found: %s", configFlag)
	}

	if cmd.Flags().Changed("timeout") {
		cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
		if err != nil {
			return nil, nil, err
		}
	}
	if cmd.Flags().Changed("retries") {
		cfg.MaxRetries, err = cmd.Flags().GetInt("retries")
		if err != nil {
			return nil, nil, err
		}
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.MaxConcurrentRequests, err = cmd.Flags().GetInt("concurrency")
		if err != nil {
			return nil, nil, err
		}
		if cfg.MaxConcurrentRequests > cfg.ConcurrencyBurstLimit {
			cfg.ConcurrencyBurstLimit = cfg.MaxConcurrentRequests
		}
	}
	if cmd.Flags().Changed("rate-limit") {
		cfg.DefaultRateLimit, err = cmd.Flags().GetInt("rate-limit")
		if err != nil {
			return nil, nil, err
		}
	}
	if cmd.Flags().Changed("batch") {
		cfg.JobConcurrency, err = cmd.Flags().GetInt("batch")
		if err != nil {
			return nil, nil, err
		}
	}

	opts := &crawlOptions{urls: args}

	opts.depth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, nil, err
	}
	opts.noFollow, err = cmd.Flags().GetBool("no-follow")
	if err != nil {
		return nil, nil, err
	}
	opts.images, err = cmd.Flags().GetBool("images")
	if err != nil {
		return nil, nil, err
	}

	headerFlags, err := cmd.Flags().GetStringArray("header")
	if err != nil {
		return nil, nil, err
	}
	opts.headers, err = parseHeaders(headerFlags)
	if err != nil {
		return nil, nil, err
	}

	opts.jsonReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, nil, err
	}
	opts.markdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, nil, err
	}
	opts.reportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, nil, err
	}
	opts.noSave, err = cmd.Flags().GetBool("no-save")
	if err != nil {
		return nil, nil, err
	}

	if !opts.noSave {
		cfg.DBDir = config.XDGDataDir()
	}

	return cfg, opts, nil
}

// parseHeaders converts "Key: Value" flag values into a header map.
func parseHeaders(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	headers := make(map[string]string, len(values))
	for _, v := range values {
		key, value, found := strings.Cut(v, ":")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid header %q (expected \"Key: Value\")", v)
		}
		headers[key] = value
	}
	return headers, nil
}

// buildRequest creates the crawl request for one seed URL.
func buildRequest(url string, opts *crawlOptions) model.CrawlRequest {
	req := model.DefaultCrawlRequest(url)
	req.MaxDepth = opts.depth
	req.FollowLinks = !opts.noFollow
	req.CustomHeaders = opts.headers
	if opts.images {
		req.ExtractImages = true
		req.ExtractImageAltText = true
	}
	return req
}

// runCrawl executes the crawl tasks and reports their results.
func runCrawl(ctx context.Context, cfg *config.Config, opts *crawlOptions, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"urls", opts.urls,
		"depth", opts.depth,
		"batch", cfg.JobConcurrency,
		"save", cfg.DBDir != "",
	)

	// Open the task database unless persistence is disabled
	var store *database.TaskDB
	if cfg.DBDir != "" {
		var err error
		store, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open task database: %w", err)
		}
		defer store.Close()
		logger.Info("task database opened", "dir", cfg.DBDir)
	}

	// One limiter shared by all tasks so per-domain budgets hold across
	// the whole batch.
	limiter := ratelimit.New(
		cfg.RateLimitEnabled,
		cfg.DefaultRateLimit,
		cfg.RateLimitWindow,
		ratelimit.WithLogger(logger),
		ratelimit.WithOverrides(cfg.DomainRateLimits),
	)

	runnerOpts := []jobs.RunnerOption{
		jobs.WithRunnerLogger(logger),
		jobs.WithConcurrency(cfg.JobConcurrency),
	}
	if store != nil {
		runnerOpts = append(runnerOpts, jobs.WithStore(store))
	}
	runner := jobs.NewRunner(func() *crawler.Crawler {
		return crawler.New(cfg, crawler.WithLogger(logger), crawler.WithLimiter(limiter))
	}, runnerOpts...)

	tasks := make([]*model.CrawlTask, len(opts.urls))
	now := time.Now().Unix()
	for i, url := range opts.urls {
		taskID := fmt.Sprintf("crawl_%d_%d", now, i)
		tasks[i] = model.NewCrawlTask(taskID, buildRequest(url, opts))
	}

	startTime := time.Now()

	// Stream reports as tasks finish
	var mu sync.Mutex
	var reportErr error
	err := runner.RunWithCallback(ctx, tasks, func(result *model.CrawlResult, index int) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Printf("[%d/%d] Crawl finished: %s (%s, %d pages)\n",
			index+1, len(tasks), opts.urls[index], result.Status, result.TotalPages)

		if err := outputReport(opts, result); err != nil {
			logger.Error("report failed", "task_id", result.TaskID, "error", err)
			reportErr = err
		}
	})

	fmt.Printf("\nAll crawls finished in %s\n", time.Since(startTime).Round(time.Millisecond))

	if err != nil {
		return err
	}
	return reportErr
}

// outputReport writes one crawl result in the requested format.
func outputReport(opts *crawlOptions, result *model.CrawlResult) error {
	// Determine output destination
	var output *os.File
	if opts.reportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(opts.reportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports may contain fetched page content; keep them readable by
		// the owner only. Append so multi-task batches share one file.
		f, err := os.OpenFile(opts.reportFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	var writer report.Writer
	switch {
	case opts.jsonReport:
		writer = report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case opts.markdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output)
	}

	_, err := writer.Write(result)
	return err
}
