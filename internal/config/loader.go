package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".crawlerd"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .crawlerd configuration file.
//
// Example:
//
//	rate_limit:
//	  enabled: true
//	  default_limit: 10
//	  window_seconds: 60
//	  domains:
//	    api.example.com: 5
//	    static.example.com: 60
//	crawl:
//	  timeout_seconds: 30
//	  max_retries: 3
//	  user_agent: "mybot/1.0"
type File struct {
	// RateLimit configures the per-domain rate limiter.
	RateLimit RateLimitFile `yaml:"rate_limit,omitempty"`

	// Crawl configures fetch and retry behavior.
	Crawl CrawlFile `yaml:"crawl,omitempty"`
}

// RateLimitFile is the rate_limit section of the config file.
type RateLimitFile struct {
	// Enabled toggles per-domain rate limiting. Nil means keep the
	// built-in default (enabled).
	Enabled *bool `yaml:"enabled,omitempty"`

	// DefaultLimit is the per-domain request budget per window.
	DefaultLimit int `yaml:"default_limit,omitempty"`

	// WindowSeconds is the sliding window width in seconds.
	WindowSeconds int `yaml:"window_seconds,omitempty"`

	// Domains maps a domain to an override budget.
	Domains map[string]int `yaml:"domains,omitempty"`
}

// CrawlFile is the crawl section of the config file.
type CrawlFile struct {
	// TimeoutSeconds is the default per-fetch timeout in seconds.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`

	// MaxRetries is the retry budget per URL.
	// Nil means keep the built-in default.
	MaxRetries *int `yaml:"max_retries,omitempty"`

	// UserAgent overrides the default User-Agent header.
	UserAgent string `yaml:"user_agent,omitempty"`
}

// LoadConfigFile loads settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound; callers decide
// whether that is fatal based on whether the path was user-specified.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.RateLimit.Domains == nil {
		cf.RateLimit.Domains = make(map[string]int)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
//  1. If configPath is specified, use it directly
//  2. Look for .crawlerd in the current directory
//  3. Look for .crawlerd in the user's home directory
//
// Returns the path if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// Apply merges file settings into the config. Only fields actually set in
// the file override the config's current values, so flag and default
// precedence is preserved by calling Apply before flag handling.
func (cf *File) Apply(cfg *Config) {
	if cf.RateLimit.Enabled != nil {
		cfg.RateLimitEnabled = *cf.RateLimit.Enabled
	}
	if cf.RateLimit.DefaultLimit > 0 {
		cfg.DefaultRateLimit = cf.RateLimit.DefaultLimit
	}
	if cf.RateLimit.WindowSeconds > 0 {
		cfg.RateLimitWindow = time.Duration(cf.RateLimit.WindowSeconds) * time.Second
	}
	for domain, limit := range cf.RateLimit.Domains {
		cfg.DomainRateLimits[domain] = limit
	}
	if cf.Crawl.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(cf.Crawl.TimeoutSeconds) * time.Second
	}
	if cf.Crawl.MaxRetries != nil && *cf.Crawl.MaxRetries >= 0 {
		cfg.MaxRetries = *cf.Crawl.MaxRetries
	}
	if cf.Crawl.UserAgent != "" {
		cfg.UserAgent = cf.Crawl.UserAgent
	}
}
