package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Scrape.Concurrency < 1 {
		return fmt.Errorf("scrape.concurrency must be >= 1, got %d", cfg.Scrape.Concurrency)
	}
	if cfg.Scrape.Concurrency > 64 {
		return fmt.Errorf("scrape.concurrency must be <= 64, got %d", cfg.Scrape.Concurrency)
	}
	if cfg.Scrape.MaxArticles < 1 {
		return fmt.Errorf("scrape.max_articles must be >= 1, got %d", cfg.Scrape.MaxArticles)
	}
	if cfg.Scrape.MaxContainers < 1 {
		return fmt.Errorf("scrape.max_containers must be >= 1, got %d", cfg.Scrape.MaxContainers)
	}
	if cfg.Scrape.SectionArticles < 1 {
		return fmt.Errorf("scrape.section_articles must be >= 1, got %d", cfg.Scrape.SectionArticles)
	}
	if cfg.Scrape.MinContentLength < 0 {
		return fmt.Errorf("scrape.min_content_length must be >= 0, got %d", cfg.Scrape.MinContentLength)
	}

	if cfg.Fetch.RequestTimeout <= 0 {
		return fmt.Errorf("fetch.request_timeout must be > 0")
	}
	if cfg.Fetch.MaxBodySize <= 0 {
		return fmt.Errorf("fetch.max_body_size must be > 0")
	}
	if cfg.Fetch.MaxRedirects < 0 {
		return fmt.Errorf("fetch.max_redirects must be >= 0")
	}
	if cfg.Fetch.Retry.MaxAttempts < 1 {
		return fmt.Errorf("fetch.retry.max_attempts must be >= 1, got %d", cfg.Fetch.Retry.MaxAttempts)
	}
	if cfg.Fetch.Retry.InitialDelay <= 0 {
		return fmt.Errorf("fetch.retry.initial_delay must be > 0")
	}
	if cfg.Fetch.Retry.MaxDelay < cfg.Fetch.Retry.InitialDelay {
		return fmt.Errorf("fetch.retry.max_delay must be >= initial_delay")
	}
	if cfg.Fetch.Retry.Multiplier < 1 {
		return fmt.Errorf("fetch.retry.multiplier must be >= 1, got %g", cfg.Fetch.Retry.Multiplier)
	}

	if cfg.Throttle.DefaultDelay < 0 {
		return fmt.Errorf("throttle.default_delay must be >= 0")
	}
	for host, d := range cfg.Throttle.PerDomain {
		if d < 0 {
			return fmt.Errorf("throttle.per_domain[%s] must be >= 0", host)
		}
	}

	validFormats := map[string]bool{
		"json": true, "csv": true, "sqlite": true,
		"postgres": true, "mongo": true, "all": true,
	}
	if !validFormats[cfg.Storage.Format] {
		return fmt.Errorf("storage.format %q is not supported (valid: json, csv, sqlite, postgres, mongo, all)", cfg.Storage.Format)
	}
	if cfg.Storage.RetentionDays < 0 {
		return fmt.Errorf("storage.retention_days must be >= 0, got %d", cfg.Storage.RetentionDays)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.API.Mode != "debug" && cfg.API.Mode != "release" && cfg.API.Mode != "test" {
		return fmt.Errorf("api.mode must be debug/release/test, got %q", cfg.API.Mode)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is usable as a scrape target.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
