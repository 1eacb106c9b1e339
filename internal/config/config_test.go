package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))

	require.Equal(t, 50, cfg.Scrape.MaxArticles)
	require.Equal(t, 30, cfg.Scrape.MaxContainers)
	require.Equal(t, 2*time.Second, cfg.Throttle.DefaultDelay)
	require.Equal(t, 3, cfg.Fetch.Retry.MaxAttempts)
	require.NotEmpty(t, cfg.Fetch.UserAgents)
}

func TestRetryBackoff(t *testing.T) {
	r := RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
	}

	require.Equal(t, 2*time.Second, r.Backoff(1))
	require.Equal(t, 4*time.Second, r.Backoff(2))
	require.Equal(t, 8*time.Second, r.Backoff(3))
	require.Equal(t, 10*time.Second, r.Backoff(4), "backoff must cap at max_delay")
	require.Equal(t, 10*time.Second, r.Backoff(10))
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "habari.yaml")
	content := `
scrape:
  max_articles: 25
  concurrency: 3
throttle:
  default_delay: 5s
  per_domain:
    nation.africa: 1s
fetch:
  retry:
    max_attempts: 5
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 25, cfg.Scrape.MaxArticles)
	require.Equal(t, 3, cfg.Scrape.Concurrency)
	require.Equal(t, 5*time.Second, cfg.Throttle.DefaultDelay)
	require.Equal(t, time.Second, cfg.Throttle.PerDomain["nation.africa"])
	require.Equal(t, 5, cfg.Fetch.Retry.MaxAttempts)
	require.Equal(t, "debug", cfg.Logging.Level)

	// Untouched keys keep their defaults.
	require.Equal(t, 30, cfg.Scrape.MaxContainers)
	require.Equal(t, "json", cfg.Storage.Format)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load("/nonexistent/habari.yaml")
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HABARI_SCRAPE_MAX_ARTICLES", "7")
	t.Setenv("HABARI_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Scrape.MaxArticles)
	require.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Scrape.Concurrency = 0 }},
		{"huge concurrency", func(c *Config) { c.Scrape.Concurrency = 100 }},
		{"zero max articles", func(c *Config) { c.Scrape.MaxArticles = 0 }},
		{"zero timeout", func(c *Config) { c.Fetch.RequestTimeout = 0 }},
		{"zero retry attempts", func(c *Config) { c.Fetch.Retry.MaxAttempts = 0 }},
		{"max delay below initial", func(c *Config) { c.Fetch.Retry.MaxDelay = time.Second }},
		{"negative throttle", func(c *Config) { c.Throttle.DefaultDelay = -time.Second }},
		{"bad storage format", func(c *Config) { c.Storage.Format = "xml" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "pretty" }},
		{"bad api mode", func(c *Config) { c.API.Mode = "production" }},
		{"bad metrics port", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.Error(t, Validate(cfg))
		})
	}
}

func TestValidateURL(t *testing.T) {
	require.NoError(t, ValidateURL("https://example.com"))
	require.NoError(t, ValidateURL("http://example.com/path"))
	require.Error(t, ValidateURL("ftp://example.com"))
	require.Error(t, ValidateURL("example.com"))
	require.Error(t, ValidateURL("https://"))
}
