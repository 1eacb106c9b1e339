package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults from struct
	setDefaults(v, cfg)

	// Environment variable support
	v.SetEnvPrefix("HABARI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search default locations
		v.SetConfigName("habari")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".habari"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	return Load(path)
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("scrape.concurrency", cfg.Scrape.Concurrency)
	v.SetDefault("scrape.max_articles", cfg.Scrape.MaxArticles)
	v.SetDefault("scrape.max_containers", cfg.Scrape.MaxContainers)
	v.SetDefault("scrape.section_articles", cfg.Scrape.SectionArticles)
	v.SetDefault("scrape.fetch_full_content", cfg.Scrape.FetchFullContent)
	v.SetDefault("scrape.min_content_length", cfg.Scrape.MinContentLength)

	v.SetDefault("fetch.request_timeout", cfg.Fetch.RequestTimeout)
	v.SetDefault("fetch.follow_redirects", cfg.Fetch.FollowRedirects)
	v.SetDefault("fetch.max_redirects", cfg.Fetch.MaxRedirects)
	v.SetDefault("fetch.max_body_size", cfg.Fetch.MaxBodySize)
	v.SetDefault("fetch.idle_conn_timeout", cfg.Fetch.IdleConnTimeout)
	v.SetDefault("fetch.max_idle_conns", cfg.Fetch.MaxIdleConns)
	v.SetDefault("fetch.rotate_user_agent", cfg.Fetch.RotateUserAgent)
	v.SetDefault("fetch.user_agents", cfg.Fetch.UserAgents)
	v.SetDefault("fetch.retry.max_attempts", cfg.Fetch.Retry.MaxAttempts)
	v.SetDefault("fetch.retry.initial_delay", cfg.Fetch.Retry.InitialDelay)
	v.SetDefault("fetch.retry.max_delay", cfg.Fetch.Retry.MaxDelay)
	v.SetDefault("fetch.retry.multiplier", cfg.Fetch.Retry.Multiplier)
	v.SetDefault("fetch.browser.enabled", cfg.Fetch.Browser.Enabled)
	v.SetDefault("fetch.browser.nav_timeout", cfg.Fetch.Browser.NavTimeout)
	v.SetDefault("fetch.browser.stealth", cfg.Fetch.Browser.Stealth)

	v.SetDefault("throttle.default_delay", cfg.Throttle.DefaultDelay)

	v.SetDefault("storage.format", cfg.Storage.Format)
	v.SetDefault("storage.output_dir", cfg.Storage.OutputDir)
	v.SetDefault("storage.sqlite_path", cfg.Storage.SQLitePath)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)
	v.SetDefault("storage.retention_days", cfg.Storage.RetentionDays)

	v.SetDefault("api.addr", cfg.API.Addr)
	v.SetDefault("api.mode", cfg.API.Mode)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
