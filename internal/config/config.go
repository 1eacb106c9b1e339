package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for Habari.
type Config struct {
	Scrape   ScrapeConfig   `mapstructure:"scrape"   yaml:"scrape"`
	Fetch    FetchConfig    `mapstructure:"fetch"    yaml:"fetch"`
	Throttle ThrottleConfig `mapstructure:"throttle" yaml:"throttle"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
	Sources  SourcesConfig  `mapstructure:"sources"  yaml:"sources"`
}

// ScrapeConfig controls the aggregation run.
type ScrapeConfig struct {
	Concurrency      int  `mapstructure:"concurrency"        yaml:"concurrency"`
	MaxArticles      int  `mapstructure:"max_articles"       yaml:"max_articles"`
	MaxContainers    int  `mapstructure:"max_containers"     yaml:"max_containers"`
	SectionArticles  int  `mapstructure:"section_articles"   yaml:"section_articles"`
	FetchFullContent bool `mapstructure:"fetch_full_content" yaml:"fetch_full_content"`
	MinContentLength int  `mapstructure:"min_content_length" yaml:"min_content_length"`
}

// FetchConfig controls the HTTP client.
type FetchConfig struct {
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	RotateUserAgent bool          `mapstructure:"rotate_user_agent" yaml:"rotate_user_agent"`
	UserAgents      []string      `mapstructure:"user_agents"       yaml:"user_agents"`
	Retry           RetryConfig   `mapstructure:"retry"             yaml:"retry"`
	Browser         BrowserConfig `mapstructure:"browser"           yaml:"browser"`
}

// RetryConfig controls transient-failure retries.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"  yaml:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"     yaml:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"    yaml:"multiplier"`
}

// Backoff returns how long to sleep before the attempt following the
// given number of failures: InitialDelay doubled per extra failure and
// capped at MaxDelay.
func (r RetryConfig) Backoff(failures int) time.Duration {
	delay := r.InitialDelay
	for i := 1; i < failures; i++ {
		delay = time.Duration(float64(delay) * r.Multiplier)
		if delay >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if delay > r.MaxDelay {
		return r.MaxDelay
	}
	return delay
}

// BrowserConfig controls the headless browser used for sources that
// render their listings with JavaScript.
type BrowserConfig struct {
	Enabled    bool          `mapstructure:"enabled"     yaml:"enabled"`
	NavTimeout time.Duration `mapstructure:"nav_timeout" yaml:"nav_timeout"`
	Stealth    bool          `mapstructure:"stealth"     yaml:"stealth"`
}

// ThrottleConfig controls per-domain request pacing.
type ThrottleConfig struct {
	DefaultDelay time.Duration            `mapstructure:"default_delay" yaml:"default_delay"`
	PerDomain    map[string]time.Duration `mapstructure:"per_domain"    yaml:"per_domain"`
}

// StorageConfig controls persistence and export.
type StorageConfig struct {
	Format          string `mapstructure:"format"           yaml:"format"`
	OutputDir       string `mapstructure:"output_dir"       yaml:"output_dir"`
	SQLitePath      string `mapstructure:"sqlite_path"      yaml:"sqlite_path"`
	PostgresURL     string `mapstructure:"postgres_url"     yaml:"postgres_url"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
	RetentionDays   int    `mapstructure:"retention_days"   yaml:"retention_days"`
}

// APIConfig controls the REST server.
type APIConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	Mode string `mapstructure:"mode" yaml:"mode"` // debug, release, test
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// SourcesConfig controls where the source table comes from.
type SourcesConfig struct {
	// File points at a YAML source table that replaces the builtin
	// one. Empty means use the builtin sources.
	File string `mapstructure:"file" yaml:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scrape: ScrapeConfig{
			Concurrency:      6,
			MaxArticles:      50,
			MaxContainers:    30,
			SectionArticles:  15,
			FetchFullContent: false,
			MinContentLength: 100,
		},
		Fetch: FetchConfig{
			RequestTimeout:  30 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
			RotateUserAgent: true,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
			},
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 2 * time.Second,
				MaxDelay:     10 * time.Second,
				Multiplier:   2,
			},
			Browser: BrowserConfig{
				Enabled:    false,
				NavTimeout: 30 * time.Second,
				Stealth:    true,
			},
		},
		Throttle: ThrottleConfig{
			DefaultDelay: 2 * time.Second,
		},
		Storage: StorageConfig{
			Format:          "json",
			OutputDir:       "./data",
			SQLitePath:      "./data/habari.db",
			MongoDatabase:   "habari",
			MongoCollection: "articles",
			RetentionDays:   30,
		},
		API: APIConfig{
			Addr: ":5000",
			Mode: "release",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
