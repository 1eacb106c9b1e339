// Package habari provides a public SDK for embedding the Habari news
// aggregator as a library.
//
// Example usage:
//
//	agg, err := habari.New(
//	    habari.WithConcurrency(5),
//	    habari.WithOutput("json", "./data"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer agg.Close()
//
//	articles, stats := agg.ScrapeAll(context.Background())
//	fmt.Printf("scraped %d articles from %d sources\n",
//	    len(articles), len(stats.BySource))
//
//	saved, err := agg.Export(context.Background(), articles)
package habari

import (
	"context"
	"log/slog"
	"time"

	"github.com/habarihub/habari/internal/config"
	"github.com/habarihub/habari/internal/engine"
	"github.com/habarihub/habari/internal/observability"
	"github.com/habarihub/habari/internal/store"
	"github.com/habarihub/habari/internal/types"
)

// Article is a single normalized news article.
type Article = types.Article

// Region identifies the geographic coverage of a source.
type Region = types.Region

// RunStats summarizes one scrape run.
type RunStats = engine.RunStats

// Supported regions.
const (
	RegionKenya = types.RegionKenya
	RegionUSA   = types.RegionUSA
)

// Aggregator is the high-level API for using Habari as a library.
type Aggregator struct {
	cfg    *config.Config
	engine *engine.Engine
	logger *slog.Logger
}

// Option configures an Aggregator.
type Option func(*config.Config)

// WithConcurrency sets the number of sources scraped in parallel.
func WithConcurrency(n int) Option {
	return func(c *config.Config) { c.Scrape.Concurrency = n }
}

// WithMaxArticles caps how many articles are kept per source.
func WithMaxArticles(n int) Option {
	return func(c *config.Config) { c.Scrape.MaxArticles = n }
}

// WithFullContent enables fetching full article bodies from each
// article page instead of keeping only feed summaries.
func WithFullContent() Option {
	return func(c *config.Config) { c.Scrape.FetchFullContent = true }
}

// WithThrottleDelay sets the default per-domain politeness delay.
func WithThrottleDelay(d time.Duration) Option {
	return func(c *config.Config) { c.Throttle.DefaultDelay = d }
}

// WithDomainDelay overrides the politeness delay for one domain.
func WithDomainDelay(domain string, d time.Duration) Option {
	return func(c *config.Config) {
		if c.Throttle.PerDomain == nil {
			c.Throttle.PerDomain = make(map[string]time.Duration)
		}
		c.Throttle.PerDomain[domain] = d
	}
}

// WithOutput sets the export format and output directory.
func WithOutput(format, dir string) Option {
	return func(c *config.Config) {
		c.Storage.Format = format
		c.Storage.OutputDir = dir
	}
}

// WithSQLite stores articles in the SQLite database at path.
func WithSQLite(path string) Option {
	return func(c *config.Config) {
		c.Storage.Format = "sqlite"
		c.Storage.SQLitePath = path
	}
}

// WithUserAgent pins a single User-Agent instead of rotating.
func WithUserAgent(ua string) Option {
	return func(c *config.Config) {
		c.Fetch.UserAgents = []string{ua}
		c.Fetch.RotateUserAgent = false
	}
}

// WithSourcesFile loads source definitions from the given YAML file
// instead of the built-in registry.
func WithSourcesFile(path string) Option {
	return func(c *config.Config) { c.Sources.File = path }
}

// WithBrowser enables headless-browser fetching for sources that
// require JavaScript rendering.
func WithBrowser() Option {
	return func(c *config.Config) { c.Fetch.Browser.Enabled = true }
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(c *config.Config) { c.Logging.Level = "debug" }
}

// New creates an Aggregator with the given options applied on top of
// the default configuration.
func New(opts ...Option) (*Aggregator, error) {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Aggregator{cfg: cfg, engine: eng, logger: logger}, nil
}

// ScrapeAll scrapes every configured source and returns the
// deduplicated articles along with run statistics.
func (a *Aggregator) ScrapeAll(ctx context.Context) ([]*Article, *RunStats) {
	return a.engine.ScrapeAll(ctx)
}

// ScrapeRegion scrapes only sources in the given region. Unknown
// regions yield no articles.
func (a *Aggregator) ScrapeRegion(ctx context.Context, region string) []*Article {
	return a.engine.ScrapeRegion(ctx, region)
}

// ScrapeSource scrapes a single source by name. The match is
// case-insensitive.
func (a *Aggregator) ScrapeSource(ctx context.Context, name string) []*Article {
	return a.engine.ScrapeSource(ctx, name)
}

// ListSources returns the configured source names grouped by region.
func (a *Aggregator) ListSources() map[string][]string {
	return a.engine.ListSources()
}

// Articles returns every article collected since the last Clear.
func (a *Aggregator) Articles() []*Article {
	return a.engine.Articles()
}

// Stats returns statistics for the most recent run, or nil before the
// first run.
func (a *Aggregator) Stats() *RunStats {
	return a.engine.Stats()
}

// Clear drops all collected articles.
func (a *Aggregator) Clear() {
	a.engine.Clear()
}

// Export writes articles through the configured storage backend and
// returns how many were saved. Passing nil exports everything
// collected so far.
func (a *Aggregator) Export(ctx context.Context, articles []*Article) (int, error) {
	if articles == nil {
		articles = a.engine.Articles()
	}

	st, err := store.New(a.cfg.Storage, a.logger)
	if err != nil {
		return 0, err
	}

	n, err := st.Upsert(ctx, articles)
	if cerr := st.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Close releases resources held by the aggregator.
func (a *Aggregator) Close() error {
	return a.engine.Close()
}
