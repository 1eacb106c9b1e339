// Package engine orchestrates scrape runs: it owns the shared fetch
// client and throttler, fans the configured sources out over a bounded
// worker pool, and merges the results into a deduplicated collection.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/habarihub/habari/internal/config"
	"github.com/habarihub/habari/internal/fetch"
	"github.com/habarihub/habari/internal/observability"
	"github.com/habarihub/habari/internal/scrape"
	"github.com/habarihub/habari/internal/throttle"
	"github.com/habarihub/habari/internal/types"
)

// SourceScraper scrapes one configured source.
type SourceScraper interface {
	Scrape(ctx context.Context) ([]*types.Article, error)
}

// ScraperFactory builds the scraper for a source at run time.
type ScraperFactory func(src config.Source) SourceScraper

// Engine is the orchestrator for scrape runs.
type Engine struct {
	cfg       *config.Config
	registry  *config.Registry
	client    *fetch.Client
	renderer  *fetch.RenderClient
	throttler *throttle.Throttler
	metrics   *observability.Metrics
	logger    *slog.Logger

	scraperFor ScraperFactory

	mu         sync.Mutex
	collection *types.Collection
	lastStats  *RunStats
}

// New creates an engine with sources loaded per the configuration. A
// source table that fails to load is the one fatal configuration
// error.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	sources, err := config.LoadSources(cfg.Sources.File)
	if err != nil {
		return nil, err
	}
	registry, err := config.NewRegistry(sources)
	if err != nil {
		return nil, err
	}
	return NewWithRegistry(cfg, registry, logger)
}

// NewWithRegistry creates an engine over an already-built source
// registry.
func NewWithRegistry(cfg *config.Config, registry *config.Registry, logger *slog.Logger) (*Engine, error) {
	throttler := throttle.New(cfg.Throttle.DefaultDelay, cfg.Throttle.PerDomain)
	client, err := fetch.NewClient(cfg, throttler, logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		registry:   registry,
		client:     client,
		throttler:  throttler,
		logger:     logger.With("component", "engine"),
		collection: types.NewCollection(),
	}
	e.scraperFor = e.defaultScraper

	if cfg.Fetch.Browser.Enabled {
		renderer, err := fetch.NewRenderClient(cfg, throttler, logger)
		if err != nil {
			e.logger.Warn("browser renderer unavailable, using plain fetches", "error", err)
		} else {
			e.renderer = renderer
		}
	}
	return e, nil
}

// SetMetrics attaches a metrics collector to the engine and its fetch
// client.
func (e *Engine) SetMetrics(m *observability.Metrics) {
	e.metrics = m
	e.client.SetMetrics(m)
}

// SetScraperFactory replaces how per-source scrapers are built.
func (e *Engine) SetScraperFactory(f ScraperFactory) {
	e.scraperFor = f
}

func (e *Engine) defaultScraper(src config.Source) SourceScraper {
	getter := fetch.Getter(e.client)
	if src.RenderJS && e.renderer != nil {
		getter = e.renderer
	}
	s := scrape.New(src, getter, e.cfg.Scrape, e.logger)
	if e.metrics != nil {
		s.SetMetrics(e.metrics)
	}
	return s
}

// ScrapeAll scrapes every enabled source and returns the deduplicated
// articles with the run's statistics.
func (e *Engine) ScrapeAll(ctx context.Context) ([]*types.Article, *RunStats) {
	return e.run(ctx, e.registry.Enabled())
}

// ScrapeRegion scrapes the enabled sources of one region. An unknown
// region is logged and yields an empty result, never an error.
func (e *Engine) ScrapeRegion(ctx context.Context, region string) []*types.Article {
	r, err := types.ParseRegion(region)
	if err != nil {
		e.logger.Error("unknown region", "region", region)
		return nil
	}
	articles, _ := e.run(ctx, e.registry.ByRegion(r))
	return articles
}

// ScrapeSource scrapes a single source by name, case-insensitively.
// An unknown name is logged and yields an empty result, never an
// error.
func (e *Engine) ScrapeSource(ctx context.Context, name string) []*types.Article {
	src, ok := e.registry.Get(name)
	if !ok {
		e.logger.Error("unknown source", "source", name)
		return nil
	}
	articles, _ := e.run(ctx, []config.Source{*src})
	return articles
}

// run scrapes the given sources with bounded parallelism. A failing
// source is recorded in the stats and never aborts the run; results
// are merged and deduplicated only after every source has finished.
func (e *Engine) run(ctx context.Context, sources []config.Source) ([]*types.Article, *RunStats) {
	stats := newRunStats()
	if e.metrics != nil {
		e.metrics.RunsTotal.Add(1)
	}
	e.logger.Info("run starting", "sources", len(sources), "concurrency", e.cfg.Scrape.Concurrency)

	concurrency := e.cfg.Scrape.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([][]*types.Article, len(sources))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)
		go func(i int, src config.Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = e.scrapeOne(ctx, src, stats)
		}(i, src)
	}

	// Dedup is only sound over the complete set; a duplicate arriving
	// after a partial merge would be missed.
	wg.Wait()

	run := types.NewCollection()
	for _, articles := range results {
		run.AddAll(articles)
	}
	stats.finish(run.Len())

	e.mu.Lock()
	e.collection.AddAll(run.Articles())
	e.lastStats = stats
	e.mu.Unlock()

	e.logger.Info("run finished",
		"articles", run.Len(),
		"errors", len(stats.Errors),
		"duration", stats.Duration().String(),
	)
	return run.Articles(), stats
}

// scrapeOne runs a single source, converting any failure, panic
// included, into a recorded stats error.
func (e *Engine) scrapeOne(ctx context.Context, src config.Source, stats *RunStats) (articles []*types.Article) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("source scraper panicked", "source", src.Name, "panic", r)
			stats.recordError(src.Name, fmt.Errorf("panic: %v", r))
			if e.metrics != nil {
				e.metrics.SourceErrors.Add(1)
			}
			articles = nil
		}
	}()

	if e.metrics != nil {
		e.metrics.ActiveSources.Add(1)
		defer e.metrics.ActiveSources.Add(-1)
	}

	e.logger.Info("scraping source", "source", src.Name, "region", src.Region)
	scraped, err := e.scraperFor(src).Scrape(ctx)
	if err != nil {
		e.logger.Error("source scrape failed", "source", src.Name, "error", err)
		stats.recordError(src.Name, err)
		if e.metrics != nil {
			e.metrics.SourceErrors.Add(1)
		}
		return nil
	}

	stats.recordSource(src.Name, src.Region, len(scraped))
	if e.metrics != nil {
		e.metrics.ArticlesScraped.Add(int64(len(scraped)))
	}
	return scraped
}

// ListSources returns source names grouped by region.
func (e *Engine) ListSources() map[string][]string {
	return e.registry.Names()
}

// Registry exposes the source table.
func (e *Engine) Registry() *config.Registry {
	return e.registry
}

// Articles returns every article accumulated across runs, first-seen
// order.
func (e *Engine) Articles() []*types.Article {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collection.Articles()
}

// ArticlesByRegion returns accumulated articles for one region.
func (e *Engine) ArticlesByRegion(region string) []*types.Article {
	r, err := types.ParseRegion(region)
	if err != nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collection.ByRegion(r)
}

// ArticlesBySource returns accumulated articles for one source name.
func (e *Engine) ArticlesBySource(name string) []*types.Article {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collection.BySource(name)
}

// Stats returns the most recent run's statistics, or nil before any
// run.
func (e *Engine) Stats() *RunStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastStats
}

// Clear drops all accumulated articles.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.collection = types.NewCollection()
	e.lastStats = nil
}

// Close releases the browser renderer if one was started.
func (e *Engine) Close() error {
	if e.renderer != nil {
		return e.renderer.Close()
	}
	return nil
}
