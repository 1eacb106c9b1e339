package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/habarihub/habari/internal/config"
	"github.com/habarihub/habari/internal/types"
)

// stubScraper returns canned results, optionally after a delay.
type stubScraper struct {
	articles []*types.Article
	err      error
	delay    time.Duration
	panics   bool
}

func (s *stubScraper) Scrape(ctx context.Context) ([]*types.Article, error) {
	if s.panics {
		panic("selector table corrupted")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.articles, s.err
}

func testRegistry(t *testing.T) *config.Registry {
	t.Helper()
	sources := []config.Source{
		{Name: "Alpha Kenya", Region: types.RegionKenya, BaseURL: "https://alpha.example.com"},
		{Name: "Beta Kenya", Region: types.RegionKenya, BaseURL: "https://beta.example.com"},
		{Name: "Gamma Kenya", Region: types.RegionKenya, BaseURL: "https://gamma.example.com"},
		{Name: "Delta USA", Region: types.RegionUSA, BaseURL: "https://delta.example.com"},
		{Name: "Echo USA", Region: types.RegionUSA, BaseURL: "https://echo.example.com"},
		{Name: "Foxtrot USA", Region: types.RegionUSA, BaseURL: "https://foxtrot.example.com"},
	}
	registry, err := config.NewRegistry(sources)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return registry
}

func testEngine(t *testing.T, factory ScraperFactory) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := NewWithRegistry(config.DefaultConfig(), testRegistry(t), logger)
	if err != nil {
		t.Fatalf("NewWithRegistry failed: %v", err)
	}
	if factory != nil {
		e.SetScraperFactory(factory)
	}
	return e
}

func makeArticle(t *testing.T, title, url string, region types.Region, source string) *types.Article {
	t.Helper()
	a, err := types.NewArticle(types.ArticleParams{
		Title:      title,
		URL:        url,
		Region:     string(region),
		SourceName: source,
		SourceURL:  "https://" + strings.ToLower(strings.ReplaceAll(source, " ", "")) + ".example.com",
	})
	if err != nil {
		t.Fatalf("NewArticle failed: %v", err)
	}
	return a
}

func TestScrapeAllIsolatesFailures(t *testing.T) {
	e := testEngine(t, nil)
	e.SetScraperFactory(func(src config.Source) SourceScraper {
		if src.Name == "Gamma Kenya" {
			return &stubScraper{err: errors.New("connection refused")}
		}
		return &stubScraper{articles: []*types.Article{
			makeArticle(t, src.Name+" story one", src.BaseURL+"/news/one", src.Region, src.Name),
			makeArticle(t, src.Name+" story two", src.BaseURL+"/news/two", src.Region, src.Name),
		}}
	})

	articles, stats := e.ScrapeAll(context.Background())

	if len(articles) != 10 {
		t.Errorf("got %d articles, want 10 from the 5 healthy sources", len(articles))
	}
	if len(stats.Errors) != 1 {
		t.Fatalf("got %d errors, want exactly 1: %v", len(stats.Errors), stats.Errors)
	}
	if !strings.Contains(stats.Errors[0], "Gamma Kenya") {
		t.Errorf("error entry %q does not name the failed source", stats.Errors[0])
	}
	if stats.TotalArticles != 10 {
		t.Errorf("TotalArticles = %d, want 10", stats.TotalArticles)
	}
	if stats.ByRegion["kenya"] != 4 || stats.ByRegion["usa"] != 6 {
		t.Errorf("ByRegion = %v, want kenya:4 usa:6", stats.ByRegion)
	}
	if len(stats.BySource) != 5 {
		t.Errorf("BySource has %d entries, want 5: %v", len(stats.BySource), stats.BySource)
	}
	if _, ok := stats.BySource["Gamma Kenya"]; ok {
		t.Error("failed source must not appear in BySource")
	}
	if stats.EndTime.Before(stats.StartTime) {
		t.Error("EndTime before StartTime")
	}
}

func TestScrapeAllDeduplicatesLastWriteWins(t *testing.T) {
	shared := func(summary string, source string) *types.Article {
		a := makeArticle(t, "Same story", "https://alpha.example.com/news/same", types.RegionKenya, source)
		a.Summary = summary
		return a
	}

	e := testEngine(t, func(src config.Source) SourceScraper {
		switch src.Name {
		case "Alpha Kenya":
			return &stubScraper{articles: []*types.Article{shared("first version", src.Name)}}
		case "Beta Kenya":
			return &stubScraper{articles: []*types.Article{shared("second version", src.Name)}}
		default:
			return &stubScraper{}
		}
	})

	articles, stats := e.ScrapeAll(context.Background())

	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1 after dedup", len(articles))
	}
	// Merge order is source table order, so Beta's copy wins.
	if articles[0].Summary != "second version" {
		t.Errorf("summary = %q, want the later write to win", articles[0].Summary)
	}
	if stats.TotalArticles != 1 {
		t.Errorf("TotalArticles = %d, want deduplicated count", stats.TotalArticles)
	}
	// Raw per-source counts are pre-dedup.
	if stats.BySource["Alpha Kenya"] != 1 || stats.BySource["Beta Kenya"] != 1 {
		t.Errorf("BySource = %v", stats.BySource)
	}
}

func TestScrapeRegionFiltersSources(t *testing.T) {
	var mu sync.Mutex
	scraped := map[string]bool{}

	e := testEngine(t, nil)
	e.SetScraperFactory(func(src config.Source) SourceScraper {
		mu.Lock()
		scraped[src.Name] = true
		mu.Unlock()
		return &stubScraper{articles: []*types.Article{
			makeArticle(t, src.Name+" story", src.BaseURL+"/news/a", src.Region, src.Name),
		}}
	})

	articles := e.ScrapeRegion(context.Background(), "KENYA")

	if len(articles) != 3 {
		t.Errorf("got %d articles, want 3 from kenya sources", len(articles))
	}
	mu.Lock()
	defer mu.Unlock()
	if len(scraped) != 3 {
		t.Errorf("scraped %d sources, want 3: %v", len(scraped), scraped)
	}
	if scraped["Delta USA"] {
		t.Error("usa source scraped during a kenya run")
	}
}

func TestScrapeRegionUnknownIsEmpty(t *testing.T) {
	called := false
	e := testEngine(t, func(src config.Source) SourceScraper {
		called = true
		return &stubScraper{}
	})

	articles := e.ScrapeRegion(context.Background(), "mars")
	if articles != nil {
		t.Errorf("got %v, want nil for unknown region", articles)
	}
	if called {
		t.Error("scraper built for an unknown region")
	}
}

func TestScrapeSourceByName(t *testing.T) {
	e := testEngine(t, func(src config.Source) SourceScraper {
		return &stubScraper{articles: []*types.Article{
			makeArticle(t, src.Name+" story", src.BaseURL+"/news/a", src.Region, src.Name),
		}}
	})

	articles := e.ScrapeSource(context.Background(), "delta usa")
	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1", len(articles))
	}
	if articles[0].SourceName != "Delta USA" {
		t.Errorf("source = %q", articles[0].SourceName)
	}

	if got := e.ScrapeSource(context.Background(), "No Such Outlet"); got != nil {
		t.Errorf("unknown source returned %v, want nil", got)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32

	cfg := config.DefaultConfig()
	cfg.Scrape.Concurrency = 2
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := NewWithRegistry(cfg, testRegistry(t), logger)
	if err != nil {
		t.Fatal(err)
	}
	e.SetScraperFactory(func(src config.Source) SourceScraper {
		return scraperFunc(func(ctx context.Context) ([]*types.Article, error) {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			active.Add(-1)
			return nil, nil
		})
	})

	e.ScrapeAll(context.Background())

	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency %d exceeds limit 2", p)
	}
}

// scraperFunc adapts a function to SourceScraper.
type scraperFunc func(ctx context.Context) ([]*types.Article, error)

func (f scraperFunc) Scrape(ctx context.Context) ([]*types.Article, error) { return f(ctx) }

func TestPanickingScraperIsIsolated(t *testing.T) {
	e := testEngine(t, func(src config.Source) SourceScraper {
		if src.Name == "Alpha Kenya" {
			return &stubScraper{panics: true}
		}
		return &stubScraper{articles: []*types.Article{
			makeArticle(t, src.Name+" story", src.BaseURL+"/news/a", src.Region, src.Name),
		}}
	})

	articles, stats := e.ScrapeAll(context.Background())

	if len(articles) != 5 {
		t.Errorf("got %d articles, want 5 despite the panic", len(articles))
	}
	if len(stats.Errors) != 1 || !strings.Contains(stats.Errors[0], "panic") {
		t.Errorf("errors = %v, want one panic entry", stats.Errors)
	}
}

func TestArticlesAccumulateAcrossRuns(t *testing.T) {
	e := testEngine(t, func(src config.Source) SourceScraper {
		return &stubScraper{articles: []*types.Article{
			makeArticle(t, src.Name+" story", src.BaseURL+"/news/a", src.Region, src.Name),
		}}
	})

	e.ScrapeSource(context.Background(), "Alpha Kenya")
	e.ScrapeSource(context.Background(), "Delta USA")

	if got := len(e.Articles()); got != 2 {
		t.Errorf("accumulated %d articles, want 2", got)
	}
	if got := len(e.ArticlesByRegion("kenya")); got != 1 {
		t.Errorf("kenya articles = %d, want 1", got)
	}
	if got := len(e.ArticlesBySource("Delta USA")); got != 1 {
		t.Errorf("Delta USA articles = %d, want 1", got)
	}

	e.Clear()
	if got := len(e.Articles()); got != 0 {
		t.Errorf("after Clear, %d articles remain", got)
	}
	if e.Stats() != nil {
		t.Error("after Clear, stats should be nil")
	}
}

func TestListSources(t *testing.T) {
	e := testEngine(t, nil)
	names := e.ListSources()
	if len(names["kenya"]) != 3 || len(names["usa"]) != 3 {
		t.Errorf("ListSources = %v", names)
	}
	if names["kenya"][0] != "Alpha Kenya" {
		t.Errorf("kenya[0] = %q, want table order preserved", names["kenya"][0])
	}
}
