// Package scrape turns a configured news source into articles. Each
// source is scraped feed-first: when an RSS feed is configured it is
// tried before any HTML listing, and the CSS-selector path only runs
// when the feed produced nothing.
package scrape

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/habarihub/habari/internal/config"
	"github.com/habarihub/habari/internal/fetch"
	"github.com/habarihub/habari/internal/normalize"
	"github.com/habarihub/habari/internal/observability"
	"github.com/habarihub/habari/internal/types"
)

// Scraper pulls articles from a single configured news source.
type Scraper struct {
	source   config.Source
	client   fetch.Getter
	cfg      config.ScrapeConfig
	logger   *slog.Logger
	metrics  *observability.Metrics
	feed     *gofeed.Parser
	strategy listingStrategy
}

// New creates a scraper for the given source. The listing strategy is
// chosen from the source name so outlets with non-standard layouts get
// their specialized handling.
func New(source config.Source, client fetch.Getter, cfg config.ScrapeConfig, logger *slog.Logger) *Scraper {
	return &Scraper{
		source:   source,
		client:   client,
		cfg:      cfg,
		logger:   logger.With("component", "scraper", "source", source.Name),
		feed:     gofeed.NewParser(),
		strategy: strategyFor(source.Name),
	}
}

// SetMetrics attaches a metrics collector. Safe to skip for tests.
func (s *Scraper) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// Source returns the configuration this scraper was built from.
func (s *Scraper) Source() config.Source {
	return s.source
}

// Scrape collects articles from the source. The RSS feed is tried
// first when one is configured; a feed error is logged and the HTML
// listing takes over. The result is capped at the per-source article
// limit.
func (s *Scraper) Scrape(ctx context.Context) ([]*types.Article, error) {
	var articles []*types.Article

	if s.source.RSSFeed != "" {
		feedArticles, err := s.scrapeFeed(ctx)
		if err != nil {
			s.logger.Warn("feed scrape failed, trying html listing", "feed", s.source.RSSFeed, "error", err)
		}
		articles = append(articles, feedArticles...)
	}

	if len(articles) == 0 {
		htmlArticles, err := s.strategy(ctx, s)
		if err != nil {
			return nil, err
		}
		articles = append(articles, htmlArticles...)
	}

	if s.cfg.MaxArticles > 0 && len(articles) > s.cfg.MaxArticles {
		articles = articles[:s.cfg.MaxArticles]
	}

	if s.cfg.FetchFullContent {
		s.fillContent(ctx, articles)
	}

	s.logger.Info("scraped source", "articles", len(articles))
	return articles, nil
}

// rawArticle carries extracted fields before cleaning and validation.
type rawArticle struct {
	title      string
	link       string
	summary    string
	author     string
	image      string
	published  *time.Time
	categories []string
}

// build normalizes the raw fields and assembles a validated article.
// Returns nil when the record is not worth keeping: blank title or
// link, a link outside the source's domain, or a non-article URL.
func (s *Scraper) build(raw rawArticle) *types.Article {
	title := normalize.CleanText(raw.title, 500)
	link := normalize.URL(raw.link, s.source.BaseURL)
	if title == "" || link == "" {
		return nil
	}
	if !normalize.IsArticleURL(link, s.source.BaseURL) {
		s.logger.Debug("dropping non-article url", "url", link)
		s.dropped()
		return nil
	}

	categories := raw.categories
	if len(categories) == 0 {
		categories = s.source.Categories
	}

	article, err := types.NewArticle(types.ArticleParams{
		Title:         title,
		URL:           link,
		Summary:       normalize.CleanText(raw.summary, 2000),
		Author:        normalize.CleanText(raw.author, 0),
		ImageURL:      normalize.URL(raw.image, s.source.BaseURL),
		PublishedDate: raw.published,
		SourceName:    s.source.Name,
		SourceURL:     s.source.BaseURL,
		Region:        string(s.source.Region),
		Categories:    categories,
	})
	if err != nil {
		s.logger.Debug("dropping invalid article", "url", link, "error", err)
		s.dropped()
		return nil
	}
	return article
}

func (s *Scraper) dropped() {
	if s.metrics != nil {
		s.metrics.ArticlesDropped.Add(1)
	}
}
