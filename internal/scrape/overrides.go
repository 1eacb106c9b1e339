package scrape

import (
	"context"
	"strings"

	"github.com/habarihub/habari/internal/types"
)

// listingStrategy is the HTML fallback for one source. The default
// scrapes the source's front page with its configured container
// selector; outlets whose layouts need different handling get a
// specialized strategy matched on the source name.
type listingStrategy func(ctx context.Context, s *Scraper) ([]*types.Article, error)

// strategyFor picks the listing strategy by source name. Matching is a
// case-insensitive substring test so "Nation Africa" and "Daily
// Nation" both get the Nation handling.
func strategyFor(name string) listingStrategy {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "nation"):
		return sectionStrategy(
			[]string{"/kenya/news", "/kenya/business", "/kenya/sports"},
			"article.story-card, .teaser-item",
		)
	case strings.Contains(lower, "standard"):
		return selectorStrategy(".article-wrapper, .story-teaser, article")
	case strings.Contains(lower, "cnn"):
		return selectorStrategy(".container__item, .card, .stack__cards")
	case strings.Contains(lower, "npr"):
		return sectionStrategy(
			[]string{"/sections/news/", "/sections/politics/"},
			".story-wrap, article.item",
		)
	default:
		return defaultStrategy
	}
}

func defaultStrategy(ctx context.Context, s *Scraper) ([]*types.Article, error) {
	return s.scrapeListing(ctx, s.source.BaseURL, s.source.Selectors.ArticleList, s.cfg.MaxContainers)
}

// selectorStrategy scrapes the front page with a fixed container
// selector in place of the configured one.
func selectorStrategy(selector string) listingStrategy {
	return func(ctx context.Context, s *Scraper) ([]*types.Article, error) {
		return s.scrapeListing(ctx, s.source.BaseURL, selector, s.cfg.MaxContainers)
	}
}

// sectionStrategy scrapes several section pages under the source's
// base URL, each with the per-section article cap. A failing section
// is logged and skipped; an error surfaces only when every section
// failed and nothing was collected.
func sectionStrategy(paths []string, selector string) listingStrategy {
	return func(ctx context.Context, s *Scraper) ([]*types.Article, error) {
		var articles []*types.Article
		var lastErr error

		for _, path := range paths {
			if ctx.Err() != nil {
				return articles, ctx.Err()
			}
			sectionURL := strings.TrimRight(s.source.BaseURL, "/") + path
			section, err := s.scrapeListing(ctx, sectionURL, selector, s.cfg.SectionArticles)
			if err != nil {
				s.logger.Debug("section scrape failed", "url", sectionURL, "error", err)
				lastErr = err
				continue
			}
			articles = append(articles, section...)
		}

		if len(articles) == 0 && lastErr != nil {
			return nil, lastErr
		}
		return articles, nil
	}
}
