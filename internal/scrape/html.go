package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/habarihub/habari/internal/normalize"
	"github.com/habarihub/habari/internal/types"
)

// scrapeListing fetches a listing page and extracts one article per
// matched container, stopping after maxContainers matches.
func (s *Scraper) scrapeListing(ctx context.Context, pageURL, selector string, maxContainers int) ([]*types.Article, error) {
	resp, err := s.client.Get(ctx, pageURL)
	if err != nil {
		return nil, &types.ScrapeError{Source: s.source.Name, Stage: "listing", Err: err}
	}

	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ScrapeError{Source: s.source.Name, Stage: "listing", Err: err}
	}
	if s.metrics != nil {
		s.metrics.PageScrapes.Add(1)
	}

	if selector == "" {
		selector = "article"
	}

	var articles []*types.Article
	doc.Find(selector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if maxContainers > 0 && i >= maxContainers {
			return false
		}
		if article := s.parseContainer(sel); article != nil {
			articles = append(articles, article)
		}
		return true
	})

	s.logger.Debug("parsed listing", "url", pageURL, "articles", len(articles))
	return articles, nil
}

// parseContainer extracts the article fields from one listing
// container using the source's field selectors, falling back to the
// conventional element for any selector left blank.
func (s *Scraper) parseContainer(sel *goquery.Selection) *types.Article {
	sels := s.source.Selectors

	title := extractText(sel, orDefault(sels.Headline, "h2"))
	link := extractAttr(sel, orDefault(sels.Link, "a"), "href")
	if title == "" || link == "" {
		return nil
	}

	return s.build(rawArticle{
		title:     title,
		link:      link,
		summary:   extractText(sel, orDefault(sels.Summary, "p")),
		author:    extractText(sel, orDefault(sels.Author, ".author")),
		image:     extractImage(sel, orDefault(sels.Image, "img")),
		published: extractDate(sel, orDefault(sels.Date, "time")),
	})
}

func orDefault(selector, fallback string) string {
	if selector == "" {
		return fallback
	}
	return selector
}

func extractText(sel *goquery.Selection, selector string) string {
	return strings.TrimSpace(sel.Find(selector).First().Text())
}

func extractAttr(sel *goquery.Selection, selector, attr string) string {
	val, _ := sel.Find(selector).First().Attr(attr)
	return strings.TrimSpace(val)
}

// extractImage reads the image location, preferring src and falling
// back to the lazy-load attributes sites park the real URL in.
func extractImage(sel *goquery.Selection, selector string) string {
	img := sel.Find(selector).First()
	if img.Length() == 0 {
		return ""
	}
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		if val, ok := img.Attr(attr); ok && strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

// extractDate parses the element's datetime attribute when present,
// otherwise its text.
func extractDate(sel *goquery.Selection, selector string) *time.Time {
	el := sel.Find(selector).First()
	if el.Length() == 0 {
		return nil
	}
	raw, ok := el.Attr("datetime")
	if !ok || strings.TrimSpace(raw) == "" {
		raw = el.Text()
	}
	if t, parsed := normalize.ParseDate(raw); parsed {
		return &t
	}
	return nil
}
