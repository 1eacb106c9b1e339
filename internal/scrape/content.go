package scrape

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/habarihub/habari/internal/fetch"
	"github.com/habarihub/habari/internal/normalize"
	"github.com/habarihub/habari/internal/types"
)

// contentSelectors are the containers article bodies usually live in,
// tried in order.
var contentSelectors = []string{
	"article",
	".article-content",
	".article-body",
	".story-content",
	".post-content",
	".entry-content",
	"main",
}

// FetchContent fetches an article page and extracts its body text.
// Returns empty without error when no selector yields enough text to
// count as a body.
func (s *Scraper) FetchContent(ctx context.Context, articleURL string) (string, error) {
	resp, err := s.client.Get(ctx, articleURL)
	if err != nil {
		return "", &types.ScrapeError{Source: s.source.Name, Stage: "content", Err: err}
	}
	return s.contentFrom(resp), nil
}

// contentFrom pulls the body text out of a fetched article page.
func (s *Scraper) contentFrom(resp *fetch.Response) string {
	doc, err := resp.Document()
	if err != nil {
		return ""
	}

	for _, selector := range contentSelectors {
		node := doc.Find(selector).First()
		if node.Length() == 0 {
			continue
		}
		clone := node.Clone()
		clone.Find("script, style, nav, aside, .ads, .advertisement").Remove()
		text := normalize.CleanText(clone.Text(), 0)
		if len(text) > s.cfg.MinContentLength {
			return text
		}
	}
	return ""
}

// fillContent fetches each article's page for its full body, and fills
// in the image and publish date from page metadata when the listing or
// feed had neither. Per-article fetch failures are logged and leave the
// article as scraped.
func (s *Scraper) fillContent(ctx context.Context, articles []*types.Article) {
	for _, article := range articles {
		if ctx.Err() != nil {
			return
		}
		resp, err := s.client.Get(ctx, article.URL)
		if err != nil {
			s.logger.Debug("content fetch failed", "url", article.URL, "error", err)
			continue
		}
		if text := s.contentFrom(resp); text != "" {
			article.Content = text
		}
		meta := ExtractMeta(resp.Body)
		if article.ImageURL == "" && meta.Image != "" {
			article.ImageURL = normalize.URL(meta.Image, s.source.BaseURL)
		}
		if article.PublishedDate == nil {
			article.PublishedDate = meta.Published
		}
	}
}

// PageMeta holds Open Graph fields pulled from an article page.
type PageMeta struct {
	Title       string
	Description string
	Image       string
	Published   *time.Time
}

// ExtractMeta reads Open Graph and article meta tags from a page.
// Parse failures yield a zero PageMeta.
func ExtractMeta(body []byte) PageMeta {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return PageMeta{}
	}

	meta := PageMeta{
		Title:       metaContent(doc, "og:title"),
		Description: metaContent(doc, "og:description"),
		Image:       metaContent(doc, "og:image"),
	}
	if raw := metaContent(doc, "article:published_time"); raw != "" {
		if t, ok := normalize.ParseDate(raw); ok {
			meta.Published = &t
		}
	}
	return meta
}

// metaContent finds a meta tag by property or name and returns its
// content attribute.
func metaContent(doc *html.Node, property string) string {
	expr := fmt.Sprintf(`//meta[@property=%q or @name=%q]`, property, property)
	node, err := htmlquery.Query(doc, expr)
	if err != nil || node == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.SelectAttr(node, "content"))
}
