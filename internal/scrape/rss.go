package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/habarihub/habari/internal/normalize"
	"github.com/habarihub/habari/internal/types"
)

// scrapeFeed fetches and parses the source's RSS feed. The feed body
// goes through the regular fetch client so throttling, header rotation
// and retries apply to feed URLs the same as to pages.
func (s *Scraper) scrapeFeed(ctx context.Context) ([]*types.Article, error) {
	resp, err := s.client.Get(ctx, s.source.RSSFeed)
	if err != nil {
		return nil, &types.ScrapeError{Source: s.source.Name, Stage: "feed", Err: err}
	}

	feed, err := s.feed.ParseString(string(resp.Body))
	if err != nil {
		return nil, &types.ScrapeError{Source: s.source.Name, Stage: "feed", Err: err}
	}
	if s.metrics != nil {
		s.metrics.FeedScrapes.Add(1)
	}

	var articles []*types.Article
	for _, item := range feed.Items {
		if article := s.articleFromFeedItem(item); article != nil {
			articles = append(articles, article)
		}
	}

	s.logger.Debug("parsed feed", "feed", s.source.RSSFeed, "entries", len(feed.Items), "articles", len(articles))
	return articles, nil
}

// articleFromFeedItem converts one feed entry, or nil when the entry
// fails validation.
func (s *Scraper) articleFromFeedItem(item *gofeed.Item) *types.Article {
	raw := rawArticle{
		title:      item.Title,
		link:       strings.TrimSpace(item.Link),
		summary:    item.Description,
		image:      feedImage(item),
		published:  feedDate(item),
		categories: item.Categories,
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		raw.author = item.Authors[0].Name
	} else if item.Author != nil {
		raw.author = item.Author.Name
	}
	return s.build(raw)
}

// feedDate picks the entry timestamp: the parsed publish date when the
// feed library recognized the format, then the parsed update date, then
// our own parse of the raw publish string.
func feedDate(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		return &t
	}
	if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		return &t
	}
	if item.Published != "" {
		if t, ok := normalize.ParseDate(item.Published); ok {
			return &t
		}
	}
	return nil
}

// feedImage finds an entry image: media RSS content, then media
// thumbnail, then the first image enclosure.
func feedImage(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, key := range []string{"content", "thumbnail"} {
			for _, ext := range media[key] {
				if u := ext.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	return ""
}
