package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Region identifies the geographic market a source belongs to.
type Region string

const (
	// RegionKenya covers Kenyan news outlets.
	RegionKenya Region = "kenya"

	// RegionUSA covers US news outlets.
	RegionUSA Region = "usa"
)

// Regions returns every supported region in presentation order.
func Regions() []Region {
	return []Region{RegionKenya, RegionUSA}
}

// ParseRegion maps case-insensitive input to a known Region.
func ParseRegion(raw string) (Region, error) {
	switch Region(strings.ToLower(strings.TrimSpace(raw))) {
	case RegionKenya:
		return RegionKenya, nil
	case RegionUSA:
		return RegionUSA, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRegion, raw)
}

// String returns the lowercase region name.
func (r Region) String() string {
	return string(r)
}

// Article represents a single canonical news record. Once built its
// identity never changes; scraping the same story again produces a new
// value carrying the same ID.
type Article struct {
	// ID is a stable hash of the article URL and title.
	ID string `json:"id"`

	// Title is the cleaned headline.
	Title string `json:"title"`

	// URL is the absolute https link to the story.
	URL string `json:"url"`

	// Summary is the cleaned teaser or description text.
	Summary string `json:"summary,omitempty"`

	// Content is the full article body when full-content fetching is on.
	Content string `json:"content,omitempty"`

	// Author is the byline, if one was found.
	Author string `json:"author,omitempty"`

	// ImageURL points at the lead image, if one was found.
	ImageURL string `json:"image_url,omitempty"`

	// PublishedDate is the publication time, nil when unknown.
	PublishedDate *time.Time `json:"published_date,omitempty"`

	// ScrapedAt is when this record was built.
	ScrapedAt time.Time `json:"scraped_at"`

	// SourceName is the human name of the outlet.
	SourceName string `json:"source_name"`

	// SourceURL is the outlet's base URL.
	SourceURL string `json:"source_url"`

	// Region is the market the source belongs to.
	Region Region `json:"region"`

	// Categories are the section labels, in feed order.
	Categories []string `json:"categories"`
}

// ArticleParams carries pre-normalized fields into NewArticle.
type ArticleParams struct {
	Title         string
	URL           string
	Summary       string
	Content       string
	Author        string
	ImageURL      string
	PublishedDate *time.Time
	SourceName    string
	SourceURL     string
	Region        string
	Categories    []string
}

// NewArticle validates params and assembles the canonical record,
// stamping the identity hash and scrape time. Title and URL must be
// non-empty and the region must be a known one.
func NewArticle(p ArticleParams) (*Article, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, ErrMissingTitle
	}
	if strings.TrimSpace(p.URL) == "" {
		return nil, ErrMissingURL
	}
	region, err := ParseRegion(p.Region)
	if err != nil {
		return nil, err
	}
	return &Article{
		ID:            ArticleID(p.URL, p.Title),
		Title:         p.Title,
		URL:           p.URL,
		Summary:       p.Summary,
		Content:       p.Content,
		Author:        p.Author,
		ImageURL:      p.ImageURL,
		PublishedDate: p.PublishedDate,
		ScrapedAt:     time.Now().UTC(),
		SourceName:    p.SourceName,
		SourceURL:     p.SourceURL,
		Region:        region,
		Categories:    append([]string(nil), p.Categories...),
	}, nil
}

// ArticleID derives the stable identifier for a url and title pair.
// Equal inputs always produce equal IDs.
func ArticleID(url, title string) string {
	sum := sha256.Sum256([]byte(url + title))
	return hex.EncodeToString(sum[:8])
}

// JoinCategories flattens category labels for single-column formats.
func JoinCategories(categories []string) string {
	return strings.Join(categories, "|")
}

// SplitCategories reverses JoinCategories. Empty input yields nil.
func SplitCategories(flat string) []string {
	if flat == "" {
		return nil
	}
	return strings.Split(flat, "|")
}

// HasCategory reports whether the article carries the given label,
// compared case-insensitively.
func (a *Article) HasCategory(category string) bool {
	for _, c := range a.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// Age returns how long ago the article was published, or zero when the
// publication time is unknown.
func (a *Article) Age(now time.Time) time.Duration {
	if a.PublishedDate == nil {
		return 0
	}
	return now.Sub(*a.PublishedDate)
}
