package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/habarihub/habari/internal/types"
)

// Selectors names the CSS paths used to pull article fields out of a
// source's listing markup. Empty fields fall back to generic defaults
// during extraction.
type Selectors struct {
	ArticleList string `mapstructure:"article_list" yaml:"article_list"`
	Headline    string `mapstructure:"headline"     yaml:"headline"`
	Summary     string `mapstructure:"summary"      yaml:"summary"`
	Author      string `mapstructure:"author"       yaml:"author"`
	Date        string `mapstructure:"date"         yaml:"date"`
	Link        string `mapstructure:"link"         yaml:"link"`
	Image       string `mapstructure:"image"        yaml:"image"`
}

// Source describes one news outlet: where to fetch it and how to read
// its markup.
type Source struct {
	Name       string       `mapstructure:"name"       yaml:"name"`
	Region     types.Region `mapstructure:"region"     yaml:"region"`
	BaseURL    string       `mapstructure:"base_url"   yaml:"base_url"`
	RSSFeed    string       `mapstructure:"rss_feed"   yaml:"rss_feed,omitempty"`
	Categories []string     `mapstructure:"categories" yaml:"categories"`
	Selectors  Selectors    `mapstructure:"selectors"  yaml:"selectors"`
	Enabled    *bool        `mapstructure:"enabled"    yaml:"enabled,omitempty"`
	RenderJS   bool         `mapstructure:"render_js"  yaml:"render_js,omitempty"`
}

// IsEnabled treats a missing enabled flag as on.
func (s *Source) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// sourceFile is the shape of a YAML source table.
type sourceFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadSources returns the source table. A non-empty path loads a YAML
// file replacing the builtin table; otherwise the builtin sources are
// used. Any malformed entry fails the whole load.
func LoadSources(path string) ([]Source, error) {
	if path == "" {
		return BuiltinSources(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	var f sourceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}
	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s: %w", path, types.ErrNoSources)
	}
	for i := range f.Sources {
		if err := validateSource(&f.Sources[i]); err != nil {
			return nil, fmt.Errorf("sources file %s, entry %d: %w", path, i, err)
		}
	}
	return f.Sources, nil
}

func validateSource(s *Source) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("source has no name")
	}
	region, err := types.ParseRegion(string(s.Region))
	if err != nil {
		return fmt.Errorf("source %q: %w", s.Name, err)
	}
	s.Region = region
	if err := ValidateURL(s.BaseURL); err != nil {
		return fmt.Errorf("source %q base_url: %w", s.Name, err)
	}
	if s.RSSFeed != "" {
		if err := ValidateURL(s.RSSFeed); err != nil {
			return fmt.Errorf("source %q rss_feed: %w", s.Name, err)
		}
	}
	return nil
}

// Registry indexes a validated source table for lookup by name and
// region.
type Registry struct {
	sources []Source
	byName  map[string]*Source
}

// NewRegistry validates the table and builds the lookup index. Name
// lookups are case-insensitive; duplicate names are rejected.
func NewRegistry(sources []Source) (*Registry, error) {
	if len(sources) == 0 {
		return nil, types.ErrNoSources
	}
	r := &Registry{
		sources: sources,
		byName:  make(map[string]*Source, len(sources)),
	}
	for i := range r.sources {
		if err := validateSource(&r.sources[i]); err != nil {
			return nil, err
		}
		key := strings.ToLower(r.sources[i].Name)
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("duplicate source name %q", r.sources[i].Name)
		}
		r.byName[key] = &r.sources[i]
	}
	return r, nil
}

// All returns every source in table order, enabled or not.
func (r *Registry) All() []Source {
	return r.sources
}

// Enabled returns the enabled sources in table order.
func (r *Registry) Enabled() []Source {
	var out []Source
	for _, s := range r.sources {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// ByRegion returns the enabled sources for one region, in table order.
func (r *Registry) ByRegion(region types.Region) []Source {
	var out []Source
	for _, s := range r.sources {
		if s.Region == region && s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// Get looks up a source by name, case-insensitively.
func (r *Registry) Get(name string) (*Source, bool) {
	s, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Names returns all source names grouped by region, in table order.
func (r *Registry) Names() map[string][]string {
	out := make(map[string][]string)
	for _, s := range r.sources {
		key := s.Region.String()
		out[key] = append(out[key], s.Name)
	}
	return out
}

// BuiltinSources returns the compiled-in source table.
func BuiltinSources() []Source {
	return []Source{
		// Kenya
		{
			Name:       "Nation Africa",
			Region:     types.RegionKenya,
			BaseURL:    "https://nation.africa",
			RSSFeed:    "https://nation.africa/kenya/news/rss",
			Categories: []string{"general", "politics", "business", "sports"},
			Selectors: Selectors{
				ArticleList: "article.story-card, div.article-item",
				Headline:    "h1, h2.headline, .story-title",
				Summary:     ".story-summary, .article-summary, p.lead",
				Author:      ".author-name, .byline, span.author",
				Date:        "time, .published-date, .date",
				Link:        `a[href*="/news/"], a[href*="/kenya/"]`,
				Image:       "img.story-image, figure img",
			},
		},
		{
			Name:       "The Standard",
			Region:     types.RegionKenya,
			BaseURL:    "https://www.standardmedia.co.ke",
			RSSFeed:    "https://www.standardmedia.co.ke/rss/headlines.php",
			Categories: []string{"general", "politics", "entertainment", "sports"},
			Selectors: Selectors{
				ArticleList: "article, .article-card, .news-item",
				Headline:    "h1, h2, .article-title",
				Summary:     ".article-excerpt, .summary, p.intro",
				Author:      ".author, .writer-name",
				Date:        "time, .date, .published",
				Link:        `a[href*="/article/"], a[href*="/news/"]`,
				Image:       "img.article-image, .featured-image img",
			},
		},
		{
			Name:       "Capital FM",
			Region:     types.RegionKenya,
			BaseURL:    "https://www.capitalfm.co.ke",
			Categories: []string{"business", "lifestyle", "news"},
			Selectors: Selectors{
				ArticleList: "article, .post, .news-card",
				Headline:    "h1, h2, .entry-title",
				Summary:     ".entry-excerpt, .post-summary",
				Author:      ".author-name, .byline",
				Date:        "time, .post-date",
				Link:        `a[href*="/news/"], a[href*="/business/"]`,
				Image:       "img.post-thumbnail, .featured-image img",
			},
		},
		{
			Name:       "Citizen Digital",
			Region:     types.RegionKenya,
			BaseURL:    "https://www.citizen.digital",
			Categories: []string{"general", "news", "entertainment"},
			Selectors: Selectors{
				ArticleList: "article, .story-item, .news-card",
				Headline:    "h1, h2, .story-title",
				Summary:     ".story-excerpt, .lead-text",
				Author:      ".author, .reporter",
				Date:        "time, .timestamp",
				Link:        `a[href*="/news/"]`,
				Image:       "img.story-image",
			},
		},
		{
			Name:       "Business Daily",
			Region:     types.RegionKenya,
			BaseURL:    "https://www.businessdailyafrica.com",
			RSSFeed:    "https://www.businessdailyafrica.com/rss",
			Categories: []string{"business", "markets", "economy"},
			Selectors: Selectors{
				ArticleList: "article, .article-item",
				Headline:    "h1, h2, .article-title",
				Summary:     ".article-summary, .teaser",
				Author:      ".author-name",
				Date:        "time, .date",
				Link:        `a[href*="/bd/"]`,
				Image:       "img.article-image",
			},
		},
		{
			Name:       "The Star Kenya",
			Region:     types.RegionKenya,
			BaseURL:    "https://www.the-star.co.ke",
			Categories: []string{"general", "politics", "sports"},
			Selectors: Selectors{
				ArticleList: "article, .article-card",
				Headline:    "h1, h2, .title",
				Summary:     ".excerpt, .summary",
				Author:      ".author",
				Date:        "time, .date",
				Link:        `a[href*="/news/"]`,
				Image:       "img.thumbnail",
			},
		},
		// USA
		{
			Name:       "CNN",
			Region:     types.RegionUSA,
			BaseURL:    "https://www.cnn.com",
			RSSFeed:    "http://rss.cnn.com/rss/cnn_topstories.rss",
			Categories: []string{"general", "politics", "world", "business"},
			Selectors: Selectors{
				ArticleList: "article, .card, .container__item",
				Headline:    "h1, h2, .container__headline",
				Summary:     ".container__text, p.paragraph",
				Author:      ".byline__name, .author",
				Date:        "time, .timestamp",
				Link:        `a[href*="/2025/"], a[href*="/2026/"]`,
				Image:       "img.image__dam, picture img",
			},
		},
		{
			Name:       "Fox News",
			Region:     types.RegionUSA,
			BaseURL:    "https://www.foxnews.com",
			RSSFeed:    "https://moxie.foxnews.com/google-publisher/latest.xml",
			Categories: []string{"general", "politics", "opinion"},
			Selectors: Selectors{
				ArticleList: "article, .article, .content-item",
				Headline:    "h1, h2, .headline",
				Summary:     ".dek, .article-summary",
				Author:      ".author-byline, .author",
				Date:        "time, .article-date",
				Link:        `a[href*="/news/"], a[href*="/politics/"]`,
				Image:       "img.article-image",
			},
		},
		{
			Name:       "NBC News",
			Region:     types.RegionUSA,
			BaseURL:    "https://www.nbcnews.com",
			RSSFeed:    "https://feeds.nbcnews.com/nbcnews/public/news",
			Categories: []string{"general", "politics", "business", "health"},
			Selectors: Selectors{
				ArticleList: "article, .wide-tease-item, .tease-card",
				Headline:    "h1, h2, .wide-tease-item__headline",
				Summary:     ".wide-tease-item__description",
				Author:      ".byline, .author",
				Date:        "time, .relative-time",
				Link:        `a[href*="/news/"]`,
				Image:       "img.wide-tease-item__image",
			},
		},
		{
			Name:       "CBS News",
			Region:     types.RegionUSA,
			BaseURL:    "https://www.cbsnews.com",
			RSSFeed:    "https://www.cbsnews.com/latest/rss/main",
			Categories: []string{"general", "politics", "entertainment"},
			Selectors: Selectors{
				ArticleList: "article, .item, .content-item",
				Headline:    "h1, h2, .item__hed",
				Summary:     ".item__dek, .description",
				Author:      ".byline, .author",
				Date:        "time, .timestamp",
				Link:        `a[href*="/news/"]`,
				Image:       "img.thumbnail",
			},
		},
		{
			Name:       "ABC News",
			Region:     types.RegionUSA,
			BaseURL:    "https://abcnews.go.com",
			RSSFeed:    "https://abcnews.go.com/abcnews/topstories",
			Categories: []string{"general", "politics", "international"},
			Selectors: Selectors{
				ArticleList: "article, .ContentRoll__Item, .news-item",
				Headline:    "h1, h2, .ContentRoll__Headline",
				Summary:     ".ContentRoll__Desc, .description",
				Author:      ".Byline, .author",
				Date:        "time, .timestamp",
				Link:        `a[href*="/story"]`,
				Image:       "img.ContentRoll__Image",
			},
		},
		{
			Name:       "NPR",
			Region:     types.RegionUSA,
			BaseURL:    "https://www.npr.org",
			RSSFeed:    "https://feeds.npr.org/1001/rss.xml",
			Categories: []string{"general", "culture", "politics", "science"},
			Selectors: Selectors{
				ArticleList: "article, .story-text, .item",
				Headline:    "h1, h2, .title",
				Summary:     ".teaser, .summary",
				Author:      ".byline, .author",
				Date:        "time, .date",
				Link:        `a[href*="/2025/"], a[href*="/2026/"]`,
				Image:       "img.respArchiveImg",
			},
		},
	}
}
