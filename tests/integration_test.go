package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/habarihub/habari/internal/api"
	"github.com/habarihub/habari/internal/config"
	"github.com/habarihub/habari/internal/engine"
	"github.com/habarihub/habari/internal/store"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

// newsSite serves two fixture outlets from one test server: a Kenyan
// feed-backed source and a US source whose feed is empty so scraping
// falls through to its HTML listing.
func newsSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Savanna Times</title>
  <link>%[1]s</link>
  <description>Latest stories</description>
  <item>
    <title>County water project breaks ground</title>
    <link>%[1]s/stories/county-water-project</link>
    <description>Construction begins on the new reservoir.</description>
    <dc:creator>Grace Wanjiru</dc:creator>
    <pubDate>Mon, 06 Jan 2025 07:30:00 GMT</pubDate>
    <category>infrastructure</category>
  </item>
  <item>
    <title>Maize harvest outlook improves</title>
    <link>%[1]s/stories/maize-harvest-outlook</link>
    <description>Long rains lift projections for the season.</description>
    <dc:creator>Peter Otieno</dc:creator>
    <pubDate>Mon, 06 Jan 2025 09:00:00 GMT</pubDate>
    <category>agriculture</category>
  </item>
  <item>
    <title>Matatu fares drop after fuel review</title>
    <link>%[1]s/stories/matatu-fares-drop</link>
    <description>Commuters see relief on major routes.</description>
    <pubDate>Mon, 06 Jan 2025 11:15:00 GMT</pubDate>
    <category>transport</category>
  </item>
</channel>
</rss>`, srv.URL)
	})

	mux.HandleFunc("/empty.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Harbor Daily</title><link>x</link><description>x</description></channel></rss>`)
	})

	mux.HandleFunc("/harbor", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<div class="story"><h3>Harbor expansion approved</h3><a href="/harbor/expansion-approved">read</a><p class="dek">Port authority signs off on the new terminal.</p></div>
<div class="story"><h3>Ferry schedule changes</h3><a href="/harbor/ferry-schedule">read</a><p class="dek">Weekend crossings move to the hour.</p></div>
<div class="story"><h3>Storm closes waterfront</h3><a href="/harbor/storm-closure">read</a><p class="dek">High winds expected through Tuesday.</p></div>
</body></html>`)
	})

	return srv
}

// writeSources writes a YAML source table pointing both outlets at the
// fixture server.
func writeSources(t *testing.T, baseURL string) string {
	t.Helper()

	yaml := fmt.Sprintf(`sources:
  - name: Savanna Times
    region: kenya
    base_url: %[1]s
    rss_feed: %[1]s/feed.xml
    categories: [news]
  - name: Harbor Daily
    region: usa
    base_url: %[1]s/harbor
    rss_feed: %[1]s/empty.xml
    selectors:
      article_list: div.story
      headline: h3
      link: a
      summary: p.dek
`, baseURL)

	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write sources file: %v", err)
	}
	return path
}

func testConfig(t *testing.T, srv *httptest.Server) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Sources.File = writeSources(t, srv.URL)
	cfg.Scrape.Concurrency = 2
	cfg.Throttle.DefaultDelay = 0
	cfg.Fetch.Retry.InitialDelay = 10 * time.Millisecond
	return cfg
}

// TestScrapeToSQLite runs the real stack end to end: YAML source table,
// fetch client, feed and listing scrapers, then persistence and reads.
func TestScrapeToSQLite(t *testing.T) {
	srv := newsSite(t)
	cfg := testConfig(t, srv)

	eng, err := engine.New(cfg, testLogger)
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	articles, stats := eng.ScrapeAll(ctx)
	t.Logf("scraped %d articles in %s", len(articles), stats.Duration())

	if len(articles) != 6 {
		t.Fatalf("expected 6 articles, got %d", len(articles))
	}
	if len(stats.Errors) != 0 {
		t.Fatalf("expected no source errors, got %v", stats.Errors)
	}
	if stats.ByRegion["kenya"] != 3 || stats.ByRegion["usa"] != 3 {
		t.Errorf("unexpected region counts: %v", stats.ByRegion)
	}
	if stats.BySource["Savanna Times"] != 3 || stats.BySource["Harbor Daily"] != 3 {
		t.Errorf("unexpected source counts: %v", stats.BySource)
	}

	byTitle := make(map[string]bool)
	var feedArticle, listingArticle int
	for _, a := range articles {
		byTitle[a.Title] = true
		switch a.SourceName {
		case "Savanna Times":
			feedArticle++
			if a.Region != "kenya" {
				t.Errorf("feed article region = %q", a.Region)
			}
		case "Harbor Daily":
			listingArticle++
			if a.Region != "usa" {
				t.Errorf("listing article region = %q", a.Region)
			}
		}
		if a.ID == "" || a.URL == "" || a.ScrapedAt.IsZero() {
			t.Errorf("article %q missing identity fields", a.Title)
		}
	}
	if feedArticle != 3 || listingArticle != 3 {
		t.Errorf("expected 3 feed + 3 listing articles, got %d + %d", feedArticle, listingArticle)
	}
	if !byTitle["County water project breaks ground"] || !byTitle["Harbor expansion approved"] {
		t.Errorf("expected fixture headlines, got %v", byTitle)
	}

	// Feed metadata survives into the article.
	for _, a := range articles {
		if a.Title != "Maize harvest outlook improves" {
			continue
		}
		if a.Author != "Peter Otieno" {
			t.Errorf("author = %q, want Peter Otieno", a.Author)
		}
		if a.PublishedDate == nil || a.PublishedDate.UTC().Hour() != 9 {
			t.Errorf("published date = %v", a.PublishedDate)
		}
		if len(a.Categories) != 1 || a.Categories[0] != "agriculture" {
			t.Errorf("categories = %v", a.Categories)
		}
	}

	// Persist and read back.
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "news.db"), testLogger)
	if err != nil {
		t.Fatalf("create sqlite store: %v", err)
	}
	defer db.Close()

	saved, err := db.Upsert(ctx, articles)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if saved != 6 {
		t.Errorf("saved %d articles, want 6", saved)
	}

	// A second pass with the same articles must not duplicate.
	if _, err := db.Upsert(ctx, articles); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	total, err := db.Count(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 6 {
		t.Errorf("count after re-upsert = %d, want 6", total)
	}

	kenyan, err := db.List(ctx, store.Filter{Region: "kenya"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(kenyan) != 3 {
		t.Errorf("kenya list = %d articles, want 3", len(kenyan))
	}

	counts, err := db.Sources(ctx)
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(counts) != 2 {
		t.Errorf("source counts = %d entries, want 2", len(counts))
	}
}

// TestScrapeThroughAPI drives a live scrape over the REST surface and
// reads the persisted articles back through it.
func TestScrapeThroughAPI(t *testing.T) {
	srv := newsSite(t)
	cfg := testConfig(t, srv)
	cfg.API.Mode = "test"

	eng, err := engine.New(cfg, testLogger)
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	defer eng.Close()

	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"), testLogger)
	if err != nil {
		t.Fatalf("create sqlite store: %v", err)
	}
	defer db.Close()

	server := api.NewServer(cfg.API, eng, db, testLogger)
	router := server.Router()

	do := func(method, path string, wantStatus int) map[string]any {
		t.Helper()
		req := httptest.NewRequest(method, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != wantStatus {
			t.Fatalf("%s %s = %d, want %d: %s", method, path, rec.Code, wantStatus, rec.Body.String())
		}
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
		return body
	}

	scrape := do(http.MethodPost, "/api/scrape", http.StatusOK)
	if scrape["success"] != true {
		t.Fatalf("scrape response: %v", scrape)
	}
	if n := scrape["articles_saved"].(float64); n != 6 {
		t.Errorf("articles_saved = %v, want 6", n)
	}
	t.Logf("scrape response: %s", scrape["message"])

	statsResp := do(http.MethodGet, "/api/stats", http.StatusOK)
	stats := statsResp["stats"].(map[string]any)
	if n := stats["total_articles"].(float64); n != 6 {
		t.Errorf("total_articles = %v, want 6", n)
	}

	listResp := do(http.MethodGet, "/api/articles?region=kenya", http.StatusOK)
	if n := listResp["count"].(float64); n != 3 {
		t.Errorf("kenya articles = %v, want 3", n)
	}

	searchResp := do(http.MethodGet, "/api/search?q=harbor+expansion", http.StatusOK)
	if n := searchResp["count"].(float64); n != 1 {
		t.Errorf("search count = %v, want 1", n)
	}
	results := searchResp["results"].([]any)
	first := results[0].(map[string]any)
	if !strings.Contains(first["title"].(string), "Harbor expansion") {
		t.Errorf("search hit = %v", first["title"])
	}
}
