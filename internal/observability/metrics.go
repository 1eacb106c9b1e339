package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational metrics for the aggregator.
type Metrics struct {
	// Fetch metrics
	FetchesTotal    atomic.Int64
	FetchFailures   atomic.Int64
	FetchRetries    atomic.Int64
	BytesDownloaded atomic.Int64

	// Scrape metrics
	FeedScrapes     atomic.Int64
	PageScrapes     atomic.Int64
	ArticlesScraped atomic.Int64
	ArticlesDropped atomic.Int64
	SourceErrors    atomic.Int64

	// Storage metrics
	ArticlesStored atomic.Int64

	// Run metrics
	ActiveSources atomic.Int32
	RunsTotal     atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"habari_fetches_total", "Total HTTP fetches attempted", m.FetchesTotal.Load()},
		{"habari_fetch_failures_total", "Total fetches that gave up", m.FetchFailures.Load()},
		{"habari_fetch_retries_total", "Total fetch retry attempts", m.FetchRetries.Load()},
		{"habari_bytes_downloaded_total", "Total response bytes downloaded", m.BytesDownloaded.Load()},
		{"habari_feed_scrapes_total", "Total RSS feed scrapes", m.FeedScrapes.Load()},
		{"habari_page_scrapes_total", "Total HTML page scrapes", m.PageScrapes.Load()},
		{"habari_articles_scraped_total", "Total articles scraped", m.ArticlesScraped.Load()},
		{"habari_articles_dropped_total", "Total articles dropped by validation", m.ArticlesDropped.Load()},
		{"habari_source_errors_total", "Total sources that failed in a run", m.SourceErrors.Load()},
		{"habari_articles_stored_total", "Total articles persisted", m.ArticlesStored.Load()},
		{"habari_active_sources", "Sources currently being scraped", int64(m.ActiveSources.Load())},
		{"habari_runs_total", "Total scrape runs started", m.RunsTotal.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"fetches_total":    m.FetchesTotal.Load(),
		"fetch_failures":   m.FetchFailures.Load(),
		"fetch_retries":    m.FetchRetries.Load(),
		"bytes_downloaded": m.BytesDownloaded.Load(),
		"feed_scrapes":     m.FeedScrapes.Load(),
		"page_scrapes":     m.PageScrapes.Load(),
		"articles_scraped": m.ArticlesScraped.Load(),
		"articles_dropped": m.ArticlesDropped.Load(),
		"source_errors":    m.SourceErrors.Load(),
		"articles_stored":  m.ArticlesStored.Load(),
		"active_sources":   int64(m.ActiveSources.Load()),
		"runs_total":       m.RunsTotal.Load(),
	}
}
