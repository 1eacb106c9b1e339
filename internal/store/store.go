// Package store persists scraped articles. Every backend upserts by
// article ID: new IDs insert, existing IDs have their fields
// overwritten, and re-delivering an unchanged article succeeds without
// duplicating it.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/habarihub/habari/internal/config"
	"github.com/habarihub/habari/internal/types"
)

// Store is the interface for all persistence backends.
type Store interface {
	// Upsert inserts or updates articles keyed by ID and returns the
	// number successfully written.
	Upsert(ctx context.Context, articles []*types.Article) (int, error)

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the backend identifier.
	Name() string
}

// Filter narrows List and Count queries. Zero values mean no filter;
// a non-positive limit falls back to the backend default of 100.
type Filter struct {
	Region string
	Source string
	Limit  int
	Offset int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}

// SourceCount is one row of the per-source breakdown.
type SourceCount struct {
	SourceName   string    `json:"source_name"`
	Region       string    `json:"region"`
	ArticleCount int       `json:"article_count"`
	LastScraped  time.Time `json:"last_scraped"`
}

// Querier is the read surface implemented by database backends.
// Listing is ordered newest-scraped first.
type Querier interface {
	List(ctx context.Context, f Filter) ([]*types.Article, error)
	Count(ctx context.Context, f Filter) (int, error)
	Sources(ctx context.Context) ([]SourceCount, error)
}

// Searcher finds articles whose title or summary contains a phrase,
// compared case-insensitively.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]*types.Article, error)
}

// Pruner deletes articles scraped before a cutoff.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int, error)
}

// RunLog is one scrape run for the audit trail kept by database
// backends. A zero CompletedAt means the run is still going.
type RunLog struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Articles    int
	Sources     []string
	Regions     []string
	Status      string
	Errors      []string
}

// RunLogger records scrape runs for the audit trail.
type RunLogger interface {
	LogRun(ctx context.Context, run RunLog) error
}

// New creates the backend named by the configuration. The "all" format
// fans out to JSON, CSV and SQLite together.
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Format {
	case "json":
		return NewJSONStore(exportPath(cfg.OutputDir, "json"), logger)
	case "csv":
		return NewCSVStore(exportPath(cfg.OutputDir, "csv"), logger)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath, logger)
	case "postgres":
		return NewPostgresStore(context.Background(), cfg.PostgresURL, logger)
	case "mongo":
		return NewMongoStore(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
	case "all":
		jsonStore, err := NewJSONStore(exportPath(cfg.OutputDir, "json"), logger)
		if err != nil {
			return nil, err
		}
		csvStore, err := NewCSVStore(exportPath(cfg.OutputDir, "csv"), logger)
		if err != nil {
			return nil, err
		}
		dbStore, err := NewSQLiteStore(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return NewMulti([]Store{jsonStore, csvStore, dbStore}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported storage format: %s", cfg.Format)
	}
}

// exportPath builds a timestamped export filename in the output
// directory.
func exportPath(dir, ext string) string {
	name := fmt.Sprintf("news_export_%s.%s", time.Now().Format("20060102_150405"), ext)
	return filepath.Join(dir, name)
}

// Multi fans writes out to several backends. The first error is
// returned after every backend has been tried.
type Multi struct {
	backends []Store
	logger   *slog.Logger
}

// NewMulti creates a fan-out store.
func NewMulti(backends []Store, logger *slog.Logger) *Multi {
	return &Multi{
		backends: backends,
		logger:   logger.With("component", "multi_store"),
	}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Upsert(ctx context.Context, articles []*types.Article) (int, error) {
	var count int
	var firstErr error
	for _, backend := range m.backends {
		n, err := backend.Upsert(ctx, articles)
		if err != nil {
			m.logger.Error("backend upsert failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if n > count {
			count = n
		}
	}
	return count, firstErr
}

// LogRun records run metadata on every backend that keeps a run log.
func (m *Multi) LogRun(ctx context.Context, run RunLog) error {
	var firstErr error
	for _, backend := range m.backends {
		rl, ok := backend.(RunLogger)
		if !ok {
			continue
		}
		if err := rl.LogRun(ctx, run); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Multi) Close() error {
	var firstErr error
	for _, backend := range m.backends {
		if err := backend.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
