package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/habarihub/habari/internal/types"
)

// csvHeaders is the fixed column order for tabular exports. Multi-value
// categories are flattened into one pipe-joined cell.
var csvHeaders = []string{
	"id", "title", "url", "summary", "author",
	"published_date", "scraped_at", "source_name", "source_url",
	"region", "categories", "image_url",
}

// Export is the envelope written by the JSON store.
type Export struct {
	Metadata ExportMeta       `json:"metadata"`
	Articles []*types.Article `json:"articles"`
}

// ExportMeta describes an export file.
type ExportMeta struct {
	ExportedAt    time.Time `json:"exported_at"`
	TotalArticles int       `json:"total_articles"`
	FormatVersion string    `json:"format_version"`
}

// --- JSON store ---

// JSONStore buffers articles keyed by ID and writes a single pretty
// printed export file on Close. Re-upserting an ID replaces the
// buffered record, so repeated runs never duplicate rows.
type JSONStore struct {
	path   string
	buf    *types.Collection
	mu     sync.Mutex
	logger *slog.Logger
}

// NewJSONStore creates a JSON export store writing to outputPath.
func NewJSONStore(outputPath string, logger *slog.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, &types.StoreError{Backend: "json", Op: "mkdir", Err: err}
	}
	return &JSONStore{
		path:   outputPath,
		buf:    types.NewCollection(),
		logger: logger.With("component", "json_store"),
	}, nil
}

func (s *JSONStore) Name() string { return "json" }

// Path returns the file the export will be written to.
func (s *JSONStore) Path() string { return s.path }

func (s *JSONStore) Upsert(ctx context.Context, articles []*types.Article) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return 0, &types.StoreError{Backend: "json", Op: "upsert", Err: err}
		}
		s.buf.Add(a)
	}
	s.logger.Debug("articles buffered", "count", len(articles), "total", s.buf.Len())
	return len(articles), nil
}

func (s *JSONStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return &types.StoreError{Backend: "json", Op: "create", Err: err}
	}
	defer f.Close()

	articles := s.buf.Articles()
	export := Export{
		Metadata: ExportMeta{
			ExportedAt:    time.Now().UTC(),
			TotalArticles: len(articles),
			FormatVersion: "1.0",
		},
		Articles: articles,
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export); err != nil {
		return &types.StoreError{Backend: "json", Op: "encode", Err: err}
	}

	s.logger.Info("JSON export written", "path", s.path, "articles", len(articles))
	return nil
}

// ReadExport loads a JSON export file back into memory.
func ReadExport(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.StoreError{Backend: "json", Op: "read", Err: err}
	}
	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, &types.StoreError{Backend: "json", Op: "decode", Err: err}
	}
	return &export, nil
}

// --- CSV store ---

// CSVStore buffers articles keyed by ID and writes one flat table on
// Close. The column order is fixed so downstream tooling can rely on it.
type CSVStore struct {
	path   string
	buf    *types.Collection
	mu     sync.Mutex
	logger *slog.Logger
}

// NewCSVStore creates a CSV export store writing to outputPath.
func NewCSVStore(outputPath string, logger *slog.Logger) (*CSVStore, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, &types.StoreError{Backend: "csv", Op: "mkdir", Err: err}
	}
	return &CSVStore{
		path:   outputPath,
		buf:    types.NewCollection(),
		logger: logger.With("component", "csv_store"),
	}, nil
}

func (s *CSVStore) Name() string { return "csv" }

// Path returns the file the export will be written to.
func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) Upsert(ctx context.Context, articles []*types.Article) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return 0, &types.StoreError{Backend: "csv", Op: "upsert", Err: err}
		}
		s.buf.Add(a)
	}
	s.logger.Debug("articles buffered", "count", len(articles), "total", s.buf.Len())
	return len(articles), nil
}

func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return &types.StoreError{Backend: "csv", Op: "create", Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeaders); err != nil {
		return &types.StoreError{Backend: "csv", Op: "write header", Err: err}
	}
	for _, a := range s.buf.Articles() {
		if err := w.Write(csvRow(a)); err != nil {
			return &types.StoreError{Backend: "csv", Op: "write row", Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &types.StoreError{Backend: "csv", Op: "flush", Err: err}
	}

	s.logger.Info("CSV export written", "path", s.path, "articles", s.buf.Len())
	return nil
}

func csvRow(a *types.Article) []string {
	published := ""
	if a.PublishedDate != nil {
		published = a.PublishedDate.UTC().Format(time.RFC3339)
	}
	return []string{
		a.ID,
		a.Title,
		a.URL,
		a.Summary,
		a.Author,
		published,
		a.ScrapedAt.UTC().Format(time.RFC3339),
		a.SourceName,
		a.SourceURL,
		a.Region.String(),
		types.JoinCategories(a.Categories),
		a.ImageURL,
	}
}

// articleFromRow rebuilds an article from a CSV row in csvHeaders order.
func articleFromRow(row []string) (*types.Article, error) {
	if len(row) != len(csvHeaders) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(csvHeaders), len(row))
	}
	a := &types.Article{
		ID:         row[0],
		Title:      row[1],
		URL:        row[2],
		Summary:    row[3],
		Author:     row[4],
		SourceName: row[7],
		SourceURL:  row[8],
		Region:     types.Region(row[9]),
		Categories: types.SplitCategories(row[10]),
		ImageURL:   row[11],
	}
	if row[5] != "" {
		t, err := time.Parse(time.RFC3339, row[5])
		if err != nil {
			return nil, fmt.Errorf("published_date: %w", err)
		}
		a.PublishedDate = &t
	}
	if row[6] != "" {
		t, err := time.Parse(time.RFC3339, row[6])
		if err != nil {
			return nil, fmt.Errorf("scraped_at: %w", err)
		}
		a.ScrapedAt = t
	}
	return a, nil
}

// ReadCSVExport loads a CSV export file back into memory.
func ReadCSVExport(path string) ([]*types.Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &types.StoreError{Backend: "csv", Op: "open", Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &types.StoreError{Backend: "csv", Op: "read", Err: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	articles := make([]*types.Article, 0, len(rows)-1)
	for _, row := range rows[1:] {
		a, err := articleFromRow(row)
		if err != nil {
			return nil, &types.StoreError{Backend: "csv", Op: "decode", Err: err}
		}
		articles = append(articles, a)
	}
	return articles, nil
}
