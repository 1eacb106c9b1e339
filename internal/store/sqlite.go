package store

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, no CGO

	"github.com/habarihub/habari/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS articles (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	url            TEXT NOT NULL UNIQUE,
	summary        TEXT,
	content        TEXT,
	author         TEXT,
	published_date TEXT,
	scraped_at     TEXT NOT NULL,
	source_name    TEXT NOT NULL,
	source_url     TEXT NOT NULL,
	region         TEXT NOT NULL,
	categories     TEXT,
	image_url      TEXT,
	created_at     TEXT DEFAULT CURRENT_TIMESTAMP,
	updated_at     TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_articles_region    ON articles(region);
CREATE INDEX IF NOT EXISTS idx_articles_source    ON articles(source_name);
CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_date);
CREATE INDEX IF NOT EXISTS idx_articles_scraped   ON articles(scraped_at);

CREATE TABLE IF NOT EXISTS scrape_logs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at      TEXT NOT NULL,
	completed_at    TEXT,
	articles_count  INTEGER DEFAULT 0,
	sources_scraped TEXT,
	regions         TEXT,
	status          TEXT DEFAULT 'running',
	errors          TEXT
);
`

const sqliteUpsert = `
INSERT INTO articles (
	id, title, url, summary, content, author, published_date,
	scraped_at, source_name, source_url, region, categories, image_url, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
	title          = excluded.title,
	summary        = excluded.summary,
	content        = excluded.content,
	author         = excluded.author,
	published_date = excluded.published_date,
	scraped_at     = excluded.scraped_at,
	categories     = excluded.categories,
	image_url      = excluded.image_url,
	updated_at     = CURRENT_TIMESTAMP
`

const sqliteArticleColumns = `id, title, url, summary, content, author, published_date,
	scraped_at, source_name, source_url, region, categories, image_url`

// SQLiteStore persists articles in an embedded SQLite database. It is
// the only backend the HTTP API reads from, so it also implements the
// full query surface.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path and
// runs the schema. Pass ":memory:" for an ephemeral database.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	connStr := path
	if path == ":memory:" {
		// Shared cache keeps every pooled connection on the same
		// in-memory database.
		connStr = "file::memory:?cache=shared"
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &types.StoreError{Backend: "sqlite", Op: "mkdir", Err: err}
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, &types.StoreError{Backend: "sqlite", Op: "open", Err: err}
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &types.StoreError{Backend: "sqlite", Op: "ping", Err: err}
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, &types.StoreError{Backend: "sqlite", Op: "pragma", Err: err}
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, &types.StoreError{Backend: "sqlite", Op: "migrate", Err: err}
	}

	return &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger.With("component", "sqlite_store"),
	}, nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Upsert writes articles one at a time so a single bad row cannot sink
// the batch. Failed rows are logged and skipped.
func (s *SQLiteStore) Upsert(ctx context.Context, articles []*types.Article) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, err := s.db.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return 0, &types.StoreError{Backend: "sqlite", Op: "prepare", Err: err}
	}
	defer stmt.Close()

	count := 0
	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return count, &types.StoreError{Backend: "sqlite", Op: "upsert", Err: err}
		}
		_, err := stmt.ExecContext(ctx,
			a.ID,
			a.Title,
			a.URL,
			nullString(a.Summary),
			nullString(a.Content),
			nullString(a.Author),
			nullTime(a.PublishedDate),
			a.ScrapedAt.UTC().Format(time.RFC3339),
			a.SourceName,
			a.SourceURL,
			a.Region.String(),
			nullString(types.JoinCategories(a.Categories)),
			nullString(a.ImageURL),
		)
		if err != nil {
			s.logger.Error("article upsert failed", "id", a.ID, "url", a.URL, "error", err)
			continue
		}
		count++
	}

	s.logger.Debug("articles upserted", "count", count, "of", len(articles))
	return count, nil
}

// List returns stored articles, newest scrape first.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]*types.Article, error) {
	query := "SELECT " + sqliteArticleColumns + " FROM articles"
	where, args := sqliteWhere(f)
	query += where + " ORDER BY scraped_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.limit(), f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &types.StoreError{Backend: "sqlite", Op: "list", Err: err}
	}
	defer rows.Close()
	return scanArticles(rows)
}

// Count returns how many stored articles match the filter.
func (s *SQLiteStore) Count(ctx context.Context, f Filter) (int, error) {
	query := "SELECT COUNT(*) FROM articles"
	where, args := sqliteWhere(f)
	query += where

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, &types.StoreError{Backend: "sqlite", Op: "count", Err: err}
	}
	return n, nil
}

// Sources returns the per-source breakdown, busiest source first.
func (s *SQLiteStore) Sources(ctx context.Context) ([]SourceCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_name, region, COUNT(*) AS article_count, MAX(scraped_at) AS last_scraped
		FROM articles
		GROUP BY source_name, region
		ORDER BY article_count DESC`)
	if err != nil {
		return nil, &types.StoreError{Backend: "sqlite", Op: "sources", Err: err}
	}
	defer rows.Close()

	var counts []SourceCount
	for rows.Next() {
		var sc SourceCount
		var last string
		if err := rows.Scan(&sc.SourceName, &sc.Region, &sc.ArticleCount, &last); err != nil {
			return nil, &types.StoreError{Backend: "sqlite", Op: "sources", Err: err}
		}
		if t, err := time.Parse(time.RFC3339, last); err == nil {
			sc.LastScraped = t
		}
		counts = append(counts, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StoreError{Backend: "sqlite", Op: "sources", Err: err}
	}
	return counts, nil
}

// Search matches the phrase against title and summary.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]*types.Article, error) {
	if limit <= 0 {
		limit = 20
	}
	needle := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteArticleColumns+`
		FROM articles
		WHERE LOWER(title) LIKE ? OR LOWER(summary) LIKE ?
		ORDER BY scraped_at DESC
		LIMIT ?`, needle, needle, limit)
	if err != nil {
		return nil, &types.StoreError{Backend: "sqlite", Op: "search", Err: err}
	}
	defer rows.Close()
	return scanArticles(rows)
}

// Prune deletes articles whose scrape time is older than the cutoff and
// returns how many went.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, "DELETE FROM articles WHERE scraped_at < ?", cutoff)
	if err != nil {
		return 0, &types.StoreError{Backend: "sqlite", Op: "prune", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &types.StoreError{Backend: "sqlite", Op: "prune", Err: err}
	}
	s.logger.Info("old articles pruned", "deleted", n, "cutoff", cutoff)
	return int(n), nil
}

// LogRun appends one row to the scrape audit trail.
func (s *SQLiteStore) LogRun(ctx context.Context, run RunLog) error {
	completed := any(nil)
	if !run.CompletedAt.IsZero() {
		completed = run.CompletedAt.UTC().Format(time.RFC3339)
	}
	status := run.Status
	if status == "" {
		status = "completed"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_logs (started_at, completed_at, articles_count, sources_scraped, regions, status, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().Format(time.RFC3339),
		completed,
		run.Articles,
		nullString(strings.Join(run.Sources, ",")),
		nullString(strings.Join(run.Regions, ",")),
		status,
		nullString(strings.Join(run.Errors, "; ")),
	)
	if err != nil {
		return &types.StoreError{Backend: "sqlite", Op: "log run", Err: err}
	}
	return nil
}

// RunLogs returns the most recent audit rows, newest first.
func (s *SQLiteStore) RunLogs(ctx context.Context, limit int) ([]RunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT started_at, completed_at, articles_count, sources_scraped, regions, status, errors
		FROM scrape_logs
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, &types.StoreError{Backend: "sqlite", Op: "run logs", Err: err}
	}
	defer rows.Close()

	var logs []RunLog
	for rows.Next() {
		var (
			run       RunLog
			started   string
			completed sql.NullString
			sources   sql.NullString
			regions   sql.NullString
			errs      sql.NullString
		)
		if err := rows.Scan(&started, &completed, &run.Articles, &sources, &regions, &run.Status, &errs); err != nil {
			return nil, &types.StoreError{Backend: "sqlite", Op: "run logs", Err: err}
		}
		if t, err := time.Parse(time.RFC3339, started); err == nil {
			run.StartedAt = t
		}
		if completed.Valid {
			if t, err := time.Parse(time.RFC3339, completed.String); err == nil {
				run.CompletedAt = t
			}
		}
		if sources.Valid && sources.String != "" {
			run.Sources = strings.Split(sources.String, ",")
		}
		if regions.Valid && regions.String != "" {
			run.Regions = strings.Split(regions.String, ",")
		}
		if errs.Valid && errs.String != "" {
			run.Errors = strings.Split(errs.String, "; ")
		}
		logs = append(logs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StoreError{Backend: "sqlite", Op: "run logs", Err: err}
	}
	return logs, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func sqliteWhere(f Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Region != "" {
		conds = append(conds, "region = ?")
		args = append(args, strings.ToLower(f.Region))
	}
	if f.Source != "" {
		conds = append(conds, "source_name = ?")
		args = append(args, f.Source)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanArticles(rows *sql.Rows) ([]*types.Article, error) {
	var articles []*types.Article
	for rows.Next() {
		var (
			a          types.Article
			summary    sql.NullString
			content    sql.NullString
			author     sql.NullString
			published  sql.NullString
			scraped    string
			region     string
			categories sql.NullString
			imageURL   sql.NullString
		)
		err := rows.Scan(
			&a.ID, &a.Title, &a.URL, &summary, &content, &author,
			&published, &scraped, &a.SourceName, &a.SourceURL,
			&region, &categories, &imageURL,
		)
		if err != nil {
			return nil, &types.StoreError{Backend: "sqlite", Op: "scan", Err: err}
		}
		a.Summary = summary.String
		a.Content = content.String
		a.Author = author.String
		a.Region = types.Region(region)
		a.Categories = types.SplitCategories(categories.String)
		a.ImageURL = imageURL.String
		if published.Valid && published.String != "" {
			if t, err := time.Parse(time.RFC3339, published.String); err == nil {
				a.PublishedDate = &t
			}
		}
		if t, err := time.Parse(time.RFC3339, scraped); err == nil {
			a.ScrapedAt = t
		}
		articles = append(articles, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StoreError{Backend: "sqlite", Op: "scan", Err: err}
	}
	return articles, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
