package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/habarihub/habari/internal/types"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS articles (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	url            TEXT NOT NULL UNIQUE,
	summary        TEXT,
	content        TEXT,
	author         TEXT,
	published_date TIMESTAMPTZ,
	scraped_at     TIMESTAMPTZ NOT NULL,
	source_name    TEXT NOT NULL,
	source_url     TEXT NOT NULL,
	region         TEXT NOT NULL,
	categories     TEXT[],
	image_url      TEXT,
	created_at     TIMESTAMPTZ DEFAULT now(),
	updated_at     TIMESTAMPTZ DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_articles_region    ON articles(region);
CREATE INDEX IF NOT EXISTS idx_articles_source    ON articles(source_name);
CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_date);
CREATE INDEX IF NOT EXISTS idx_articles_scraped   ON articles(scraped_at);

CREATE TABLE IF NOT EXISTS scrape_logs (
	id              BIGSERIAL PRIMARY KEY,
	started_at      TIMESTAMPTZ NOT NULL,
	completed_at    TIMESTAMPTZ,
	articles_count  INTEGER DEFAULT 0,
	sources_scraped TEXT,
	regions         TEXT,
	status          TEXT DEFAULT 'running',
	errors          TEXT
);
`

const postgresUpsert = `
INSERT INTO articles (
	id, title, url, summary, content, author, published_date,
	scraped_at, source_name, source_url, region, categories, image_url, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
ON CONFLICT (id) DO UPDATE SET
	title          = EXCLUDED.title,
	summary        = EXCLUDED.summary,
	content        = EXCLUDED.content,
	author         = EXCLUDED.author,
	published_date = EXCLUDED.published_date,
	scraped_at     = EXCLUDED.scraped_at,
	categories     = EXCLUDED.categories,
	image_url      = EXCLUDED.image_url,
	updated_at     = now()
`

const postgresArticleColumns = `id, title, url, COALESCE(summary, ''), COALESCE(content, ''),
	COALESCE(author, ''), published_date, scraped_at, source_name, source_url,
	region, COALESCE(categories, '{}'), COALESCE(image_url, '')`

// PostgresStore persists articles in PostgreSQL through a pgx pool.
// Categories are kept as a native text array instead of a joined
// column.
type PostgresStore struct {
	pool   *pgxpool.Pool
	mu     sync.Mutex
	logger *slog.Logger
}

// NewPostgresStore connects to the database named by connString and
// runs the schema.
func NewPostgresStore(ctx context.Context, connString string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, &types.StoreError{Backend: "postgres", Op: "connect", Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, &types.StoreError{Backend: "postgres", Op: "ping", Err: err}
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, &types.StoreError{Backend: "postgres", Op: "migrate", Err: err}
	}

	return &PostgresStore{
		pool:   pool,
		logger: logger.With("component", "postgres_store"),
	}, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

// Upsert writes articles one at a time so a single bad row cannot sink
// the batch. Failed rows are logged and skipped.
func (s *PostgresStore) Upsert(ctx context.Context, articles []*types.Article) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return count, &types.StoreError{Backend: "postgres", Op: "upsert", Err: err}
		}
		_, err := s.pool.Exec(ctx, postgresUpsert,
			a.ID,
			a.Title,
			a.URL,
			nullString(a.Summary),
			nullString(a.Content),
			nullString(a.Author),
			a.PublishedDate,
			a.ScrapedAt.UTC(),
			a.SourceName,
			a.SourceURL,
			a.Region.String(),
			a.Categories,
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
func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*types.Article, error) {
	query := "SELECT " + postgresArticleColumns + " FROM articles"
	where, args := postgresWhere(f)
	query += where + fmt.Sprintf(" ORDER BY scraped_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, f.limit(), f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &types.StoreError{Backend: "postgres", Op: "list", Err: err}
	}
	defer rows.Close()

	var articles []*types.Article
	for rows.Next() {
		var a types.Article
		err := rows.Scan(
			&a.ID, &a.Title, &a.URL, &a.Summary, &a.Content, &a.Author,
			&a.PublishedDate, &a.ScrapedAt, &a.SourceName, &a.SourceURL,
			&a.Region, &a.Categories, &a.ImageURL,
		)
		if err != nil {
			return nil, &types.StoreError{Backend: "postgres", Op: "scan", Err: err}
		}
		if len(a.Categories) == 0 {
			a.Categories = nil
		}
		articles = append(articles, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StoreError{Backend: "postgres", Op: "scan", Err: err}
	}
	return articles, nil
}

// Count returns how many stored articles match the filter.
func (s *PostgresStore) Count(ctx context.Context, f Filter) (int, error) {
	query := "SELECT COUNT(*) FROM articles"
	where, args := postgresWhere(f)
	query += where

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, &types.StoreError{Backend: "postgres", Op: "count", Err: err}
	}
	return n, nil
}

// Sources returns the per-source breakdown, busiest source first.
func (s *PostgresStore) Sources(ctx context.Context) ([]SourceCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source_name, region, COUNT(*) AS article_count, MAX(scraped_at) AS last_scraped
		FROM articles
		GROUP BY source_name, region
		ORDER BY article_count DESC`)
	if err != nil {
		return nil, &types.StoreError{Backend: "postgres", Op: "sources", Err: err}
	}
	defer rows.Close()

	var counts []SourceCount
	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.SourceName, &sc.Region, &sc.ArticleCount, &sc.LastScraped); err != nil {
			return nil, &types.StoreError{Backend: "postgres", Op: "sources", Err: err}
		}
		counts = append(counts, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StoreError{Backend: "postgres", Op: "sources", Err: err}
	}
	return counts, nil
}

// Search matches the phrase against title and summary.
func (s *PostgresStore) Search(ctx context.Context, query string, limit int) ([]*types.Article, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+postgresArticleColumns+`
		FROM articles
		WHERE title ILIKE $1 OR summary ILIKE $1
		ORDER BY scraped_at DESC
		LIMIT $2`, "%"+query+"%", limit)
	if err != nil {
		return nil, &types.StoreError{Backend: "postgres", Op: "search", Err: err}
	}
	defer rows.Close()

	var articles []*types.Article
	for rows.Next() {
		var a types.Article
		err := rows.Scan(
			&a.ID, &a.Title, &a.URL, &a.Summary, &a.Content, &a.Author,
			&a.PublishedDate, &a.ScrapedAt, &a.SourceName, &a.SourceURL,
			&a.Region, &a.Categories, &a.ImageURL,
		)
		if err != nil {
			return nil, &types.StoreError{Backend: "postgres", Op: "scan", Err: err}
		}
		if len(a.Categories) == 0 {
			a.Categories = nil
		}
		articles = append(articles, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StoreError{Backend: "postgres", Op: "scan", Err: err}
	}
	return articles, nil
}

// Prune deletes articles whose scrape time is older than the cutoff and
// returns how many went.
func (s *PostgresStore) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx, "DELETE FROM articles WHERE scraped_at < $1", cutoff)
	if err != nil {
		return 0, &types.StoreError{Backend: "postgres", Op: "prune", Err: err}
	}
	n := int(tag.RowsAffected())
	s.logger.Info("old articles pruned", "deleted", n, "cutoff", cutoff)
	return n, nil
}

// LogRun appends one row to the scrape audit trail.
func (s *PostgresStore) LogRun(ctx context.Context, run RunLog) error {
	var completed *time.Time
	if !run.CompletedAt.IsZero() {
		c := run.CompletedAt.UTC()
		completed = &c
	}
	status := run.Status
	if status == "" {
		status = "completed"
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_logs (started_at, completed_at, articles_count, sources_scraped, regions, status, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.StartedAt.UTC(),
		completed,
		run.Articles,
		nullString(strings.Join(run.Sources, ",")),
		nullString(strings.Join(run.Regions, ",")),
		status,
		nullString(strings.Join(run.Errors, "; ")),
	)
	if err != nil {
		return &types.StoreError{Backend: "postgres", Op: "log run", Err: err}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func postgresWhere(f Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Region != "" {
		args = append(args, strings.ToLower(f.Region))
		conds = append(conds, fmt.Sprintf("region = $%d", len(args)))
	}
	if f.Source != "" {
		args = append(args, f.Source)
		conds = append(conds, fmt.Sprintf("source_name = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
