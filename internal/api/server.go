// Package api exposes the aggregator and its article store over REST.
// All responses are JSON; read endpoints serve from the database while
// the scrape endpoints run the engine on demand.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/habarihub/habari/internal/config"
	"github.com/habarihub/habari/internal/engine"
	"github.com/habarihub/habari/internal/store"
	"github.com/habarihub/habari/internal/types"
)

// Orchestrator runs scrapes on demand and reports on the last run.
type Orchestrator interface {
	ScrapeAll(ctx context.Context) ([]*types.Article, *engine.RunStats)
	ScrapeRegion(ctx context.Context, region string) []*types.Article
	ScrapeSource(ctx context.Context, name string) []*types.Article
	ListSources() map[string][]string
	Stats() *engine.RunStats
}

// Storage is what the API needs from the article store: the write path
// for on-demand scrapes and the read path for every query endpoint.
type Storage interface {
	Upsert(ctx context.Context, articles []*types.Article) (int, error)
	List(ctx context.Context, f store.Filter) ([]*types.Article, error)
	Count(ctx context.Context, f store.Filter) (int, error)
	Sources(ctx context.Context) ([]store.SourceCount, error)
	Search(ctx context.Context, query string, limit int) ([]*types.Article, error)
}

// Server is the REST front end.
type Server struct {
	engine Orchestrator
	db     Storage
	cfg    config.APIConfig
	router *gin.Engine
	logger *slog.Logger
}

// NewServer wires the routes and middleware.
func NewServer(cfg config.APIConfig, orch Orchestrator, db Storage, logger *slog.Logger) *Server {
	switch cfg.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine: orch,
		db:     db,
		cfg:    cfg,
		logger: logger.With("component", "api_server"),
	}

	router := gin.New()
	router.Use(requestLogger(s.logger))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error("handler panicked", "path", c.Request.URL.Path, "panic", recovered)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal server error",
		})
	}))
	router.Use(corsHeaders())
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Endpoint not found",
		})
	})

	router.GET("/", s.handleIndex)
	api := router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/sources", s.handleSources)
		api.GET("/articles", s.handleArticles)
		api.GET("/articles/:region", s.handleArticlesByRegion)
		api.GET("/stats", s.handleStats)
		api.GET("/search", s.handleSearch)
		api.POST("/scrape", s.handleScrape)
		api.POST("/scrape/:region", s.handleScrapeRegion)
	}

	s.router = router
	return s
}

// Router returns the underlying handler, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func corsHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
