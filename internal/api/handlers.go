package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/habarihub/habari/internal/config"
	"github.com/habarihub/habari/internal/store"
	"github.com/habarihub/habari/internal/types"
)

const invalidRegionMsg = `Invalid region. Must be "kenya" or "usa"`

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Habari News API",
		"version":     config.Version,
		"description": "REST API for scraping and accessing news from Kenya and the USA",
		"endpoints": gin.H{
			"GET /api/sources":          "List all available news sources",
			"GET /api/articles":         "Get stored articles",
			"GET /api/articles/:region": "Get articles by region",
			"GET /api/stats":            "Get scraping statistics",
			"GET /api/search":           "Search articles by keyword",
			"POST /api/scrape":          "Trigger a new scraping job",
			"POST /api/scrape/:region":  "Scrape a specific region",
			"GET /api/health":           "Health check endpoint",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSources(c *gin.Context) {
	sources := s.engine.ListSources()
	total := 0
	for _, names := range sources {
		total += len(names)
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"sources":     sources,
		"total_count": total,
	})
}

func (s *Server) handleArticles(c *gin.Context) {
	ctx := c.Request.Context()
	filter := store.Filter{
		Region: c.Query("region"),
		Source: c.Query("source"),
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}

	articles, err := s.db.List(ctx, filter)
	if err != nil {
		s.serverError(c, err)
		return
	}
	total, err := s.db.Count(ctx, store.Filter{Region: filter.Region, Source: filter.Source})
	if err != nil {
		s.serverError(c, err)
		return
	}
	if articles == nil {
		articles = []*types.Article{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"articles":    articles,
		"count":       len(articles),
		"total_count": total,
		"limit":       filter.Limit,
		"offset":      filter.Offset,
		"has_more":    filter.Offset+len(articles) < total,
	})
}

func (s *Server) handleArticlesByRegion(c *gin.Context) {
	region, err := types.ParseRegion(c.Param("region"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   invalidRegionMsg,
		})
		return
	}

	articles, err := s.db.List(c.Request.Context(), store.Filter{
		Region: region.String(),
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	})
	if err != nil {
		s.serverError(c, err)
		return
	}
	if articles == nil {
		articles = []*types.Article{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"region":   region.String(),
		"articles": articles,
		"count":    len(articles),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := s.db.Count(ctx, store.Filter{})
	if err != nil {
		s.serverError(c, err)
		return
	}
	byRegion := gin.H{}
	for _, region := range types.Regions() {
		n, err := s.db.Count(ctx, store.Filter{Region: region.String()})
		if err != nil {
			s.serverError(c, err)
			return
		}
		byRegion[region.String()] = n
	}
	sources, err := s.db.Sources(ctx)
	if err != nil {
		s.serverError(c, err)
		return
	}
	if sources == nil {
		sources = []store.SourceCount{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats": gin.H{
			"total_articles": total,
			"by_region":      byRegion,
			"sources":        sources,
		},
	})
}

func (s *Server) handleScrape(c *gin.Context) {
	var body struct {
		Region string `json:"region"`
		Source string `json:"source"`
	}
	// An empty or absent body means scrape everything.
	_ = c.ShouldBindJSON(&body)

	ctx := c.Request.Context()
	var articles []*types.Article
	switch {
	case body.Source != "":
		articles = s.engine.ScrapeSource(ctx, body.Source)
	case body.Region != "":
		articles = s.engine.ScrapeRegion(ctx, body.Region)
	default:
		articles, _ = s.engine.ScrapeAll(ctx)
	}

	saved, err := s.db.Upsert(ctx, articles)
	if err != nil {
		s.serverError(c, err)
		return
	}

	var stats any
	if st := s.engine.Stats(); st != nil {
		stats = st.Snapshot()
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"message":          fmt.Sprintf("Scraped %d articles", len(articles)),
		"articles_scraped": len(articles),
		"articles_saved":   saved,
		"stats":            stats,
	})
}

func (s *Server) handleScrapeRegion(c *gin.Context) {
	region, err := types.ParseRegion(c.Param("region"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   invalidRegionMsg,
		})
		return
	}

	ctx := c.Request.Context()
	articles := s.engine.ScrapeRegion(ctx, region.String())
	saved, err := s.db.Upsert(ctx, articles)
	if err != nil {
		s.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"region":           region.String(),
		"articles_scraped": len(articles),
		"articles_saved":   saved,
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Search query (q) is required",
		})
		return
	}

	results, err := s.db.Search(c.Request.Context(), query, intQuery(c, "limit", 20))
	if err != nil {
		s.serverError(c, err)
		return
	}
	if results == nil {
		results = []*types.Article{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) serverError(c *gin.Context, err error) {
	s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

// intQuery parses an integer query parameter, falling back to the
// default on absence or garbage.
func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
