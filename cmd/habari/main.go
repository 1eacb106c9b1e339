package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/habarihub/habari/internal/config"
	"github.com/habarihub/habari/internal/engine"
	"github.com/habarihub/habari/internal/observability"
	"github.com/habarihub/habari/internal/store"
	"github.com/habarihub/habari/internal/types"
)

var (
	cfgFile     string
	verbose     bool
	quiet       bool
	region      string
	source      string
	format      string
	outputDir   string
	fullContent bool
	maxArticles int
	userAgent   string
	sourcesFile string
	every       time.Duration
)

func main() {
	// A missing .env file is fine; environment overrides stay optional.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "habari",
		Short: "Habari — Multi-Region News Aggregator",
		Long: `Habari scrapes news sources from Kenya and the USA into one
normalized article collection.

Features:
  • RSS-first scraping with CSS-selector fallback per source
  • Concurrent source workers with per-domain throttling
  • Retrying fetch client with User-Agent rotation
  • JSON, CSV, SQLite, Postgres and MongoDB storage
  • REST API serving articles, stats and on-demand scrapes
  • Scheduled re-scraping with a run audit trail`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "log errors only")

	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(pruneCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape news sources and save the articles",
		Long: `Scrape configured news sources and save articles with the chosen
storage backend. With no flags every enabled source is scraped;
--region or --source narrows the run.`,
		RunE: runScrape,
	}

	cmd.Flags().StringVarP(&region, "region", "r", "", "scrape one region only (kenya, usa)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "scrape one source by name")
	cmd.Flags().StringVarP(&format, "format", "f", "", "storage format: json, csv, sqlite, postgres, mongo, all")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for file exports")
	cmd.Flags().BoolVar(&fullContent, "full-content", false, "fetch full article bodies from article pages")
	cmd.Flags().IntVarP(&maxArticles, "max-articles", "m", 0, "max articles per source (0 = config default)")
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "custom User-Agent string")
	cmd.Flags().StringVar(&sourcesFile, "sources", "", "YAML file with source definitions")
	cmd.Flags().DurationVar(&every, "every", 0, "re-scrape on this interval until interrupted (e.g. 6h)")

	return cmd
}

// runScrape executes the scrape command.
func runScrape(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Close()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(logger)
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
		eng.SetMetrics(metrics)
	}

	if err := scrapeOnce(ctx, cfg, eng, metrics, logger); err != nil {
		return err
	}

	if every <= 0 {
		return nil
	}

	fmt.Printf("\n🕐 Re-scraping every %s. Press Ctrl+C to stop.\n", every)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\n⏹  Stopped.")
			return nil
		case <-ticker.C:
			if err := scrapeOnce(ctx, cfg, eng, metrics, logger); err != nil {
				logger.Error("scheduled run failed", "error", err)
			}
		}
	}
}

// scrapeOnce runs one scrape cycle and saves the result through the
// configured storage backend.
func scrapeOnce(ctx context.Context, cfg *config.Config, eng *engine.Engine, metrics *observability.Metrics, logger *slog.Logger) error {
	var articles []*types.Article
	switch {
	case source != "":
		logger.Info("scraping single source", "source", source)
		articles = eng.ScrapeSource(ctx, source)
	case region != "":
		logger.Info("scraping region", "region", region)
		articles = eng.ScrapeRegion(ctx, region)
	default:
		logger.Info("scraping all sources")
		articles, _ = eng.ScrapeAll(ctx)
	}

	// An unknown --source or --region never reaches an engine run.
	stats := eng.Stats()
	if stats == nil {
		fmt.Println("\nNothing scraped. Check --source and --region against `habari sources`.")
		return nil
	}
	if ctx.Err() != nil {
		fmt.Println("\n⏹  Scrape cancelled.")
		return nil
	}

	st, err := store.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}

	saved, err := st.Upsert(ctx, articles)
	if err != nil {
		logger.Error("save failed", "backend", st.Name(), "error", err)
	}
	if metrics != nil {
		metrics.ArticlesStored.Add(int64(saved))
	}

	if rl, ok := st.(store.RunLogger); ok {
		if logErr := rl.LogRun(ctx, runLog(stats, saved)); logErr != nil {
			logger.Warn("run log not recorded", "error", logErr)
		}
	}

	if closeErr := st.Close(); closeErr != nil {
		logger.Error("close storage", "backend", st.Name(), "error", closeErr)
		if err == nil {
			err = closeErr
		}
	}

	printSummary(cfg, stats, len(articles), saved)

	// Keep memory bounded across scheduled runs.
	eng.Clear()
	return err
}

// runLog converts run statistics to an audit trail entry.
func runLog(stats *engine.RunStats, saved int) store.RunLog {
	sources := make([]string, 0, len(stats.BySource))
	for name := range stats.BySource {
		sources = append(sources, name)
	}
	sort.Strings(sources)

	regions := make([]string, 0, len(stats.ByRegion))
	for name := range stats.ByRegion {
		regions = append(regions, name)
	}
	sort.Strings(regions)

	status := "completed"
	if len(stats.Errors) > 0 {
		status = "completed_with_errors"
	}

	return store.RunLog{
		StartedAt:   stats.StartTime,
		CompletedAt: stats.EndTime,
		Articles:    saved,
		Sources:     sources,
		Regions:     regions,
		Status:      status,
		Errors:      stats.Errors,
	}
}

// printSummary prints the human-readable scrape report.
func printSummary(cfg *config.Config, stats *engine.RunStats, scraped, saved int) {
	fmt.Printf("\n✅ Scrape complete in %s\n", stats.Duration().Round(time.Millisecond))
	fmt.Printf("   Articles:  %d scraped, %d saved\n", scraped, saved)

	regions := make([]string, 0, len(stats.ByRegion))
	for name := range stats.ByRegion {
		regions = append(regions, name)
	}
	sort.Strings(regions)
	for _, name := range regions {
		fmt.Printf("   %-10s %d articles\n", strings.ToUpper(name)+":", stats.ByRegion[name])
	}

	fmt.Printf("   Sources:   %d succeeded, %d failed\n", len(stats.BySource), len(stats.Errors))
	switch cfg.Storage.Format {
	case "sqlite":
		fmt.Printf("   Output:    %s (sqlite)\n", cfg.Storage.SQLitePath)
	case "postgres", "mongo":
		fmt.Printf("   Output:    %s\n", cfg.Storage.Format)
	default:
		fmt.Printf("   Output:    %s (%s)\n", cfg.Storage.OutputDir, cfg.Storage.Format)
	}

	for _, e := range stats.Errors {
		fmt.Printf("   ⚠️  %s\n", e)
	}
}

// sourcesCmd creates the "sources" subcommand.
func sourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List configured news sources by region",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyCLIOverrides(cfg)

			sources, err := config.LoadSources(cfg.Sources.File)
			if err != nil {
				return err
			}
			registry, err := config.NewRegistry(sources)
			if err != nil {
				return err
			}

			names := registry.Names()
			regions := make([]string, 0, len(names))
			for name := range names {
				regions = append(regions, name)
			}
			sort.Strings(regions)

			total := 0
			for _, regionName := range regions {
				fmt.Printf("\n🌍 %s\n", strings.ToUpper(regionName))
				for _, sourceName := range names[regionName] {
					fmt.Printf("  • %s\n", sourceName)
					total++
				}
			}
			fmt.Printf("\nTotal: %d sources\n", total)
			return nil
		},
	}
	cmd.Flags().StringVar(&sourcesFile, "sources", "", "YAML file with source definitions")
	return cmd
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Habari %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			applyCLIOverrides(cfg)

			fmt.Printf("Scrape:\n")
			fmt.Printf("  Concurrency:       %d\n", cfg.Scrape.Concurrency)
			fmt.Printf("  Max Articles:      %d per source\n", cfg.Scrape.MaxArticles)
			fmt.Printf("  Full Content:      %v\n", cfg.Scrape.FetchFullContent)
			fmt.Printf("\nFetch:\n")
			fmt.Printf("  Request Timeout:   %s\n", cfg.Fetch.RequestTimeout)
			fmt.Printf("  Retry Attempts:    %d\n", cfg.Fetch.Retry.MaxAttempts)
			fmt.Printf("  Rotate User-Agent: %v\n", cfg.Fetch.RotateUserAgent)
			fmt.Printf("  User Agents:       %d configured\n", len(cfg.Fetch.UserAgents))
			fmt.Printf("  Browser Fetching:  %v\n", cfg.Fetch.Browser.Enabled)
			fmt.Printf("\nThrottle:\n")
			fmt.Printf("  Default Delay:     %s\n", cfg.Throttle.DefaultDelay)
			fmt.Printf("  Domain Overrides:  %d\n", len(cfg.Throttle.PerDomain))
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Format:            %s\n", cfg.Storage.Format)
			fmt.Printf("  Output Dir:        %s\n", cfg.Storage.OutputDir)
			fmt.Printf("  SQLite Path:       %s\n", cfg.Storage.SQLitePath)
			fmt.Printf("  Retention:         %d days\n", cfg.Storage.RetentionDays)
			fmt.Printf("\nAPI:\n")
			fmt.Printf("  Addr:              %s\n", cfg.API.Addr)
			fmt.Printf("  Mode:              %s\n", cfg.API.Mode)
			fmt.Printf("\nLogging:\n")
			fmt.Printf("  Level:             %s\n", cfg.Logging.Level)
			fmt.Printf("  Format:            %s\n", cfg.Logging.Format)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// setupLogger creates the process logger from the verbosity flags.
func setupLogger() *slog.Logger {
	level := "info"
	if verbose {
		level = "debug"
	}
	if quiet {
		level = "error"
	}
	return observability.NewLogger(level, "text")
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if format != "" {
		cfg.Storage.Format = strings.ToLower(format)
	}
	if outputDir != "" {
		cfg.Storage.OutputDir = outputDir
	}
	if fullContent {
		cfg.Scrape.FetchFullContent = true
	}
	if maxArticles > 0 {
		cfg.Scrape.MaxArticles = maxArticles
	}
	if userAgent != "" {
		cfg.Fetch.UserAgents = []string{userAgent}
		cfg.Fetch.RotateUserAgent = false
	}
	if sourcesFile != "" {
		cfg.Sources.File = sourcesFile
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if quiet {
		cfg.Logging.Level = "error"
	}
}
