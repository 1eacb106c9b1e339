package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/habarihub/habari/internal/api"
	"github.com/habarihub/habari/internal/config"
	"github.com/habarihub/habari/internal/engine"
	"github.com/habarihub/habari/internal/observability"
	"github.com/habarihub/habari/internal/store"
)

var serveAddr string

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		Long: `Run the REST API server. Articles are read from the configured
database backend; POST /api/scrape triggers live scrapes.`,
		RunE: runServe,
	}

	cmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default :5000)")
	cmd.Flags().StringVar(&sourcesFile, "sources", "", "YAML file with source definitions")

	return cmd
}

// runServe executes the serve command.
func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if serveAddr != "" {
		cfg.API.Addr = serveAddr
	}
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

	if cfg.Metrics.Enabled {
		metrics := observability.NewMetrics(logger)
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
		eng.SetMetrics(metrics)
	}

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	srv := api.NewServer(cfg.API, eng, db, logger)

	logger.Info("api server starting", "addr", cfg.API.Addr, "database", db.Name())
	fmt.Printf("🗞  Habari API listening on %s\n", cfg.API.Addr)

	return srv.Start(ctx)
}

// databaseStore is the queryable persistence the API and prune
// commands need. File exports cannot serve reads, so only the
// database backends qualify.
type databaseStore interface {
	api.Storage
	Name() string
	Close() error
}

// openDatabase opens the configured database backend. File formats
// fall back to SQLite so the API always has a read surface.
func openDatabase(cfg *config.Config, logger *slog.Logger) (databaseStore, error) {
	switch cfg.Storage.Format {
	case "postgres":
		return store.NewPostgresStore(context.Background(), cfg.Storage.PostgresURL, logger)
	case "mongo":
		return store.NewMongoStore(cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection, logger)
	default:
		return store.NewSQLiteStore(cfg.Storage.SQLitePath, logger)
	}
}
