package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/habarihub/habari/internal/config"
	"github.com/habarihub/habari/internal/store"
)

var pruneDays int

// pruneCmd creates the "prune" subcommand.
func pruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete articles older than the retention window",
		RunE:  runPrune,
	}

	cmd.Flags().IntVar(&pruneDays, "days", 0, "delete articles scraped more than N days ago (0 = config retention)")

	return cmd
}

// runPrune executes the prune command.
func runPrune(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)

	days := pruneDays
	if days <= 0 {
		days = cfg.Storage.RetentionDays
	}
	if days <= 0 {
		return fmt.Errorf("retention window must be positive, got %d days", days)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	pruner, ok := db.(store.Pruner)
	if !ok {
		return fmt.Errorf("storage backend %s cannot prune", db.Name())
	}

	deleted, err := pruner.Prune(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}

	fmt.Printf("🧹 Pruned %d articles older than %d days from %s\n", deleted, days, db.Name())
	return nil
}
