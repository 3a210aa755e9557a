package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clinrota/clinrota/internal/storage"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "clinrota",
	Short: "Clinical rotation scheduler",
	Long: `clinrota generates clinical rotation schedules: it places students with
preceptors day by day, honoring availability patterns, capacity ceilings,
team continuity, fallback chains, and blackout dates.

Reference data (students, preceptors, sites, clerkships, rules) is imported
from a YAML file into a local SQLite database; schedules are generated and
regenerated against it.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default .clinrota/clinrota.db)")
}

// openStorage opens the configured database, exiting on failure. Commands
// that need storage call this at the top of their Run func.
func openStorage(ctx context.Context) storage.Storage {
	cfg := storage.DefaultConfig()
	if dbPath != "" {
		cfg.Path = dbPath
	}
	store, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
		os.Exit(1)
	}
	return store
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
