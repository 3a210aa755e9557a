package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/clinrota/clinrota/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a clinrota database in the current directory",
	Long: `Initialize a clinrota scheduling database.

This creates:
  - .clinrota/ directory
  - .clinrota/clinrota.db (SQLite database)

Example:
  cd ~/rotations
  clinrota init
  clinrota init --db ./schedules.db`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		cfg := storage.DefaultConfig()
		if dbPath != "" {
			cfg.Path = dbPath
		}
		store, err := storage.NewStorage(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to initialize database: %v\n", err)
			os.Exit(1)
		}
		_ = store.Close()

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("\n%s Initialized clinrota database\n\n", green("✓"))
		fmt.Printf("  Database: %s\n", cyan(cfg.Path))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
