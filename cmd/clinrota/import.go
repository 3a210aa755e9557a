package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/clinrota/clinrota/internal/snapshot"
)

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import reference data from a YAML file",
	Long: `Import students, preceptors, sites, clerkships, availability patterns,
capacity rules, teams, fallback chains, and blackout dates from a YAML file.

The import replaces previously imported reference data. Schedule assignments
carried by the file are upserted by id; stored assignments the file does not
mention are preserved.

Example:
  clinrota import rotations.yaml`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		snap, err := snapshot.LoadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		store := openStorage(ctx)
		defer store.Close()

		if err := store.Import(ctx, snap); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(snap.Assignments) > 0 {
			if err := store.UpsertAssignments(ctx, snap.Assignments); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to import assignments: %v\n", err)
				os.Exit(1)
			}
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("\n%s Imported %s\n\n", green("✓"), args[0])
		fmt.Printf("  Students:       %d\n", len(snap.Students))
		fmt.Printf("  Preceptors:     %d\n", len(snap.Preceptors))
		fmt.Printf("  Sites:          %d\n", len(snap.Sites))
		fmt.Printf("  Clerkships:     %d\n", len(snap.Clerkships))
		fmt.Printf("  Requirements:   %d\n", len(snap.Requirements))
		fmt.Printf("  Patterns:       %d\n", len(snap.Patterns))
		fmt.Printf("  Capacity rules: %d\n", len(snap.CapacityRules))
		fmt.Printf("  Teams:          %d\n", len(snap.Teams))
		fmt.Printf("  Fallback chains: %d\n", len(snap.FallbackChains))
		fmt.Printf("  Blackouts:      %d\n", len(snap.Blackouts))
		if len(snap.Assignments) > 0 {
			fmt.Printf("  Assignments:    %d\n", len(snap.Assignments))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
