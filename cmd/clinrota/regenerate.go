package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinrota/clinrota/internal/engine"
	"github.com/clinrota/clinrota/internal/snapshot"
	"github.com/clinrota/clinrota/internal/types"
)

var (
	regenStart  string
	regenEnd    string
	regenFrom   string
	regenDryRun bool
)

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Rebuild the schedule from a cutover date onward",
	Long: `Rebuild schedule assignments from a cutover date onward. Assignments
before the cutover are preserved untouched and credited toward requirement
day counts; assignments on or after it are discarded and rebuilt.

Without --from, the cutover defaults to the start of the window.

Example:
  clinrota regenerate --start 2025-01-06 --end 2025-03-28 --from 2025-02-03`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		start, end, err := parseRange(regenStart, regenEnd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		req := snapshot.Request{Start: start, End: end}
		if regenFrom != "" {
			from, err := time.Parse(types.DateLayout, regenFrom)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid --from date %q (want YYYY-MM-DD)\n", regenFrom)
				os.Exit(1)
			}
			req.RegenerateFrom = &from
		}

		store := openStorage(ctx)
		defer store.Close()

		snap, err := store.LoadSnapshot(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		result, err := engine.NewScheduler().Regenerate(snap, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if !regenDryRun {
			ids := make([]string, len(result.Removed))
			for i, a := range result.Removed {
				ids[i] = a.ID
			}
			if err := store.ApplyResult(ctx, ids, result.Assignments); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to save schedule: %v\n", err)
				os.Exit(1)
			}
		}

		printResult(result, regenDryRun)
	},
}

func init() {
	regenerateCmd.Flags().StringVar(&regenStart, "start", "", "first day of the window (YYYY-MM-DD)")
	regenerateCmd.Flags().StringVar(&regenEnd, "end", "", "last day of the window (YYYY-MM-DD)")
	regenerateCmd.Flags().StringVar(&regenFrom, "from", "", "cutover date; earlier assignments are preserved (YYYY-MM-DD)")
	regenerateCmd.Flags().BoolVar(&regenDryRun, "dry-run", false, "compute the schedule without saving it")
	_ = regenerateCmd.MarkFlagRequired("start")
	_ = regenerateCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(regenerateCmd)
}
