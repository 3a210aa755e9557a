package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/clinrota/clinrota/internal/engine"
	"github.com/clinrota/clinrota/internal/snapshot"
	"github.com/clinrota/clinrota/internal/types"
)

var (
	generateStart  string
	generateEnd    string
	generateDryRun bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate schedule assignments for a date range",
	Long: `Generate schedule assignments for every student requirement over a date
range. Existing assignments are preserved and credited; the generator only
fills what is still missing, so running it twice over the same window is a
no-op.

Example:
  clinrota generate --start 2025-01-06 --end 2025-03-28
  clinrota generate --start 2025-01-06 --end 2025-03-28 --dry-run`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		start, end, err := parseRange(generateStart, generateEnd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		store := openStorage(ctx)
		defer store.Close()

		snap, err := store.LoadSnapshot(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		result, err := engine.NewScheduler().Generate(snap, snapshot.Request{Start: start, End: end})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if !generateDryRun {
			if err := store.UpsertAssignments(ctx, result.Assignments); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to save assignments: %v\n", err)
				os.Exit(1)
			}
		}

		printResult(result, generateDryRun)
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateStart, "start", "", "first day of the window (YYYY-MM-DD)")
	generateCmd.Flags().StringVar(&generateEnd, "end", "", "last day of the window (YYYY-MM-DD)")
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "compute the schedule without saving it")
	_ = generateCmd.MarkFlagRequired("start")
	_ = generateCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(generateCmd)
}

// parseRange parses the --start/--end flag pair.
func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse(types.DateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start date %q (want YYYY-MM-DD)", startStr)
	}
	end, err := time.Parse(types.DateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --end date %q (want YYYY-MM-DD)", endStr)
	}
	return start, end, nil
}

// printResult prints a generation summary in the shared format used by
// generate and regenerate.
func printResult(result *engine.Result, dryRun bool) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	if dryRun {
		fmt.Printf("\n%s Dry run, nothing saved\n\n", gray("→"))
	} else {
		fmt.Printf("\n%s Schedule updated\n\n", green("✓"))
	}
	fmt.Printf("  New assignments:     %d\n", len(result.Assignments))
	if len(result.Removed) > 0 {
		fmt.Printf("  Removed assignments: %d\n", len(result.Removed))
	}

	if len(result.Shortfalls) > 0 {
		fmt.Printf("\n%s %d requirement(s) could not be fully satisfied:\n", yellow("!"), len(result.Shortfalls))
		for _, sf := range result.Shortfalls {
			fmt.Printf("  %s %s/%s short %d day(s)\n", sf.StudentID, sf.ClerkshipID, sf.Type, sf.Days)
		}
	}
	if len(result.Unassigned) > 0 {
		fmt.Printf("\n%s %d student-day(s) left unassigned\n", gray("·"), len(result.Unassigned))
	}
	fmt.Println()
}
