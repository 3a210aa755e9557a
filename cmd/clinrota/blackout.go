package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/clinrota/clinrota/internal/types"
)

var blackoutReason string

var blackoutCmd = &cobra.Command{
	Use:   "blackout",
	Short: "Manage blackout dates",
}

var blackoutAddCmd = &cobra.Command{
	Use:   "add <date>",
	Short: "Add a blackout date",
	Long: `Add a blackout date. Existing assignments on that day are listed so they
can be resolved with a regeneration; they are never silently removed.

Example:
  clinrota blackout add 2025-07-04 --reason "Independence Day"
  clinrota regenerate --start 2025-01-06 --end 2025-12-19 --from 2025-07-04`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		date, err := time.Parse(types.DateLayout, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid date %q (want YYYY-MM-DD)\n", args[0])
			os.Exit(1)
		}

		store := openStorage(ctx)
		defer store.Close()

		conflicts, err := store.AddBlackout(ctx, types.BlackoutDate{Date: date, Reason: blackoutReason})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		fmt.Printf("\n%s Blackout added for %s\n", green("✓"), types.DateKey(date))
		if len(conflicts) > 0 {
			fmt.Printf("\n%s %d existing assignment(s) fall on this date:\n", yellow("!"), len(conflicts))
			for _, a := range conflicts {
				fmt.Printf("  %s  student %s with %s (%s/%s)\n",
					a.ID, a.StudentID, a.PreceptorID, a.ClerkshipID, a.Type)
			}
			fmt.Printf("\nRun 'clinrota regenerate --from %s' to reschedule them.\n", types.DateKey(date))
		}
		fmt.Println()
	},
}

func init() {
	blackoutAddCmd.Flags().StringVar(&blackoutReason, "reason", "", "why the date is blacked out")
	blackoutCmd.AddCommand(blackoutAddCmd)
	rootCmd.AddCommand(blackoutCmd)
}
