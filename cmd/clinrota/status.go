package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/clinrota/clinrota/internal/types"
)

var (
	statusStart string
	statusEnd   string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schedule for a date range",
	Long: `Show stored assignments in a date range, grouped by date, with per-student
and per-preceptor totals.

Example:
  clinrota status --start 2025-01-06 --end 2025-01-17`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		start, end, err := parseRange(statusStart, statusEnd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		store := openStorage(ctx)
		defer store.Close()

		assignments, err := store.ListAssignments(ctx, start, end)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		if len(assignments) == 0 {
			fmt.Printf("%s no assignments between %s and %s\n",
				gray("·"), types.DateKey(start), types.DateKey(end))
			return
		}

		byStudent := make(map[string]int)
		byPreceptor := make(map[string]int)
		byRequirement := make(map[string]int)
		lastDate := ""
		for _, a := range assignments {
			key := types.DateKey(a.Date)
			if key != lastDate {
				fmt.Printf("\n%s\n", cyan(key))
				lastDate = key
			}
			fmt.Printf("  %-12s %-12s %s/%s @ %s\n",
				a.StudentID, a.PreceptorID, a.ClerkshipID, a.Type, a.SiteID)
			byStudent[a.StudentID]++
			byPreceptor[a.PreceptorID]++
			byRequirement[a.ClerkshipID+"/"+string(a.Type)]++
		}

		fmt.Printf("\n%d assignment(s), %d student(s), %d preceptor(s)\n",
			len(assignments), len(byStudent), len(byPreceptor))

		fmt.Println("\nBy requirement:")
		for _, key := range sortedKeys(byRequirement) {
			fmt.Printf("  %-24s %d day(s)\n", key, byRequirement[key])
		}
		fmt.Println("\nBy student:")
		for _, id := range sortedKeys(byStudent) {
			fmt.Printf("  %-12s %d day(s)\n", id, byStudent[id])
		}
	},
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	statusCmd.Flags().StringVar(&statusStart, "start", "", "first day (YYYY-MM-DD)")
	statusCmd.Flags().StringVar(&statusEnd, "end", "", "last day (YYYY-MM-DD)")
	_ = statusCmd.MarkFlagRequired("start")
	_ = statusCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(statusCmd)
}
