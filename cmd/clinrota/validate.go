package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/clinrota/clinrota/internal/requirements"
	"github.com/clinrota/clinrota/internal/snapshot"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file.yaml]",
	Short: "Validate reference data without importing it",
	Long: `Validate a YAML reference data file, or the imported database when no
file is given. Checks structural validity of every record (enum values,
pattern configurations, capacity rule scopes, date ranges) and resolves
every clerkship requirement configuration, surfacing the override errors
that would otherwise fail a generation.

Example:
  clinrota validate rotations.yaml
  clinrota validate`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		red := color.New(color.FgRed).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()

		var snap *snapshot.Snapshot
		var err error
		var source string
		if len(args) > 0 {
			source = args[0]
			snap, err = snapshot.LoadFile(source)
		} else {
			source = "database"
			store := openStorage(ctx)
			defer store.Close()
			snap, err = store.LoadSnapshot(ctx)
			if err == nil {
				err = snap.Validate()
			}
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", red("✗"), err)
			os.Exit(1)
		}

		// Resolve every requirement configuration; a broken override
		// would otherwise fail the first generation instead of the
		// validation that should have caught it.
		resolver := requirements.NewResolver(snap.Defaults, snap.Requirements)
		resolved := 0
		for _, c := range snap.Clerkships {
			for _, row := range resolver.Requirements(c.ID) {
				if _, err := resolver.Resolve(row.ClerkshipID, row.Type); err != nil {
					fmt.Fprintf(os.Stderr, "%s %v\n", red("✗"), err)
					os.Exit(1)
				}
				resolved++
			}
		}

		fmt.Printf("%s %s is valid (%d students, %d preceptors, %d clerkships, %d requirement configs)\n",
			green("✓"), source, len(snap.Students), len(snap.Preceptors), len(snap.Clerkships), resolved)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
