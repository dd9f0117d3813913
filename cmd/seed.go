package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/riderpoint/internal/utils"
	"github.com/sw33tLie/riderpoint/pkg/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed [fixture.yaml]",
	Short: "Load tours, forum categories, threads and posts into the database",
	Long: `Load a YAML fixture into the local database. Without an argument the built-in demo data is used.
Tours whose title already exists and existing categories or topics are skipped, so seeding twice is safe.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			fx  *seed.Fixture
			err error
		)
		if len(args) == 1 {
			fx, err = seed.Load(args[0])
		} else {
			fx, err = seed.Demo()
		}
		if err != nil {
			return err
		}

		db, path, closeFn, err := openWriter(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer closeFn()

		sum, err := seed.Apply(cmd.Context(), db, fx, utils.NewEngineLogger("seed"))
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %s into %s\n", sum, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
