package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/rating"
)

var voteCmd = &cobra.Command{
	Use:   "vote <tour-id> <rating>",
	Short: "Rate a tour from 1 to 5",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return catalog.Invalidf("rating %q is not a number", args[1])
		}
		vote, err := rating.ParseVote(raw)
		if err != nil {
			return err
		}

		var tour catalog.Tour
		c, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		if c != nil {
			tour, err = c.Vote(cmd.Context(), args[0], vote)
		} else {
			tour, err = voteLocal(cmd, args[0], vote)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s: %.1f from %d votes\n", tour.Title, tour.Rating, tour.Votes)
		return nil
	},
}

func voteLocal(cmd *cobra.Command, id string, vote int) (catalog.Tour, error) {
	db, _, closeFn, err := openWriter(cmd.Context(), true)
	if err != nil {
		return catalog.Tour{}, err
	}
	defer closeFn()
	return db.Vote(cmd.Context(), id, vote)
}

func init() {
	rootCmd.AddCommand(voteCmd)
}
