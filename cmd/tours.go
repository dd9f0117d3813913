package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sw33tLie/riderpoint/internal/utils"
	"github.com/sw33tLie/riderpoint/pkg/cache"
	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/client"
	"github.com/sw33tLie/riderpoint/pkg/facet"
	"github.com/sw33tLie/riderpoint/pkg/fetch"
	"golang.org/x/text/language"
)

var toursCmd = &cobra.Command{
	Use:   "tours",
	Short: "List tours narrowed by region, country, state and search text",
	Example: `  riderpoint tours --region EU
  riderpoint tours --region EU --country Italia --search pass
  riderpoint tours --policy show-all --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := facet.ParsePolicy(stringFlagOr(cmd, "policy", viper.GetString("tours.empty_root_policy")))
		if err != nil {
			return err
		}
		locale, err := language.Parse(stringFlagOr(cmd, "locale", viper.GetString("tours.locale")))
		if err != nil {
			return fmt.Errorf("invalid locale: %w", err)
		}

		var fetcher fetch.Fetcher[catalog.Tour]
		c, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		if c != nil {
			fetcher = client.Fetcher[catalog.Tour](c, client.PathTours)
		} else {
			db, _, err := openDB(true)
			if err != nil {
				return err
			}
			defer db.Close()
			fetcher = db.TourFetcher()
		}

		tours := cache.New[catalog.Tour](catalog.CollectionTours)
		loader := fetch.NewLoader[catalog.Tour](tours, fetcher, fetch.WithLogger(utils.NewEngineLogger("tours")))
		if err := loader.Load(cmd.Context(), nil); err != nil {
			return err
		}

		sel := facet.NewTourSelector(tours, policy, locale)
		for i, name := range []string{facet.TourRegion, facet.TourCountry, facet.TourState} {
			v, _ := cmd.Flags().GetString(name)
			if v == "" {
				continue
			}
			if err := sel.SelectAt(i, v); err != nil {
				return err
			}
		}
		search, _ := cmd.Flags().GetString("search")
		sel.SetSearch(search)

		res := sel.Result()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res.Items)
		}
		if res.Prompt {
			opts, _ := sel.Options(0)
			fmt.Printf("Pick a region with --region: %s\n", strings.Join(opts, ", "))
			return nil
		}
		printFacetHints(sel)
		if len(res.Items) == 0 {
			fmt.Println("No tours match.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tREGION\tCOUNTRY\tSTATE\tKM\tRATING")
		for _, t := range res.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.0f\t%.1f (%d)\n", t.ID, t.Title, t.Region, t.Country, t.State, t.Km, t.Rating, t.Votes)
		}
		return w.Flush()
	},
}

// printFacetHints lists the options of the first enabled, unselected level.
func printFacetHints(sel *facet.Selector[catalog.Tour]) {
	for _, l := range sel.Levels() {
		if l.Enabled && !l.Selected() && len(l.Options) > 0 {
			fmt.Printf("Narrow with --%s: %s\n\n", l.Name, strings.Join(l.Options, ", "))
			return
		}
	}
}

func stringFlagOr(cmd *cobra.Command, name, fallback string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return fallback
}

func init() {
	rootCmd.AddCommand(toursCmd)
	toursCmd.Flags().String(facet.TourRegion, "", "Region, e.g. EU")
	toursCmd.Flags().String(facet.TourCountry, "", "Country within the region")
	toursCmd.Flags().String(facet.TourState, "", "State within the country")
	toursCmd.Flags().String("search", "", "Case-insensitive text matched against title and description")
	toursCmd.Flags().String("policy", "", "What to show before a region is picked: show-prompt or show-all (default from config)")
	toursCmd.Flags().String("locale", "", "Locale used to sort options (default from config)")
	toursCmd.Flags().Bool("json", false, "Print the matching tours as JSON")
}
