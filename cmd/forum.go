package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/sw33tLie/riderpoint/internal/utils"
	"github.com/sw33tLie/riderpoint/pkg/catalog"
	"github.com/sw33tLie/riderpoint/pkg/forum"
	"github.com/sw33tLie/riderpoint/pkg/stats"
)

var forumCmd = &cobra.Command{
	Use:   "forum [path]",
	Short: "Browse the forum from the command line",
	Long: `Print one forum screen. path is a forum deep link as shown by the web interface:

  /forum                                  categories with thread and reply counts
  /forum/category/<id>                    topics of a category
  /forum/category/<id>/topic/<title>      threads of a topic
  /forum/thread/<id>                      a thread with its replies`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/forum"
		if len(args) == 1 {
			path = args[0]
		}
		target, err := forum.ParsePath(path)
		if err != nil {
			return err
		}

		nav, closeFn, err := newNavigator(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := nav.Go(cmd.Context(), target); err != nil {
			return err
		}
		printForumView(os.Stdout, nav.View())
		return nil
	},
}

var forumReplyCmd = &cobra.Command{
	Use:   "reply <thread-id>",
	Short: "Append a reply to a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		text, _ := cmd.Flags().GetString("text")

		nav, closeFn, err := newNavigator(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := nav.GoThread(cmd.Context(), args[0], "", ""); err != nil {
			return err
		}
		th, err := nav.AppendReply(cmd.Context(), user, text)
		if err != nil {
			return err
		}
		fmt.Printf("Replied to %q, %d replies now\n", th.Title, th.Replies)
		return nil
	},
}

// newNavigator reads from the API when one is configured, from the local
// database otherwise.
func newNavigator(cmd *cobra.Command) (*forum.Navigator, func(), error) {
	log := utils.NewEngineLogger("forum")
	c, err := newAPIClient(cmd)
	if err != nil {
		return nil, nil, err
	}
	if c != nil {
		return forum.New(c, forum.WithLogger(log)), func() {}, nil
	}
	db, _, err := openDB(true)
	if err != nil {
		return nil, nil, err
	}
	return forum.New(db, forum.WithLogger(log)), func() { db.Close() }, nil
}

func printForumView(out io.Writer, v forum.View) {
	labels := make([]string, len(v.Crumbs))
	for i, c := range v.Crumbs {
		labels[i] = c.Label
	}
	fmt.Fprintf(out, "%s\n\n", strings.Join(labels, " > "))
	if v.Err != nil {
		fmt.Fprintf(out, "Warning: showing cached data, refresh failed: %v\n\n", v.Err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch v.State.Kind {
	case forum.Home:
		if len(v.Categories) == 0 {
			fmt.Fprintln(w, "The forum has no categories yet.")
			return
		}
		fmt.Fprintln(w, "ID\tCATEGORY\tTHREADS\tREPLIES\tLATEST")
		for _, c := range v.Categories {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", c.Category.ID, c.Category.Title, c.Stats.ItemCount, c.Stats.ReplyCount, latest(c.Stats))
		}
	case forum.CategoryView:
		fmt.Fprintln(w, "TOPIC\tTHREADS\tREPLIES\tLATEST")
		for _, t := range v.Topics {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", t.Topic.Title, t.Stats.ItemCount, t.Stats.ReplyCount, latest(t.Stats))
		}
	case forum.TopicView:
		if len(v.Threads) == 0 {
			fmt.Fprintln(w, "No threads in this topic yet.")
			return
		}
		fmt.Fprintln(w, "ID\tTITLE\tBY\tREPLIES\tDATE")
		for _, t := range v.Threads {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", t.ID, t.Title, t.User, t.Replies, t.Date)
		}
	case forum.ThreadDetail:
		if v.Thread == nil {
			return
		}
		t := v.Thread
		fmt.Fprintf(w, "%s\n%s, %s\n\n%s\n\n%d replies\n", t.Title, t.User, t.Date, t.Text, t.Replies)
		for _, r := range t.RepliesList {
			fmt.Fprintf(w, "  %s\t%s\t%s\n", r.Date, r.User, r.Text)
		}
	}
}

func latest(s stats.Scope[catalog.Thread]) string {
	if s.MostRecent == nil {
		return "-"
	}
	return s.MostRecent.Title
}

func init() {
	rootCmd.AddCommand(forumCmd)
	forumCmd.AddCommand(forumReplyCmd)
	forumReplyCmd.Flags().String("user", "", "Display name of the author")
	forumReplyCmd.Flags().String("text", "", "Reply text")
	forumReplyCmd.MarkFlagRequired("user")
	forumReplyCmd.MarkFlagRequired("text")
}
