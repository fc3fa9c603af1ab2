package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var topLimit int

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "show the most used commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTracker()
		if err != nil {
			return err
		}
		defer t.Close()

		stats := t.TopCommands(cmd.Context(), topLimit)
		if len(stats) == 0 {
			fmt.Println(dimStyle.Render("no invocations recorded"))
			return nil
		}

		fmt.Println(headerStyle.Render("top commands"))
		for _, st := range stats {
			fmt.Printf("%s %s  %s\n",
				countStyle.Render(fmt.Sprintf("%5d", st.InvocationCount)),
				valueStyle.Render(st.CommandID),
				dimStyle.Render(fmt.Sprintf("%.0f%% ok, avg %.0fms, last %s",
					st.SuccessRate*100,
					st.AvgDurationMs,
					time.UnixMilli(st.LastUsedUnixMs).Format(time.DateTime),
				)),
			)
		}
		return nil
	},
}

var (
	resourcesLimit int
	resourcesKind  string
	resourcesQuery string
)

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "show ranked resource accesses",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTracker()
		if err != nil {
			return err
		}
		defer t.Close()

		scored := t.SearchResources(cmd.Context(), resourcesQuery, resourcesLimit, resourcesKind)
		if len(scored) == 0 {
			fmt.Println(dimStyle.Render("no matches"))
			return nil
		}

		fmt.Println(headerStyle.Render("resources"))
		for _, s := range scored {
			fmt.Printf("%s %s  %s\n",
				countStyle.Render(fmt.Sprintf("%5d", s.HitCount)),
				valueStyle.Render(s.Key),
				dimStyle.Render(fmt.Sprintf("score %.3f", s.Score)),
			)
		}
		return nil
	},
}

func init() {
	topCmd.Flags().IntVarP(&topLimit, "limit", "n", 20, "max commands to show")

	resourcesCmd.Flags().IntVarP(&resourcesLimit, "limit", "n", 20, "max resources to show")
	resourcesCmd.Flags().StringVarP(&resourcesKind, "kind", "k", "", "filter by resource kind")
	resourcesCmd.Flags().StringVarP(&resourcesQuery, "query", "q", "", "fuzzy query to rank against")
}
