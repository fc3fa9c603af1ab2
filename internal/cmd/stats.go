package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "show store backend and row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTracker()
		if err != nil {
			return err
		}
		defer t.Close()

		stats, err := t.Stats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println(headerStyle.Render("usage store"))
		fmt.Printf("%s %s\n", labelStyle.Render("backend:    "), valueStyle.Render(string(stats.Backend)))
		fmt.Printf("%s %s\n", labelStyle.Render("invocations:"), countStyle.Render(fmt.Sprintf("%d", stats.Invocations)))
		fmt.Printf("%s %s\n", labelStyle.Render("searches:   "), countStyle.Render(fmt.Sprintf("%d", stats.Queries)))
		fmt.Printf("%s %s\n", labelStyle.Render("resources:  "), countStyle.Render(fmt.Sprintf("%d", stats.Resources)))
		return nil
	},
}
