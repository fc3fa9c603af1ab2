package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "run a retention sweep now",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTracker()
		if err != nil {
			return err
		}
		defer t.Close()

		if err := t.Cleanup(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(valueStyle.Render("retention sweep completed"))
		return nil
	},
}

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "delete all stored usage data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetForce {
			return fmt.Errorf("refusing to reset without --force")
		}

		t, err := openTracker()
		if err != nil {
			return err
		}
		defer t.Close()

		if err := t.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(valueStyle.Render("usage store reset"))
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "confirm deletion of all usage data")
}
