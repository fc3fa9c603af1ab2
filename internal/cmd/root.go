// Package cmd implements the palstore maintenance and inspection CLI.
package cmd

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/palstore/internal/config"
	"github.com/runger/palstore/internal/rank"
	"github.com/runger/palstore/internal/retention"
	"github.com/runger/palstore/internal/tracker"
)

var (
	flagConfig  string
	flagDataDir string
	flagBackend string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "palstore",
	Short: "inspect and maintain the palette usage store",
	Long: `palstore - inspect and maintain the palette usage store
  - stats, top, resources → see what the picker will rank
  - cleanup, reset → retention maintenance`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory override")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "backend override (auto, sqlite, file)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(resourcesCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(resetCmd)
}

// openTracker loads the configuration and opens the store for a one-shot
// CLI invocation. The background sweeper stays off; cleanup is explicit.
func openTracker() (*tracker.Tracker, error) {
	var cfg *config.Config
	var err error
	if flagConfig != "" {
		cfg, err = config.Load(flagConfig)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if flagDataDir != "" {
		cfg.Store.DataDir = flagDataDir
	}
	if flagBackend != "" {
		cfg.Store.Backend = flagBackend
	}

	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return tracker.New(tracker.Options{
		DataDir: cfg.DataDir(),
		Backend: cfg.Store.Backend,
		Policy: &retention.Policy{
			Logger:                  logger,
			MaxQueries:              cfg.Retention.MaxQueries,
			MaxResources:            cfg.Retention.MaxResources,
			InvocationRetentionDays: cfg.Retention.InvocationRetentionDays,
			AutoVacuum:              cfg.Retention.AutoVacuum,
		},
		SweepInterval: -1,
		Weights: rank.Weights{
			Name:        cfg.Ranking.NameWeight,
			Description: cfg.Ranking.DescriptionWeight,
			Category:    cfg.Ranking.CategoryWeight,
			Fuzzy:       cfg.Ranking.FuzzyWeight,
			History:     cfg.Ranking.HistoryWeight,
		},
		ReadTimeout: time.Duration(cfg.Store.ReadTimeoutMs) * time.Millisecond,
		QueueSize:   cfg.Store.QueueSize,
		Logger:      logger,
	})
}
