// Package config provides configuration management for palstore.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the palstore configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Retention RetentionConfig `yaml:"retention"`
	Ranking   RankingConfig   `yaml:"ranking"`
}

// StoreConfig holds backing-store settings.
type StoreConfig struct {
	Backend       string `yaml:"backend"`         // auto, sqlite, or file
	DataDir       string `yaml:"data_dir"`        // Data directory (empty = default)
	ReadTimeoutMs int    `yaml:"read_timeout_ms"` // Max wait for picker reads
	QueueSize     int    `yaml:"queue_size"`      // Write queue depth
}

// RetentionConfig holds retention policy settings.
type RetentionConfig struct {
	MaxQueries              int  `yaml:"max_queries"`               // Search history cap
	MaxResources            int  `yaml:"max_resources"`             // Resource access cap
	InvocationRetentionDays int  `yaml:"invocation_retention_days"` // Age cap for invocations
	SweepIntervalMins       int  `yaml:"sweep_interval_mins"`       // Background sweep interval
	AutoVacuum              bool `yaml:"auto_vacuum"`               // VACUUM after large sweeps
}

// RankingConfig holds ranking weight settings.
type RankingConfig struct {
	FuzzyWeight       float64 `yaml:"fuzzy_weight"`       // Live relevance weight
	HistoryWeight     float64 `yaml:"history_weight"`     // Historical usage weight
	NameWeight        float64 `yaml:"name_weight"`        // Primary name field
	DescriptionWeight float64 `yaml:"description_weight"` // Secondary description field
	CategoryWeight    float64 `yaml:"category_weight"`    // Category field
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:       "auto",
			ReadTimeoutMs: 50,
			QueueSize:     256,
		},
		Retention: RetentionConfig{
			MaxQueries:              100,
			MaxResources:            100,
			InvocationRetentionDays: 90,
			SweepIntervalMins:       30,
			AutoVacuum:              true,
		},
		Ranking: RankingConfig{
			FuzzyWeight:       1.0,
			HistoryWeight:     0.25,
			NameWeight:        1.0,
			DescriptionWeight: 0.5,
			CategoryWeight:    0.25,
		},
	}
}

// Load reads configuration from path, filling unset fields with defaults.
// A missing file returns the defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.validate()
	return cfg, nil
}

// LoadDefault loads the configuration from the default path.
func LoadDefault() (*Config, error) {
	return Load(filepath.Join(DefaultPaths().ConfigDir, "config.yaml"))
}

// validate clamps out-of-range values back to defaults.
func (c *Config) validate() {
	d := Default()

	switch c.Store.Backend {
	case "auto", "sqlite", "file":
	default:
		c.Store.Backend = d.Store.Backend
	}
	if c.Store.ReadTimeoutMs <= 0 {
		c.Store.ReadTimeoutMs = d.Store.ReadTimeoutMs
	}
	if c.Store.QueueSize <= 0 {
		c.Store.QueueSize = d.Store.QueueSize
	}

	if c.Retention.MaxQueries < 0 {
		c.Retention.MaxQueries = d.Retention.MaxQueries
	}
	if c.Retention.MaxResources < 0 {
		c.Retention.MaxResources = d.Retention.MaxResources
	}
	if c.Retention.InvocationRetentionDays <= 0 {
		c.Retention.InvocationRetentionDays = d.Retention.InvocationRetentionDays
	}
	if c.Retention.SweepIntervalMins <= 0 {
		c.Retention.SweepIntervalMins = d.Retention.SweepIntervalMins
	}

	if c.Ranking.FuzzyWeight <= 0 {
		c.Ranking.FuzzyWeight = d.Ranking.FuzzyWeight
	}
	if c.Ranking.HistoryWeight <= 0 {
		c.Ranking.HistoryWeight = d.Ranking.HistoryWeight
	}
	if c.Ranking.NameWeight <= 0 {
		c.Ranking.NameWeight = d.Ranking.NameWeight
	}
	if c.Ranking.DescriptionWeight <= 0 {
		c.Ranking.DescriptionWeight = d.Ranking.DescriptionWeight
	}
	if c.Ranking.CategoryWeight <= 0 {
		c.Ranking.CategoryWeight = d.Ranking.CategoryWeight
	}
}

// DataDir resolves the effective data directory: the configured one, the
// PALSTORE_DATA_DIR environment variable, or the platform default.
func (c *Config) DataDir() string {
	if c.Store.DataDir != "" {
		return c.Store.DataDir
	}
	if env := os.Getenv("PALSTORE_DATA_DIR"); env != "" {
		return env
	}
	return DefaultPaths().DataDir
}
