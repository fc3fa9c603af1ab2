// Package retention bounds usage-store growth: count caps on searches and
// resource accesses, an age cap on command invocations. Sweeping is a
// maintenance operation, never on the critical path of a read or write, and
// skipping a cycle has no correctness impact.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/runger/palstore/internal/store"
)

// Default policy values.
const (
	// DefaultMaxQueries caps the search_queries table.
	DefaultMaxQueries = 100

	// DefaultMaxResources caps the resource_accesses table.
	DefaultMaxResources = 100

	// DefaultInvocationRetentionDays is the age cap for invocations.
	// Aggregate statistics benefit from a longer window than the
	// count-capped tables.
	DefaultInvocationRetentionDays = 90

	// MinRetentionDays and MaxRetentionDays bound the configurable age cap.
	MinRetentionDays = 1
	MaxRetentionDays = 3650

	// VacuumThreshold is the number of deleted rows that triggers a vacuum
	// on the SQLite backend.
	VacuumThreshold = 10000
)

// Policy defines the retention policy for stored usage data.
type Policy struct {
	Logger                  *slog.Logger
	MaxQueries              int
	MaxResources            int
	InvocationRetentionDays int
	AutoVacuum              bool
}

// DefaultPolicy returns the default retention policy.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxQueries:              DefaultMaxQueries,
		MaxResources:            DefaultMaxResources,
		InvocationRetentionDays: DefaultInvocationRetentionDays,
		AutoVacuum:              true,
		Logger:                  slog.Default(),
	}
}

// clamp normalizes out-of-range policy values.
func (p *Policy) clamp() {
	if p.MaxQueries < 0 {
		p.MaxQueries = DefaultMaxQueries
	}
	if p.MaxResources < 0 {
		p.MaxResources = DefaultMaxResources
	}
	if p.InvocationRetentionDays < MinRetentionDays {
		p.InvocationRetentionDays = MinRetentionDays
	}
	if p.InvocationRetentionDays > MaxRetentionDays {
		p.InvocationRetentionDays = MaxRetentionDays
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
}

// Sweeper applies a retention policy to a store.
type Sweeper struct {
	st     store.Store
	policy *Policy
}

// NewSweeper creates a sweeper with the given policy. A nil policy uses
// DefaultPolicy; out-of-range values are clamped.
func NewSweeper(st store.Store, policy *Policy) *Sweeper {
	if policy == nil {
		policy = DefaultPolicy()
	}
	policy.clamp()

	return &Sweeper{st: st, policy: policy}
}

// Policy returns the effective (clamped) policy.
func (s *Sweeper) Policy() *Policy { return s.policy }

// Sweep runs one retention pass at the current time.
func (s *Sweeper) Sweep(ctx context.Context) (*store.SweepResult, error) {
	return s.SweepAt(ctx, time.Now().UnixMilli())
}

// SweepAt runs one retention pass using a specific current time.
// Useful for testing with a controlled timestamp.
func (s *Sweeper) SweepAt(ctx context.Context, nowMs int64) (*store.SweepResult, error) {
	start := time.Now()

	limits := store.SweepLimits{
		MaxQueries:         s.policy.MaxQueries,
		MaxResources:       s.policy.MaxResources,
		InvocationCutoffMs: nowMs - int64(s.policy.InvocationRetentionDays)*24*60*60*1000,
	}
	if s.policy.AutoVacuum {
		limits.VacuumThreshold = VacuumThreshold
	}

	result, err := s.st.Sweep(ctx, limits)
	if err != nil {
		return nil, err
	}

	s.policy.Logger.Info("retention sweep completed",
		"deleted_queries", result.DeletedQueries,
		"deleted_resources", result.DeletedResources,
		"deleted_invocations", result.DeletedInvocations,
		"vacuumed", result.Vacuumed,
		"duration", time.Since(start),
	)
	return result, nil
}
