// Package store provides persistent usage tracking for the command palette.
// It records command invocations, palette searches, and resource navigations,
// and serves them back ordered for ranking.
package store

import "context"

// BackendKind identifies which backing implementation a Store uses.
// It exists for diagnostics only; callers must not branch on it.
type BackendKind string

const (
	BackendSQLite BackendKind = "sqlite"
	BackendFile   BackendKind = "file"
)

// Store defines the interface for all usage-store operations.
// SQLite and the file fallback implement identical observable behavior;
// the tracker is the single writer for the process lifetime.
type Store interface {
	// Writes
	RecordInvocation(ctx context.Context, inv *CommandInvocation) error
	RecordSearch(ctx context.Context, q *SearchQuery) error
	RecordResourceAccess(ctx context.Context, key ResourceKey, nowMs int64) error

	// Reads
	TopCommands(ctx context.Context, limit int) ([]CommandStat, error)
	RecentQueries(ctx context.Context, limit int) ([]SearchQuery, error)
	RecentResources(ctx context.Context, limit int, kind string) ([]ResourceAccess, error)
	TopResources(ctx context.Context, limit int, kind string) ([]ResourceAccess, error)
	CommandHitCounts(ctx context.Context) (map[string]int64, error)

	// Maintenance
	Sweep(ctx context.Context, limits SweepLimits) (*SweepResult, error)
	Reset(ctx context.Context) error
	Stats(ctx context.Context) (*Stats, error)

	// Lifecycle
	Kind() BackendKind
	Close() error
}

// CommandInvocation records one execution of a registered palette command.
// Rows are append-only and never updated after insert.
type CommandInvocation struct {
	ID           int64
	CommandID    string
	TsUnixMs     int64
	DurationMs   *int64  // nil = duration not measured
	Success      bool
	ErrorMessage *string // set only when Success is false
	Context      *string // active cluster context, if any
}

// SearchQuery records one free-text search typed into the palette.
type SearchQuery struct {
	ID          int64
	Query       string
	TsUnixMs    int64
	ResultCount int
}

// ResourceKey is the deduplication key for resource accesses.
// Namespace and Context are empty for cluster-scoped or context-free
// resources; the empty string participates in the uniqueness tuple.
type ResourceKey struct {
	Kind      string
	Name      string
	Namespace string
	Context   string
}

// ResourceAccess tracks navigations to an externally-identified resource.
// The store never holds two live rows with the same ResourceKey: repeated
// accesses increment AccessCount and refresh TsUnixMs in place.
type ResourceAccess struct {
	ID          int64
	Key         ResourceKey
	TsUnixMs    int64 // most recent access
	AccessCount int64
}

// CommandStat is the per-command aggregate derived from invocations on read.
type CommandStat struct {
	CommandID       string
	InvocationCount int64
	SuccessRate     float64
	AvgDurationMs   float64 // over invocations that measured a duration
	LastUsedUnixMs  int64
}

// SweepLimits carries the concrete bounds a retention sweep enforces.
// A zero count keeps the table unbounded; a zero cutoff skips age pruning.
type SweepLimits struct {
	MaxQueries         int
	MaxResources       int
	InvocationCutoffMs int64
	VacuumThreshold    int64 // deleted-row count that triggers VACUUM (SQLite only)
}

// SweepResult reports what a retention sweep removed.
type SweepResult struct {
	DeletedQueries     int64
	DeletedResources   int64
	DeletedInvocations int64
	Vacuumed           bool
}

// Stats holds per-table row counts for diagnostics.
type Stats struct {
	Backend     BackendKind
	Invocations int64
	Queries     int64
	Resources   int64
}
