// Package tracker is the single entry point to the usage store. It selects
// a backend once at startup, serializes mutations through a writer
// goroutine, and exposes record and query operations with the same contract
// regardless of backend.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/runger/palstore/internal/rank"
	"github.com/runger/palstore/internal/retention"
	"github.com/runger/palstore/internal/store"
)

// Defaults for facade tuning knobs.
const (
	// DefaultReadTimeout bounds picker-facing reads. On timeout the read
	// degrades to an empty result instead of blocking the UI.
	DefaultReadTimeout = 50 * time.Millisecond

	// DefaultQueueSize is the write queue depth. A full queue drops the
	// write with a warning rather than blocking the caller.
	DefaultQueueSize = 256
)

// Backend selection values for Options.Backend.
const (
	BackendAuto   = "auto"
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Options configures a Tracker.
type Options struct {
	// DataDir is the application-owned data directory. Required.
	DataDir string

	// Backend selects the backing store: "auto" (default) tries SQLite
	// and falls back to the file store, "sqlite" and "file" force one.
	Backend string

	// Policy is the retention policy. Nil uses retention.DefaultPolicy.
	Policy *retention.Policy

	// SweepInterval is the background sweep interval. Zero uses
	// retention.DefaultInterval; negative disables the background runner.
	SweepInterval time.Duration

	// Weights configures ranking. Zero fields use rank defaults.
	Weights rank.Weights

	// ReadTimeout bounds picker reads. Zero uses DefaultReadTimeout.
	ReadTimeout time.Duration

	// QueueSize is the write queue depth. Zero uses DefaultQueueSize.
	QueueSize int

	// Logger is the structured logger. Nil uses slog.Default().
	Logger *slog.Logger
}

// Tracker is the backend-agnostic usage-store facade.
type Tracker struct {
	st      store.Store
	logger  *slog.Logger
	engine  *rank.Engine
	sweeper *retention.Sweeper
	runner  *retention.Runner
	hits    *hitCountCache

	readTimeout time.Duration

	ops       chan func()
	stoppedCh chan struct{}
	closeMu   sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// New opens the usage store and starts the writer goroutine and background
// sweeper. Backend selection happens here, once: a SQLite initialization
// failure falls back to the file store, except a schema version mismatch,
// which is fatal and halts startup. Callers never need to know which
// backend is active.
func New(opts Options) (*Tracker, error) {
	if opts.DataDir == "" {
		return nil, errors.New("tracker: data directory is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	st, err := openBackend(opts)
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		st:          st,
		logger:      opts.Logger,
		engine:      rank.NewEngine(opts.Weights),
		hits:        newHitCountCache(),
		readTimeout: opts.ReadTimeout,
		ops:         make(chan func(), opts.QueueSize),
		stoppedCh:   make(chan struct{}),
	}
	t.sweeper = retention.NewSweeper(st, opts.Policy)

	go t.writeLoop()

	if opts.SweepInterval >= 0 {
		t.runner = retention.NewRunner(t.sweeper, opts.SweepInterval)
		t.runner.Start()
	}

	return t, nil
}

// openBackend performs the one-time backend selection. This is the only
// place that branches on backend kind.
func openBackend(opts Options) (store.Store, error) {
	backend := opts.Backend
	if backend == "" {
		backend = BackendAuto
	}

	switch backend {
	case BackendFile:
		return store.NewFileStore(store.DefaultFilePath(opts.DataDir), opts.Logger)
	case BackendSQLite:
		return store.NewSQLiteStore(store.DefaultDBPath(opts.DataDir), opts.Logger)
	case BackendAuto:
		st, err := store.NewSQLiteStore(store.DefaultDBPath(opts.DataDir), opts.Logger)
		if err == nil {
			return st, nil
		}
		if errors.Is(err, store.ErrSchemaVersion) {
			// Never silently downgrade a newer database.
			return nil, err
		}
		opts.Logger.Warn("sqlite backend unavailable, using file store", "error", err)
		return store.NewFileStore(store.DefaultFilePath(opts.DataDir), opts.Logger)
	default:
		return nil, fmt.Errorf("tracker: unknown backend %q", backend)
	}
}

// Backend reports which backend was selected, for diagnostics.
func (t *Tracker) Backend() store.BackendKind { return t.st.Kind() }

// Close drains pending writes, stops background goroutines, and closes the
// store. It is safe to call multiple times.
func (t *Tracker) Close() error {
	t.closeOnce.Do(func() {
		if t.runner != nil {
			t.runner.Stop()
		}
		t.closeMu.Lock()
		t.closed = true
		t.closeMu.Unlock()
		close(t.ops)
		<-t.stoppedCh
		t.closeErr = t.st.Close()
	})
	return t.closeErr
}

// writeLoop drains the op queue. A single goroutine applies all mutations,
// so writes from the same caller land in the order issued.
func (t *Tracker) writeLoop() {
	defer close(t.stoppedCh)
	for op := range t.ops {
		op()
	}
}

// enqueue submits a write without blocking the caller. A full queue drops
// the write; recording usage must never stall the user's primary action.
// Writes racing with or after Close are dropped the same way.
func (t *Tracker) enqueue(op func()) {
	t.closeMu.RLock()
	defer t.closeMu.RUnlock()

	if t.closed {
		t.logger.Warn("usage write after close, dropping write")
		return
	}
	select {
	case t.ops <- op:
	default:
		t.logger.Warn("usage write queue full, dropping write")
	}
}

// Flush blocks until every write enqueued before the call has been applied.
// After Close it returns immediately; Close already drained the queue.
func (t *Tracker) Flush() {
	t.closeMu.RLock()
	if t.closed {
		t.closeMu.RUnlock()
		return
	}
	done := make(chan struct{})
	t.ops <- func() { close(done) }
	t.closeMu.RUnlock()
	<-done
}

// runWrite executes a store write with a single retry on transient errors.
// Remaining failures are logged and swallowed per the write-path policy.
func (t *Tracker) runWrite(name string, fn func(ctx context.Context) error) {
	ctx := context.Background()
	err := fn(ctx)
	if err != nil && store.IsTransient(err) {
		err = fn(ctx)
	}
	switch {
	case err == nil:
	case store.IsConstraint(err):
		// Constraint violations outside the upsert path are caller bugs,
		// not storage weather.
		t.logger.Error("usage write violated constraint", "op", name, "error", err)
	default:
		t.logger.Warn("usage write dropped", "op", name, "error", err)
	}
}

// RecordCommandInvocation records one execution of a palette command.
// Fire-and-forget: the caller's action never waits on persistence.
func (t *Tracker) RecordCommandInvocation(inv store.CommandInvocation) {
	if inv.TsUnixMs == 0 {
		inv.TsUnixMs = time.Now().UnixMilli()
	}
	t.enqueue(func() {
		t.runWrite("record_invocation", func(ctx context.Context) error {
			if err := t.st.RecordInvocation(ctx, &inv); err != nil {
				return err
			}
			t.hits.invalidate(inv.CommandID)
			return nil
		})
	})
}

// RecordSearchQuery records one free-text palette search.
func (t *Tracker) RecordSearchQuery(query string, resultCount int) {
	q := store.SearchQuery{
		Query:       query,
		TsUnixMs:    time.Now().UnixMilli(),
		ResultCount: resultCount,
	}
	t.enqueue(func() {
		t.runWrite("record_search", func(ctx context.Context) error {
			return t.st.RecordSearch(ctx, &q)
		})
	})
}

// RecordResourceAccess upserts an access to the given resource key.
// Rapid repeated calls for the same tuple collapse into one row with the
// access count summed.
func (t *Tracker) RecordResourceAccess(key store.ResourceKey) {
	nowMs := time.Now().UnixMilli()
	t.enqueue(func() {
		t.runWrite("record_resource_access", func(ctx context.Context) error {
			return t.st.RecordResourceAccess(ctx, key, nowMs)
		})
	})
}

// readCtx derives a bounded context for picker-facing reads.
func (t *Tracker) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.readTimeout)
}

// TopCommands returns per-command aggregates, best usage first. Read errors
// degrade to an empty result: the picker shows fewer historical entries
// rather than failing to open.
func (t *Tracker) TopCommands(ctx context.Context, limit int) []store.CommandStat {
	ctx, cancel := t.readCtx(ctx)
	defer cancel()

	stats, err := t.st.TopCommands(ctx, limit)
	if err != nil {
		t.logger.Debug("top commands read degraded", "error", err)
		return nil
	}
	return stats
}

// RecentQueries returns the most recent palette searches, newest first.
func (t *Tracker) RecentQueries(ctx context.Context, limit int) []store.SearchQuery {
	ctx, cancel := t.readCtx(ctx)
	defer cancel()

	queries, err := t.st.RecentQueries(ctx, limit)
	if err != nil {
		t.logger.Debug("recent queries read degraded", "error", err)
		return nil
	}
	return queries
}

// RecentResources returns resource accesses, most recent first. An empty
// kind returns all kinds.
func (t *Tracker) RecentResources(ctx context.Context, limit int, kind string) []store.ResourceAccess {
	ctx, cancel := t.readCtx(ctx)
	defer cancel()

	accesses, err := t.st.RecentResources(ctx, limit, kind)
	if err != nil {
		t.logger.Debug("recent resources read degraded", "error", err)
		return nil
	}
	return accesses
}

// TopResources returns resource accesses, most accessed first. An empty
// kind returns all kinds.
func (t *Tracker) TopResources(ctx context.Context, limit int, kind string) []store.ResourceAccess {
	ctx, cancel := t.readCtx(ctx)
	defer cancel()

	accesses, err := t.st.TopResources(ctx, limit, kind)
	if err != nil {
		t.logger.Debug("top resources read degraded", "error", err)
		return nil
	}
	return accesses
}

// AllCommandHitCounts returns invocation counts per command id for
// in-memory sort-order hints, served from the facade's cache.
func (t *Tracker) AllCommandHitCounts(ctx context.Context) map[string]int64 {
	ctx, cancel := t.readCtx(ctx)
	defer cancel()

	counts, err := t.hits.get(ctx, t.st.CommandHitCounts)
	if err != nil {
		t.logger.Debug("hit counts read degraded", "error", err)
		return map[string]int64{}
	}
	return counts
}

// Cleanup runs a retention sweep synchronously. It is idempotent and safe
// to call concurrently with any other operation.
func (t *Tracker) Cleanup(ctx context.Context) error {
	_, err := t.sweeper.Sweep(ctx)
	return err
}

// Reset deletes all stored usage data. Exposed for maintenance and tests.
func (t *Tracker) Reset(ctx context.Context) error {
	if err := t.st.Reset(ctx); err != nil {
		return err
	}
	t.hits.invalidateAll()
	return nil
}

// Stats returns backend and per-table row counts for diagnostics.
func (t *Tracker) Stats(ctx context.Context) (*store.Stats, error) {
	return t.st.Stats(ctx)
}
