package tracker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/palstore/internal/rank"
	"github.com/runger/palstore/internal/retention"
	"github.com/runger/palstore/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestTracker opens a tracker on a temp dir with the background sweep
// runner disabled.
func newTestTracker(t *testing.T, opts Options) *Tracker {
	t.Helper()

	if opts.DataDir == "" {
		opts.DataDir = t.TempDir()
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = -1
	}
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}

	tr, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestNew_RequiresDataDir(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Logger: testLogger()})
	require.Error(t, err)
}

func TestNew_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := New(Options{
		DataDir: t.TempDir(),
		Backend: "redis",
		Logger:  testLogger(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestBackendSelection(t *testing.T) {
	t.Parallel()

	t.Run("forced sqlite", func(t *testing.T) {
		t.Parallel()
		tr := newTestTracker(t, Options{Backend: BackendSQLite})
		assert.Equal(t, store.BackendSQLite, tr.Backend())
	})

	t.Run("forced file", func(t *testing.T) {
		t.Parallel()
		tr := newTestTracker(t, Options{Backend: BackendFile})
		assert.Equal(t, store.BackendFile, tr.Backend())
	})

	t.Run("auto prefers sqlite", func(t *testing.T) {
		t.Parallel()
		tr := newTestTracker(t, Options{Backend: BackendAuto})
		assert.Equal(t, store.BackendSQLite, tr.Backend())
	})
}

func TestRecordRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr := newTestTracker(t, Options{Backend: BackendFile})

	tr.RecordCommandInvocation(store.CommandInvocation{
		CommandID: "get.pods",
		TsUnixMs:  1000,
		Success:   true,
	})
	tr.RecordSearchQuery("nginx", 3)
	tr.RecordResourceAccess(store.ResourceKey{Kind: "Pod", Name: "nginx-1", Namespace: "default"})
	tr.Flush()

	stats := tr.TopCommands(ctx, 10)
	require.Len(t, stats, 1)
	assert.Equal(t, "get.pods", stats[0].CommandID)
	assert.EqualValues(t, 1, stats[0].InvocationCount)

	queries := tr.RecentQueries(ctx, 10)
	require.Len(t, queries, 1)
	assert.Equal(t, "nginx", queries[0].Query)
	assert.Equal(t, 3, queries[0].ResultCount)

	accesses := tr.TopResources(ctx, 10, "")
	require.Len(t, accesses, 1)
	assert.Equal(t, "nginx-1", accesses[0].Key.Name)
	assert.EqualValues(t, 1, accesses[0].AccessCount)
}

func TestWritesApplyInOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr := newTestTracker(t, Options{Backend: BackendFile})

	for i := 0; i < 5; i++ {
		tr.RecordCommandInvocation(store.CommandInvocation{
			CommandID: "deploy.restart",
			TsUnixMs:  int64(1000 + i),
			Success:   true,
		})
	}
	tr.Flush()

	counts := tr.AllCommandHitCounts(ctx)
	assert.EqualValues(t, 5, counts["deploy.restart"])

	stats := tr.TopCommands(ctx, 1)
	require.Len(t, stats, 1)
	assert.EqualValues(t, 1004, stats[0].LastUsedUnixMs)
}

func TestHitCountCacheInvalidatedByWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr := newTestTracker(t, Options{Backend: BackendFile})

	// First read populates the cache from an empty store.
	counts := tr.AllCommandHitCounts(ctx)
	assert.Empty(t, counts)

	tr.RecordCommandInvocation(store.CommandInvocation{CommandID: "logs.tail", TsUnixMs: 1000, Success: true})
	tr.Flush()

	counts = tr.AllCommandHitCounts(ctx)
	assert.EqualValues(t, 1, counts["logs.tail"])

	// Returned maps are copies; mutating one must not poison the cache.
	counts["logs.tail"] = 99
	counts = tr.AllCommandHitCounts(ctx)
	assert.EqualValues(t, 1, counts["logs.tail"])
}

func TestReadsDegradeToEmptyOnStoreError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr := newTestTracker(t, Options{Backend: BackendSQLite})

	// Closing the store underneath the facade makes every read fail.
	require.NoError(t, tr.st.Close())

	assert.Nil(t, tr.TopCommands(ctx, 10))
	assert.Nil(t, tr.RecentQueries(ctx, 10))
	assert.Nil(t, tr.RecentResources(ctx, 10, ""))
	assert.Nil(t, tr.TopResources(ctx, 10, ""))
	assert.Empty(t, tr.AllCommandHitCounts(ctx))
}

func TestCleanupBoundsGrowth(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr := newTestTracker(t, Options{
		Backend: BackendFile,
		Policy: &retention.Policy{
			MaxQueries:              5,
			MaxResources:            3,
			InvocationRetentionDays: 30,
			Logger:                  testLogger(),
		},
	})

	for i := 0; i < 10; i++ {
		tr.RecordSearchQuery("query", i)
	}
	tr.Flush()

	require.NoError(t, tr.Cleanup(ctx))
	assert.Len(t, tr.RecentQueries(ctx, 100), 5)

	// A second sweep with nothing over the cap deletes nothing.
	require.NoError(t, tr.Cleanup(ctx))
	assert.Len(t, tr.RecentQueries(ctx, 100), 5)
}

func TestReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr := newTestTracker(t, Options{Backend: BackendFile})

	tr.RecordCommandInvocation(store.CommandInvocation{CommandID: "get.pods", TsUnixMs: 1000, Success: true})
	tr.RecordSearchQuery("nginx", 1)
	tr.Flush()

	require.NoError(t, tr.Reset(ctx))

	stats, err := tr.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Invocations)
	assert.Zero(t, stats.Queries)
	assert.Empty(t, tr.AllCommandHitCounts(ctx))
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t, Options{Backend: BackendFile})
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
}

func TestRecordAfterCloseIsDropped(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := newTestTracker(t, Options{
		Backend: BackendFile,
		Logger:  slog.New(slog.NewTextHandler(&buf, nil)),
	})
	require.NoError(t, tr.Close())

	// Must not panic on the drained queue; the write is logged and dropped.
	tr.RecordCommandInvocation(store.CommandInvocation{CommandID: "late", TsUnixMs: 1000, Success: true})
	tr.RecordSearchQuery("late", 0)
	tr.Flush()

	assert.Contains(t, buf.String(), "dropping write")
}

func TestRunWrite_RetriesTransientOnce(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := &Tracker{logger: slog.New(slog.NewTextHandler(&buf, nil))}

	calls := 0
	tr.runWrite("record_search", func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("database is locked")
		}
		return nil
	})

	assert.Equal(t, 2, calls)
	assert.Empty(t, buf.String())
}

func TestRunWrite_ConstraintViolationLoggedAsError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := &Tracker{logger: slog.New(slog.NewTextHandler(&buf, nil))}

	calls := 0
	tr.runWrite("record_invocation", func(context.Context) error {
		calls++
		return errors.New("UNIQUE constraint failed: resource_accesses.kind")
	})

	// No retry: a constraint violation will not succeed a second time.
	assert.Equal(t, 1, calls)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "violated constraint")
}

func TestSearchResources(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr := newTestTracker(t, Options{Backend: BackendFile})

	nginx := store.ResourceKey{Kind: "Pod", Name: "nginx-1", Namespace: "default"}
	for i := 0; i < 3; i++ {
		tr.RecordResourceAccess(nginx)
	}
	tr.RecordResourceAccess(store.ResourceKey{Kind: "Pod", Name: "api-server", Namespace: "default"})
	tr.Flush()

	// Empty query: historical weight alone, most-used first.
	scored := tr.SearchResources(ctx, "", 10, "")
	require.Len(t, scored, 2)
	assert.Equal(t, "Pod/default/nginx-1", scored[0].Key)

	// Fuzzy query drops non-matching candidates.
	scored = tr.SearchResources(ctx, "nginx", 10, "")
	require.Len(t, scored, 1)
	assert.Equal(t, "Pod/default/nginx-1", scored[0].Key)

	assert.Nil(t, tr.SearchResources(ctx, "nginx", 0, ""))
}

func TestRankCommands(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr := newTestTracker(t, Options{Backend: BackendFile})

	catalog := []rank.Candidate{
		{Key: "get.pods", Name: "Get Pods", Description: "List pods"},
		{Key: "get.services", Name: "Get Services", Description: "List services"},
	}

	// Without history the catalog order is decided by the key tie-break.
	scored := tr.RankCommands(ctx, "", 10, catalog)
	require.Len(t, scored, 2)
	assert.Equal(t, "get.pods", scored[0].Key)

	for i := 0; i < 4; i++ {
		tr.RecordCommandInvocation(store.CommandInvocation{
			CommandID: "get.services",
			TsUnixMs:  int64(1000 + i),
			Success:   true,
		})
	}
	tr.Flush()

	scored = tr.RankCommands(ctx, "", 10, catalog)
	require.Len(t, scored, 2)
	assert.Equal(t, "get.services", scored[0].Key)
	assert.Positive(t, scored[0].HitCount)

	assert.Nil(t, tr.RankCommands(ctx, "get", 10, nil))
}
