package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBackendEquivalence drives the same operation sequence through both
// backends and asserts identical observable read results. Callers of the
// Store interface must not be able to tell the backends apart.
func TestBackendEquivalence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	sq := newTestSQLite(t)
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "usage.json"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	stores := []Store{sq, fs}

	apply := func(fn func(s Store) error) {
		t.Helper()
		for _, s := range stores {
			require.NoError(t, fn(s))
		}
	}

	// Interleaved writes across all three record kinds.
	for i := 0; i < 20; i++ {
		i := i
		apply(func(s Store) error {
			var dur *int64
			if i%2 == 0 {
				d := int64(50 + i)
				dur = &d
			}
			return s.RecordInvocation(ctx, &CommandInvocation{
				CommandID:  fmt.Sprintf("cmd-%d", i%4),
				TsUnixMs:   int64(1000 + i),
				DurationMs: dur,
				Success:    i%5 != 0,
			})
		})
		apply(func(s Store) error {
			return s.RecordSearch(ctx, &SearchQuery{Query: fmt.Sprintf("q%d", i), TsUnixMs: int64(2000 + i), ResultCount: i})
		})
		apply(func(s Store) error {
			return s.RecordResourceAccess(ctx, ResourceKey{
				Kind:      []string{"Pod", "Service"}[i%2],
				Name:      fmt.Sprintf("res-%d", i%6),
				Namespace: "default",
			}, int64(3000+i))
		})
	}

	assertEqualReads := func() {
		t.Helper()

		sqStats, err := sq.TopCommands(ctx, 10)
		require.NoError(t, err)
		fsStats, err := fs.TopCommands(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, sqStats, fsStats)

		sqQueries, err := sq.RecentQueries(ctx, 15)
		require.NoError(t, err)
		fsQueries, err := fs.RecentQueries(ctx, 15)
		require.NoError(t, err)
		assert.Equal(t, sqQueries, fsQueries)

		for _, kind := range []string{"", "Pod", "Service"} {
			sqRecent, err := sq.RecentResources(ctx, 10, kind)
			require.NoError(t, err)
			fsRecent, err := fs.RecentResources(ctx, 10, kind)
			require.NoError(t, err)
			assert.Equal(t, sqRecent, fsRecent, "recent resources, kind=%q", kind)

			sqTop, err := sq.TopResources(ctx, 10, kind)
			require.NoError(t, err)
			fsTop, err := fs.TopResources(ctx, 10, kind)
			require.NoError(t, err)
			assert.Equal(t, sqTop, fsTop, "top resources, kind=%q", kind)
		}

		sqCounts, err := sq.CommandHitCounts(ctx)
		require.NoError(t, err)
		fsCounts, err := fs.CommandHitCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, sqCounts, fsCounts)
	}

	assertEqualReads()

	// Retention behaves identically too.
	limits := SweepLimits{MaxQueries: 10, MaxResources: 4, InvocationCutoffMs: 1010}
	sqResult, err := sq.Sweep(ctx, limits)
	require.NoError(t, err)
	fsResult, err := fs.Sweep(ctx, limits)
	require.NoError(t, err)
	assert.Equal(t, sqResult, fsResult)

	assertEqualReads()

	// Reset restarts id assignment on both backends, so writes after a reset
	// still read back identically, ids included.
	apply(func(s Store) error { return s.Reset(ctx) })
	for i := 0; i < 3; i++ {
		i := i
		apply(func(s Store) error {
			return s.RecordInvocation(ctx, &CommandInvocation{
				CommandID: fmt.Sprintf("cmd-%d", i),
				TsUnixMs:  int64(4000 + i),
				Success:   true,
			})
		})
		apply(func(s Store) error {
			return s.RecordSearch(ctx, &SearchQuery{Query: fmt.Sprintf("r%d", i), TsUnixMs: int64(5000 + i), ResultCount: i})
		})
		apply(func(s Store) error {
			return s.RecordResourceAccess(ctx, ResourceKey{
				Kind:      "Pod",
				Name:      fmt.Sprintf("res-%d", i),
				Namespace: "default",
			}, int64(6000+i))
		})
	}

	sqQueries, err := sq.RecentQueries(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, sqQueries)
	assert.EqualValues(t, 3, sqQueries[0].ID)

	assertEqualReads()
}
