package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCandidates() []Candidate {
	return []Candidate{
		{Key: "pod/default/nginx-1", Name: "nginx-1", Description: "default", Category: "Pod", HitCount: 3, LastUsedUnixMs: 3000},
		{Key: "pod/default/nginx-2", Name: "nginx-2", Description: "default", Category: "Pod", HitCount: 1, LastUsedUnixMs: 4000},
		{Key: "svc/default/api", Name: "api", Description: "default", Category: "Service", HitCount: 10, LastUsedUnixMs: 2000},
	}
}

func keys(scored []Scored) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Key
	}
	return out
}

func TestRank_EmptyQueryOrdersByHistory(t *testing.T) {
	t.Parallel()

	e := NewEngine(Weights{})
	now := time.UnixMilli(5000)

	scored := e.Rank("", testCandidates(), now)
	require.Len(t, scored, 3)
	// Pure historical weight descending: recency gaps here are tiny, so
	// hit counts dominate.
	assert.Equal(t, []string{"svc/default/api", "pod/default/nginx-1", "pod/default/nginx-2"}, keys(scored))
}

func TestRank_QueryFiltersAndOrders(t *testing.T) {
	t.Parallel()

	e := NewEngine(Weights{})
	now := time.UnixMilli(5000)

	scored := e.Rank("nginx", testCandidates(), now)
	require.Len(t, scored, 2)
	// Identical fuzzy scores; the higher hit count wins the blend.
	assert.Equal(t, "pod/default/nginx-1", scored[0].Key)
	assert.Equal(t, "pod/default/nginx-2", scored[1].Key)
}

func TestRank_Deterministic(t *testing.T) {
	t.Parallel()

	e := NewEngine(Weights{})
	now := time.UnixMilli(5000)

	first := e.Rank("ngx", testCandidates(), now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, keys(first), keys(e.Rank("ngx", testCandidates(), now)))
	}
}

func TestRank_TieBreaks(t *testing.T) {
	t.Parallel()

	e := NewEngine(Weights{})
	now := time.UnixMilli(1000)

	t.Run("hit count", func(t *testing.T) {
		scored := e.Rank("", []Candidate{
			{Key: "b", Name: "x", HitCount: 1},
			{Key: "a", Name: "x", HitCount: 2},
		}, now)
		assert.Equal(t, []string{"a", "b"}, keys(scored))
	})

	t.Run("timestamp", func(t *testing.T) {
		// Equal scores force the explicit tie-break chain; zero history
		// keeps the score term identical.
		scored := e.Rank("x", []Candidate{
			{Key: "b", Name: "x", LastUsedUnixMs: 100},
			{Key: "a", Name: "x", LastUsedUnixMs: 200},
		}, now)
		assert.Equal(t, []string{"a", "b"}, keys(scored))
	})

	t.Run("key order", func(t *testing.T) {
		scored := e.Rank("x", []Candidate{
			{Key: "b", Name: "x"},
			{Key: "a", Name: "x"},
			{Key: "c", Name: "x"},
		}, now)
		assert.Equal(t, []string{"a", "b", "c"}, keys(scored))
	})
}

func TestRank_FieldWeighting(t *testing.T) {
	t.Parallel()

	e := NewEngine(Weights{})
	now := time.UnixMilli(1000)

	// The same text matches in a more important field first.
	scored := e.Rank("redis", []Candidate{
		{Key: "by-desc", Name: "cache", Description: "redis"},
		{Key: "by-name", Name: "redis", Description: "cache"},
	}, now)
	require.Len(t, scored, 2)
	assert.Equal(t, "by-name", scored[0].Key)
	assert.Greater(t, scored[0].Score, scored[1].Score)
}

func TestRank_HistoryBlendBreaksNearTies(t *testing.T) {
	t.Parallel()

	e := NewEngine(Weights{})
	now := time.UnixMilli(1000)

	// Equal text relevance: the history term decides the order through
	// the score itself, not the tie-break chain.
	scored := e.Rank("api", []Candidate{
		{Key: "cold", Name: "api"},
		{Key: "warm", Name: "api", HitCount: 5, LastUsedUnixMs: 999},
	}, now)
	require.Len(t, scored, 2)
	assert.Equal(t, "warm", scored[0].Key)
	assert.Greater(t, scored[0].Score, scored[1].Score)
}

func TestScore_EmptyQuerySkipsFuzzy(t *testing.T) {
	t.Parallel()

	e := NewEngine(Weights{})
	now := time.UnixMilli(1000)

	c := Candidate{Key: "a", Name: "anything", HitCount: 5, LastUsedUnixMs: 500}
	withQuery := e.Score("anything", c, now)
	historyOnly := e.Score("", c, now)

	assert.Greater(t, withQuery, historyOnly)
	assert.Greater(t, historyOnly, 0.0)
}

func TestNewEngine_ZeroWeightsUseDefaults(t *testing.T) {
	t.Parallel()

	e := NewEngine(Weights{})
	assert.Equal(t, DefaultWeights(), e.Weights())

	custom := NewEngine(Weights{History: 0.5})
	assert.Equal(t, 0.5, custom.Weights().History)
	assert.Equal(t, DefaultNameWeight, custom.Weights().Name)
}
