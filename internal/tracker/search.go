package tracker

import (
	"context"
	"time"

	"github.com/runger/palstore/internal/rank"
	"github.com/runger/palstore/internal/store"
)

// candidateFetchMultiplier over-fetches stored candidates before ranking so
// fuzzy matches outside the top historical slice still surface.
const candidateFetchMultiplier = 3

// SearchResources returns ranked resource candidates for a palette query.
// An empty query yields the top resources by historical weight; a non-empty
// query blends fuzzy relevance on name, namespace, and kind with the stored
// access counts.
func (t *Tracker) SearchResources(ctx context.Context, query string, limit int, kind string) []rank.Scored {
	if limit <= 0 {
		return nil
	}

	accesses := t.TopResources(ctx, limit*candidateFetchMultiplier, kind)
	if len(accesses) == 0 {
		return nil
	}

	candidates := make([]rank.Candidate, 0, len(accesses))
	for _, a := range accesses {
		candidates = append(candidates, resourceCandidate(a))
	}

	scored := t.engine.Rank(query, candidates, time.Now())
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// RankCommands ranks an externally-supplied command catalog (the registry
// owns names and descriptions) against the query, using stored invocation
// stats as the historical weight. Catalog entries keep their Key, Name,
// Description, and Category; HitCount and LastUsedUnixMs are filled from
// the store, with Key as the command id.
func (t *Tracker) RankCommands(ctx context.Context, query string, limit int, catalog []rank.Candidate) []rank.Scored {
	if limit <= 0 || len(catalog) == 0 {
		return nil
	}

	stats := t.TopCommands(ctx, len(catalog))
	byID := make(map[string]store.CommandStat, len(stats))
	for _, st := range stats {
		byID[st.CommandID] = st
	}

	candidates := make([]rank.Candidate, len(catalog))
	copy(candidates, catalog)
	for i := range candidates {
		if st, ok := byID[candidates[i].Key]; ok {
			candidates[i].HitCount = st.InvocationCount
			candidates[i].LastUsedUnixMs = st.LastUsedUnixMs
		}
	}

	scored := t.engine.Rank(query, candidates, time.Now())
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// resourceCandidate maps a stored access to a ranking candidate. The key
// is the full tuple so ties stay deterministic across identical names.
func resourceCandidate(a store.ResourceAccess) rank.Candidate {
	key := a.Key.Kind + "/" + a.Key.Namespace + "/" + a.Key.Name
	if a.Key.Context != "" {
		key += "@" + a.Key.Context
	}
	return rank.Candidate{
		Key:            key,
		Name:           a.Key.Name,
		Description:    a.Key.Namespace,
		Category:       a.Key.Kind,
		HitCount:       a.AccessCount,
		LastUsedUnixMs: a.TsUnixMs,
	}
}
