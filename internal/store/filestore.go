package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileStore implements Store on a single JSON snapshot file. It is the
// fallback backend for environments where the embedded SQLite engine cannot
// be initialized. The file format has no atomic conditional updates, so the
// upsert invariant is held by a read-modify-write critical section under a
// single in-process mutex.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	snap  snapshot
	index map[ResourceKey]int // resource key -> position in snap.Resources
}

type snapshot struct {
	NextInvocationID int64               `json:"next_invocation_id"`
	NextQueryID      int64               `json:"next_query_id"`
	NextResourceID   int64               `json:"next_resource_id"`
	Invocations      []CommandInvocation `json:"invocations"`
	Queries          []SearchQuery       `json:"queries"`
	Resources        []ResourceAccess    `json:"resources"`
}

// DefaultFilePath returns the default snapshot path inside dataDir.
func DefaultFilePath(dataDir string) string {
	return filepath.Join(dataDir, "usage.json")
}

// NewFileStore opens (creating if necessary) the snapshot file at path.
// An unreadable or corrupt snapshot starts fresh with a warning; the
// fallback backend is best-effort by design and must never block startup.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	f := &FileStore{path: path, logger: logger}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &f.snap); err != nil {
			logger.Warn("usage snapshot corrupt, starting fresh", "path", path, "error", err)
			f.snap = snapshot{}
		}
	case os.IsNotExist(err):
		// First run
	default:
		return nil, fmt.Errorf("failed to read usage snapshot: %w", err)
	}

	f.index = make(map[ResourceKey]int, len(f.snap.Resources))
	for i := range f.snap.Resources {
		f.index[f.snap.Resources[i].Key] = i
	}

	return f, nil
}

// Kind implements Store.
func (f *FileStore) Kind() BackendKind { return BackendFile }

// Close persists the snapshot a final time.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.persistLocked()
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }

// persistLocked writes the snapshot atomically via temp file and rename.
// Callers must hold f.mu.
func (f *FileStore) persistLocked() error {
	data, err := json.Marshal(&f.snap)
	if err != nil {
		return fmt.Errorf("failed to encode usage snapshot: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write usage snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace usage snapshot: %w", err)
	}
	return nil
}

// RecordInvocation implements Store.
func (f *FileStore) RecordInvocation(_ context.Context, inv *CommandInvocation) error {
	if inv == nil {
		return errors.New("invocation cannot be nil")
	}
	if inv.CommandID == "" {
		return errors.New("command_id is required")
	}
	if inv.TsUnixMs == 0 {
		inv.TsUnixMs = time.Now().UnixMilli()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.snap.NextInvocationID++
	inv.ID = f.snap.NextInvocationID
	f.snap.Invocations = append(f.snap.Invocations, *inv)
	return f.persistLocked()
}

// RecordSearch implements Store.
func (f *FileStore) RecordSearch(_ context.Context, q *SearchQuery) error {
	if q == nil {
		return errors.New("search query cannot be nil")
	}
	if q.Query == "" {
		return errors.New("query is required")
	}
	if q.TsUnixMs == 0 {
		q.TsUnixMs = time.Now().UnixMilli()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.snap.NextQueryID++
	q.ID = f.snap.NextQueryID
	f.snap.Queries = append(f.snap.Queries, *q)
	return f.persistLocked()
}

// RecordResourceAccess implements Store. The whole read-modify-write runs
// under the mutex, so concurrent accesses to the same key serialize and the
// store never holds two rows with an identical tuple.
func (f *FileStore) RecordResourceAccess(_ context.Context, key ResourceKey, nowMs int64) error {
	if key.Kind == "" {
		return errors.New("kind is required")
	}
	if key.Name == "" {
		return errors.New("name is required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if i, ok := f.index[key]; ok {
		f.snap.Resources[i].AccessCount++
		f.snap.Resources[i].TsUnixMs = nowMs
	} else {
		f.snap.NextResourceID++
		f.snap.Resources = append(f.snap.Resources, ResourceAccess{
			ID:          f.snap.NextResourceID,
			Key:         key,
			TsUnixMs:    nowMs,
			AccessCount: 1,
		})
		f.index[key] = len(f.snap.Resources) - 1
	}
	return f.persistLocked()
}

// TopCommands implements Store.
func (f *FileStore) TopCommands(_ context.Context, limit int) ([]CommandStat, error) {
	if limit <= 0 {
		return nil, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	type agg struct {
		count     int64
		successes int64
		durations int64
		totalMs   int64
		lastUsed  int64
	}
	byCommand := make(map[string]*agg)
	for i := range f.snap.Invocations {
		inv := &f.snap.Invocations[i]
		a, ok := byCommand[inv.CommandID]
		if !ok {
			a = &agg{}
			byCommand[inv.CommandID] = a
		}
		a.count++
		if inv.Success {
			a.successes++
		}
		if inv.DurationMs != nil {
			a.durations++
			a.totalMs += *inv.DurationMs
		}
		if inv.TsUnixMs > a.lastUsed {
			a.lastUsed = inv.TsUnixMs
		}
	}

	stats := make([]CommandStat, 0, len(byCommand))
	for id, a := range byCommand {
		st := CommandStat{
			CommandID:       id,
			InvocationCount: a.count,
			SuccessRate:     float64(a.successes) / float64(a.count),
			LastUsedUnixMs:  a.lastUsed,
		}
		if a.durations > 0 {
			st.AvgDurationMs = float64(a.totalMs) / float64(a.durations)
		}
		stats = append(stats, st)
	}

	sort.Slice(stats, func(i, j int) bool { return lessCommandStat(stats[i], stats[j]) })
	if len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

// CommandHitCounts implements Store.
func (f *FileStore) CommandHitCounts(_ context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[string]int64)
	for i := range f.snap.Invocations {
		counts[f.snap.Invocations[i].CommandID]++
	}
	return counts, nil
}

// RecentQueries implements Store.
func (f *FileStore) RecentQueries(_ context.Context, limit int) ([]SearchQuery, error) {
	if limit <= 0 {
		return nil, nil
	}

	f.mu.Lock()
	queries := make([]SearchQuery, len(f.snap.Queries))
	copy(queries, f.snap.Queries)
	f.mu.Unlock()

	sort.Slice(queries, func(i, j int) bool { return lessRecentQuery(queries[i], queries[j]) })
	if len(queries) > limit {
		queries = queries[:limit]
	}
	return queries, nil
}

// RecentResources implements Store.
func (f *FileStore) RecentResources(_ context.Context, limit int, kind string) ([]ResourceAccess, error) {
	return f.sortedResources(limit, kind, lessRecentResource)
}

// TopResources implements Store.
func (f *FileStore) TopResources(_ context.Context, limit int, kind string) ([]ResourceAccess, error) {
	return f.sortedResources(limit, kind, lessTopResource)
}

func (f *FileStore) sortedResources(limit int, kind string, less func(a, b ResourceAccess) bool) ([]ResourceAccess, error) {
	if limit <= 0 {
		return nil, nil
	}

	f.mu.Lock()
	accesses := make([]ResourceAccess, 0, len(f.snap.Resources))
	for i := range f.snap.Resources {
		if kind != "" && f.snap.Resources[i].Key.Kind != kind {
			continue
		}
		accesses = append(accesses, f.snap.Resources[i])
	}
	f.mu.Unlock()

	sort.Slice(accesses, func(i, j int) bool { return less(accesses[i], accesses[j]) })
	if len(accesses) > limit {
		accesses = accesses[:limit]
	}
	return accesses, nil
}

// Sweep implements Store with the same retention semantics as the SQLite
// backend: count caps keep the most-recent rows, the age cutoff drops old
// invocations. Vacuuming does not apply to the snapshot file.
func (f *FileStore) Sweep(_ context.Context, limits SweepLimits) (*SweepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := &SweepResult{}

	if limits.MaxQueries > 0 && len(f.snap.Queries) > limits.MaxQueries {
		sort.Slice(f.snap.Queries, func(i, j int) bool { return lessRecentQuery(f.snap.Queries[i], f.snap.Queries[j]) })
		result.DeletedQueries = int64(len(f.snap.Queries) - limits.MaxQueries)
		f.snap.Queries = f.snap.Queries[:limits.MaxQueries]
	}

	if limits.MaxResources > 0 && len(f.snap.Resources) > limits.MaxResources {
		sort.Slice(f.snap.Resources, func(i, j int) bool { return lessRecentResource(f.snap.Resources[i], f.snap.Resources[j]) })
		result.DeletedResources = int64(len(f.snap.Resources) - limits.MaxResources)
		f.snap.Resources = f.snap.Resources[:limits.MaxResources]
		f.rebuildIndexLocked()
	}

	if limits.InvocationCutoffMs > 0 {
		kept := f.snap.Invocations[:0]
		for i := range f.snap.Invocations {
			if f.snap.Invocations[i].TsUnixMs >= limits.InvocationCutoffMs {
				kept = append(kept, f.snap.Invocations[i])
			} else {
				result.DeletedInvocations++
			}
		}
		f.snap.Invocations = kept
	}

	if result.DeletedQueries+result.DeletedResources+result.DeletedInvocations > 0 {
		if err := f.persistLocked(); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Reset implements Store.
func (f *FileStore) Reset(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.snap = snapshot{}
	f.index = make(map[ResourceKey]int)
	return f.persistLocked()
}

// Stats implements Store.
func (f *FileStore) Stats(_ context.Context) (*Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return &Stats{
		Backend:     BackendFile,
		Invocations: int64(len(f.snap.Invocations)),
		Queries:     int64(len(f.snap.Queries)),
		Resources:   int64(len(f.snap.Resources)),
	}, nil
}

func (f *FileStore) rebuildIndexLocked() {
	f.index = make(map[ResourceKey]int, len(f.snap.Resources))
	for i := range f.snap.Resources {
		f.index[f.snap.Resources[i].Key] = i
	}
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*FileStore)(nil)
)
