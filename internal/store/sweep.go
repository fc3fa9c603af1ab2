package store

import (
	"context"
	"fmt"
)

// Sweep enforces the retention limits: count caps on searches and resource
// accesses, an age cutoff on invocations. It is idempotent and safe to run
// concurrently with any other operation; SQLite serializes the deletes.
func (s *SQLiteStore) Sweep(ctx context.Context, limits SweepLimits) (*SweepResult, error) {
	result := &SweepResult{}

	if limits.MaxQueries > 0 {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM search_queries WHERE id NOT IN (
				SELECT id FROM search_queries
				ORDER BY ts_unix_ms DESC, id DESC
				LIMIT ?
			)
		`, limits.MaxQueries)
		if err != nil {
			return nil, fmt.Errorf("failed to sweep searches: %w", err)
		}
		result.DeletedQueries, _ = res.RowsAffected()
	}

	if limits.MaxResources > 0 {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM resource_accesses WHERE id NOT IN (
				SELECT id FROM resource_accesses
				ORDER BY ts_unix_ms DESC, access_count DESC, kind ASC, name ASC, namespace ASC, context ASC
				LIMIT ?
			)
		`, limits.MaxResources)
		if err != nil {
			return nil, fmt.Errorf("failed to sweep resources: %w", err)
		}
		result.DeletedResources, _ = res.RowsAffected()
	}

	if limits.InvocationCutoffMs > 0 {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM command_invocations WHERE ts_unix_ms < ?
		`, limits.InvocationCutoffMs)
		if err != nil {
			return nil, fmt.Errorf("failed to sweep invocations: %w", err)
		}
		result.DeletedInvocations, _ = res.RowsAffected()
	}

	deleted := result.DeletedQueries + result.DeletedResources + result.DeletedInvocations
	if limits.VacuumThreshold > 0 && deleted >= limits.VacuumThreshold {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			s.logger.Warn("vacuum after sweep failed", "error", err)
			// Don't fail the sweep on vacuum error
		} else {
			result.Vacuumed = true
		}
	}

	return result, nil
}

// Reset deletes every row from every table and restarts the surrogate id
// sequences, so ids after a reset match a freshly created store. Exposed for
// maintenance and tests only.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	for _, table := range []string{"command_invocations", "search_queries", "resource_accesses"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
		// sqlite_sequence only exists once an AUTOINCREMENT row has landed.
		if _, err := s.db.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = ?", table); err != nil && !isTableNotFoundError(err) {
			return fmt.Errorf("failed to reset %s sequence: %w", table, err)
		}
	}
	return nil
}

// Stats returns per-table row counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Backend: BackendSQLite}

	row := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM command_invocations),
		       (SELECT COUNT(*) FROM search_queries),
		       (SELECT COUNT(*) FROM resource_accesses)
	`)
	if err := row.Scan(&stats.Invocations, &stats.Queries, &stats.Resources); err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	return stats, nil
}
