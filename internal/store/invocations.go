package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordInvocation appends a command invocation row.
// Invocations are append-only; the id and timestamp are filled in if unset.
func (s *SQLiteStore) RecordInvocation(ctx context.Context, inv *CommandInvocation) error {
	if inv == nil {
		return errors.New("invocation cannot be nil")
	}
	if inv.CommandID == "" {
		return errors.New("command_id is required")
	}
	if inv.TsUnixMs == 0 {
		inv.TsUnixMs = time.Now().UnixMilli()
	}

	success := 0
	if inv.Success {
		success = 1
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO command_invocations (
			command_id, ts_unix_ms, duration_ms, success, error_message, context
		) VALUES (?, ?, ?, ?, ?, ?)
	`,
		inv.CommandID,
		inv.TsUnixMs,
		inv.DurationMs,
		success,
		inv.ErrorMessage,
		inv.Context,
	)
	if err != nil {
		return fmt.Errorf("failed to record invocation: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		inv.ID = id
	}
	return nil
}

// TopCommands returns per-command aggregates ordered by invocation count,
// most recent use, then command id.
func (s *SQLiteStore) TopCommands(ctx context.Context, limit int) ([]CommandStat, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT command_id,
		       COUNT(*),
		       AVG(success),
		       AVG(duration_ms),
		       MAX(ts_unix_ms)
		FROM command_invocations
		GROUP BY command_id
		ORDER BY COUNT(*) DESC, MAX(ts_unix_ms) DESC, command_id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top commands: %w", err)
	}
	defer rows.Close()

	var stats []CommandStat
	for rows.Next() {
		var st CommandStat
		var avgDuration sql.NullFloat64
		if err := rows.Scan(&st.CommandID, &st.InvocationCount, &st.SuccessRate, &avgDuration, &st.LastUsedUnixMs); err != nil {
			return nil, fmt.Errorf("failed to scan command stat: %w", err)
		}
		if avgDuration.Valid {
			st.AvgDurationMs = avgDuration.Float64
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// CommandHitCounts returns invocation counts for every command id.
// Used by the tracker's hit-count cache for in-memory sort hints.
func (s *SQLiteStore) CommandHitCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT command_id, COUNT(*) FROM command_invocations GROUP BY command_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hit counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan hit count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}
