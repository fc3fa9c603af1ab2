package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RecordSearch appends a palette search row.
func (s *SQLiteStore) RecordSearch(ctx context.Context, q *SearchQuery) error {
	if q == nil {
		return errors.New("search query cannot be nil")
	}
	if q.Query == "" {
		return errors.New("query is required")
	}
	if q.TsUnixMs == 0 {
		q.TsUnixMs = time.Now().UnixMilli()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO search_queries (query, ts_unix_ms, result_count)
		VALUES (?, ?, ?)
	`, q.Query, q.TsUnixMs, q.ResultCount)
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		q.ID = id
	}
	return nil
}

// RecentQueries returns the most recent searches, newest first.
func (s *SQLiteStore) RecentQueries(ctx context.Context, limit int) ([]SearchQuery, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, ts_unix_ms, result_count
		FROM search_queries
		ORDER BY ts_unix_ms DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent searches: %w", err)
	}
	defer rows.Close()

	var queries []SearchQuery
	for rows.Next() {
		var q SearchQuery
		if err := rows.Scan(&q.ID, &q.Query, &q.TsUnixMs, &q.ResultCount); err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}
