package store

import (
	"context"
	"errors"
	"fmt"
)

// RecordResourceAccess upserts an access to the given resource key.
// The insert and the conflict update are a single atomic statement, so two
// concurrent accesses to the same tuple can never both observe "no existing
// row" and insert twice; the unique index enforces the invariant at the
// storage layer.
func (s *SQLiteStore) RecordResourceAccess(ctx context.Context, key ResourceKey, nowMs int64) error {
	if key.Kind == "" {
		return errors.New("kind is required")
	}
	if key.Name == "" {
		return errors.New("name is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resource_accesses (kind, name, namespace, context, ts_unix_ms, access_count)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(kind, name, namespace, context) DO UPDATE SET
			access_count = access_count + 1,
			ts_unix_ms = excluded.ts_unix_ms
	`, key.Kind, key.Name, key.Namespace, key.Context, nowMs)
	if err != nil {
		return fmt.Errorf("failed to record resource access: %w", err)
	}
	return nil
}

// RecentResources returns accesses ordered by most recent first.
// An empty kind returns all kinds.
func (s *SQLiteStore) RecentResources(ctx context.Context, limit int, kind string) ([]ResourceAccess, error) {
	return s.queryResources(ctx, limit, kind, `
		ORDER BY ts_unix_ms DESC, access_count DESC, kind ASC, name ASC, namespace ASC, context ASC
	`)
}

// TopResources returns accesses ordered by access count, then recency.
// An empty kind returns all kinds.
func (s *SQLiteStore) TopResources(ctx context.Context, limit int, kind string) ([]ResourceAccess, error) {
	return s.queryResources(ctx, limit, kind, `
		ORDER BY access_count DESC, ts_unix_ms DESC, kind ASC, name ASC, namespace ASC, context ASC
	`)
}

func (s *SQLiteStore) queryResources(ctx context.Context, limit int, kind, orderBy string) ([]ResourceAccess, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT id, kind, name, namespace, context, ts_unix_ms, access_count
		FROM resource_accesses
		WHERE 1=1
	`
	args := make([]any, 0, 2)

	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}

	query += orderBy + " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	var accesses []ResourceAccess
	for rows.Next() {
		var a ResourceAccess
		if err := rows.Scan(&a.ID, &a.Key.Kind, &a.Key.Name, &a.Key.Namespace, &a.Key.Context, &a.TsUnixMs, &a.AccessCount); err != nil {
			return nil, fmt.Errorf("failed to scan resource access: %w", err)
		}
		accesses = append(accesses, a)
	}
	return accesses, rows.Err()
}
