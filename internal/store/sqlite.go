package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// walCheckpointInterval is how often the WAL file is checkpointed to
	// prevent unbounded growth during long desktop sessions.
	walCheckpointInterval = 5 * time.Minute

	// schemaVersion is the newest schema this build understands. A stored
	// version above this fails open with ErrSchemaVersion.
	schemaVersion = 1
)

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	db        *sql.DB
	logger    *slog.Logger
	stopCh    chan struct{}
	stoppedCh chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// DefaultDBPath returns the default database path inside dataDir.
func DefaultDBPath(dataDir string) string {
	return filepath.Join(dataDir, "usage.db")
}

// NewSQLiteStore opens (creating if necessary) the usage database at dbPath.
// Opening is idempotent and safe to call on every startup. The database uses
// WAL mode and a single-writer connection pool.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data directory: %v", ErrBackendUnavailable, err)
	}

	// modernc.org/sqlite uses _pragma=name(value) syntax
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrBackendUnavailable, err)
	}

	// SQLite handles concurrency better with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: connect: %v", ErrBackendUnavailable, err)
	}

	s := &SQLiteStore{
		db:        db,
		logger:    logger,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	go s.walCheckpointLoop()

	return s, nil
}

// Kind implements Store.
func (s *SQLiteStore) Kind() BackendKind { return BackendSQLite }

// DB returns the underlying database handle for diagnostics.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close checkpoints the WAL and closes the database.
// It is safe to call Close multiple times.
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.stoppedCh

		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

func (s *SQLiteStore) walCheckpointLoop() {
	defer close(s.stoppedCh)

	ticker := time.NewTicker(walCheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
				s.logger.Warn("wal checkpoint failed", "error", err)
			}
		}
	}
}

// migrate applies pending migrations and records each in schema_meta.
// A stored version newer than schemaVersion is a fatal mismatch: this build
// must not write to a database laid out by a newer one.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	currentVersion := 0
	row := s.db.QueryRowContext(ctx, `
		SELECT version FROM schema_meta ORDER BY version DESC LIMIT 1
	`)
	if err := row.Scan(&currentVersion); err != nil {
		if err == sql.ErrNoRows || isTableNotFoundError(err) {
			currentVersion = 0
		} else {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
	}

	if currentVersion > schemaVersion {
		return fmt.Errorf("%w: found v%d, supported v%d", ErrSchemaVersion, currentVersion, schemaVersion)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{version: 1, sql: migrationV1},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		if _, err := s.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("migration v%d failed: %w", m.version, err)
		}

		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO schema_meta (version, applied_at_unix_ms)
			VALUES (?, ?)
		`, m.version, time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// migrationV1 creates the initial schema.
//
// namespace and context are stored as '' rather than NULL: SQLite treats
// NULLs as distinct in unique indexes, which would break deduplication on
// the (kind, name, namespace, context) tuple.
const migrationV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_meta (
  version INTEGER PRIMARY KEY,
  applied_at_unix_ms INTEGER NOT NULL
);

-- Command invocations (append-only)
CREATE TABLE IF NOT EXISTS command_invocations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  command_id TEXT NOT NULL,
  ts_unix_ms INTEGER NOT NULL,
  duration_ms INTEGER,
  success INTEGER NOT NULL DEFAULT 1,
  error_message TEXT,
  context TEXT
);

CREATE INDEX IF NOT EXISTS idx_invocations_ts ON command_invocations(ts_unix_ms DESC);
CREATE INDEX IF NOT EXISTS idx_invocations_command ON command_invocations(command_id, ts_unix_ms DESC);

-- Palette searches (append-only, count-capped)
CREATE TABLE IF NOT EXISTS search_queries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  query TEXT NOT NULL,
  ts_unix_ms INTEGER NOT NULL,
  result_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_queries_ts ON search_queries(ts_unix_ms DESC);

-- Resource accesses (upserted on the key tuple)
CREATE TABLE IF NOT EXISTS resource_accesses (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  kind TEXT NOT NULL,
  name TEXT NOT NULL,
  namespace TEXT NOT NULL DEFAULT '',
  context TEXT NOT NULL DEFAULT '',
  ts_unix_ms INTEGER NOT NULL,
  access_count INTEGER NOT NULL DEFAULT 1
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_resources_key ON resource_accesses(kind, name, namespace, context);
CREATE INDEX IF NOT EXISTS idx_resources_ts ON resource_accesses(ts_unix_ms DESC);
`
