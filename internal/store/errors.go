package store

import (
	"errors"
	"strings"
)

// ErrSchemaVersion is returned when the on-disk schema version is newer
// than this build supports. It is fatal at startup; downgrading silently
// would risk corrupting data written by a newer version.
var ErrSchemaVersion = errors.New("store: schema version newer than supported")

// ErrBackendUnavailable wraps failures to initialize the SQLite backend.
// The tracker reacts by selecting the file fallback at startup.
var ErrBackendUnavailable = errors.New("store: backend unavailable")

// IsTransient reports whether an error looks like a transient I/O failure
// (lock contention, disk pressure) worth a single retry before dropping
// the write.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "disk I/O error") ||
		strings.Contains(msg, "database or disk is full")
}

// IsConstraint reports whether an error is a uniqueness or other constraint
// violation. On the resource upsert path these are expected and handled by
// ON CONFLICT; anywhere else they signal a bug in the caller, not a
// condition to retry.
func IsConstraint(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}

// isTableNotFoundError reports whether an error indicates a missing table,
// which on first open just means the schema has not been created yet.
func isTableNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "no such table")
}
