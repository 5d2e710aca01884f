// Package database opens the SQL backend shared by the job queue and the
// manuscript store.
//
// SQLite (modernc.org/sqlite) is the default and runs in WAL mode with a busy
// timeout; writes that still hit SQLITE_BUSY are retried with exponential
// backoff. Postgres is reached through a pgx pool wrapped as *sql.DB. Queries
// are written with '?' placeholders and rebound per dialect, so callers never
// branch on the driver.
//
// The schema is embedded and versioned. A version mismatch is reported as
// ErrSchemaMismatch rather than migrated in place.
package database
