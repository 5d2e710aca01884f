package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenSQLiteCreatesSchemaOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inkwell.db")
	ctx := context.Background()

	db, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	for _, table := range []string{"jobs", "job_checkpoints", "books", "chapters"} {
		ok, err := db.tableExists(ctx, table)
		if err != nil || !ok {
			t.Fatalf("expected table %s to exist (err=%v)", table, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if reopened.Path() != path || reopened.Dialect() != SQLite {
		t.Fatalf("unexpected db identity: %q %q", reopened.Path(), reopened.Dialect())
	}
}

func TestOpenSQLiteRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inkwell.db")
	ctx := context.Background()
	db, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if _, err := db.Exec(ctx, "UPDATE schema_version SET version = ?", schemaVersion+1); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := OpenSQLite(ctx, path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestRebindPostgresPlaceholders(t *testing.T) {
	db := &DB{dialect: Postgres}
	got := db.Rebind("SELECT * FROM jobs WHERE id = ? AND error = '?' AND status IN (?, ?)")
	want := "SELECT * FROM jobs WHERE id = $1 AND error = '?' AND status IN ($2, $3)"
	if got != want {
		t.Fatalf("Rebind:\n got %q\nwant %q", got, want)
	}
	sqlite := &DB{dialect: SQLite}
	if q := "SELECT ?"; sqlite.Rebind(q) != q {
		t.Fatal("sqlite queries must not be rewritten")
	}
}

func TestTimeRoundTripKeepsLexicalOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	earlier := FormatTime(base.Add(100 * time.Millisecond))
	later := FormatTime(base.Add(150 * time.Millisecond))
	if !(earlier < later) {
		t.Fatalf("expected %q < %q", earlier, later)
	}
	parsed := ParseTime(sql.NullString{String: later, Valid: true})
	if !parsed.Equal(base.Add(150 * time.Millisecond)) {
		t.Fatalf("round trip mismatch: %s", parsed)
	}
	if !ParseTime(sql.NullString{}).IsZero() {
		t.Fatal("expected zero time for NULL")
	}
	if NullableTime(time.Time{}) != nil {
		t.Fatal("expected nil for zero time")
	}
}

func TestPlaceholders(t *testing.T) {
	if got := Placeholders(3); got != "?, ?, ?" {
		t.Fatalf("unexpected placeholders %q", got)
	}
	if Placeholders(0) != "" {
		t.Fatal("expected empty placeholders")
	}
}
