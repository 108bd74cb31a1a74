package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func TestApplyBootstrapsFreshStore(t *testing.T) {
	db := openInMemoryDB(t)
	registry := mustRegistry(t, 3)
	runner := mustRunner(t, registry)

	result, err := runner.Apply(context.Background(), db)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if result.From != 0 || result.To != 3 {
		t.Fatalf("result = %+v, want from 0 to 3", result)
	}
	if len(result.Applied) != 3 {
		t.Fatalf("applied = %v, want 3 versions", result.Applied)
	}

	if got := queryInt64(t, db, "SELECT MAX(version) FROM schema_migrations"); got != 3 {
		t.Fatalf("max version = %d, want 3", got)
	}
	for _, table := range []string{"table_1", "table_2", "table_3"} {
		if !tableExists(t, db, table) {
			t.Fatalf("expected table %s to exist", table)
		}
	}
	if progress := runner.Progress(); progress.State != StateReady || progress.Version != 3 {
		t.Fatalf("progress = %+v, want ready at 3", progress)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	db := openInMemoryDB(t)
	registry := mustRegistry(t, 2)

	if _, err := mustRunner(t, registry).Apply(context.Background(), db); err != nil {
		t.Fatalf("apply initial migrations: %v", err)
	}
	before := queryString(t, db, "SELECT group_concat(sql, ';') FROM sqlite_master ORDER BY name")

	result, err := mustRunner(t, registry).Apply(context.Background(), db)
	if err != nil {
		t.Fatalf("re-apply migrations should be idempotent: %v", err)
	}
	if len(result.Applied) != 0 {
		t.Fatalf("expected nothing applied on re-run, got %v", result.Applied)
	}
	if result.From != 2 || result.To != 2 {
		t.Fatalf("result = %+v, want from 2 to 2", result)
	}

	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 2 {
		t.Fatalf("expected 2 migration rows after replay, got %d", rows)
	}
	after := queryString(t, db, "SELECT group_concat(sql, ';') FROM sqlite_master ORDER BY name")
	if before != after {
		t.Fatalf("schema changed on re-run:\nbefore: %s\nafter: %s", before, after)
	}
}

func TestApplyOnlyRunsVersionsAboveCurrent(t *testing.T) {
	db := openInMemoryDB(t)
	firstClock := fixedClock(time.Date(2026, time.January, 1, 10, 0, 0, 0, time.UTC))

	if _, err := mustRunner(t, mustRegistry(t, 2), WithClock(firstClock)).Apply(context.Background(), db); err != nil {
		t.Fatalf("apply versions 1-2: %v", err)
	}
	original, err := AppliedRecords(context.Background(), db)
	if err != nil {
		t.Fatalf("applied records: %v", err)
	}

	secondClock := fixedClock(time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC))
	result, err := mustRunner(t, mustRegistry(t, 4), WithClock(secondClock)).Apply(context.Background(), db)
	if err != nil {
		t.Fatalf("apply versions 1-4: %v", err)
	}
	if len(result.Applied) != 2 || result.Applied[0] != 3 || result.Applied[1] != 4 {
		t.Fatalf("applied = %v, want [3 4]", result.Applied)
	}

	records, err := AppliedRecords(context.Background(), db)
	if err != nil {
		t.Fatalf("applied records: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records len = %d, want 4", len(records))
	}
	for i := range original {
		if !records[i].AppliedAt.Equal(original[i].AppliedAt) {
			t.Fatalf("version %d applied_at changed from %v to %v", records[i].Version, original[i].AppliedAt, records[i].AppliedAt)
		}
	}
}

func TestApplyRecordsMonotonicVersions(t *testing.T) {
	db := openInMemoryDB(t)
	start := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return start.Add(time.Duration(tick) * time.Millisecond)
	}

	if _, err := mustRunner(t, mustRegistry(t, 5), WithClock(clock)).Apply(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	records, err := AppliedRecords(context.Background(), db)
	if err != nil {
		t.Fatalf("applied records: %v", err)
	}
	for i := 1; i < len(records); i++ {
		if !records[i].AppliedAt.After(records[i-1].AppliedAt) {
			t.Fatalf("version %d applied at %v, not after version %d at %v",
				records[i].Version, records[i].AppliedAt, records[i-1].Version, records[i-1].AppliedAt)
		}
		if records[i].Version != records[i-1].Version+1 {
			t.Fatalf("versions not contiguous: %d then %d", records[i-1].Version, records[i].Version)
		}
	}
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	db := openInMemoryDB(t)
	registry, err := NewRegistry(
		Migration{Version: 1, Name: "things", Script: "CREATE TABLE things(id INTEGER PRIMARY KEY);"},
		Migration{Version: 2, Name: "broken", Script: "CREATE TABLE partial(id INTEGER PRIMARY KEY); CREAT TABLE nope(id INT);"},
		Migration{Version: 3, Name: "later", Script: "CREATE TABLE later(id INTEGER PRIMARY KEY);"},
	)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	runner := mustRunner(t, registry)

	result, err := runner.Apply(context.Background(), db)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("apply error = %v, want %v", err, ErrMigrationFailed)
	}
	var migrationErr *MigrationError
	if !errors.As(err, &migrationErr) {
		t.Fatalf("expected *MigrationError, got %T", err)
	}
	if migrationErr.Version != 2 || migrationErr.Step != "exec" {
		t.Fatalf("migration error = %+v, want version 2 exec step", migrationErr)
	}
	if result.To != 1 {
		t.Fatalf("result.To = %d, want 1", result.To)
	}

	if got := queryInt64(t, db, "SELECT MAX(version) FROM schema_migrations"); got != 1 {
		t.Fatalf("max version = %d, want 1", got)
	}
	if tableExists(t, db, "partial") {
		t.Fatal("expected failed migration to roll back its statements")
	}
	if tableExists(t, db, "later") {
		t.Fatal("expected later migration not to run")
	}
	if progress := runner.Progress(); progress.State != StateFailed || progress.Version != 2 {
		t.Fatalf("progress = %+v, want failed at 2", progress)
	}
}

func TestApplyResumesAfterFixedMigration(t *testing.T) {
	db := openInMemoryDB(t)
	bad, err := NewRegistry(Migration{Version: 1, Name: "bad", Script: "CREAT table things(id INT);"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if _, err := mustRunner(t, bad).Apply(context.Background(), db); err == nil {
		t.Fatal("expected bad migration to fail")
	}
	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 0 {
		t.Fatalf("expected failed migration to stay unrecorded, got %d rows", rows)
	}

	good, err := NewRegistry(Migration{Version: 1, Name: "bad", Script: "CREATE TABLE things(id INTEGER PRIMARY KEY);"})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if _, err := mustRunner(t, good).Apply(context.Background(), db); err != nil {
		t.Fatalf("apply fixed migration: %v", err)
	}
	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 1 {
		t.Fatalf("expected fixed migration to be recorded, got %d rows", rows)
	}
}

func TestApplyRejectsStoreAheadOfRegistry(t *testing.T) {
	db := openInMemoryDB(t)
	if _, err := mustRunner(t, mustRegistry(t, 3)).Apply(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	runner := mustRunner(t, mustRegistry(t, 2))
	if _, err := runner.Apply(context.Background(), db); !errors.Is(err, ErrSchemaAhead) {
		t.Fatalf("apply error = %v, want %v", err, ErrSchemaAhead)
	}
	if runner.Progress().State != StateFailed {
		t.Fatalf("state = %s, want failed", runner.Progress().State)
	}
}

func TestApplyRejectsNonContiguousRecords(t *testing.T) {
	db := openInMemoryDB(t)
	if _, err := db.Exec(createMigrationTableSQL); err != nil {
		t.Fatalf("create migration table: %v", err)
	}
	if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (2)"); err != nil {
		t.Fatalf("seed migration record: %v", err)
	}

	if _, err := mustRunner(t, mustRegistry(t, 3)).Apply(context.Background(), db); !errors.Is(err, ErrAppliedGap) {
		t.Fatalf("apply error = %v, want %v", err, ErrAppliedGap)
	}
	if tableExists(t, db, "table_1") {
		t.Fatal("expected no migration to run against a store with a gap")
	}
}

func TestApplyReportsGapBeyondRegistryAsGap(t *testing.T) {
	db := openInMemoryDB(t)
	if _, err := db.Exec(createMigrationTableSQL); err != nil {
		t.Fatalf("create migration table: %v", err)
	}
	for _, version := range []int{1, 2, 5} {
		if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			t.Fatalf("seed migration record %d: %v", version, err)
		}
	}

	_, err := mustRunner(t, mustRegistry(t, 3)).Apply(context.Background(), db)
	if !errors.Is(err, ErrAppliedGap) {
		t.Fatalf("apply error = %v, want %v", err, ErrAppliedGap)
	}
	if errors.Is(err, ErrSchemaAhead) {
		t.Fatalf("apply error = %v, want no %v", err, ErrSchemaAhead)
	}
}

func TestApplyRequiresDB(t *testing.T) {
	if _, err := mustRunner(t, mustRegistry(t, 1)).Apply(context.Background(), nil); err == nil {
		t.Fatal("expected nil db error")
	}
}

func TestNewRunnerRequiresRegistry(t *testing.T) {
	if _, err := NewRunner(nil); !errors.Is(err, ErrInvalidRegistry) {
		t.Fatalf("new runner error = %v, want %v", err, ErrInvalidRegistry)
	}
}

func TestStatusHelpersOnUnmigratedStore(t *testing.T) {
	db := openInMemoryDB(t)

	version, err := CurrentVersion(context.Background(), db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != 0 {
		t.Fatalf("current version = %d, want 0", version)
	}
	records, err := AppliedRecords(context.Background(), db)
	if err != nil {
		t.Fatalf("applied records: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %v, want none", records)
	}
	if tableExists(t, db, "schema_migrations") {
		t.Fatal("status helpers must not create the migration table")
	}
}

func TestDefaultAppliedAtIsParseable(t *testing.T) {
	db := openInMemoryDB(t)
	if _, err := db.Exec(createMigrationTableSQL); err != nil {
		t.Fatalf("create migration table: %v", err)
	}
	if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (1)"); err != nil {
		t.Fatalf("insert record: %v", err)
	}

	records, err := AppliedRecords(context.Background(), db)
	if err != nil {
		t.Fatalf("applied records: %v", err)
	}
	if len(records) != 1 || records[0].AppliedAt.IsZero() {
		t.Fatalf("records = %+v, want one with applied_at", records)
	}
}

func TestAppliedRecordsReadsSQLiteTimestampForms(t *testing.T) {
	db := openInMemoryDB(t)
	if _, err := db.Exec(`CREATE TABLE schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT DEFAULT (datetime('now'))
	)`); err != nil {
		t.Fatalf("create legacy migration table: %v", err)
	}
	for _, stmt := range []string{
		"INSERT INTO schema_migrations (version) VALUES (1)",
		"INSERT INTO schema_migrations (version, applied_at) VALUES (2, NULL)",
		"INSERT INTO schema_migrations (version, applied_at) VALUES (3, '2026-03-14T12:00:00')",
		"INSERT INTO schema_migrations (version, applied_at) VALUES (4, '2026-03-14 12:00:00.250')",
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}

	records, err := AppliedRecords(context.Background(), db)
	if err != nil {
		t.Fatalf("applied records: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records = %+v, want 4", records)
	}
	if records[0].AppliedAt.IsZero() {
		t.Fatalf("datetime('now') record = %+v, want a time", records[0])
	}
	if !records[1].AppliedAt.IsZero() {
		t.Fatalf("NULL record = %+v, want zero time", records[1])
	}
	want := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	if !records[2].AppliedAt.Equal(want) {
		t.Fatalf("T-separated record = %v, want %v", records[2].AppliedAt, want)
	}
	if !records[3].AppliedAt.Equal(want.Add(250 * time.Millisecond)) {
		t.Fatalf("fractional record = %v", records[3].AppliedAt)
	}

	// The runner accepts the same table and continues from version 4.
	runner := mustRunner(t, mustRegistry(t, 5))
	result, err := runner.Apply(context.Background(), db)
	if err != nil {
		t.Fatalf("apply over legacy records: %v", err)
	}
	if result.From != 4 || result.To != 5 {
		t.Fatalf("result = %+v, want from 4 to 5", result)
	}
}

func TestAppliedRecordsRejectsUnknownTimestamp(t *testing.T) {
	db := openInMemoryDB(t)
	if _, err := db.Exec(createMigrationTableSQL); err != nil {
		t.Fatalf("create migration table: %v", err)
	}
	if _, err := db.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (1, 'yesterday')"); err != nil {
		t.Fatalf("insert record: %v", err)
	}
	if _, err := AppliedRecords(context.Background(), db); err == nil {
		t.Fatal("expected parse error for unknown timestamp")
	}
}

func mustRunner(t *testing.T, registry *Registry, opts ...Option) *Runner {
	t.Helper()
	runner, err := NewRunner(registry, opts...)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	// Every pooled connection to :memory: is a distinct database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func queryInt64(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var value int64
	row := db.QueryRow(query)
	if err := row.Scan(&value); err != nil {
		t.Fatalf("query int value: %v", err)
	}
	return value
}

func queryString(t *testing.T, db *sql.DB, query string) string {
	t.Helper()
	var value string
	row := db.QueryRow(query)
	if err := row.Scan(&value); err != nil {
		t.Fatalf("query string value: %v", err)
	}
	return value
}

func tableExists(t *testing.T, db *sql.DB, tableName string) bool {
	t.Helper()
	query := "SELECT name FROM sqlite_master WHERE type='table' AND name = ?"
	var name string
	row := db.QueryRow(query, tableName)
	if err := row.Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return false
		}
		t.Fatalf("check table exists: %v", err)
	}
	return name == tableName
}
