package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ecomarket/localstore/internal/platform/storage/sqlitemigrate"
	"github.com/ecomarket/localstore/internal/services/localstore/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

func TestReadStatusMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "localstore.db")
	status, err := ReadStatus(context.Background(), path)
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status.Exists || status.Version != 0 || status.Latest != 3 {
		t.Fatalf("status = %+v, want missing store at 0 of 3", status)
	}
	if len(status.Pending) != 3 {
		t.Fatalf("pending = %d, want 3", len(status.Pending))
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("read status created the store file: %v", err)
	}
}

func TestReadStatusReportsPending(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "localstore.db")
	embedded, err := migrations.Registry()
	if err != nil {
		t.Fatalf("load embedded registry: %v", err)
	}
	v1, err := sqlitemigrate.NewRegistry(embedded.Migrations()[0])
	if err != nil {
		t.Fatalf("build v1 registry: %v", err)
	}
	store, err := Open(context.Background(), path, WithRegistry(v1))
	if err != nil {
		t.Fatalf("open at v1: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	status, err := ReadStatus(context.Background(), path)
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if !status.Exists || status.Version != 1 || status.UpToDate() {
		t.Fatalf("status = %+v, want existing store at 1", status)
	}
	if len(status.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(status.Records))
	}
	if len(status.Pending) != 2 || status.Pending[0].Version != 2 {
		t.Fatalf("pending = %+v, want versions 2 and 3", status.Pending)
	}

	// Reading status leaves the store untouched.
	again, err := ReadStatus(context.Background(), path)
	if err != nil {
		t.Fatalf("read status again: %v", err)
	}
	if again.Version != 1 {
		t.Fatalf("version after status = %d, want 1", again.Version)
	}
}

func TestReadStatusRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := ReadStatus(context.Background(), " "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestReadStatusOpensStoreReadOnly(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store #1", "localstore.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	status, err := ReadStatus(context.Background(), path)
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	if !status.Exists || !status.UpToDate() {
		t.Fatalf("status = %+v, want existing up-to-date store", status)
	}

	readOnly, err := readOnlyDSN(path)
	if err != nil {
		t.Fatalf("read-only dsn: %v", err)
	}
	db, err := sql.Open("sqlite", readOnly)
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close read-only db: %v", err)
		}
	})
	if _, err := sqlitemigrate.CurrentVersion(context.Background(), db); err != nil {
		t.Fatalf("read version through read-only handle: %v", err)
	}
	_, err = db.Exec("INSERT INTO key_values (key, value) VALUES ('k', 'v')")
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code()&0xff != sqlite3lib.SQLITE_READONLY {
		t.Fatalf("write through read-only handle error = %v, want SQLITE_READONLY", err)
	}
}
