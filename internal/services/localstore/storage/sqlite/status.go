package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ecomarket/localstore/internal/platform/storage/sqlitemigrate"
	"github.com/ecomarket/localstore/internal/services/localstore/storage/sqlite/migrations"
)

// Status describes the migration state of a store file without changing it.
type Status struct {
	Path    string
	Exists  bool
	Version int
	Latest  int
	Records []sqlitemigrate.Record
	Pending []sqlitemigrate.Migration
}

// UpToDate reports whether every known migration has been applied.
func (s Status) UpToDate() bool {
	return s.Version == s.Latest
}

// ReadStatus reports applied and pending migrations for the store at path.
// It is the one reader that bypasses Open: the file is opened read-only, so
// it is never created, migrated or written. Only WithRegistry is honored
// among opts.
func ReadStatus(ctx context.Context, path string, opts ...Option) (Status, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(path) == "" {
		return Status{}, fmt.Errorf("storage path is required")
	}
	registry := o.registry
	if registry == nil {
		loaded, err := migrations.Registry()
		if err != nil {
			return Status{}, err
		}
		registry = loaded
	}

	status := Status{
		Path:    filepath.Clean(path),
		Latest:  registry.Latest(),
		Pending: registry.Pending(0),
	}
	if _, err := os.Stat(status.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return status, nil
		}
		return Status{}, fmt.Errorf("stat store: %w", err)
	}
	status.Exists = true

	readOnly, err := readOnlyDSN(status.Path)
	if err != nil {
		return Status{}, err
	}
	sqlDB, err := sql.Open("sqlite", readOnly)
	if err != nil {
		return Status{}, fmt.Errorf("open sqlite db: %w", err)
	}
	defer sqlDB.Close()

	records, err := sqlitemigrate.AppliedRecords(ctx, sqlDB)
	if err != nil {
		return Status{}, fmt.Errorf("read migration records: %w", err)
	}
	status.Records = records
	if len(records) > 0 {
		status.Version = records[len(records)-1].Version
	}
	if status.Version > status.Latest {
		return status, fmt.Errorf("%w: store at %d, latest known %d", sqlitemigrate.ErrSchemaAhead, status.Version, status.Latest)
	}
	status.Pending = registry.Pending(status.Version)
	return status, nil
}
