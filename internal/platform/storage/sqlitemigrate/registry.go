package sqlitemigrate

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidRegistry reports a migration set that cannot be applied safely.
var ErrInvalidRegistry = errors.New("invalid migration registry")

var migrationFilePattern = regexp.MustCompile(`^(\d+)_([A-Za-z0-9_\-]+)\.sql$`)

// Migration is one versioned schema change.
type Migration struct {
	Version int
	Name    string
	Script  string
}

// Registry is a validated, contiguous sequence of migrations starting at 1.
type Registry struct {
	migrations []Migration
}

// NewRegistry validates migrations and returns them as a registry.
//
// Versions must be exactly 1..n in the order given. Duplicate, decreasing or
// missing versions are rejected rather than reordered.
func NewRegistry(migrations ...Migration) (*Registry, error) {
	if len(migrations) == 0 {
		return nil, fmt.Errorf("%w: no migrations", ErrInvalidRegistry)
	}

	validated := make([]Migration, 0, len(migrations))
	for i, migration := range migrations {
		migration.Name = strings.TrimSpace(migration.Name)
		switch {
		case migration.Version <= 0:
			return nil, fmt.Errorf("%w: version %d must be positive", ErrInvalidRegistry, migration.Version)
		case i > 0 && migration.Version == validated[i-1].Version:
			return nil, fmt.Errorf("%w: duplicate version %d", ErrInvalidRegistry, migration.Version)
		case i > 0 && migration.Version < validated[i-1].Version:
			return nil, fmt.Errorf("%w: version %d follows %d", ErrInvalidRegistry, migration.Version, validated[i-1].Version)
		case migration.Version != i+1:
			return nil, fmt.Errorf("%w: expected version %d, got %d", ErrInvalidRegistry, i+1, migration.Version)
		}
		if strings.TrimSpace(migration.Script) == "" {
			return nil, fmt.Errorf("%w: version %d has an empty script", ErrInvalidRegistry, migration.Version)
		}
		validated = append(validated, migration)
	}
	return &Registry{migrations: validated}, nil
}

// LoadRegistry reads NNNN_name.sql files under root and builds a registry.
//
// Only the "-- +migrate Up" section of each file is kept.
func LoadRegistry(migrationFS fs.FS, root string) (*Registry, error) {
	if migrationFS == nil {
		return nil, fmt.Errorf("migration fs is required")
	}
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}

	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		match := migrationFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, fmt.Errorf("%w: file %s is not named NNNN_name.sql", ErrInvalidRegistry, entry.Name())
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, fmt.Errorf("%w: parse version of %s: %v", ErrInvalidRegistry, entry.Name(), err)
		}
		content, err := fs.ReadFile(migrationFS, path.Join(root, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version: version,
			Name:    match[2],
			Script:  ExtractUpMigration(string(content)),
		})
	}
	sort.SliceStable(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return NewRegistry(migrations...)
}

// Migrations returns a copy of the registered migrations in version order.
func (r *Registry) Migrations() []Migration {
	if r == nil {
		return nil
	}
	out := make([]Migration, len(r.migrations))
	copy(out, r.migrations)
	return out
}

// Latest returns the highest registered version.
func (r *Registry) Latest() int {
	if r == nil || len(r.migrations) == 0 {
		return 0
	}
	return r.migrations[len(r.migrations)-1].Version
}

// Pending returns the migrations with a version above current, ascending.
func (r *Registry) Pending(current int) []Migration {
	if r == nil {
		return nil
	}
	if current < 0 {
		current = 0
	}
	if current >= len(r.migrations) {
		return nil
	}
	out := make([]Migration, len(r.migrations)-current)
	copy(out, r.migrations[current:])
	return out
}

// ExtractUpMigration returns the SQL in the -- +migrate Up section.
func ExtractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}
