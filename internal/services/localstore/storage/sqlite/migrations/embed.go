// Package migrations embeds the versioned SQLite schema of the local store.
//
// Version 1 is the schema catalog of the marketplace domain. Later versions
// only add to it; a file that has shipped is never edited.
package migrations

import (
	"embed"
	"fmt"

	"github.com/ecomarket/localstore/internal/platform/storage/sqlitemigrate"
)

// FS contains the embedded migration files, one per version.
//
//go:embed *.sql
var FS embed.FS

// Registry loads and validates the embedded migrations.
func Registry() (*sqlitemigrate.Registry, error) {
	registry, err := sqlitemigrate.LoadRegistry(FS, ".")
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	return registry, nil
}
