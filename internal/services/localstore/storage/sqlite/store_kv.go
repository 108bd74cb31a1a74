package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecomarket/localstore/internal/services/localstore/storage"
)

// PutValue stores a local setting, replacing any previous value.
func (s *Store) PutValue(ctx context.Context, key, value string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO key_values (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(s.now()),
	)
	return classifyError("put value", err)
}

// GetValue returns a local setting.
func (s *Store) GetValue(ctx context.Context, key string) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	var value string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value FROM key_values WHERE key = ?`,
		strings.TrimSpace(key),
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get value: %w", err)
	}
	return value, nil
}

// DeleteValue removes a local setting. Missing keys are not an error.
func (s *Store) DeleteValue(ctx context.Context, key string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM key_values WHERE key = ?`, strings.TrimSpace(key)); err != nil {
		return fmt.Errorf("delete value: %w", err)
	}
	return nil
}

// MarkSynced records the latest pull of one entity kind.
func (s *Store) MarkSynced(ctx context.Context, entity, cursor string, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return fmt.Errorf("sync entity is required")
	}
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sync_checkpoints (entity, cursor, synced_at) VALUES (?, ?, ?)
		 ON CONFLICT(entity) DO UPDATE SET cursor = excluded.cursor, synced_at = excluded.synced_at`,
		entity, cursor, formatTime(at),
	)
	return classifyError("mark synced", err)
}

// GetSyncCheckpoint returns the last recorded pull of one entity kind.
func (s *Store) GetSyncCheckpoint(ctx context.Context, entity string) (storage.SyncCheckpoint, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SyncCheckpoint{}, err
	}
	var (
		checkpoint storage.SyncCheckpoint
		syncedAt   string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT entity, cursor, synced_at FROM sync_checkpoints WHERE entity = ?`,
		strings.TrimSpace(entity),
	).Scan(&checkpoint.Entity, &checkpoint.Cursor, &syncedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SyncCheckpoint{}, storage.ErrNotFound
		}
		return storage.SyncCheckpoint{}, fmt.Errorf("get sync checkpoint: %w", err)
	}
	if checkpoint.SyncedAt, err = parseTime(syncedAt); err != nil {
		return storage.SyncCheckpoint{}, fmt.Errorf("get sync checkpoint: parse synced_at: %w", err)
	}
	return checkpoint, nil
}
