package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ecomarket/localstore/internal/services/localstore/storage"
)

// Raised by the levels_disjoint_* triggers.
const levelOverlapMessage = "level point range overlaps an existing level"

// PutLevel inserts or refreshes one level. Point ranges of distinct levels
// may not intersect.
func (s *Store) PutLevel(ctx context.Context, level storage.Level) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if level.ID <= 0 {
		return fmt.Errorf("level id is required")
	}
	name := strings.TrimSpace(level.Name)
	if name == "" {
		return fmt.Errorf("level name is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO levels (id, name, min_points, max_points, synced_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   min_points = excluded.min_points,
		   max_points = excluded.max_points,
		   synced_at = excluded.synced_at`,
		level.ID, name, level.MinPoints, level.MaxPoints, s.syncedAt(),
	)
	if err != nil && strings.Contains(err.Error(), levelOverlapMessage) {
		return fmt.Errorf("put level %d: %w: %w", level.ID, storage.ErrLevelOverlap, err)
	}
	return classifyError("put level", err)
}

// LevelForPoints returns the level whose range contains points.
func (s *Store) LevelForPoints(ctx context.Context, points int64) (storage.Level, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Level{}, err
	}
	var level storage.Level
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, min_points, max_points
		   FROM levels
		  WHERE ? BETWEEN min_points AND max_points`,
		points,
	).Scan(&level.ID, &level.Name, &level.MinPoints, &level.MaxPoints)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Level{}, storage.ErrNotFound
		}
		return storage.Level{}, fmt.Errorf("level for points: %w", err)
	}
	return level, nil
}

// PutLabel inserts or refreshes one label.
func (s *Store) PutLabel(ctx context.Context, label storage.Label) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if label.ID <= 0 {
		return fmt.Errorf("label id is required")
	}
	name := strings.TrimSpace(label.Name)
	if name == "" {
		return fmt.Errorf("label name is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO labels (id, name, description, icon_url, synced_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   description = excluded.description,
		   icon_url = excluded.icon_url,
		   synced_at = excluded.synced_at`,
		label.ID, name, strings.TrimSpace(label.Description), strings.TrimSpace(label.IconURL), s.syncedAt(),
	)
	return classifyError("put label", err)
}

// AwardLabel records that a seller earned a label. A label is earned once.
func (s *Store) AwardLabel(ctx context.Context, sellerID, labelID int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	now := s.syncedAt()
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO achieved_labels (seller_id, label_id, achieved_at, synced_at) VALUES (?, ?, ?, ?)`,
		sellerID, labelID, now, now,
	)
	return classifyError("award label", err)
}
