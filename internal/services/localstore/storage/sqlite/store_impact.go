package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/ecomarket/localstore/internal/services/localstore/storage"
)

// PutMaterialEstimate inserts or refreshes the savings estimate of one material.
func (s *Store) PutMaterialEstimate(ctx context.Context, estimate storage.MaterialEstimate) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if estimate.ID <= 0 {
		return fmt.Errorf("material id is required")
	}
	materialType := strings.ToLower(strings.TrimSpace(estimate.MaterialType))
	if materialType == "" {
		return fmt.Errorf("material type is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO material_impact_estimates (id, material_type, co2_savings_per_kg, water_savings_per_kg, source, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   material_type = excluded.material_type,
		   co2_savings_per_kg = excluded.co2_savings_per_kg,
		   water_savings_per_kg = excluded.water_savings_per_kg,
		   source = excluded.source,
		   synced_at = excluded.synced_at`,
		estimate.ID,
		materialType,
		estimate.CO2SavingsPerKg,
		estimate.WaterSavingsPerKg,
		strings.TrimSpace(estimate.Source),
		s.syncedAt(),
	)
	return classifyError("put material estimate", err)
}

// LinkCategoryMaterial records that products of a category are made of a
// material. Relinking the same pair refreshes quantity and share.
func (s *Store) LinkCategoryMaterial(ctx context.Context, link storage.CategoryMaterial) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO product_category_materials (product_category_id, material_id, quantity, percentage, is_primary, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(product_category_id, material_id) DO UPDATE SET
		   quantity = excluded.quantity,
		   percentage = excluded.percentage,
		   is_primary = excluded.is_primary,
		   synced_at = excluded.synced_at`,
		link.CategoryID,
		link.MaterialID,
		link.Quantity,
		link.Percentage,
		boolInt(link.Primary),
		s.syncedAt(),
	)
	return classifyError("link category material", err)
}

// CategoryImpact returns the materials of a product category joined with their
// estimates, primary material first and then by descending share.
func (s *Store) CategoryImpact(ctx context.Context, categoryID int64) ([]storage.CategoryImpact, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT m.id, m.material_type, m.co2_savings_per_kg, m.water_savings_per_kg, m.source,
		        pcm.quantity, pcm.percentage, pcm.is_primary
		   FROM product_category_materials pcm
		   JOIN material_impact_estimates m ON m.id = pcm.material_id
		  WHERE pcm.product_category_id = ?
		  ORDER BY pcm.is_primary DESC, pcm.percentage DESC, m.id ASC`,
		categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("category impact: %w", err)
	}
	defer rows.Close()

	var impacts []storage.CategoryImpact
	for rows.Next() {
		var (
			impact  storage.CategoryImpact
			primary int
		)
		if err := rows.Scan(
			&impact.Material.ID,
			&impact.Material.MaterialType,
			&impact.Material.CO2SavingsPerKg,
			&impact.Material.WaterSavingsPerKg,
			&impact.Material.Source,
			&impact.Quantity,
			&impact.Percentage,
			&primary,
		); err != nil {
			return nil, fmt.Errorf("category impact: %w", err)
		}
		impact.Primary = primary == 1
		impacts = append(impacts, impact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("category impact: %w", err)
	}
	return impacts, nil
}
