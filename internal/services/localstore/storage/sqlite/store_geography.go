package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/ecomarket/localstore/internal/services/localstore/storage"
)

// PutCountry inserts or refreshes one country.
func (s *Store) PutCountry(ctx context.Context, country storage.Country) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	name := strings.TrimSpace(country.Name)
	if country.ID <= 0 {
		return fmt.Errorf("country id is required")
	}
	if name == "" {
		return fmt.Errorf("country name is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO countries (id, country, synced_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET country = excluded.country, synced_at = excluded.synced_at`,
		country.ID, name, s.syncedAt(),
	)
	return classifyError("put country", err)
}

// PutRegion inserts or refreshes one region under an existing country.
func (s *Store) PutRegion(ctx context.Context, region storage.Region) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	name := strings.TrimSpace(region.Name)
	if region.ID <= 0 {
		return fmt.Errorf("region id is required")
	}
	if name == "" {
		return fmt.Errorf("region name is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO regions (id, region, country_id, synced_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   region = excluded.region,
		   country_id = excluded.country_id,
		   synced_at = excluded.synced_at`,
		region.ID, name, region.CountryID, s.syncedAt(),
	)
	return classifyError("put region", err)
}

// PutCity inserts or refreshes one city under an existing region.
func (s *Store) PutCity(ctx context.Context, city storage.City) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	name := strings.TrimSpace(city.Name)
	if city.ID <= 0 {
		return fmt.Errorf("city id is required")
	}
	if name == "" {
		return fmt.Errorf("city name is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO cities (id, city, region_id, synced_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   city = excluded.city,
		   region_id = excluded.region_id,
		   synced_at = excluded.synced_at`,
		city.ID, name, city.RegionID, s.syncedAt(),
	)
	return classifyError("put city", err)
}

// PutCounty inserts or refreshes one county under an existing city.
func (s *Store) PutCounty(ctx context.Context, county storage.County) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	name := strings.TrimSpace(county.Name)
	if county.ID <= 0 {
		return fmt.Errorf("county id is required")
	}
	if name == "" {
		return fmt.Errorf("county name is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO counties (id, county, city_id, synced_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   county = excluded.county,
		   city_id = excluded.city_id,
		   synced_at = excluded.synced_at`,
		county.ID, name, county.CityID, s.syncedAt(),
	)
	return classifyError("put county", err)
}

// ListRegions returns the regions of one country ordered by name.
func (s *Store) ListRegions(ctx context.Context, countryID int64) ([]storage.Region, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, region, country_id, synced_at
		   FROM regions
		  WHERE country_id = ?
		  ORDER BY region ASC, id ASC`,
		countryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	defer rows.Close()

	var regions []storage.Region
	for rows.Next() {
		var (
			region   storage.Region
			syncedAt string
		)
		if err := rows.Scan(&region.ID, &region.Name, &region.CountryID, &syncedAt); err != nil {
			return nil, fmt.Errorf("list regions: %w", err)
		}
		if region.SyncedAt, err = parseTime(syncedAt); err != nil {
			return nil, fmt.Errorf("list regions: parse synced_at: %w", err)
		}
		regions = append(regions, region)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	return regions, nil
}
