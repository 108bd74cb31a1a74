package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ecomarket/localstore/internal/services/localstore/storage"
)

// PutSeller inserts or refreshes one seller.
func (s *Store) PutSeller(ctx context.Context, seller storage.Seller) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if seller.ID <= 0 {
		return fmt.Errorf("seller id is required")
	}
	if seller.Type != storage.SellerPerson && seller.Type != storage.SellerBusiness {
		return fmt.Errorf("seller type %q is invalid", seller.Type)
	}
	email := strings.ToLower(strings.TrimSpace(seller.Email))
	if email == "" {
		return fmt.Errorf("seller email is required")
	}
	displayName := strings.TrimSpace(seller.DisplayName)
	if displayName == "" {
		return fmt.Errorf("seller display name is required")
	}
	createdAt := seller.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sellers (
		   id, seller_type, email, display_name, phone, avatar_url,
		   points, level_id, county_id, is_active, created_at, synced_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   seller_type = excluded.seller_type,
		   email = excluded.email,
		   display_name = excluded.display_name,
		   phone = excluded.phone,
		   avatar_url = excluded.avatar_url,
		   points = excluded.points,
		   level_id = excluded.level_id,
		   county_id = excluded.county_id,
		   is_active = excluded.is_active,
		   synced_at = excluded.synced_at`,
		seller.ID,
		string(seller.Type),
		email,
		displayName,
		strings.TrimSpace(seller.Phone),
		strings.TrimSpace(seller.AvatarURL),
		seller.Points,
		nullID(seller.LevelID),
		nullID(seller.CountyID),
		boolInt(seller.Active),
		formatTime(createdAt),
		s.syncedAt(),
	)
	return classifyError("put seller", err)
}

// GetSeller returns one seller by ID.
func (s *Store) GetSeller(ctx context.Context, id int64) (storage.Seller, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Seller{}, err
	}
	var (
		seller    storage.Seller
		sellerTyp string
		levelID   sql.NullInt64
		countyID  sql.NullInt64
		active    int
		createdAt string
		syncedAt  string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, seller_type, email, display_name, phone, avatar_url,
		        points, level_id, county_id, is_active, created_at, synced_at
		   FROM sellers
		  WHERE id = ?`,
		id,
	).Scan(
		&seller.ID,
		&sellerTyp,
		&seller.Email,
		&seller.DisplayName,
		&seller.Phone,
		&seller.AvatarURL,
		&seller.Points,
		&levelID,
		&countyID,
		&active,
		&createdAt,
		&syncedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Seller{}, storage.ErrNotFound
		}
		return storage.Seller{}, fmt.Errorf("get seller: %w", err)
	}
	seller.Type = storage.SellerType(sellerTyp)
	seller.LevelID = levelID.Int64
	seller.CountyID = countyID.Int64
	seller.Active = active == 1
	if seller.CreatedAt, err = parseTime(createdAt); err != nil {
		return storage.Seller{}, fmt.Errorf("get seller: parse created_at: %w", err)
	}
	if seller.SyncedAt, err = parseTime(syncedAt); err != nil {
		return storage.Seller{}, fmt.Errorf("get seller: parse synced_at: %w", err)
	}
	return seller, nil
}

// DeleteSeller removes a seller together with its profile, preferences and
// achieved labels. Listings and orders still referencing the seller block
// the delete with storage.ErrForeignKey.
func (s *Store) DeleteSeller(ctx context.Context, id int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sellers WHERE id = ?`, id)
	if err != nil {
		return classifyError("delete seller", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete seller: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PutPersonProfile inserts or refreshes the profile of a person seller.
func (s *Store) PutPersonProfile(ctx context.Context, profile storage.PersonProfile) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	firstName := strings.TrimSpace(profile.FirstName)
	if firstName == "" {
		return fmt.Errorf("first name is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO person_profiles (seller_id, first_name, last_name, birth_date, synced_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(seller_id) DO UPDATE SET
		   first_name = excluded.first_name,
		   last_name = excluded.last_name,
		   birth_date = excluded.birth_date,
		   synced_at = excluded.synced_at`,
		profile.SellerID,
		firstName,
		strings.TrimSpace(profile.LastName),
		sql.NullString{String: profile.BirthDate, Valid: strings.TrimSpace(profile.BirthDate) != ""},
		s.syncedAt(),
	)
	return classifyError("put person profile", err)
}

// PutBusinessProfile inserts or refreshes the profile of a business seller.
func (s *Store) PutBusinessProfile(ctx context.Context, profile storage.BusinessProfile) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	businessName := strings.TrimSpace(profile.BusinessName)
	if businessName == "" {
		return fmt.Errorf("business name is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO business_profiles (seller_id, business_name, tax_id, description, synced_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(seller_id) DO UPDATE SET
		   business_name = excluded.business_name,
		   tax_id = excluded.tax_id,
		   description = excluded.description,
		   synced_at = excluded.synced_at`,
		profile.SellerID,
		businessName,
		strings.TrimSpace(profile.TaxID),
		strings.TrimSpace(profile.Description),
		s.syncedAt(),
	)
	return classifyError("put business profile", err)
}

// PutSellerPreferences inserts or replaces the preferences of one seller.
func (s *Store) PutSellerPreferences(ctx context.Context, prefs storage.SellerPreferences) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	language := strings.TrimSpace(prefs.Language)
	if language == "" {
		language = "es"
	}
	currency := strings.ToUpper(strings.TrimSpace(prefs.Currency))
	if currency == "" {
		currency = "CLP"
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO seller_preferences (seller_id, language, currency, notifications_enabled, dark_mode, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(seller_id) DO UPDATE SET
		   language = excluded.language,
		   currency = excluded.currency,
		   notifications_enabled = excluded.notifications_enabled,
		   dark_mode = excluded.dark_mode,
		   synced_at = excluded.synced_at`,
		prefs.SellerID,
		language,
		currency,
		boolInt(prefs.NotificationsEnabled),
		boolInt(prefs.DarkMode),
		s.syncedAt(),
	)
	return classifyError("put seller preferences", err)
}

// GetSellerPreferences returns the preferences row of one seller.
func (s *Store) GetSellerPreferences(ctx context.Context, sellerID int64) (storage.SellerPreferences, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SellerPreferences{}, err
	}
	var (
		prefs         storage.SellerPreferences
		notifications int
		darkMode      int
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT seller_id, language, currency, notifications_enabled, dark_mode
		   FROM seller_preferences
		  WHERE seller_id = ?`,
		sellerID,
	).Scan(&prefs.SellerID, &prefs.Language, &prefs.Currency, &notifications, &darkMode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SellerPreferences{}, storage.ErrNotFound
		}
		return storage.SellerPreferences{}, fmt.Errorf("get seller preferences: %w", err)
	}
	prefs.NotificationsEnabled = notifications == 1
	prefs.DarkMode = darkMode == 1
	return prefs, nil
}
