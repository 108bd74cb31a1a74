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

const productColumns = `id, seller_id, product_category_id, title, description, price,
	condition, interaction_type, weight_kg, image_url, is_active,
	deleted_at, created_at, synced_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (storage.Product, error) {
	var (
		product         storage.Product
		condition       string
		interactionType string
		active          int
		deletedAt       sql.NullString
		createdAt       string
		syncedAt        string
	)
	if err := row.Scan(
		&product.ID,
		&product.SellerID,
		&product.CategoryID,
		&product.Title,
		&product.Description,
		&product.Price,
		&condition,
		&interactionType,
		&product.WeightKg,
		&product.ImageURL,
		&active,
		&deletedAt,
		&createdAt,
		&syncedAt,
	); err != nil {
		return storage.Product{}, err
	}
	product.Condition = storage.ProductCondition(condition)
	product.InteractionType = storage.InteractionType(interactionType)
	product.Active = active == 1

	var err error
	if product.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return storage.Product{}, fmt.Errorf("parse deleted_at: %w", err)
	}
	if product.CreatedAt, err = parseTime(createdAt); err != nil {
		return storage.Product{}, fmt.Errorf("parse created_at: %w", err)
	}
	if product.SyncedAt, err = parseTime(syncedAt); err != nil {
		return storage.Product{}, fmt.Errorf("parse synced_at: %w", err)
	}
	return product, nil
}

// PutProduct inserts or refreshes one listing.
func (s *Store) PutProduct(ctx context.Context, product storage.Product) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if product.ID <= 0 {
		return fmt.Errorf("product id is required")
	}
	title := strings.TrimSpace(product.Title)
	if title == "" {
		return fmt.Errorf("product title is required")
	}
	condition := product.Condition
	if condition == "" {
		condition = storage.ConditionUsed
	}
	interactionType := product.InteractionType
	if interactionType == "" {
		interactionType = storage.InteractionSale
	}
	createdAt := product.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   seller_id = excluded.seller_id,
		   product_category_id = excluded.product_category_id,
		   title = excluded.title,
		   description = excluded.description,
		   price = excluded.price,
		   condition = excluded.condition,
		   interaction_type = excluded.interaction_type,
		   weight_kg = excluded.weight_kg,
		   image_url = excluded.image_url,
		   is_active = excluded.is_active,
		   deleted_at = excluded.deleted_at,
		   synced_at = excluded.synced_at`,
		product.ID,
		product.SellerID,
		product.CategoryID,
		title,
		strings.TrimSpace(product.Description),
		product.Price,
		string(condition),
		string(interactionType),
		product.WeightKg,
		strings.TrimSpace(product.ImageURL),
		boolInt(product.Active),
		nullTime(product.DeletedAt),
		formatTime(createdAt),
		s.syncedAt(),
	)
	return classifyError("put product", err)
}

// GetProduct returns one listing, including soft-deleted ones.
func (s *Store) GetProduct(ctx context.Context, id int64) (storage.Product, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Product{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Product{}, storage.ErrNotFound
		}
		return storage.Product{}, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// ListActiveProducts returns the active, non-deleted listings of a seller,
// newest first.
func (s *Store) ListActiveProducts(ctx context.Context, sellerID int64) ([]storage.Product, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+productColumns+`
		   FROM products
		  WHERE seller_id = ? AND is_active = 1 AND deleted_at IS NULL
		  ORDER BY created_at DESC, id DESC`,
		sellerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	defer rows.Close()

	var products []storage.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("list active products: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	return products, nil
}

// SoftDeleteProduct marks a listing deleted and inactive. Deleting an already
// deleted listing keeps its original deletion time.
func (s *Store) SoftDeleteProduct(ctx context.Context, id int64, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if at.IsZero() {
		at = s.now()
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE products
		    SET is_active = 0,
		        deleted_at = COALESCE(deleted_at, ?)
		  WHERE id = ?`,
		formatTime(at), id,
	)
	if err != nil {
		return classifyError("soft delete product", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete product: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PutStoreProduct inserts or refreshes one store catalog item.
func (s *Store) PutStoreProduct(ctx context.Context, product storage.StoreProduct) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if product.ID <= 0 {
		return fmt.Errorf("store product id is required")
	}
	name := strings.TrimSpace(product.Name)
	if name == "" {
		return fmt.Errorf("store product name is required")
	}
	now := s.syncedAt()
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO store_products (
		   id, store_sub_category_id, seller_id, name, description, price,
		   stock, image_url, is_active, deleted_at, created_at, synced_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   store_sub_category_id = excluded.store_sub_category_id,
		   seller_id = excluded.seller_id,
		   name = excluded.name,
		   description = excluded.description,
		   price = excluded.price,
		   stock = excluded.stock,
		   image_url = excluded.image_url,
		   is_active = excluded.is_active,
		   deleted_at = excluded.deleted_at,
		   synced_at = excluded.synced_at`,
		product.ID,
		product.SubCategoryID,
		product.SellerID,
		name,
		strings.TrimSpace(product.Description),
		product.Price,
		product.Stock,
		strings.TrimSpace(product.ImageURL),
		boolInt(product.Active),
		nullTime(product.DeletedAt),
		now,
		now,
	)
	return classifyError("put store product", err)
}
