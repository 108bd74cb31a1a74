package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ecomarket/localstore/internal/services/localstore/storage"
)

// CreateOrder persists an order with all of its items atomically. Each item
// is stored at its slice index; OrderItem.Position is ignored on write.
func (s *Store) CreateOrder(ctx context.Context, order storage.Order) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if order.ID <= 0 {
		return fmt.Errorf("order id is required")
	}
	if len(order.Items) == 0 {
		return fmt.Errorf("order requires at least one item")
	}
	status := order.Status
	if status == "" {
		status = storage.OrderPending
	}
	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	syncedAt := s.syncedAt()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, seller_id, status, total, shipping_address, created_at, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.SellerID,
		string(status),
		order.Total,
		strings.TrimSpace(order.ShippingAddress),
		formatTime(createdAt),
		syncedAt,
	); err != nil {
		return classifyError("create order", err)
	}

	for i, item := range order.Items {
		position := i
		quantity := item.Quantity
		if quantity == 0 {
			quantity = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, position, product_id, store_product_id, quantity, unit_price, synced_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			order.ID,
			position,
			nullID(item.ProductID),
			nullID(item.StoreProductID),
			quantity,
			item.UnitPrice,
			syncedAt,
		); err != nil {
			return classifyError(fmt.Sprintf("create order item %d", position), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

// GetOrder returns one order with its items in position order.
func (s *Store) GetOrder(ctx context.Context, id int64) (storage.Order, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Order{}, err
	}
	var (
		order     storage.Order
		status    string
		createdAt string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, seller_id, status, total, shipping_address, created_at
		   FROM orders
		  WHERE id = ?`,
		id,
	).Scan(&order.ID, &order.SellerID, &status, &order.Total, &order.ShippingAddress, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Order{}, storage.ErrNotFound
		}
		return storage.Order{}, fmt.Errorf("get order: %w", err)
	}
	order.Status = storage.OrderStatus(status)
	if order.CreatedAt, err = parseTime(createdAt); err != nil {
		return storage.Order{}, fmt.Errorf("get order: parse created_at: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT position, product_id, store_product_id, quantity, unit_price
		   FROM order_items
		  WHERE order_id = ?
		  ORDER BY position ASC`,
		id,
	)
	if err != nil {
		return storage.Order{}, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item           storage.OrderItem
			productID      sql.NullInt64
			storeProductID sql.NullInt64
		)
		if err := rows.Scan(&item.Position, &productID, &storeProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return storage.Order{}, fmt.Errorf("get order items: %w", err)
		}
		item.ProductID = productID.Int64
		item.StoreProductID = storeProductID.Int64
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return storage.Order{}, fmt.Errorf("get order items: %w", err)
	}
	return order, nil
}
