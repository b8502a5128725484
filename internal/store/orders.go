package store

import (
	"context"
	"database/sql"
	"fmt"

	"boutique-api/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateOrderTx inserts an order together with its items and decrements the
// matching stock counters, all inside one transaction. A failure anywhere
// (including a stock shortage detected under the row lock) rolls back the
// order and every prior decrement.
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (
			customer_name, customer_phone, customer_email, delivery_type,
			delivery_address, city_id, delivery_desk_id, delivery_fee,
			subtotal, total, notes, call_center_status, delivery_status,
			idempotency_key
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	err = tx.GetContext(ctx, order, query,
		order.CustomerName, order.CustomerPhone, order.CustomerEmail,
		order.DeliveryType, order.DeliveryAddress, order.CityID,
		order.DeliveryDeskID, order.DeliveryFee, order.Subtotal, order.Total,
		order.Notes, order.CallCenterStatus, order.DeliveryStatus,
		order.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID

		err = tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, product_id, quantity, price, size_id, size_label)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			item.OrderID, item.ProductID, item.Quantity, item.Price,
			item.SizeID, item.SizeLabel)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}

		if err := decrementStockTx(ctx, tx, item, item.Quantity); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// decrementStockTx subtracts quantity from the size counter when the item is
// size-scoped, otherwise from the product counter. The row is locked and the
// availability re-checked so concurrent checkouts serialize here.
func decrementStockTx(ctx context.Context, tx *sqlx.Tx, item *models.OrderItem, quantity int) error {
	if item.SizeID != nil {
		var available int
		err := tx.GetContext(ctx, &available,
			"SELECT stock FROM product_sizes WHERE id = $1 FOR UPDATE", *item.SizeID)
		if err != nil {
			return fmt.Errorf("failed to lock size stock: %w", err)
		}
		if available < quantity {
			return fmt.Errorf("%w: product %d size %d", models.ErrInsufficientStock, item.ProductID, *item.SizeID)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE product_sizes SET stock = stock - $1 WHERE id = $2",
			quantity, *item.SizeID)
		if err != nil {
			return fmt.Errorf("failed to decrement size stock: %w", err)
		}
		return nil
	}

	var available int
	err := tx.GetContext(ctx, &available,
		"SELECT stock FROM products WHERE id = $1 FOR UPDATE", item.ProductID)
	if err != nil {
		return fmt.Errorf("failed to lock product stock: %w", err)
	}
	if available < quantity {
		return fmt.Errorf("%w: product %d", models.ErrInsufficientStock, item.ProductID)
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2",
		quantity, item.ProductID)
	if err != nil {
		return fmt.Errorf("failed to decrement product stock: %w", err)
	}
	return nil
}

// incrementStockTx gives quantity back to the counter the item was drawn from.
func incrementStockTx(ctx context.Context, tx *sqlx.Tx, item *models.OrderItem, quantity int) error {
	if item.SizeID != nil {
		_, err := tx.ExecContext(ctx,
			"UPDATE product_sizes SET stock = stock + $1 WHERE id = $2",
			quantity, *item.SizeID)
		return err
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2",
		quantity, item.ProductID)
	return err
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", models.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key.
// Returns nil without error when no order carries the key.
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// OrderFilter narrows ListOrders.
type OrderFilter struct {
	CallCenterStatus string
	DeliveryStatus   string
	Limit            int
	Offset           int
}

// ListOrders retrieves orders newest-first with optional status filters
func (s *Store) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}

	query := "SELECT * FROM orders WHERE 1=1"
	args := []interface{}{}
	if filter.CallCenterStatus != "" {
		args = append(args, filter.CallCenterStatus)
		query += fmt.Sprintf(" AND call_center_status = $%d", len(args))
	}
	if filter.DeliveryStatus != "" {
		args = append(args, filter.DeliveryStatus)
		query += fmt.Sprintf(" AND delivery_status = $%d", len(args))
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, query, args...)
	return orders, err
}

// lockOrderTx fetches an order row under FOR UPDATE.
func lockOrderTx(ctx context.Context, tx *sqlx.Tx, orderID int64) (*models.Order, error) {
	var order models.Order
	err := tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", models.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// recomputeTotalsTx re-derives subtotal and total from the current items.
func recomputeTotalsTx(ctx context.Context, tx *sqlx.Tx, orderID int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders o
		SET subtotal = s.amount,
		    total = s.amount + o.delivery_fee,
		    updated_at = NOW()
		FROM (
			SELECT COALESCE(SUM(price * quantity), 0) AS amount
			FROM order_items WHERE order_id = $1
		) s
		WHERE o.id = $1`, orderID)
	return err
}

// UpdateCallCenterStatusTx moves an order through the call-center state
// machine. A transition into CANCELED restocks every item exactly once,
// guarded by the stock_restored flag, in the same transaction.
func (s *Store) UpdateCallCenterStatusTx(ctx context.Context, orderID int64, next string) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := lockOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if !models.CanTransitionCallCenter(order.CallCenterStatus, next) {
		return nil, fmt.Errorf("%w: call center %s -> %s",
			models.ErrBadTransition, order.CallCenterStatus, next)
	}

	if next == models.CallCenterStatusCanceled && !order.StockRestored {
		var items []models.OrderItem
		err := tx.SelectContext(ctx, &items,
			"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
		if err != nil {
			return nil, err
		}
		for i := range items {
			if err := incrementStockTx(ctx, tx, &items[i], items[i].Quantity); err != nil {
				return nil, fmt.Errorf("failed to restock item %d: %w", items[i].ID, err)
			}
		}
		order.StockRestored = true
	}

	err = tx.GetContext(ctx, order, `
		UPDATE orders
		SET call_center_status = $1, stock_restored = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING *`,
		next, order.StockRestored, orderID)
	if err != nil {
		return nil, err
	}

	return order, tx.Commit()
}

// UpdateDeliveryStatusTx progresses the delivery status, which moves
// independently of the call-center status.
func (s *Store) UpdateDeliveryStatusTx(ctx context.Context, orderID int64, next string) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := lockOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if !models.CanTransitionDelivery(order.DeliveryStatus, next) {
		return nil, fmt.Errorf("%w: delivery %s -> %s",
			models.ErrBadTransition, order.DeliveryStatus, next)
	}

	err = tx.GetContext(ctx, order, `
		UPDATE orders
		SET delivery_status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING *`,
		next, orderID)
	if err != nil {
		return nil, err
	}

	return order, tx.Commit()
}

// SetOrderShipment writes the carrier tracking code and shipment id back
// onto the order.
func (s *Store) SetOrderShipment(ctx context.Context, orderID int64, tracking, shipmentID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET tracking_number = $1, shipment_id = $2, updated_at = NOW() WHERE id = $3",
		tracking, shipmentID, orderID)
	return err
}

// AddOrderItemTx appends an item to a still-mutable order, decrementing
// stock and recomputing totals in one transaction.
func (s *Store) AddOrderItemTx(ctx context.Context, orderID int64, item *models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	order, err := lockOrderTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if !order.Mutable() {
		return fmt.Errorf("%w: %d is %s", models.ErrOrderNotMutable, orderID, order.CallCenterStatus)
	}

	item.OrderID = orderID
	err = tx.GetContext(ctx, &item.ID, `
		INSERT INTO order_items (order_id, product_id, quantity, price, size_id, size_label)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		item.OrderID, item.ProductID, item.Quantity, item.Price,
		item.SizeID, item.SizeLabel)
	if err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}

	if err := decrementStockTx(ctx, tx, item, item.Quantity); err != nil {
		return err
	}
	if err := recomputeTotalsTx(ctx, tx, orderID); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateOrderItemQuantityTx changes an item quantity, adjusting stock by the
// delta and recomputing totals.
func (s *Store) UpdateOrderItemQuantityTx(ctx context.Context, orderID, itemID int64, quantity int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	order, err := lockOrderTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if !order.Mutable() {
		return fmt.Errorf("%w: %d is %s", models.ErrOrderNotMutable, orderID, order.CallCenterStatus)
	}

	var item models.OrderItem
	err = tx.GetContext(ctx, &item,
		"SELECT * FROM order_items WHERE id = $1 AND order_id = $2 FOR UPDATE", itemID, orderID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %d", models.ErrItemNotFound, itemID)
	}
	if err != nil {
		return err
	}

	delta := quantity - item.Quantity
	if delta > 0 {
		if err := decrementStockTx(ctx, tx, &item, delta); err != nil {
			return err
		}
	} else if delta < 0 {
		if err := incrementStockTx(ctx, tx, &item, -delta); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE order_items SET quantity = $1 WHERE id = $2", quantity, itemID)
	if err != nil {
		return err
	}
	if err := recomputeTotalsTx(ctx, tx, orderID); err != nil {
		return err
	}

	return tx.Commit()
}

// RemoveOrderItemTx deletes an item from a still-mutable order, restoring
// its stock and recomputing totals.
func (s *Store) RemoveOrderItemTx(ctx context.Context, orderID, itemID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	order, err := lockOrderTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if !order.Mutable() {
		return fmt.Errorf("%w: %d is %s", models.ErrOrderNotMutable, orderID, order.CallCenterStatus)
	}

	var item models.OrderItem
	err = tx.GetContext(ctx, &item,
		"SELECT * FROM order_items WHERE id = $1 AND order_id = $2 FOR UPDATE", itemID, orderID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %d", models.ErrItemNotFound, itemID)
	}
	if err != nil {
		return err
	}

	if err := incrementStockTx(ctx, tx, &item, item.Quantity); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "DELETE FROM order_items WHERE id = $1", itemID)
	if err != nil {
		return err
	}
	if err := recomputeTotalsTx(ctx, tx, orderID); err != nil {
		return err
	}

	return tx.Commit()
}
