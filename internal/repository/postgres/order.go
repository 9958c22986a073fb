package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/threadline/inventory/internal/order"
	"github.com/threadline/inventory/internal/repository"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new OrderRepository backed by Postgres.
func NewOrderRepository(db *sql.DB) repository.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// A client retry of the same order ID must not create a second order
	// or duplicate its items.
	var inserted bool
	err = tx.QueryRowContext(ctx,
		"INSERT INTO orders (id, total_price, status, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING RETURNING true",
		o.ID, o.TotalPrice, o.Status, o.CreatedAt,
	).Scan(&inserted)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range o.Items {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, size, color, name, price, quantity) VALUES ($1, $2, $3, $4, $5, $6, $7)",
			o.ID, item.ProductID, item.Size, item.Color, item.Name, item.Price, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *orderRepository) Find(ctx context.Context, id string) (*order.Order, error) {
	var o order.Order
	err := r.db.QueryRowContext(ctx,
		"SELECT id, total_price, status, stock_reduced, created_at FROM orders WHERE id = $1", id,
	).Scan(&o.ID, &o.TotalPrice, &o.Status, &o.StockReduced, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order %s: %w", id, err)
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *orderRepository) FindRecent(ctx context.Context, limit int) ([]order.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, total_price, status, stock_reduced, created_at FROM orders ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		var o order.Order
		if err := rows.Scan(&o.ID, &o.TotalPrice, &o.Status, &o.StockReduced, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT product_id, size, color, name, price, quantity FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		var item order.Item
		if err := rows.Scan(&item.ProductID, &item.Size, &item.Color, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order item rows: %w", err)
	}
	return items, nil
}

func (r *orderRepository) MarkStockReduced(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE orders SET stock_reduced = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to mark order %s reduced: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *orderRepository) StockReduced(ctx context.Context, id string) (bool, error) {
	var reduced bool
	err := r.db.QueryRowContext(ctx, "SELECT stock_reduced FROM orders WHERE id = $1", id).Scan(&reduced)
	if err == sql.ErrNoRows {
		return false, repository.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to query order %s: %w", id, err)
	}
	return reduced, nil
}
