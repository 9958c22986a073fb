package repository

import (
	"context"
	"errors"

	"github.com/threadline/inventory/internal/catalog"
	"github.com/threadline/inventory/internal/order"
)

// Sentinel errors shared by repository implementations. Callers branch with
// errors.Is; neither is ever retried automatically.
var (
	ErrNotFound          = errors.New("repository: not found")
	ErrInsufficientStock = errors.New("repository: insufficient stock")
)

// ProductRepository handles persistence for products and their per-variant
// stock.
type ProductRepository interface {
	FindAll(ctx context.Context) ([]catalog.Product, error)
	Find(ctx context.Context, id string) (*catalog.Product, error)
	// FindStock returns the raw (un-normalized) stock record for a product.
	FindStock(ctx context.Context, id string) (catalog.StockRecord, error)
	// AdjustStock applies a relative decrement of qty to the (size, color)
	// variant, guarded so the count can never go below zero. An empty color
	// addresses the size level. Returns the stock before and after.
	AdjustStock(ctx context.Context, id, size, color string, qty int) (previous, current int, err error)
	// Seed inserts initial products if none exist.
	Seed(ctx context.Context, products []catalog.Product) error
}

// OrderRepository handles persistence for orders.
type OrderRepository interface {
	// Create inserts an order; inserting an existing ID is a no-op.
	Create(ctx context.Context, o *order.Order) error
	Find(ctx context.Context, id string) (*order.Order, error)
	FindRecent(ctx context.Context, limit int) ([]order.Order, error)
	// MarkStockReduced records that the order's reduction pass completed.
	MarkStockReduced(ctx context.Context, id string) error
	StockReduced(ctx context.Context, id string) (bool, error)
}
