// Package reducer is the write side of the inventory core: relative,
// per-variant stock decrements applied after an order is accepted.
package reducer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/threadline/inventory/internal/catalog"
	"github.com/threadline/inventory/internal/events"
	"github.com/threadline/inventory/internal/repository"
)

// Result is the outcome of one line of a reduce batch.
type Result struct {
	Item          catalog.StockRequest `json:"item"`
	Success       bool                 `json:"success"`
	PreviousStock int                  `json:"previous_stock"`
	NewStock      int                  `json:"new_stock"`
	Message       string               `json:"message,omitempty"`
}

// Reducer decrements variant stock counts. It writes only to the local
// catalog store; the external admin service is never written to.
type Reducer struct {
	products repository.ProductRepository
	bus      *events.Bus
}

// New creates a Reducer. bus may be nil when no one watches stock.
func New(products repository.ProductRepository, bus *events.Bus) *Reducer {
	return &Reducer{products: products, bus: bus}
}

// Reduce processes the batch sequentially, each item independently. A
// rejected item does not roll back decrements already applied to earlier
// items; only each single decrement is atomic. Each decrement is a relative
// adjustment guarded at the storage layer, never a read-modify-write of the
// whole record, which keeps the lost-update window between concurrent
// reducers as small as the store allows.
func (r *Reducer) Reduce(ctx context.Context, items []catalog.StockRequest) []Result {
	results := make([]Result, 0, len(items))
	for _, item := range items {
		results = append(results, r.reduceOne(ctx, item))
	}
	return results
}

func (r *Reducer) reduceOne(ctx context.Context, item catalog.StockRequest) Result {
	res := Result{Item: item}

	if item.Quantity < 1 {
		res.Message = fmt.Sprintf("Invalid quantity %d for product %s", item.Quantity, item.ProductID)
		return res
	}

	// The size-level row is addressed with an empty color; a requested
	// color addresses the authoritative color-level row.
	previous, current, err := r.products.AdjustStock(ctx, item.ProductID, item.Size, item.Color, item.Quantity)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		res.Message = notFoundMessage(item)
		return res
	case errors.Is(err, repository.ErrInsufficientStock):
		res.PreviousStock = previous
		res.NewStock = current
		res.Message = fmt.Sprintf("Insufficient stock for product %s (%s): requested %d, available %d",
			item.ProductID, variantLabel(item), item.Quantity, previous)
		return res
	case err != nil:
		res.Message = fmt.Sprintf("Stock adjustment failed: %v", err)
		return res
	}

	res.Success = true
	res.PreviousStock = previous
	res.NewStock = current

	slog.Info("Stock reduced",
		"product_id", item.ProductID, "size", item.Size, "color", item.Color,
		"quantity", item.Quantity, "previous", previous, "current", current)

	r.publishChange(ctx, item.ProductID)
	return res
}

// publishChange pushes the post-decrement record to watchers so product
// pages converge without waiting for the next poll.
func (r *Reducer) publishChange(ctx context.Context, productID string) {
	if r.bus == nil {
		return
	}
	rec, err := r.products.FindStock(ctx, productID)
	if err != nil {
		slog.Warn("Failed to load record for stock-change event", "product_id", productID, "err", err)
		return
	}
	ev := events.StockChanged{
		ProductID:  productID,
		Record:     catalog.Normalize(rec),
		ObservedAt: time.Now().UTC(),
	}
	if err := r.bus.PublishStockChanged(ev); err != nil {
		slog.Warn("Failed to publish stock change", "product_id", productID, "err", err)
	}
}

func notFoundMessage(item catalog.StockRequest) string {
	if item.Color != "" {
		return fmt.Sprintf("Product %s has no variant %s/%s", item.ProductID, item.Size, item.Color)
	}
	return fmt.Sprintf("Product %s has no size %s", item.ProductID, item.Size)
}

func variantLabel(item catalog.StockRequest) string {
	if item.Color != "" {
		return fmt.Sprintf("size %s, color %s", item.Size, item.Color)
	}
	return "size " + item.Size
}
