// Package reconciler turns one accepted order into exactly one successful
// stock-reduction pass, surviving process restarts and page reloads by way
// of a durable pending-retry marker.
package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/threadline/inventory/internal/catalog"
	"github.com/threadline/inventory/internal/localstore"
	"github.com/threadline/inventory/internal/order"
	"github.com/threadline/inventory/internal/reducer"
	"github.com/threadline/inventory/internal/repository"
)

const (
	pendingKeyPrefix = "pending_reduction:"
	lastOrderKey     = "last_order"
)

// PendingReduction is the durable work-queue entry: everything needed to
// reduce stock for one order, captured from the cart at acceptance time so
// the retry path never depends on the cart still existing.
type PendingReduction struct {
	OrderID   string                 `json:"order_id"`
	Items     []catalog.StockRequest `json:"items"`
	CreatedAt time.Time              `json:"created_at"`
}

// Reducing is the write-side operation the reconciler drives.
type Reducing interface {
	Reduce(ctx context.Context, items []catalog.StockRequest) []reducer.Result
}

// Result reports one reconciliation attempt.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Reconciler drives reduction for accepted orders.
type Reconciler struct {
	store  localstore.Store
	orders repository.OrderRepository
	reduce Reducing
}

// New creates a Reconciler.
func New(store localstore.Store, orders repository.OrderRepository, reduce Reducing) *Reconciler {
	return &Reconciler{store: store, orders: orders, reduce: reduce}
}

// RecordPending persists the pending reduction marker for an order. It must
// complete before the order acceptance response is returned (and therefore
// before any client clears its cart): once this is durable, losing the cart
// can no longer lose the reduction.
func (r *Reconciler) RecordPending(ctx context.Context, orderID string, items []catalog.StockRequest) error {
	rec := PendingReduction{OrderID: orderID, Items: items, CreatedAt: time.Now().UTC()}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal pending reduction: %w", err)
	}
	if err := r.store.Set(ctx, pendingKey(orderID), payload); err != nil {
		return fmt.Errorf("failed to persist pending reduction: %w", err)
	}

	// Best-effort convenience marker for the order-confirmation page.
	if err := r.store.Set(ctx, lastOrderKey, []byte(orderID)); err != nil {
		slog.Warn("Failed to persist last-order marker", "order_id", orderID, "err", err)
	}
	return nil
}

// ReconcileOrder runs one reduction pass for an order. It is idempotent:
// once the order carries the reduced flag, further calls are no-ops. On any
// failure the pending marker is left in place so a later call can resume.
func (r *Reconciler) ReconcileOrder(ctx context.Context, orderID string) Result {
	reduced, err := r.orders.StockReduced(ctx, orderID)
	if err != nil {
		// Includes the order fetch itself failing: leave the marker alone.
		slog.Error("Failed to check reduction state", "order_id", orderID, "err", err)
		return Result{Message: fmt.Sprintf("could not determine reduction state: %v", err)}
	}
	if reduced {
		r.discardPending(ctx, orderID)
		return Result{Success: true, Message: "stock already reduced"}
	}

	items, err := r.pendingItems(ctx, orderID)
	if err != nil {
		slog.Error("No reducible items for order", "order_id", orderID, "err", err)
		return Result{Message: fmt.Sprintf("no reducible items: %v", err)}
	}

	results := r.reduce.Reduce(ctx, items)
	for _, res := range results {
		if !res.Success {
			slog.Warn("Reduction pass incomplete, keeping pending marker",
				"order_id", orderID, "product_id", res.Item.ProductID, "message", res.Message)
			return Result{Message: res.Message}
		}
	}

	// Marking is best-effort. If it fails, the marker below is still
	// discarded and a later retry of this order may reduce a second time.
	if err := r.orders.MarkStockReduced(ctx, orderID); err != nil {
		slog.Error("Failed to mark order as reduced", "order_id", orderID, "err", err)
	}
	r.discardPending(ctx, orderID)

	slog.Info("Order reconciled", "order_id", orderID, "items", len(items))
	return Result{Success: true}
}

// ResumePending re-attempts every persisted marker. Called at startup, the
// process-restart analog of reloading the order-confirmation page.
func (r *Reconciler) ResumePending(ctx context.Context) {
	markers, err := r.store.List(ctx, pendingKeyPrefix)
	if err != nil {
		slog.Error("Failed to list pending reductions", "err", err)
		return
	}
	for key := range markers {
		orderID := strings.TrimPrefix(key, pendingKeyPrefix)
		res := r.ReconcileOrder(ctx, orderID)
		slog.Info("Resumed pending reduction", "order_id", orderID, "success", res.Success, "message", res.Message)
	}
}

// LastOrderID returns the most recently accepted order, if any.
func (r *Reconciler) LastOrderID(ctx context.Context) (string, error) {
	val, err := r.store.Get(ctx, lastOrderKey)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

// pendingItems loads the persisted marker, falling back to the order's own
// line items when the marker is absent (for example after the accepted
// double-reduction window discarded it).
func (r *Reconciler) pendingItems(ctx context.Context, orderID string) ([]catalog.StockRequest, error) {
	raw, err := r.store.Get(ctx, pendingKey(orderID))
	if err == nil {
		var rec PendingReduction
		if jsonErr := json.Unmarshal(raw, &rec); jsonErr == nil {
			return rec.Items, nil
		}
		slog.Warn("Malformed pending marker, deriving items from order", "order_id", orderID)
	} else if !errors.Is(err, localstore.ErrNotFound) {
		return nil, err
	}

	o, err := r.orders.Find(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return ItemsFromOrder(o.Items), nil
}

func (r *Reconciler) discardPending(ctx context.Context, orderID string) {
	if err := r.store.Delete(ctx, pendingKey(orderID)); err != nil {
		slog.Warn("Failed to discard pending marker", "order_id", orderID, "err", err)
	}
}

func pendingKey(orderID string) string {
	return pendingKeyPrefix + orderID
}

// ItemsFromOrder converts order line items into reduction requests.
func ItemsFromOrder(items []order.Item) []catalog.StockRequest {
	out := make([]catalog.StockRequest, len(items))
	for i, item := range items {
		out[i] = catalog.StockRequest{
			ProductID: item.ProductID,
			Size:      item.Size,
			Color:     item.Color,
			Quantity:  item.Quantity,
		}
	}
	return out
}
