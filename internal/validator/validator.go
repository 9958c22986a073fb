// Package validator is the synchronous pre-checkout gate: can this cart's
// requested quantities be satisfied right now? It is best-effort only;
// nothing is reserved, and actual correctness is enforced at reduction time.
package validator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/threadline/inventory/internal/catalog"
)

// StockFetcher resolves the current stock record for a product. In
// production this is the admin-proxy resolver, which already falls back to
// the local catalog.
type StockFetcher interface {
	Resolve(ctx context.Context, productID string) (catalog.StockRecord, error)
}

// Result is the outcome of a validation pass. Message is set only when
// Valid is false.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// Validator checks cart lines against current stock. Read-only.
type Validator struct {
	stock StockFetcher
}

// New creates a Validator on top of a stock source.
func New(stock StockFetcher) *Validator {
	return &Validator{stock: stock}
}

// Validate checks every requested line and short-circuits on the first one
// that cannot be satisfied.
//
// A product whose record cannot be located at all is skipped, not rejected:
// a transient catalog-lookup gap must never block checkout for unrelated
// reasons.
func (v *Validator) Validate(ctx context.Context, items []catalog.StockRequest) Result {
	for _, item := range items {
		rec, err := v.stock.Resolve(ctx, item.ProductID)
		if err != nil {
			slog.Warn("Skipping unresolvable product during validation",
				"product_id", item.ProductID, "err", err)
			continue
		}

		sv := rec.Size(item.Size)
		if sv == nil {
			return Result{Message: fmt.Sprintf("Size %q is not available for product %s", item.Size, item.ProductID)}
		}

		if item.Color != "" {
			cv := sv.Color(item.Color)
			if cv == nil {
				return Result{Message: fmt.Sprintf("Color %q is not available for product %s in size %s", item.Color, item.ProductID, item.Size)}
			}
			if cv.Stock < item.Quantity {
				return Result{Message: insufficientMessage(item, cv.Stock)}
			}
			continue
		}

		if sv.Stock < item.Quantity {
			return Result{Message: insufficientMessage(item, sv.Stock)}
		}
	}
	return Result{Valid: true}
}

func insufficientMessage(item catalog.StockRequest, available int) string {
	variant := fmt.Sprintf("size %s", item.Size)
	if item.Color != "" {
		variant += fmt.Sprintf(", color %s", item.Color)
	}
	return fmt.Sprintf("Insufficient stock for product %s (%s). Requested: %d, Available: %d",
		item.ProductID, variant, item.Quantity, available)
}
