package order

import (
	"time"
)

// Statuses an order moves through. StatusConfirmed is reported to the
// shopper as soon as the order is accepted; stock reduction runs after the
// fact and never blocks confirmation.
const (
	StatusPlaced    = "placed"
	StatusConfirmed = "confirmed"
)

// Item is a line item within an order, snapshotted from the cart at
// acceptance time.
type Item struct {
	ProductID string  `json:"product_id"`
	Size      string  `json:"size"`
	Color     string  `json:"color,omitempty"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Order represents a customer order.
type Order struct {
	ID         string    `json:"id"`
	Items      []Item    `json:"items"`
	TotalPrice float64   `json:"total_price"`
	Status     string    `json:"status"`
	// StockReduced is the idempotency boundary for reconciliation: once
	// set, re-running reconciliation for this order is a no-op.
	StockReduced bool      `json:"stock_reduced"`
	CreatedAt    time.Time `json:"created_at"`
}

// Total sums the snapshotted line prices.
func Total(items []Item) float64 {
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}
