package catalog

import (
	"time"
)

// DefaultColor is the color materialized for size variants that carry no
// color breakdown, so every consumer can address stock as a (size, color)
// pair.
const DefaultColor = "Default"

// SyntheticStock is the stock assigned to variants manufactured by
// normalization when the catalog entry carries no stock data at all. It
// exists so legacy entries render a purchasable UI; the reducer must never
// treat it as authoritative.
const SyntheticStock = 10

// ColorVariant is the stock count for one color within a size.
type ColorVariant struct {
	Color string `json:"color"`
	Stock int    `json:"stock"`
}

// SizeVariant is the stock breakdown for one size. When Colors is non-empty
// the size-level Stock is advisory only; the color-level counts are
// authoritative.
type SizeVariant struct {
	Size   string         `json:"size"`
	Stock  int            `json:"stock"`
	Colors []ColorVariant `json:"color_variants,omitempty"`
}

// StockRecord is the per-variant stock of one product, the unit of truth
// shared between the storefront's own store and the external admin service.
type StockRecord struct {
	ProductID string        `json:"product_id"`
	UpdatedAt time.Time     `json:"updated_at"`
	Sizes     []SizeVariant `json:"size_variants,omitempty"`

	// FlatSizes is the legacy shape: a bare size list with no counts.
	// Normalization consumes it and leaves it empty.
	FlatSizes []string `json:"sizes,omitempty"`

	// Synthetic marks records whose stock values were manufactured by
	// normalization (or served from the local fallback path). Write paths
	// must refuse to treat synthetic counts as authoritative.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Size returns the variant for the named size, or nil.
func (r *StockRecord) Size(name string) *SizeVariant {
	for i := range r.Sizes {
		if r.Sizes[i].Size == name {
			return &r.Sizes[i]
		}
	}
	return nil
}

// Color returns the variant for the named color, or nil.
func (s *SizeVariant) Color(name string) *ColorVariant {
	for i := range s.Colors {
		if s.Colors[i].Color == name {
			return &s.Colors[i]
		}
	}
	return nil
}

// Available returns the authoritative stock for a (size, color) request.
// An empty color addresses the size level.
func (s *SizeVariant) Available(color string) int {
	if color == "" {
		return s.Stock
	}
	if cv := s.Color(color); cv != nil {
		return cv.Stock
	}
	return 0
}

// StockRequest addresses a quantity of one purchasable variant. It is the
// input shape shared by the validator and the reducer. An empty Color
// targets the size-level count.
type StockRequest struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Product is a catalog entry together with its stock record.
type Product struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       float64     `json:"price"`
	ImageURL    string      `json:"image_url"`
	Category    string      `json:"category"`
	Stock       StockRecord `json:"stock"`
}
