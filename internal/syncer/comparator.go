package syncer

import (
	"github.com/threadline/inventory/internal/catalog"
)

// Changed reports whether next differs materially from prev: a newer server
// timestamp first, then a structural comparison of every size and color
// stock value.
func Changed(prev, next catalog.StockRecord) bool {
	if next.UpdatedAt.After(prev.UpdatedAt) {
		return true
	}
	return !structurallyEqual(prev, next)
}

func structurallyEqual(a, b catalog.StockRecord) bool {
	if a.ProductID != b.ProductID || a.Synthetic != b.Synthetic {
		return false
	}
	if len(a.Sizes) != len(b.Sizes) {
		return false
	}
	for i := range a.Sizes {
		as, bs := a.Sizes[i], b.Sizes[i]
		if as.Size != bs.Size || as.Stock != bs.Stock {
			return false
		}
		if len(as.Colors) != len(bs.Colors) {
			return false
		}
		for j := range as.Colors {
			if as.Colors[j] != bs.Colors[j] {
				return false
			}
		}
	}
	return true
}
