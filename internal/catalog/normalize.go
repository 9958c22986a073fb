package catalog

// Normalize repairs a partially shaped stock record so that every consumer
// can rely on one invariant: each size carries at least one color variant,
// and the color-level count is the authoritative one.
//
// Defaulting policy, in order:
//   - size variants present: kept as-is, colors materialized where missing;
//   - no size variants but a legacy flat size list: one variant per listed
//     size with SyntheticStock each;
//   - nothing at all: a single "One Size" variant with SyntheticStock.
//
// Records repaired from the last two shapes are flagged Synthetic so write
// paths never treat the manufactured counts as authoritative. Normalize is
// pure and idempotent.
func Normalize(r StockRecord) StockRecord {
	out := StockRecord{
		ProductID: r.ProductID,
		UpdatedAt: r.UpdatedAt,
		Synthetic: r.Synthetic,
	}

	switch {
	case len(r.Sizes) > 0:
		out.Sizes = make([]SizeVariant, len(r.Sizes))
		for i, sv := range r.Sizes {
			out.Sizes[i] = normalizeSize(sv)
		}
	case len(r.FlatSizes) > 0:
		out.Synthetic = true
		out.Sizes = make([]SizeVariant, len(r.FlatSizes))
		for i, size := range r.FlatSizes {
			out.Sizes[i] = SizeVariant{
				Size:   size,
				Stock:  SyntheticStock,
				Colors: []ColorVariant{{Color: DefaultColor, Stock: SyntheticStock}},
			}
		}
	default:
		out.Synthetic = true
		out.Sizes = []SizeVariant{{
			Size:   "One Size",
			Stock:  SyntheticStock,
			Colors: []ColorVariant{{Color: DefaultColor, Stock: SyntheticStock}},
		}}
	}

	return out
}

func normalizeSize(sv SizeVariant) SizeVariant {
	out := SizeVariant{Size: sv.Size, Stock: sv.Stock}
	if len(sv.Colors) == 0 {
		out.Colors = []ColorVariant{{Color: DefaultColor, Stock: sv.Stock}}
		return out
	}
	out.Colors = make([]ColorVariant, len(sv.Colors))
	copy(out.Colors, sv.Colors)
	return out
}
