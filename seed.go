package main

import (
	"github.com/threadline/inventory/internal/catalog"
)

// seedCatalog is the initial apparel catalog inserted on an empty database.
// It deliberately spans the three stock shapes the normalizer handles:
// color-level variants, size-only variants, and a legacy flat size list.
func seedCatalog() []catalog.Product {
	return []catalog.Product{
		{
			ID:          "prod-001",
			Name:        "Oxford Button-Down Shirt",
			Description: "Classic-fit cotton oxford with a button-down collar.",
			Price:       79.99,
			ImageURL:    "https://images.unsplash.com/photo-1598033129183-c4f50c736f10?w=400",
			Category:    "Shirts",
			Stock: catalog.StockRecord{
				ProductID: "prod-001",
				Sizes: []catalog.SizeVariant{
					{Size: "S", Stock: 18, Colors: []catalog.ColorVariant{
						{Color: "White", Stock: 10},
						{Color: "Blue", Stock: 8},
					}},
					{Size: "M", Stock: 30, Colors: []catalog.ColorVariant{
						{Color: "White", Stock: 14},
						{Color: "Blue", Stock: 16},
					}},
					{Size: "L", Stock: 12, Colors: []catalog.ColorVariant{
						{Color: "White", Stock: 5},
						{Color: "Blue", Stock: 7},
					}},
				},
			},
		},
		{
			ID:          "prod-002",
			Name:        "Heavyweight Crewneck Tee",
			Description: "8 oz garment-dyed cotton tee with a relaxed drape.",
			Price:       34.99,
			ImageURL:    "https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=400",
			Category:    "Shirts",
			Stock: catalog.StockRecord{
				ProductID: "prod-002",
				Sizes: []catalog.SizeVariant{
					{Size: "S", Stock: 40},
					{Size: "M", Stock: 55},
					{Size: "L", Stock: 35},
					{Size: "XL", Stock: 20},
				},
			},
		},
		{
			ID:          "prod-003",
			Name:        "Selvedge Denim Jeans",
			Description: "14 oz Japanese selvedge denim, straight cut.",
			Price:       189.99,
			ImageURL:    "https://images.unsplash.com/photo-1542272604-787c3835535d?w=400",
			Category:    "Pants",
			Stock: catalog.StockRecord{
				ProductID: "prod-003",
				Sizes: []catalog.SizeVariant{
					{Size: "30", Stock: 15, Colors: []catalog.ColorVariant{
						{Color: "Indigo", Stock: 9},
						{Color: "Black", Stock: 6},
					}},
					{Size: "32", Stock: 22, Colors: []catalog.ColorVariant{
						{Color: "Indigo", Stock: 12},
						{Color: "Black", Stock: 10},
					}},
					{Size: "34", Stock: 11, Colors: []catalog.ColorVariant{
						{Color: "Indigo", Stock: 7},
						{Color: "Black", Stock: 4},
					}},
				},
			},
		},
		{
			ID:          "prod-004",
			Name:        "Merino Wool Beanie",
			Description: "Double-layer knit merino beanie.",
			Price:       29.99,
			ImageURL:    "https://images.unsplash.com/photo-1576871337622-98d48d1cf531?w=400",
			Category:    "Accessories",
			Stock: catalog.StockRecord{
				ProductID: "prod-004",
				Sizes: []catalog.SizeVariant{
					{Size: "One Size", Stock: 60},
				},
			},
		},
		{
			// Legacy entry migrated from the old catalog feed: sizes only,
			// no counts. Served through normalization as synthetic stock.
			ID:          "prod-005",
			Name:        "Corduroy Chore Jacket",
			Description: "Wide-wale corduroy jacket with flap pockets.",
			Price:       149.99,
			ImageURL:    "https://images.unsplash.com/photo-1591047139829-d91aecb6caea?w=400",
			Category:    "Outerwear",
			Stock: catalog.StockRecord{
				ProductID: "prod-005",
				FlatSizes: []string{"S", "M", "L"},
			},
		},
	}
}
