package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/threadline/inventory/internal/catalog"
	"github.com/threadline/inventory/internal/repository"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new ProductRepository backed by Postgres.
func NewProductRepository(db *sql.DB) repository.ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) FindAll(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, description, price, image_url, category, flat_sizes, updated_at FROM products ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Category,
			pq.Array(&p.Stock.FlatSizes), &p.Stock.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.Stock.ProductID = p.ID
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}

	for i := range products {
		sizes, err := r.loadVariants(ctx, products[i].ID)
		if err != nil {
			return nil, err
		}
		products[i].Stock.Sizes = sizes
	}
	return products, nil
}

func (r *productRepository) Find(ctx context.Context, id string) (*catalog.Product, error) {
	var p catalog.Product
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, description, price, image_url, category, flat_sizes, updated_at FROM products WHERE id = $1", id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Category,
		pq.Array(&p.Stock.FlatSizes), &p.Stock.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product %s: %w", id, err)
	}

	p.Stock.ProductID = p.ID
	sizes, err := r.loadVariants(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Stock.Sizes = sizes
	return &p, nil
}

func (r *productRepository) FindStock(ctx context.Context, id string) (catalog.StockRecord, error) {
	var rec catalog.StockRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, flat_sizes, updated_at FROM products WHERE id = $1", id,
	).Scan(&rec.ProductID, pq.Array(&rec.FlatSizes), &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return catalog.StockRecord{}, repository.ErrNotFound
	}
	if err != nil {
		return catalog.StockRecord{}, fmt.Errorf("failed to query product %s: %w", id, err)
	}

	sizes, err := r.loadVariants(ctx, id)
	if err != nil {
		return catalog.StockRecord{}, err
	}
	rec.Sizes = sizes
	return rec, nil
}

// loadVariants reconstructs the size/color tree from the flat variant rows.
// Row order is insertion order, which preserves the catalog's size ordering.
func (r *productRepository) loadVariants(ctx context.Context, productID string) ([]catalog.SizeVariant, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT size, color, stock FROM variant_stock WHERE product_id = $1 ORDER BY id", productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants for %s: %w", productID, err)
	}
	defer rows.Close()

	var sizes []catalog.SizeVariant
	index := make(map[string]int)
	for rows.Next() {
		var size, color string
		var stock int
		if err := rows.Scan(&size, &color, &stock); err != nil {
			return nil, fmt.Errorf("failed to scan variant row: %w", err)
		}

		i, ok := index[size]
		if !ok {
			sizes = append(sizes, catalog.SizeVariant{Size: size})
			i = len(sizes) - 1
			index[size] = i
		}
		if color == "" {
			sizes[i].Stock = stock
		} else {
			sizes[i].Colors = append(sizes[i].Colors, catalog.ColorVariant{Color: color, Stock: stock})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variant rows: %w", err)
	}
	return sizes, nil
}

func (r *productRepository) AdjustStock(ctx context.Context, id, size, color string, qty int) (int, int, error) {
	previous, current, err := r.adjustVariant(ctx, id, size, color, qty)
	if errors.Is(err, repository.ErrNotFound) && color == catalog.DefaultColor {
		// The Default color is materialized by normalization for sizes
		// without a color breakdown and has no row of its own; it
		// addresses the size-level count.
		return r.adjustVariant(ctx, id, size, "", qty)
	}
	return previous, current, err
}

func (r *productRepository) adjustVariant(ctx context.Context, id, size, color string, qty int) (int, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Relative decrement with the guard in the WHERE clause, so two
	// concurrent reducers can never drive the count below zero. No
	// read-modify-write of the full record.
	var current int
	err = tx.QueryRowContext(ctx,
		`UPDATE variant_stock SET stock = stock - $1
		 WHERE product_id = $2 AND size = $3 AND color = $4 AND stock >= $1
		 RETURNING stock`,
		qty, id, size, color,
	).Scan(&current)

	if err == sql.ErrNoRows {
		// Guard failed or variant missing. Disambiguate for the caller.
		var existing int
		probe := tx.QueryRowContext(ctx,
			"SELECT stock FROM variant_stock WHERE product_id = $1 AND size = $2 AND color = $3",
			id, size, color,
		).Scan(&existing)
		if probe == sql.ErrNoRows {
			return 0, 0, repository.ErrNotFound
		}
		if probe != nil {
			return 0, 0, fmt.Errorf("failed to probe variant stock: %w", probe)
		}
		return existing, existing, repository.ErrInsufficientStock
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to adjust stock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE products SET updated_at = NOW() WHERE id = $1", id); err != nil {
		return 0, 0, fmt.Errorf("failed to touch product %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return current + qty, current, nil
}

func (r *productRepository) Seed(ctx context.Context, products []catalog.Product) error {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil // already seeded
	}

	for _, p := range products {
		flat := p.Stock.FlatSizes
		if flat == nil {
			flat = []string{}
		}
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO products (id, name, description, price, image_url, category, flat_sizes) VALUES ($1, $2, $3, $4, $5, $6, $7)",
			p.ID, p.Name, p.Description, p.Price, p.ImageURL, p.Category, pq.Array(flat),
		)
		if err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.ID, err)
		}

		for _, sv := range p.Stock.Sizes {
			_, err := r.db.ExecContext(ctx,
				"INSERT INTO variant_stock (product_id, size, color, stock) VALUES ($1, $2, '', $3)",
				p.ID, sv.Size, sv.Stock,
			)
			if err != nil {
				return fmt.Errorf("failed to seed size %s/%s: %w", p.ID, sv.Size, err)
			}
			for _, cv := range sv.Colors {
				_, err := r.db.ExecContext(ctx,
					"INSERT INTO variant_stock (product_id, size, color, stock) VALUES ($1, $2, $3, $4)",
					p.ID, sv.Size, cv.Color, cv.Stock,
				)
				if err != nil {
					return fmt.Errorf("failed to seed variant %s/%s/%s: %w", p.ID, sv.Size, cv.Color, err)
				}
			}
		}
	}
	return nil
}
