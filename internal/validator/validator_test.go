package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/inventory/internal/catalog"
)

type stubFetcher struct {
	records map[string]catalog.StockRecord
}

func (s *stubFetcher) Resolve(_ context.Context, productID string) (catalog.StockRecord, error) {
	rec, ok := s.records[productID]
	if !ok {
		return catalog.StockRecord{}, errors.New("not found")
	}
	return catalog.Normalize(rec), nil
}

func fetcherWith(records ...catalog.StockRecord) *stubFetcher {
	f := &stubFetcher{records: make(map[string]catalog.StockRecord)}
	for _, rec := range records {
		f.records[rec.ProductID] = rec
	}
	return f
}

func TestValidateSatisfiableCart(t *testing.T) {
	v := New(fetcherWith(catalog.StockRecord{
		ProductID: "P1",
		Sizes: []catalog.SizeVariant{
			{Size: "M", Stock: 5, Colors: []catalog.ColorVariant{{Color: "Red", Stock: 5}}},
		},
	}))

	res := v.Validate(context.Background(), []catalog.StockRequest{
		{ProductID: "P1", Size: "M", Color: "Red", Quantity: 2},
	})

	assert.True(t, res.Valid)
	assert.Empty(t, res.Message)
}

func TestValidateInsufficientColorStock(t *testing.T) {
	v := New(fetcherWith(catalog.StockRecord{
		ProductID: "P1",
		Sizes: []catalog.SizeVariant{
			{Size: "M", Stock: 10, Colors: []catalog.ColorVariant{{Color: "Red", Stock: 1}}},
		},
	}))

	res := v.Validate(context.Background(), []catalog.StockRequest{
		{ProductID: "P1", Size: "M", Color: "Red", Quantity: 2},
	})

	require.False(t, res.Valid)
	assert.Contains(t, res.Message, "Insufficient stock")
	assert.Contains(t, res.Message, "Available: 1")
	assert.Contains(t, res.Message, "P1")
	assert.Contains(t, res.Message, "Red")
}

func TestValidateSizeLevelWhenNoColorRequested(t *testing.T) {
	v := New(fetcherWith(catalog.StockRecord{
		ProductID: "P1",
		Sizes:     []catalog.SizeVariant{{Size: "L", Stock: 3}},
	}))

	ok := v.Validate(context.Background(), []catalog.StockRequest{{ProductID: "P1", Size: "L", Quantity: 3}})
	assert.True(t, ok.Valid)

	bad := v.Validate(context.Background(), []catalog.StockRequest{{ProductID: "P1", Size: "L", Quantity: 4}})
	require.False(t, bad.Valid)
	assert.Contains(t, bad.Message, "Available: 3")
}

func TestValidateMissingSizeRejects(t *testing.T) {
	v := New(fetcherWith(catalog.StockRecord{
		ProductID: "P1",
		Sizes:     []catalog.SizeVariant{{Size: "M", Stock: 5}},
	}))

	res := v.Validate(context.Background(), []catalog.StockRequest{{ProductID: "P1", Size: "XXL", Quantity: 1}})

	require.False(t, res.Valid)
	assert.Contains(t, res.Message, "XXL")
}

func TestValidateUnknownProductIsSkipped(t *testing.T) {
	v := New(fetcherWith(catalog.StockRecord{
		ProductID: "P1",
		Sizes:     []catalog.SizeVariant{{Size: "M", Stock: 5}},
	}))

	// The unknown product must not block the rest of the cart.
	res := v.Validate(context.Background(), []catalog.StockRequest{
		{ProductID: "ghost", Size: "M", Quantity: 1},
		{ProductID: "P1", Size: "M", Quantity: 2},
	})

	assert.True(t, res.Valid)
}

func TestValidateShortCircuitsOnFirstFailure(t *testing.T) {
	v := New(fetcherWith(
		catalog.StockRecord{ProductID: "P1", Sizes: []catalog.SizeVariant{{Size: "M", Stock: 0}}},
		catalog.StockRecord{ProductID: "P2", Sizes: []catalog.SizeVariant{{Size: "S", Stock: 0}}},
	))

	res := v.Validate(context.Background(), []catalog.StockRequest{
		{ProductID: "P1", Size: "M", Quantity: 1},
		{ProductID: "P2", Size: "S", Quantity: 1},
	})

	require.False(t, res.Valid)
	assert.Contains(t, res.Message, "P1")
	assert.NotContains(t, res.Message, "P2")
}
