package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/threadline/inventory/internal/catalog"
)

func record(ts time.Time, stock int) catalog.StockRecord {
	return catalog.StockRecord{
		ProductID: "P1",
		UpdatedAt: ts,
		Sizes: []catalog.SizeVariant{
			{Size: "M", Stock: stock, Colors: []catalog.ColorVariant{{Color: "Red", Stock: stock}}},
		},
	}
}

func TestChangedNewerTimestampWins(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Same stock values, newer timestamp: still a change.
	assert.True(t, Changed(record(base, 5), record(base.Add(time.Minute), 5)))
}

func TestChangedStructuralDifference(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, Changed(record(base, 5), record(base, 4)))
	assert.False(t, Changed(record(base, 5), record(base, 5)))
}

func TestChangedColorLevelDifference(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	prev := record(base, 5)
	next := record(base, 5)
	next.Sizes[0].Colors[0].Stock = 2

	assert.True(t, Changed(prev, next))
}

func TestChangedSizeSetDifference(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	prev := record(base, 5)
	next := record(base, 5)
	next.Sizes = append(next.Sizes, catalog.SizeVariant{Size: "L", Stock: 1})

	assert.True(t, Changed(prev, next))
}

func TestChangedSyntheticFlagDifference(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	prev := record(base, 5)
	next := record(base, 5)
	next.Synthetic = true

	assert.True(t, Changed(prev, next))
}
