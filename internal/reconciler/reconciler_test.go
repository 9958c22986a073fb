package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/inventory/internal/catalog"
	"github.com/threadline/inventory/internal/localstore"
	"github.com/threadline/inventory/internal/order"
	"github.com/threadline/inventory/internal/reducer"
	"github.com/threadline/inventory/internal/repository"
)

type mockOrderRepository struct {
	orders      map[string]*order.Order
	markFailure error
}

func newMockOrders(orders ...*order.Order) *mockOrderRepository {
	m := &mockOrderRepository{orders: make(map[string]*order.Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *mockOrderRepository) Create(_ context.Context, o *order.Order) error {
	if _, ok := m.orders[o.ID]; ok {
		return nil
	}
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrderRepository) Find(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepository) FindRecent(context.Context, int) ([]order.Order, error) {
	return nil, nil
}

func (m *mockOrderRepository) MarkStockReduced(_ context.Context, id string) error {
	if m.markFailure != nil {
		return m.markFailure
	}
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.StockReduced = true
	return nil
}

func (m *mockOrderRepository) StockReduced(_ context.Context, id string) (bool, error) {
	o, ok := m.orders[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	return o.StockReduced, nil
}

// mockReducer counts decrements and can be told to fail.
type mockReducer struct {
	calls   int
	failure string
}

func (m *mockReducer) Reduce(_ context.Context, items []catalog.StockRequest) []reducer.Result {
	m.calls++
	results := make([]reducer.Result, len(items))
	for i, item := range items {
		if m.failure != "" {
			results[i] = reducer.Result{Item: item, Message: m.failure}
			continue
		}
		results[i] = reducer.Result{Item: item, Success: true, PreviousStock: 5, NewStock: 5 - item.Quantity}
	}
	return results
}

func testItems() []catalog.StockRequest {
	return []catalog.StockRequest{{ProductID: "P1", Size: "M", Color: "Red", Quantity: 2}}
}

func testOrder(id string) *order.Order {
	return &order.Order{
		ID:     id,
		Status: order.StatusConfirmed,
		Items: []order.Item{
			{ProductID: "P1", Size: "M", Color: "Red", Quantity: 2, Price: 39.99},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestReconcileSucceedsAndDiscardsMarker(t *testing.T) {
	ctx := context.Background()
	store := localstore.NewMemoryStore()
	orders := newMockOrders(testOrder("ord-1"))
	red := &mockReducer{}
	r := New(store, orders, red)

	require.NoError(t, r.RecordPending(ctx, "ord-1", testItems()))

	res := r.ReconcileOrder(ctx, "ord-1")
	require.True(t, res.Success)
	assert.Equal(t, 1, red.calls)
	assert.True(t, orders.orders["ord-1"].StockReduced)

	_, err := store.Get(ctx, pendingKey("ord-1"))
	assert.ErrorIs(t, err, localstore.ErrNotFound, "marker is discarded after a confirmed reduction")
}

func TestReconcileIsIdempotentPerOrder(t *testing.T) {
	ctx := context.Background()
	store := localstore.NewMemoryStore()
	orders := newMockOrders(testOrder("ord-1"))
	red := &mockReducer{}
	r := New(store, orders, red)

	require.NoError(t, r.RecordPending(ctx, "ord-1", testItems()))
	first := r.ReconcileOrder(ctx, "ord-1")
	second := r.ReconcileOrder(ctx, "ord-1")

	assert.True(t, first.Success)
	assert.True(t, second.Success)
	assert.Equal(t, 1, red.calls, "a second reconciliation performs zero additional decrements")
}

func TestReconcileFailureKeepsMarkerForRetry(t *testing.T) {
	ctx := context.Background()
	store := localstore.NewMemoryStore()
	orders := newMockOrders(testOrder("ord-1"))
	red := &mockReducer{failure: "network error"}
	r := New(store, orders, red)

	require.NoError(t, r.RecordPending(ctx, "ord-1", testItems()))

	res := r.ReconcileOrder(ctx, "ord-1")
	require.False(t, res.Success)
	assert.Contains(t, res.Message, "network error")

	_, err := store.Get(ctx, pendingKey("ord-1"))
	require.NoError(t, err, "marker must survive a failed pass")

	// The blip clears; the same order id now succeeds and the marker goes.
	red.failure = ""
	retry := r.ReconcileOrder(ctx, "ord-1")
	require.True(t, retry.Success)
	_, err = store.Get(ctx, pendingKey("ord-1"))
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestReconcileFallsBackToOrderItemsWithoutMarker(t *testing.T) {
	ctx := context.Background()
	orders := newMockOrders(testOrder("ord-1"))
	red := &mockReducer{}
	r := New(localstore.NewMemoryStore(), orders, red)

	res := r.ReconcileOrder(ctx, "ord-1")
	require.True(t, res.Success)
	assert.Equal(t, 1, red.calls)
}

func TestReconcileUnknownOrderFails(t *testing.T) {
	r := New(localstore.NewMemoryStore(), newMockOrders(), &mockReducer{})

	res := r.ReconcileOrder(context.Background(), "ghost")
	assert.False(t, res.Success)
}

func TestMarkFailureStillDiscardsMarker(t *testing.T) {
	ctx := context.Background()
	store := localstore.NewMemoryStore()
	orders := newMockOrders(testOrder("ord-1"))
	orders.markFailure = errors.New("write timeout")
	red := &mockReducer{}
	r := New(store, orders, red)

	require.NoError(t, r.RecordPending(ctx, "ord-1", testItems()))

	res := r.ReconcileOrder(ctx, "ord-1")
	assert.True(t, res.Success, "a mark failure does not fail the reduction itself")

	_, err := store.Get(ctx, pendingKey("ord-1"))
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestResumePendingRetriesPersistedMarkers(t *testing.T) {
	ctx := context.Background()
	store := localstore.NewMemoryStore()
	orders := newMockOrders(testOrder("ord-1"), testOrder("ord-2"))
	red := &mockReducer{}
	r := New(store, orders, red)

	require.NoError(t, r.RecordPending(ctx, "ord-1", testItems()))
	require.NoError(t, r.RecordPending(ctx, "ord-2", testItems()))

	r.ResumePending(ctx)

	assert.Equal(t, 2, red.calls)
	assert.True(t, orders.orders["ord-1"].StockReduced)
	assert.True(t, orders.orders["ord-2"].StockReduced)
}

func TestRecordPendingTracksLastOrder(t *testing.T) {
	ctx := context.Background()
	r := New(localstore.NewMemoryStore(), newMockOrders(testOrder("ord-9")), &mockReducer{})

	require.NoError(t, r.RecordPending(ctx, "ord-9", testItems()))

	last, err := r.LastOrderID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ord-9", last)
}
