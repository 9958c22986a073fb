package adminproxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/inventory/internal/catalog"
	"github.com/threadline/inventory/internal/repository"
)

type stubCatalog struct {
	records map[string]catalog.StockRecord
}

func (s *stubCatalog) FindStock(_ context.Context, id string) (catalog.StockRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return catalog.StockRecord{}, repository.ErrNotFound
	}
	return rec, nil
}

func stockHandler(rec catalog.StockRecord) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rec)
	}
}

func testRecord() catalog.StockRecord {
	return catalog.StockRecord{
		ProductID: "P1",
		UpdatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Sizes: []catalog.SizeVariant{
			{Size: "M", Stock: 5, Colors: []catalog.ColorVariant{{Color: "Red", Stock: 5}}},
		},
	}
}

func TestResolveFirstCandidateWins(t *testing.T) {
	var secondHit atomic.Bool
	first := httptest.NewServer(stockHandler(testRecord()))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondHit.Store(true)
	}))
	defer second.Close()

	r := New(Config{
		Endpoints: []string{first.URL + "/api/stock/%s", second.URL + "/api/stock/%s"},
	}, &stubCatalog{})

	rec, err := r.Resolve(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, "P1", rec.ProductID)
	assert.False(t, rec.Synthetic)
	assert.False(t, secondHit.Load(), "remaining candidates must be skipped after a success")
}

func TestResolveFallsThroughFailingCandidates(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer bad.Close()
	good := httptest.NewServer(stockHandler(testRecord()))
	defer good.Close()

	r := New(Config{
		Endpoints: []string{bad.URL + "/v1/products/%s/stock", good.URL + "/api/stock/%s"},
	}, &stubCatalog{})

	rec, err := r.Resolve(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Sizes[0].Available("Red"))
}

func TestResolveRetriesSweepBeforeFallback(t *testing.T) {
	var calls atomic.Int32
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "blip", http.StatusBadGateway)
			return
		}
		stockHandler(testRecord())(w, r)
	}))
	defer flaky.Close()

	r := New(Config{
		Endpoints:      []string{flaky.URL + "/api/stock/%s"},
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
	}, &stubCatalog{})

	rec, err := r.Resolve(context.Background(), "P1")
	require.NoError(t, err)
	assert.False(t, rec.Synthetic)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestResolveFallsBackToLocalOnTotalFailure(t *testing.T) {
	// Candidates that never answer within the timeout.
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()

	local := &stubCatalog{records: map[string]catalog.StockRecord{
		"P1": {ProductID: "P1", Sizes: []catalog.SizeVariant{{Size: "M", Stock: 2}}},
	}}
	r := New(Config{
		Endpoints:      []string{slow.URL + "/api/stock/%s", slow.URL + "/v2/stock/%s"},
		Timeout:        20 * time.Millisecond,
		InitialBackoff: time.Millisecond,
	}, local)

	rec, err := r.Resolve(context.Background(), "P1")
	require.NoError(t, err, "total candidate failure must degrade, not error")
	assert.True(t, rec.Synthetic, "fallback records carry the synthetic flag")
	assert.Equal(t, 2, rec.Sizes[0].Stock)
	require.Len(t, rec.Sizes[0].Colors, 1, "fallback is normalized")
}

func TestResolveErrorsWhenLocalAlsoMissing(t *testing.T) {
	r := New(Config{Endpoints: nil}, &stubCatalog{})

	_, err := r.Resolve(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestResolveSendsCacheBustingHeaders(t *testing.T) {
	var gotCacheControl string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCacheControl = r.Header.Get("Cache-Control")
		stockHandler(testRecord())(w, r)
	}))
	defer srv.Close()

	r := New(Config{Endpoints: []string{srv.URL + "/api/stock/%s"}}, &stubCatalog{})

	_, err := r.Resolve(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, "no-cache", gotCacheControl)
}
