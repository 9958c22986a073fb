// Package syncer keeps a read-side cache of stock fresh enough for the
// product page. There is no push channel from the stock authority, so the
// syncer polls on two cadences per watched product: a short interval while
// the page is visible and a long one as a correctness backstop.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/threadline/inventory/internal/catalog"
	"github.com/threadline/inventory/internal/events"
)

// Fetcher resolves the freshest available stock record. In production this
// is the admin-proxy resolver.
type Fetcher interface {
	Resolve(ctx context.Context, productID string) (catalog.StockRecord, error)
}

// Config holds the two polling cadences.
type Config struct {
	ActiveInterval     time.Duration
	BackgroundInterval time.Duration
}

// Syncer owns the process-wide stock cache and the per-product timestamp
// cache. Construct one at startup and hand it to consumers; the caches are
// rebuilt from polling after a restart, never persisted.
type Syncer struct {
	fetch Fetcher
	bus   *events.Bus
	cfg   Config

	// baseCtx detaches in-flight fetches from individual watches: an
	// unwatch never aborts a fetch, its result is simply discarded.
	baseCtx context.Context

	mu       sync.Mutex
	cache    map[string]catalog.StockRecord
	lastSeen map[string]time.Time
}

// New creates a Syncer. baseCtx bounds the lifetime of all fetches.
func New(baseCtx context.Context, fetch Fetcher, bus *events.Bus, cfg Config) *Syncer {
	if cfg.ActiveInterval <= 0 {
		cfg.ActiveInterval = 15 * time.Second
	}
	if cfg.BackgroundInterval <= 0 {
		cfg.BackgroundInterval = 2 * time.Minute
	}
	return &Syncer{
		fetch:    fetch,
		bus:      bus,
		cfg:      cfg,
		baseCtx:  baseCtx,
		cache:    make(map[string]catalog.StockRecord),
		lastSeen: make(map[string]time.Time),
	}
}

// Record returns the last good cached record for a product.
func (s *Syncer) Record(productID string) (catalog.StockRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.cache[productID]
	return rec, ok
}

// UpToDate is the not-modified fast path: callers already holding data at
// least as new as the last known server timestamp can skip re-fetching.
func (s *Syncer) UpToDate(productID string, have time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastSeen[productID]
	return ok && !have.Before(last)
}

// Watch starts polling a product and invokes onChange on every material
// change. Stop the returned watch to tear down both polling loops and the
// change subscription.
func (s *Syncer) Watch(productID string, onChange func(events.StockChanged)) (*Watch, error) {
	ctx, cancel := context.WithCancel(s.baseCtx)

	changes, err := s.bus.SubscribeStockChanged(ctx, productID)
	if err != nil {
		cancel()
		return nil, err
	}

	w := &Watch{
		productID: productID,
		cancel:    cancel,
		kick:      make(chan struct{}, 1),
	}
	w.visible.Store(true)

	go func() {
		for ev := range changes {
			onChange(ev)
		}
	}()

	go s.run(ctx, w)

	return w, nil
}

func (s *Syncer) run(ctx context.Context, w *Watch) {
	active := time.NewTicker(s.cfg.ActiveInterval)
	defer active.Stop()
	background := time.NewTicker(s.cfg.BackgroundInterval)
	defer background.Stop()

	// Prime the cache so the watcher sees data before the first tick.
	s.poll(w.productID, false)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.kick:
			// Visibility regained: the shopper may have been away long
			// enough that a visually stale page is unacceptable even when
			// the bytes match, so this refresh is always delivered.
			s.poll(w.productID, true)
		case <-active.C:
			if w.visible.Load() {
				s.poll(w.productID, false)
			}
		case <-background.C:
			s.poll(w.productID, false)
		}
	}
}

// poll fetches, compares against the cache, and publishes when something
// materially changed (or unconditionally when forced). Fetch errors are
// swallowed: a stale read beats a broken product page.
func (s *Syncer) poll(productID string, forced bool) {
	rec, err := s.fetch.Resolve(s.baseCtx, productID)
	if err != nil {
		slog.Debug("Stock poll failed, serving last good entry", "product_id", productID, "err", err)
		return
	}

	s.mu.Lock()
	prev, had := s.cache[productID]
	changed := !had || Changed(prev, rec)
	if changed || forced {
		s.cache[productID] = rec
		if rec.UpdatedAt.After(s.lastSeen[productID]) {
			s.lastSeen[productID] = rec.UpdatedAt
		}
	}
	s.mu.Unlock()

	if !changed && !forced {
		return
	}

	ev := events.StockChanged{
		ProductID:  productID,
		Record:     rec,
		Forced:     forced && !changed,
		ObservedAt: time.Now().UTC(),
	}
	if err := s.bus.PublishStockChanged(ev); err != nil {
		slog.Warn("Failed to publish stock change", "product_id", productID, "err", err)
	}
}

// Watch is one active watch on a product.
type Watch struct {
	productID string
	cancel    context.CancelFunc
	kick      chan struct{}
	visible   atomic.Bool
}

// SetVisible records page visibility. Becoming visible forces one immediate
// fetch whose result is always delivered.
func (w *Watch) SetVisible(visible bool) {
	was := w.visible.Swap(visible)
	if visible && !was {
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
}

// Stop tears down the polling loops and the change subscription. An
// in-flight fetch is not aborted; its result is discarded.
func (w *Watch) Stop() {
	w.cancel()
}
