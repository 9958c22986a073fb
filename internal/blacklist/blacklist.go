// Package blacklist is the fast-path filter that keeps known-deleted or
// otherwise invalid product IDs out of carts before they ever reach stock
// validation.
package blacklist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/threadline/inventory/internal/localstore"
	"github.com/threadline/inventory/internal/order"
)

const keyPrefix = "blacklist:"

// Entry records why and when a product was blacklisted.
type Entry struct {
	ProductID     string    `json:"product_id"`
	Reason        string    `json:"reason"`
	BlacklistedAt time.Time `json:"blacklisted_at"`
}

// Blacklist is process-scoped state, constructed once at startup. The
// in-memory set is the source of truth for the running process; the
// localstore mirror only recovers it on the next start.
type Blacklist struct {
	store localstore.Store

	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates a Blacklist and loads the durable mirror.
func New(ctx context.Context, store localstore.Store) (*Blacklist, error) {
	b := &Blacklist{
		store:   store,
		entries: make(map[string]Entry),
	}

	mirror, err := store.List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist mirror: %w", err)
	}
	for key, raw := range mirror {
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			slog.Warn("Skipping malformed blacklist entry", "key", key, "err", err)
			continue
		}
		b.entries[entry.ProductID] = entry
	}
	return b, nil
}

// IsBlacklisted reports membership. O(1).
func (b *Blacklist) IsBlacklisted(productID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.entries[productID]
	return ok
}

// FilterCart removes blacklisted lines, preserving the order of the rest.
func (b *Blacklist) FilterCart(lines []order.Item) []order.Item {
	b.mu.RLock()
	defer b.mu.RUnlock()

	filtered := make([]order.Item, 0, len(lines))
	for _, line := range lines {
		if _, ok := b.entries[line.ProductID]; ok {
			continue
		}
		filtered = append(filtered, line)
	}
	return filtered
}

// Add blacklists a product. Adding an already-blacklisted ID is a no-op
// that still reports success. A mirror write failure is logged, not rolled
// back: the in-memory set stays mutated.
func (b *Blacklist) Add(ctx context.Context, productID, reason string) {
	b.mu.Lock()
	if _, ok := b.entries[productID]; ok {
		b.mu.Unlock()
		return
	}
	entry := Entry{ProductID: productID, Reason: reason, BlacklistedAt: time.Now().UTC()}
	b.entries[productID] = entry
	b.mu.Unlock()

	payload, err := json.Marshal(entry)
	if err == nil {
		err = b.store.Set(ctx, keyPrefix+productID, payload)
	}
	if err != nil {
		slog.Error("Failed to mirror blacklist entry", "product_id", productID, "err", err)
	}
}

// Remove restores a product. Removing an unknown ID is a no-op.
func (b *Blacklist) Remove(ctx context.Context, productID string) {
	b.mu.Lock()
	_, ok := b.entries[productID]
	delete(b.entries, productID)
	b.mu.Unlock()
	if !ok {
		return
	}

	if err := b.store.Delete(ctx, keyPrefix+productID); err != nil {
		slog.Error("Failed to remove mirrored blacklist entry", "product_id", productID, "err", err)
	}
}

// Entries returns an unordered snapshot of all entries.
func (b *Blacklist) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, 0, len(b.entries))
	for _, entry := range b.entries {
		out = append(out, entry)
	}
	return out
}

// MirrorKey exposes the storage key for an entry. Used by tests.
func MirrorKey(productID string) string {
	return keyPrefix + productID
}
