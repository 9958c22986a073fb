// Package adminproxy reaches the external admin inventory service, the
// stock authority the storefront does not control, through a ranked list
// of candidate endpoints, and falls back to the local catalog when every
// candidate fails.
package adminproxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/threadline/inventory/internal/catalog"
)

// LocalCatalog is the storefront's own product store, used as the last
// fallback when the admin service is unreachable.
type LocalCatalog interface {
	FindStock(ctx context.Context, productID string) (catalog.StockRecord, error)
}

// Config tunes the resolver.
type Config struct {
	// Endpoints are URL templates with exactly one %s placeholder for the
	// product ID, tried in order. The admin service's API surface is not
	// stable, so several historically valid shapes are kept.
	Endpoints []string
	// Timeout bounds each individual request.
	Timeout time.Duration
	// MaxRetries is how many times the whole candidate sweep is retried
	// with exponential backoff before falling back to the local catalog.
	MaxRetries uint64
	// InitialBackoff overrides the first retry delay. Zero keeps the
	// backoff library default.
	InitialBackoff time.Duration
}

// Resolver resolves the freshest stock record available for a product.
type Resolver struct {
	client *http.Client
	cfg    Config
	local  LocalCatalog
}

// New creates a Resolver. The per-request timeout lives on the HTTP client
// so no single candidate can block the sweep.
func New(cfg Config, local LocalCatalog) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 4 * time.Second
	}
	return &Resolver{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		local:  local,
	}
}

// Resolve returns the normalized stock record for a product. Failure is a
// layered escalation: candidate failure, then sweep retry with backoff,
// then full fallback to the local catalog with the synthetic flag set. An
// error is returned only when the local catalog cannot serve the product
// either.
func (r *Resolver) Resolve(ctx context.Context, productID string) (catalog.StockRecord, error) {
	if len(r.cfg.Endpoints) > 0 {
		rec, err := r.resolveRemote(ctx, productID)
		if err == nil {
			return rec, nil
		}
		slog.Warn("Admin inventory unreachable, falling back to local catalog",
			"product_id", productID, "err", err)
	}

	local, err := r.local.FindStock(ctx, productID)
	if err != nil {
		return catalog.StockRecord{}, fmt.Errorf("admin service unreachable and local lookup failed for %s: %w", productID, err)
	}
	rec := catalog.Normalize(local)
	rec.Synthetic = true
	return rec, nil
}

func (r *Resolver) resolveRemote(ctx context.Context, productID string) (catalog.StockRecord, error) {
	policy := backoff.NewExponentialBackOff()
	if r.cfg.InitialBackoff > 0 {
		policy.InitialInterval = r.cfg.InitialBackoff
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(policy, r.cfg.MaxRetries), ctx)

	return backoff.RetryWithData(func() (catalog.StockRecord, error) {
		return r.sweep(ctx, productID)
	}, bo)
}

// sweep tries every candidate in rank order; the first success wins and the
// rest are skipped.
func (r *Resolver) sweep(ctx context.Context, productID string) (catalog.StockRecord, error) {
	var failures []error
	for _, tmpl := range r.cfg.Endpoints {
		rec, err := r.tryCandidate(ctx, tmpl, productID)
		if err == nil {
			return rec, nil
		}
		if ctx.Err() != nil {
			return catalog.StockRecord{}, backoff.Permanent(ctx.Err())
		}
		slog.Debug("Stock candidate failed", "endpoint", tmpl, "product_id", productID, "err", err)
		failures = append(failures, fmt.Errorf("%s: %w", tmpl, err))
	}
	return catalog.StockRecord{}, fmt.Errorf("all %d candidates failed: %w", len(r.cfg.Endpoints), errors.Join(failures...))
}

func (r *Resolver) tryCandidate(ctx context.Context, tmpl, productID string) (catalog.StockRecord, error) {
	endpoint := fmt.Sprintf(tmpl, url.PathEscape(productID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return catalog.StockRecord{}, fmt.Errorf("failed to build request: %w", err)
	}
	// Cache busting: some historical deployments sit behind aggressive
	// proxies and would otherwise serve minutes-old stock.
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := r.client.Do(req)
	if err != nil {
		return catalog.StockRecord{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return catalog.StockRecord{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var rec catalog.StockRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return catalog.StockRecord{}, fmt.Errorf("failed to decode stock record: %w", err)
	}
	if rec.ProductID == "" {
		rec.ProductID = productID
	}
	return catalog.Normalize(rec), nil
}
