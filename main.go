package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/threadline/inventory/internal/adminproxy"
	"github.com/threadline/inventory/internal/blacklist"
	"github.com/threadline/inventory/internal/config"
	delivery "github.com/threadline/inventory/internal/delivery/http"
	"github.com/threadline/inventory/internal/events"
	"github.com/threadline/inventory/internal/localstore"
	"github.com/threadline/inventory/internal/reconciler"
	"github.com/threadline/inventory/internal/reducer"
	"github.com/threadline/inventory/internal/repository/postgres"
	"github.com/threadline/inventory/internal/syncer"
	"github.com/threadline/inventory/internal/validator"
)

func main() {
	slog.SetLogLoggerLevel(slog.LevelDebug)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Database ---
	db, err := postgres.InitDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to init database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	products := postgres.NewProductRepository(db)
	orders := postgres.NewOrderRepository(db)

	if err := products.Seed(ctx, seedCatalog()); err != nil {
		slog.Error("Failed to seed products", "err", err)
		os.Exit(1)
	}

	// --- Local store ---
	var store localstore.Store
	if cfg.RedisAddr != "" {
		store, err = localstore.NewRedisStore(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Error("Failed to connect to redis", "err", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("No REDIS_ADDR set, pending markers will not survive a restart")
		store = localstore.NewMemoryStore()
	}

	// --- Services ---
	bus := events.NewBus(slog.Default())
	defer bus.Close()

	resolver := adminproxy.New(adminproxy.Config{
		Endpoints:  cfg.AdminStockEndpoints,
		Timeout:    cfg.AdminTimeout,
		MaxRetries: cfg.AdminMaxRetries,
	}, products)

	stockSyncer := syncer.New(ctx, resolver, bus, syncer.Config{
		ActiveInterval:     cfg.ActivePollInterval,
		BackgroundInterval: cfg.BackgroundPollInterval,
	})

	bl, err := blacklist.New(ctx, store)
	if err != nil {
		slog.Error("Failed to load blacklist", "err", err)
		os.Exit(1)
	}

	val := validator.New(resolver)
	red := reducer.New(products, bus)
	rec := reconciler.New(store, orders, red)

	// Orders accepted before the last shutdown may still owe a reduction.
	rec.ResumePending(ctx)

	// Keep a background watch on every catalog product so the stock cache
	// and the not-modified fast path stay warm without a connected client.
	catalogProducts, err := products.FindAll(ctx)
	if err != nil {
		slog.Error("Failed to list products for background watches", "err", err)
	}
	for _, p := range catalogProducts {
		watch, err := stockSyncer.Watch(p.ID, func(events.StockChanged) {})
		if err != nil {
			slog.Warn("Failed to start stock watch", "product_id", p.ID, "err", err)
			continue
		}
		watch.SetVisible(false)
	}

	// --- HTTP API ---
	handler := delivery.NewHandler(products, orders, bl, val, red, rec, resolver, stockSyncer)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: delivery.EnableCORS(mux),
	}

	go func() {
		slog.Info("🚀 HTTP server starting", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")
	httpServer.Shutdown(context.Background())
}
