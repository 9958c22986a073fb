package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/threadline/inventory/internal/blacklist"
	"github.com/threadline/inventory/internal/catalog"
	"github.com/threadline/inventory/internal/events"
	"github.com/threadline/inventory/internal/order"
	"github.com/threadline/inventory/internal/reconciler"
	"github.com/threadline/inventory/internal/reducer"
	"github.com/threadline/inventory/internal/repository"
	"github.com/threadline/inventory/internal/syncer"
	"github.com/threadline/inventory/internal/validator"
)

// Handler handles HTTP requests for the application.
type Handler struct {
	products   repository.ProductRepository
	orders     repository.OrderRepository
	blacklist  *blacklist.Blacklist
	validator  *validator.Validator
	reducer    *reducer.Reducer
	reconciler *reconciler.Reconciler
	stock      syncer.Fetcher
	syncer     *syncer.Syncer
}

func NewHandler(
	products repository.ProductRepository,
	orders repository.OrderRepository,
	bl *blacklist.Blacklist,
	val *validator.Validator,
	red *reducer.Reducer,
	rec *reconciler.Reconciler,
	stock syncer.Fetcher,
	sync *syncer.Syncer,
) *Handler {
	return &Handler{
		products:   products,
		orders:     orders,
		blacklist:  bl,
		validator:  val,
		reducer:    red,
		reconciler: rec,
		stock:      stock,
		syncer:     sync,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.handleGetProducts)
	mux.HandleFunc("GET /api/products/{id}/stock", h.handleGetStock)
	mux.HandleFunc("GET /api/products/{id}/stock/watch", h.handleWatchStock)
	mux.HandleFunc("POST /api/stock/validate", h.handleValidateStock)
	mux.HandleFunc("POST /api/stock/reduce", h.handleReduceStock)
	mux.HandleFunc("POST /api/cart/filter", h.handleFilterCart)
	mux.HandleFunc("POST /api/orders", h.handleCreateOrder)
	mux.HandleFunc("POST /api/orders/{id}/reconcile", h.handleReconcileOrder)
	mux.HandleFunc("GET /api/orders", h.handleGetOrders)
	mux.HandleFunc("POST /api/blacklist", h.handleAddBlacklist)
	mux.HandleFunc("DELETE /api/blacklist/{id}", h.handleRemoveBlacklist)
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}

func (h *Handler) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.FindAll(r.Context())
	if err != nil {
		slog.Error("Failed to get products", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	for i := range products {
		products[i].Stock = catalog.Normalize(products[i].Stock)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(products)
}

func (h *Handler) handleGetStock(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")

	// A client that already holds a record can send its timestamp and
	// skip the body when nothing newer has been observed.
	if since := r.URL.Query().Get("since"); since != "" {
		have, err := time.Parse(time.RFC3339, since)
		if err == nil && h.syncer.UpToDate(productID, have) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	record, err := h.stock.Resolve(r.Context(), productID)
	if err != nil {
		slog.Error("Failed to resolve stock", "product_id", productID, "err", err)
		http.Error(w, "product not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// handleWatchStock streams stock changes for one product as server-sent
// events. The watch polls on the active cadence while the stream is open
// and tears down when the client disconnects.
func (h *Handler) handleWatchStock(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates := make(chan events.StockChanged, 8)
	watch, err := h.syncer.Watch(productID, func(ev events.StockChanged) {
		select {
		case updates <- ev:
		default:
			// Slow client; the next poll catches it up.
		}
	})
	if err != nil {
		slog.Error("Failed to watch stock", "product_id", productID, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer watch.Stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-updates:
			payload, err := json.Marshal(ev)
			if err != nil {
				slog.Error("Failed to marshal stock change", "product_id", productID, "err", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

type StockItemsRequest struct {
	Items []catalog.StockRequest `json:"items"`
}

func (h *Handler) handleValidateStock(w http.ResponseWriter, r *http.Request) {
	var req StockItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result := h.validator.Validate(r.Context(), req.Items)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *Handler) handleReduceStock(w http.ResponseWriter, r *http.Request) {
	var req StockItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	results := h.reducer.Reduce(r.Context(), req.Items)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"results": results})
}

type FilterCartRequest struct {
	Items []order.Item `json:"items"`
}

func (h *Handler) handleFilterCart(w http.ResponseWriter, r *http.Request) {
	var req FilterCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	filtered := h.blacklist.FilterCart(req.Items)
	if filtered == nil {
		filtered = []order.Item{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"items": filtered})
}

type CreateOrderRequest struct {
	Items []order.Item `json:"items"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	items := h.blacklist.FilterCart(req.Items)
	if len(items) == 0 {
		http.Error(w, "order must contain at least one available item", http.StatusBadRequest)
		return
	}

	requests := reconciler.ItemsFromOrder(items)

	if result := h.validator.Validate(r.Context(), requests); !result.Valid {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(result)
		return
	}

	o := &order.Order{
		ID:         uuid.New().String(),
		Items:      items,
		TotalPrice: order.Total(items),
		Status:     order.StatusConfirmed,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.orders.Create(r.Context(), o); err != nil {
		slog.Error("Failed to place order", "err", err)
		http.Error(w, "failed to place order", http.StatusInternalServerError)
		return
	}

	// The pending marker must be durable before the shopper sees the
	// confirmation, so a crash between here and the reduction below is
	// recoverable.
	if err := h.reconciler.RecordPending(r.Context(), o.ID, requests); err != nil {
		slog.Error("Failed to record pending reduction", "order_id", o.ID, "err", err)
		http.Error(w, "failed to place order", http.StatusInternalServerError)
		return
	}

	reduction := h.reconciler.ReconcileOrder(r.Context(), o.ID)
	if !reduction.Success {
		slog.Warn("Stock reduction deferred", "order_id", o.ID, "reason", reduction.Message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"order_id":      o.ID,
		"status":        o.Status,
		"stock_reduced": reduction.Success,
	})
}

func (h *Handler) handleReconcileOrder(w http.ResponseWriter, r *http.Request) {
	result := h.reconciler.ReconcileOrder(r.Context(), r.PathValue("id"))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *Handler) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.FindRecent(r.Context(), 50)
	if err != nil {
		slog.Error("Failed to get orders", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

type BlacklistRequest struct {
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"`
}

func (h *Handler) handleAddBlacklist(w http.ResponseWriter, r *http.Request) {
	var req BlacklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h.blacklist.Add(r.Context(), req.ProductID, req.Reason)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveBlacklist(w http.ResponseWriter, r *http.Request) {
	h.blacklist.Remove(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// EnableCORS is a middleware to allow the storefront frontend to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
