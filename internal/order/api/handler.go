package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jotalevi/TheFirm/internal/auth"
	"github.com/jotalevi/TheFirm/internal/cache"
	"github.com/jotalevi/TheFirm/internal/coupon"
	"github.com/jotalevi/TheFirm/internal/inventory"
	"github.com/jotalevi/TheFirm/internal/logger"
	"github.com/jotalevi/TheFirm/internal/models"
	"github.com/jotalevi/TheFirm/internal/order"
)

type Handler struct {
	OrderService *order.OrderService
	Cache        *cache.OrderCache
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, orderCache *cache.OrderCache, log *logger.Logger) *Handler {
	return &Handler{
		OrderService: orderService,
		Cache:        orderCache,
		Logger:       log,
	}
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to decode request body: %v", err))
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	// When the body omits the run, the authenticated caller is buying
	// for themselves.
	if req.UserRun == "" {
		req.UserRun = auth.UserRun(r.Context())
	}

	resp, err := h.OrderService.PlaceOrder(r.Context(), req)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CreateOrder: order %d created for user %s", resp.ID, resp.UserRun))

	// Drop any stale cached snapshot of this order.
	h.Cache.Invalidate(r.Context(), resp.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to encode response: %v", err))
	}
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid order id", http.StatusBadRequest)
		return
	}

	if payload, ok := h.Cache.Get(r.Context(), orderID); ok {
		h.Logger.Debug("API", fmt.Sprintf("GetOrder: cache hit for order %d", orderID))
		w.Header().Set("Content-Type", "application/json")
		w.Write(payload)
		return
	}

	resp, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrder: order not found: %v", err))
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrder: failed to encode response: %v", err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	h.Cache.Set(r.Context(), orderID, payload)

	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

// writeOrderError maps workflow errors onto the HTTP surface: every
// pre-commit rejection is a 400 with the specific reason; a failed
// post-commit finalization is a 500 but the order stands (pending).
func (h *Handler) writeOrderError(w http.ResponseWriter, err error) {
	var insufficient *inventory.InsufficientStockError
	var finalization *order.FinalizationError

	switch {
	case errors.Is(err, order.ErrUnknownUser),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, inventory.ErrUnknownTier),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrLimitReached),
		errors.Is(err, coupon.ErrNotApplicable):
		h.Logger.Warn("API", fmt.Sprintf("CreateOrder: rejected: %v", err))
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &insufficient):
		h.Logger.Warn("API", fmt.Sprintf("CreateOrder: rejected: %v", err))
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &finalization):
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: %v", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: unexpected failure: %v", err))
		http.Error(w, "An error occurred: "+err.Error(), http.StatusInternalServerError)
	}
}
