package ticket_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jotalevi/TheFirm/internal/logger"
	"github.com/jotalevi/TheFirm/internal/tickets"
)

type Handler struct {
	TicketService *tickets.TicketService
	Logger        *logger.Logger
}

func NewHandler(ticketService *tickets.TicketService, log *logger.Logger) *Handler {
	return &Handler{TicketService: ticketService, Logger: log}
}

// ValidateQR redeems a ticket at the gate. key is the ticket id,
// secret the verification hash from the ticket's QR payload.
func (h *Handler) ValidateQR(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	secret := r.URL.Query().Get("secret")
	if key == "" || secret == "" {
		http.Error(w, "Key and secret are required", http.StatusBadRequest)
		return
	}

	result, err := h.TicketService.Validate(r.Context(), key, secret)
	if err != nil {
		h.writeValidationError(w, key, err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("ValidateQR: ticket %s validated", key))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ValidateQR: failed to encode response: %v", err))
	}
}

// GetTicketsByUser lists all tickets a user holds.
func (h *Handler) GetTicketsByUser(w http.ResponseWriter, r *http.Request) {
	userRun := chi.URLParam(r, "userRun")
	if userRun == "" {
		http.Error(w, "User run is required", http.StatusBadRequest)
		return
	}

	userTickets, err := h.TicketService.GetTicketsByUser(r.Context(), userRun)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetTicketsByUser: %v", err))
		http.Error(w, "Failed to retrieve tickets: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(userTickets); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetTicketsByUser: failed to encode response: %v", err))
	}
}

// GetTicketsByOrder lists the tickets minted for an order.
func (h *Handler) GetTicketsByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid order id", http.StatusBadRequest)
		return
	}

	orderTickets, err := h.TicketService.GetTicketsByOrder(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetTicketsByOrder: %v", err))
		http.Error(w, "Failed to retrieve tickets: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(orderTickets); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetTicketsByOrder: failed to encode response: %v", err))
	}
}

func (h *Handler) writeValidationError(w http.ResponseWriter, key string, err error) {
	var notValid *tickets.NotValidError

	switch {
	case errors.Is(err, tickets.ErrTicketNotFound):
		h.Logger.Warn("API", fmt.Sprintf("ValidateQR: ticket %s not found", key))
		http.Error(w, "Ticket not found", http.StatusNotFound)
	case errors.Is(err, tickets.ErrInvalidSecret):
		h.Logger.Warn("API", fmt.Sprintf("ValidateQR: invalid secret for ticket %s", key))
		http.Error(w, "Invalid ticket verification", http.StatusUnauthorized)
	case errors.As(err, &notValid):
		h.Logger.Warn("API", fmt.Sprintf("ValidateQR: ticket %s rejected: %v", key, err))
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.Logger.Error("API", fmt.Sprintf("ValidateQR: unexpected failure: %v", err))
		http.Error(w, "An error occurred: "+err.Error(), http.StatusInternalServerError)
	}
}
