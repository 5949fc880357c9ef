package tickets

import (
	"context"
	"errors"
	"fmt"

	"github.com/jotalevi/TheFirm/internal/models"
	"github.com/jotalevi/TheFirm/internal/tickets/qr"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrInvalidSecret  = errors.New("invalid ticket verification")
)

// NotValidError reports a redemption attempt on a ticket that is no
// longer in the valid state.
type NotValidError struct {
	Status string
}

func (e *NotValidError) Error() string {
	return fmt.Sprintf("ticket is not valid. Status: %s", e.Status)
}

type TicketDBLayer interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	UpdateTicketStatus(ctx context.Context, id, status string) error
	GetTicketsByOrder(ctx context.Context, orderID int64) ([]models.Ticket, error)
	GetTicketsByUser(ctx context.Context, userRun string) ([]models.Ticket, error)
}

type TicketService struct {
	DB TicketDBLayer
	QR *qr.Generator
}

func NewTicketService(db TicketDBLayer, qrGen *qr.Generator) *TicketService {
	return &TicketService{DB: db, QR: qrGen}
}

// ValidationResult is what the gate scanner gets back.
type ValidationResult struct {
	Ticket  *models.Ticket `json:"ticket"`
	IsValid bool           `json:"isValid"`
	Message string         `json:"message"`
}

// Validate redeems a ticket presented at the gate. The key is the
// ticket id, the secret is the hash minted into the ticket's QR code.
// Single-use tiers get their ticket flipped to used; single-daily
// tiers stay valid.
func (s *TicketService) Validate(ctx context.Context, key, secret string) (*ValidationResult, error) {
	ticket, err := s.DB.GetTicketByID(ctx, key)
	if err != nil {
		return nil, ErrTicketNotFound
	}

	if secret != s.QR.TicketSecret(*ticket) {
		return nil, ErrInvalidSecret
	}

	if ticket.Status != models.TicketStatusValid {
		return nil, &NotValidError{Status: ticket.Status}
	}

	message := "Ticket validated"
	if ticket.Tier != nil && ticket.Tier.SingleUse {
		if err := s.DB.UpdateTicketStatus(ctx, ticket.ID, models.TicketStatusUsed); err != nil {
			return nil, fmt.Errorf("failed to mark ticket %s as used: %w", ticket.ID, err)
		}
		ticket.Status = models.TicketStatusUsed
		message = "Ticket validated and marked as used"
	}

	return &ValidationResult{
		Ticket:  ticket,
		IsValid: true,
		Message: message,
	}, nil
}

// GetTicketsByUser returns all tickets a user holds.
func (s *TicketService) GetTicketsByUser(ctx context.Context, userRun string) ([]models.Ticket, error) {
	return s.DB.GetTicketsByUser(ctx, userRun)
}

// GetTicketsByOrder returns the tickets minted for an order.
func (s *TicketService) GetTicketsByOrder(ctx context.Context, orderID int64) ([]models.Ticket, error) {
	return s.DB.GetTicketsByOrder(ctx, orderID)
}
