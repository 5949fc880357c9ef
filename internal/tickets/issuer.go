package tickets

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/jotalevi/TheFirm/internal/models"
	"github.com/jotalevi/TheFirm/internal/tickets/qr"
)

// Issuer mints ticket rows for purchased units. Each ticket gets its
// own uuid so several units of the same tier bought by the same user
// remain independently redeemable.
type Issuer struct {
	QR *qr.Generator
}

func NewIssuer(qrGen *qr.Generator) *Issuer {
	return &Issuer{QR: qrGen}
}

// Issue creates count tickets for the user and tier on the given
// bun.IDB. Called inside the order transaction so that minted tickets
// roll back with a failed order.
func (i *Issuer) Issue(ctx context.Context, idb bun.IDB, userRun string, tierID, orderID int64, count int, now time.Time) ([]models.Ticket, error) {
	if count < 1 {
		return nil, fmt.Errorf("invalid ticket count %d for tier %d", count, tierID)
	}

	minted := make([]models.Ticket, 0, count)
	for n := 0; n < count; n++ {
		ticket := models.Ticket{
			ID:       uuid.NewString(),
			UserRun:  userRun,
			TierID:   tierID,
			OrderID:  orderID,
			BoughtAt: now,
			Status:   models.TicketStatusValid,
		}

		qrBytes, err := i.QR.GenerateEncryptedQR(ticket)
		if err != nil {
			return nil, fmt.Errorf("failed to generate QR for ticket %s: %w", ticket.ID, err)
		}
		ticket.QRCode = qrBytes

		minted = append(minted, ticket)
	}

	if _, err := idb.NewInsert().Model(&minted).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert tickets for tier %d: %w", tierID, err)
	}

	return minted, nil
}
