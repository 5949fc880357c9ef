package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	TicketStatusValid = "valid"
	TicketStatusUsed  = "used"
)

// Ticket is one purchased unit of a tier. Each ticket carries its own
// surrogate id so a user can hold several tickets for the same tier;
// (user_run, tier_id) is only a lookup index, not an identity.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID       string    `bun:"id,pk" json:"id"`
	UserRun  string    `bun:"user_run,notnull" json:"userRun"`
	TierID   int64     `bun:"tier_id,notnull" json:"tierId"`
	OrderID  int64     `bun:"order_id,notnull" json:"orderId"`
	BoughtAt time.Time `bun:"bought_at,notnull" json:"boughtAt"`
	Status   string    `bun:"status,notnull" json:"status"`
	QRCode   []byte    `bun:"qr_code" json:"qrCode,omitempty"`

	Tier *TicketTier `bun:"rel:belongs-to,join:tier_id=id" json:"-"`
}
