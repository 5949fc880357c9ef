package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TicketTier is a purchasable ticket category for an event with a
// finite stock. The stock invariant stock_initial == stock_current +
// stock_sold holds at all times; the counters are only mutated by the
// inventory ledger inside an order transaction.
type TicketTier struct {
	bun.BaseModel `bun:"table:ticket_tiers"`

	ID               int64      `bun:"id,pk,autoincrement" json:"id"`
	TierName         string     `bun:"tier_name,notnull" json:"tierName"`
	BasePrice        float64    `bun:"base_price,notnull" json:"basePrice"`
	EntryAllowedFrom *time.Time `bun:"entry_allowed_from,nullzero" json:"entryAllowedFrom,omitempty"`
	EntryAllowedTo   *time.Time `bun:"entry_allowed_to,nullzero" json:"entryAllowedTo,omitempty"`
	SingleUse        bool       `bun:"single_use" json:"singleUse"`
	SingleDaily      bool       `bun:"single_daily" json:"singleDaily"`
	StockInitial     int        `bun:"stock_initial,notnull" json:"stockInitial"`
	StockCurrent     int        `bun:"stock_current,notnull" json:"stockCurrent"`
	StockSold        int        `bun:"stock_sold,notnull" json:"stockSold"`
	EventID          int64      `bun:"event_id,notnull" json:"eventId"`

	Event *Event `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
}
