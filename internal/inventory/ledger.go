package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/jotalevi/TheFirm/internal/models"
)

var (
	// ErrUnknownTier is returned when the requested tier does not exist.
	ErrUnknownTier = errors.New("unknown ticket tier")
	// ErrInvalidQuantity is returned for reservation quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// InsufficientStockError reports a reservation that exceeds the tier's
// remaining stock.
type InsufficientStockError struct {
	TierID    int64
	TierName  string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for tier %q (id=%d): requested %d, available %d",
		e.TierName, e.TierID, e.Requested, e.Available)
}

// Reservation is the price snapshot handed back to the order assembler
// after a successful stock decrement.
type Reservation struct {
	TierID    int64
	TierName  string
	EventID   int64
	UnitPrice float64
	Quantity  int
}

// Ledger mutates per-tier stock counters. All operations run against
// the bun.IDB the caller passes in, so a reservation made inside an
// order transaction rolls back with it.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Reserve decrements stock_current and increments stock_sold for the
// tier in a single conditional UPDATE. The WHERE stock_current >= ?
// guard makes concurrent reservations serialize at the storage layer:
// the sum of successful reservations can never exceed stock_initial.
func (l *Ledger) Reserve(ctx context.Context, idb bun.IDB, tierID int64, quantity int) (*Reservation, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: got %d for tier %d", ErrInvalidQuantity, quantity, tierID)
	}

	var tier models.TicketTier
	err := idb.NewSelect().
		Model(&tier).
		Where("id = ?", tierID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownTier
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tier %d: %w", tierID, err)
	}

	res, err := idb.NewUpdate().
		Model((*models.TicketTier)(nil)).
		Set("stock_current = stock_current - ?", quantity).
		Set("stock_sold = stock_sold + ?", quantity).
		Where("id = ? AND stock_current >= ?", tierID, quantity).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve stock for tier %d: %w", tierID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// The guarded update is authoritative; re-read for the
		// available count in the error report.
		available := tier.StockCurrent
		_ = idb.NewSelect().
			Model((*models.TicketTier)(nil)).
			Column("stock_current").
			Where("id = ?", tierID).
			Scan(ctx, &available)
		return nil, &InsufficientStockError{
			TierID:    tierID,
			TierName:  tier.TierName,
			Requested: quantity,
			Available: available,
		}
	}

	return &Reservation{
		TierID:    tier.ID,
		TierName:  tier.TierName,
		EventID:   tier.EventID,
		UnitPrice: tier.BasePrice,
		Quantity:  quantity,
	}, nil
}
