package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/jotalevi/TheFirm/internal/models"
)

var (
	// ErrNotFound covers both a missing code and an inactive coupon.
	ErrNotFound = errors.New("invalid coupon code")
	// ErrExpired means now is outside the coupon's validity window.
	ErrExpired = errors.New("coupon is not valid at this time")
	// ErrLimitReached means usage_count has reached usage_limit.
	ErrLimitReached = errors.New("coupon usage limit reached")
	// ErrNotApplicable means the coupon is scoped to an event and no
	// line item in the order belongs to that event.
	ErrNotApplicable = errors.New("coupon is not applicable to any item in this order")
)

// Evaluator validates coupons and computes discounted totals. Like the
// inventory ledger it operates on the caller's bun.IDB so that usage
// accounting rolls back with the order transaction.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate looks the coupon up by code and runs the pre-checks in the
// same order the checkout has always used: existence/active, usage
// limit, validity window, event scope.
//
// eventIDs is the set of events the order's line items belong to. A
// coupon scoped to an event is rejected when none of the items match;
// an unscoped coupon applies to any order.
func (e *Evaluator) Evaluate(ctx context.Context, idb bun.IDB, code string, eventIDs map[int64]struct{}, now time.Time) (*models.Coupon, error) {
	var c models.Coupon
	err := idb.NewSelect().
		Model(&c).
		Where("code = ? AND active", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load coupon %q: %w", code, err)
	}

	if c.UsageCount >= c.UsageLimit {
		return nil, ErrLimitReached
	}

	if now.Before(c.ValidFrom) || now.After(c.ValidTo) {
		return nil, ErrExpired
	}

	if c.EventID != nil {
		if _, ok := eventIDs[*c.EventID]; !ok {
			return nil, ErrNotApplicable
		}
	}

	return &c, nil
}

// Discount applies the coupon's rule to a subtotal. The result is
// clamped so a total can never go negative.
func Discount(c *models.Coupon, subtotal float64) float64 {
	var total float64
	switch c.DiscountType {
	case models.DiscountPercentage:
		total = subtotal * (1 - c.DiscountValue/100)
	case models.DiscountFixed:
		total = subtotal - c.DiscountValue
	default:
		total = subtotal
	}
	if total < 0 {
		total = 0
	}
	return total
}

// RecordUsage increments the coupon's usage count and writes the
// coupon_usage row for the order. The increment is guarded by
// usage_count < usage_limit so concurrent orders racing for the last
// use serialize at the storage layer; the loser gets ErrLimitReached
// and its whole transaction rolls back.
func (e *Evaluator) RecordUsage(ctx context.Context, idb bun.IDB, c *models.Coupon, orderID int64, now time.Time) error {
	res, err := idb.NewUpdate().
		Model((*models.Coupon)(nil)).
		Set("usage_count = usage_count + 1").
		Where("id = ? AND usage_count < usage_limit", c.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment usage for coupon %q: %w", c.Code, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrLimitReached
	}

	usage := models.CouponUsage{
		CouponID: c.ID,
		OrderID:  orderID,
		UsedAt:   now,
	}
	if _, err := idb.NewInsert().Model(&usage).Exec(ctx); err != nil {
		return fmt.Errorf("failed to record usage for coupon %q: %w", c.Code, err)
	}

	return nil
}
