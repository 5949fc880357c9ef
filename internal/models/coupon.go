package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

type Coupon struct {
	bun.BaseModel `bun:"table:coupons"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Code          string    `bun:"code,unique,notnull" json:"code"`
	Description   string    `bun:"description" json:"description"`
	DiscountType  string    `bun:"discount_type,notnull" json:"discountType"`
	DiscountValue float64   `bun:"discount_value,notnull" json:"discountValue"`
	UsageLimit    int       `bun:"usage_limit,notnull" json:"usageLimit"`
	UsageCount    int       `bun:"usage_count,notnull" json:"usageCount"`
	ValidFrom     time.Time `bun:"valid_from,notnull" json:"validFrom"`
	ValidTo       time.Time `bun:"valid_to,notnull" json:"validTo"`
	EventID       *int64    `bun:"event_id,nullzero" json:"eventId,omitempty"`
	Active        bool      `bun:"active" json:"active"`
}

// CouponUsage links a coupon to the order it was applied to. One row
// per order per coupon.
type CouponUsage struct {
	bun.BaseModel `bun:"table:coupon_usages"`

	ID       int64     `bun:"id,pk,autoincrement" json:"id"`
	CouponID int64     `bun:"coupon_id,notnull" json:"couponId"`
	OrderID  int64     `bun:"order_id,notnull" json:"orderId"`
	UsedAt   time.Time `bun:"used_at,notnull" json:"usedAt"`
}
