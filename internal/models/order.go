package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID               int64     `bun:"id,pk,autoincrement" json:"id"`
	UserRun          string    `bun:"user_run,notnull" json:"userRun"`
	OrderDate        time.Time `bun:"order_date,notnull" json:"orderDate"`
	TotalAmount      float64   `bun:"total_amount,notnull" json:"totalAmount"`
	Status           string    `bun:"status,notnull" json:"status"`
	PaymentMethod    string    `bun:"payment_method,notnull" json:"paymentMethod"`
	PaymentReference *string   `bun:"payment_reference,nullzero" json:"paymentReference,omitempty"`
}

// OrderItem snapshots the tier's base price at purchase time; the
// snapshot is never recomputed even if the tier price changes later.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID             int64   `bun:"id,pk,autoincrement" json:"id"`
	OrderID        int64   `bun:"order_id,notnull" json:"orderId"`
	TierID         int64   `bun:"tier_id,notnull" json:"tierId"`
	Quantity       int     `bun:"quantity,notnull" json:"quantity"`
	PricePerTicket float64 `bun:"price_per_ticket,notnull" json:"pricePerTicket"`

	Tier *TicketTier `bun:"rel:belongs-to,join:tier_id=id" json:"-"`
}

// ---------------- DTOs ----------------

type OrderItemRequest struct {
	TierID   int64 `json:"tierId"`
	Quantity int   `json:"quantity"`
}

type CreateOrderRequest struct {
	UserRun       string             `json:"userRun"`
	PaymentMethod string             `json:"paymentMethod"`
	CouponCode    string             `json:"couponCode,omitempty"`
	Items         []OrderItemRequest `json:"items"`
}

type OrderItemResponse struct {
	ID             int64   `json:"id"`
	TierID         int64   `json:"tierId"`
	TierName       string  `json:"tierName"`
	Quantity       int     `json:"quantity"`
	PricePerTicket float64 `json:"pricePerTicket"`
	Subtotal       float64 `json:"subtotal"`
}

type OrderResponse struct {
	ID               int64               `json:"id"`
	UserRun          string              `json:"userRun"`
	OrderDate        time.Time           `json:"orderDate"`
	TotalAmount      float64             `json:"totalAmount"`
	Status           string              `json:"status"`
	PaymentMethod    string              `json:"paymentMethod"`
	PaymentReference *string             `json:"paymentReference,omitempty"`
	Items            []OrderItemResponse `json:"items"`
}
