package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/jotalevi/TheFirm/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// RunInTx wraps fn in one database transaction; every write the order
// workflow performs goes through the bun.Tx handed to fn.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, fn)
}

// ---------------- USERS ----------------

func (d *DB) GetUserByRun(ctx context.Context, run string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("run = ?", run).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ---------------- ORDERS ----------------

// InsertOrder inserts the order row; bun fills the autoincrement id.
func (d *DB) InsertOrder(ctx context.Context, idb bun.IDB, order *models.Order) error {
	_, err := idb.NewInsert().Model(order).Exec(ctx)
	return err
}

func (d *DB) InsertOrderItems(ctx context.Context, idb bun.IDB, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	_, err := idb.NewInsert().Model(&items).Exec(ctx)
	return err
}

func (d *DB) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderWithItems returns an order plus its line items with tier
// names resolved.
func (d *DB) GetOrderWithItems(ctx context.Context, id int64) (*models.OrderResponse, error) {
	order, err := d.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var items []models.OrderItem
	err = d.Bun.NewSelect().
		Model(&items).
		Relation("Tier").
		Where("order_item.order_id = ?", id).
		Order("order_item.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load items for order %d: %w", id, err)
	}

	resp := &models.OrderResponse{
		ID:               order.ID,
		UserRun:          order.UserRun,
		OrderDate:        order.OrderDate,
		TotalAmount:      order.TotalAmount,
		Status:           order.Status,
		PaymentMethod:    order.PaymentMethod,
		PaymentReference: order.PaymentReference,
		Items:            make([]models.OrderItemResponse, 0, len(items)),
	}
	for _, item := range items {
		tierName := ""
		if item.Tier != nil {
			tierName = item.Tier.TierName
		}
		resp.Items = append(resp.Items, models.OrderItemResponse{
			ID:             item.ID,
			TierID:         item.TierID,
			TierName:       tierName,
			Quantity:       item.Quantity,
			PricePerTicket: item.PricePerTicket,
			Subtotal:       item.PricePerTicket * float64(item.Quantity),
		})
	}

	return resp, nil
}

// FinalizeOrder flips a pending order to completed and records the
// generated payment reference. This runs outside the placement
// transaction; when it fails the order stays pending.
func (d *DB) FinalizeOrder(ctx context.Context, orderID int64, paymentRef string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.OrderStatusCompleted).
		Set("payment_reference = ?", paymentRef).
		Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("order %d is not pending", orderID)
	}
	return nil
}

// ---------------- TIERS ----------------

// GetTierWithEvent loads a tier and its event, used for the
// post-commit confirmation emails.
func (d *DB) GetTierWithEvent(ctx context.Context, tierID int64) (*models.TicketTier, error) {
	var tier models.TicketTier
	err := d.Bun.NewSelect().
		Model(&tier).
		Relation("Event").
		Where("ticket_tier.id = ?", tierID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &tier, nil
}
