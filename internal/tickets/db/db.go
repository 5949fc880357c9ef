package db

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/jotalevi/TheFirm/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// GetTicketByID fetches a ticket with its tier (the tier's single_use
// flag drives redemption).
func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Relation("Tier").
		Where("ticket.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) UpdateTicketStatus(ctx context.Context, id, status string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// GetTicketsByOrder fetches all tickets minted for an order.
func (d *DB) GetTicketsByOrder(ctx context.Context, orderID int64) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("order_id = ?", orderID).
		Order("bought_at").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// GetTicketsByUser fetches all tickets a user holds, using the
// (user_run, tier_id) lookup index.
func (d *DB) GetTicketsByUser(ctx context.Context, userRun string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("user_run = ?", userRun).
		Order("bought_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}
