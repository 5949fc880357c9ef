package tickets_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/jotalevi/TheFirm/internal/models"
	"github.com/jotalevi/TheFirm/internal/tickets"
	ticketdb "github.com/jotalevi/TheFirm/internal/tickets/db"
	"github.com/jotalevi/TheFirm/internal/tickets/qr"
)

func seedTicket(t *testing.T, bunDB *bun.DB, singleUse bool) (models.Ticket, *qr.Generator) {
	ctx := context.Background()

	tier := models.TicketTier{
		TierName:     "General",
		BasePrice:    15000,
		SingleUse:    singleUse,
		StockInitial: 10,
		StockCurrent: 9,
		StockSold:    1,
		EventID:      1,
	}
	_, err := bunDB.NewInsert().Model(&tier).Exec(ctx)
	require.NoError(t, err)

	gen := qr.NewGenerator("test-secret")
	issuer := tickets.NewIssuer(gen)
	minted, err := issuer.Issue(ctx, bunDB, "11111111-1", tier.ID, 1, 1, time.Now().UTC())
	require.NoError(t, err)

	return minted[0], gen
}

func TestValidateSingleUseMarksUsed(t *testing.T) {
	bunDB := setupTestDB(t)
	ticket, gen := seedTicket(t, bunDB, true)
	service := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, gen)

	result, err := service.Validate(context.Background(), ticket.ID, gen.TicketSecret(ticket))
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, models.TicketStatusUsed, result.Ticket.Status)
	assert.Equal(t, "Ticket validated and marked as used", result.Message)

	// A second presentation of the same ticket is rejected.
	_, err = service.Validate(context.Background(), ticket.ID, gen.TicketSecret(ticket))
	var notValid *tickets.NotValidError
	require.ErrorAs(t, err, &notValid)
	assert.Equal(t, models.TicketStatusUsed, notValid.Status)
}

func TestValidateReusableTierStaysValid(t *testing.T) {
	bunDB := setupTestDB(t)
	ticket, gen := seedTicket(t, bunDB, false)
	service := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, gen)

	for i := 0; i < 2; i++ {
		result, err := service.Validate(context.Background(), ticket.ID, gen.TicketSecret(ticket))
		require.NoError(t, err)
		assert.Equal(t, models.TicketStatusValid, result.Ticket.Status)
		assert.Equal(t, "Ticket validated", result.Message)
	}
}

func TestValidateAfterTimestampRoundTrip(t *testing.T) {
	bunDB := setupTestDB(t)
	ticket, gen := seedTicket(t, bunDB, true)
	service := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, gen)

	// The QR payload is minted before the insert. Postgres stores
	// bought_at at microsecond precision, so the stored timestamp can
	// differ from the minted one; the secret must survive that.
	qrSecret := gen.TicketSecret(ticket)
	_, err := bunDB.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("bought_at = ?", ticket.BoughtAt.Truncate(time.Microsecond)).
		Where("id = ?", ticket.ID).
		Exec(context.Background())
	require.NoError(t, err)

	result, err := service.Validate(context.Background(), ticket.ID, qrSecret)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
}

func TestValidateRejectsBadSecret(t *testing.T) {
	bunDB := setupTestDB(t)
	ticket, gen := seedTicket(t, bunDB, true)
	service := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, gen)

	_, err := service.Validate(context.Background(), ticket.ID, "wrong-secret")
	assert.ErrorIs(t, err, tickets.ErrInvalidSecret)

	// The failed attempt must not consume the ticket.
	result, err := service.Validate(context.Background(), ticket.ID, gen.TicketSecret(ticket))
	require.NoError(t, err)
	assert.True(t, result.IsValid)
}

func TestValidateUnknownTicket(t *testing.T) {
	bunDB := setupTestDB(t)
	_, gen := seedTicket(t, bunDB, true)
	service := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, gen)

	_, err := service.Validate(context.Background(), "no-such-ticket", "whatever")
	assert.ErrorIs(t, err, tickets.ErrTicketNotFound)
}

func TestGetTicketsByOrder(t *testing.T) {
	bunDB := setupTestDB(t)
	ticket, gen := seedTicket(t, bunDB, false)
	service := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, gen)

	minted, err := service.GetTicketsByOrder(context.Background(), ticket.OrderID)
	require.NoError(t, err)
	require.Len(t, minted, 1)
	assert.Equal(t, ticket.ID, minted[0].ID)

	none, err := service.GetTicketsByOrder(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetTicketsByUser(t *testing.T) {
	bunDB := setupTestDB(t)
	ticket, gen := seedTicket(t, bunDB, false)
	service := tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, gen)

	owned, err := service.GetTicketsByUser(context.Background(), ticket.UserRun)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, ticket.ID, owned[0].ID)

	empty, err := service.GetTicketsByUser(context.Background(), "99999999-9")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
