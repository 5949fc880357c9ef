package inventory_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"github.com/jotalevi/TheFirm/internal/inventory"
	"github.com/jotalevi/TheFirm/internal/models"
)

func setupTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// One connection keeps every query on the same in-memory database
	// and serializes concurrent transactions.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Event)(nil),
		(*models.TicketTier)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(ctx)
		if err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}

	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

func seedTier(t *testing.T, bunDB *bun.DB, name string, price float64, stock int) int64 {
	ctx := context.Background()

	event := models.Event{
		EventName: "Test Event",
		StartDate: time.Now().Add(24 * time.Hour),
		EndDate:   time.Now().Add(26 * time.Hour),
	}
	_, err := bunDB.NewInsert().Model(&event).Exec(ctx)
	require.NoError(t, err)

	tier := models.TicketTier{
		TierName:     name,
		BasePrice:    price,
		StockInitial: stock,
		StockCurrent: stock,
		StockSold:    0,
		EventID:      event.ID,
	}
	_, err = bunDB.NewInsert().Model(&tier).Exec(ctx)
	require.NoError(t, err)

	return tier.ID
}

func tierByID(t *testing.T, bunDB *bun.DB, id int64) models.TicketTier {
	var tier models.TicketTier
	err := bunDB.NewSelect().Model(&tier).Where("id = ?", id).Scan(context.Background())
	require.NoError(t, err)
	return tier
}

func TestReserveDecrementsStock(t *testing.T) {
	bunDB := setupTestDB(t)
	ledger := inventory.NewLedger()
	tierID := seedTier(t, bunDB, "General", 15000, 10)

	reservation, err := ledger.Reserve(context.Background(), bunDB, tierID, 3)
	require.NoError(t, err)

	assert.Equal(t, tierID, reservation.TierID)
	assert.Equal(t, "General", reservation.TierName)
	assert.Equal(t, 15000.0, reservation.UnitPrice)
	assert.Equal(t, 3, reservation.Quantity)

	tier := tierByID(t, bunDB, tierID)
	assert.Equal(t, 7, tier.StockCurrent)
	assert.Equal(t, 3, tier.StockSold)
	assert.Equal(t, tier.StockInitial, tier.StockCurrent+tier.StockSold)
}

func TestReserveInsufficientStock(t *testing.T) {
	bunDB := setupTestDB(t)
	ledger := inventory.NewLedger()
	tierID := seedTier(t, bunDB, "VIP", 50000, 2)

	_, err := ledger.Reserve(context.Background(), bunDB, tierID, 5)
	require.Error(t, err)

	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, tierID, insufficient.TierID)
	assert.Equal(t, "VIP", insufficient.TierName)
	assert.Equal(t, 5, insufficient.Requested)
	assert.Equal(t, 2, insufficient.Available)

	// A failed reservation leaves the counters untouched.
	tier := tierByID(t, bunDB, tierID)
	assert.Equal(t, 2, tier.StockCurrent)
	assert.Equal(t, 0, tier.StockSold)
}

func TestReserveUnknownTier(t *testing.T) {
	bunDB := setupTestDB(t)
	ledger := inventory.NewLedger()

	_, err := ledger.Reserve(context.Background(), bunDB, 999, 1)
	assert.ErrorIs(t, err, inventory.ErrUnknownTier)
}

func TestReserveInvalidQuantity(t *testing.T) {
	bunDB := setupTestDB(t)
	ledger := inventory.NewLedger()
	tierID := seedTier(t, bunDB, "General", 15000, 10)

	_, err := ledger.Reserve(context.Background(), bunDB, tierID, 0)
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)

	_, err = ledger.Reserve(context.Background(), bunDB, tierID, -3)
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}

func TestReserveDrainsStockExactly(t *testing.T) {
	bunDB := setupTestDB(t)
	ledger := inventory.NewLedger()
	tierID := seedTier(t, bunDB, "General", 15000, 5)

	for i := 0; i < 5; i++ {
		_, err := ledger.Reserve(context.Background(), bunDB, tierID, 1)
		require.NoError(t, err)
	}

	// The (N+1)th unit always fails, regardless of arrival order.
	_, err := ledger.Reserve(context.Background(), bunDB, tierID, 1)
	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.Available)

	tier := tierByID(t, bunDB, tierID)
	assert.Equal(t, 0, tier.StockCurrent)
	assert.Equal(t, 5, tier.StockSold)
}

func TestReserveConcurrentLastUnit(t *testing.T) {
	bunDB := setupTestDB(t)
	ledger := inventory.NewLedger()
	tierID := seedTier(t, bunDB, "VIP", 50000, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.Reserve(context.Background(), bunDB, tierID, 1)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			var insufficient *inventory.InsufficientStockError
			require.ErrorAs(t, err, &insufficient)
			assert.Equal(t, 0, insufficient.Available)
		}
	}
	assert.Equal(t, 1, succeeded)

	tier := tierByID(t, bunDB, tierID)
	assert.Equal(t, 0, tier.StockCurrent)
	assert.Equal(t, 1, tier.StockSold)
}
