package coupon_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"github.com/jotalevi/TheFirm/internal/coupon"
	"github.com/jotalevi/TheFirm/internal/models"
)

func setupTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Coupon)(nil),
		(*models.CouponUsage)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(ctx)
		if err != nil {
			t.Fatalf("Failed to create table: %v", err)
		}
	}

	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

func seedCoupon(t *testing.T, bunDB *bun.DB, c models.Coupon) models.Coupon {
	_, err := bunDB.NewInsert().Model(&c).Exec(context.Background())
	require.NoError(t, err)
	return c
}

func activeCoupon(code string) models.Coupon {
	now := time.Now()
	return models.Coupon{
		Code:          code,
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 20,
		UsageLimit:    100,
		UsageCount:    0,
		ValidFrom:     now.Add(-time.Hour),
		ValidTo:       now.Add(time.Hour),
		Active:        true,
	}
}

func TestEvaluateHappyPath(t *testing.T) {
	bunDB := setupTestDB(t)
	evaluator := coupon.NewEvaluator()
	seedCoupon(t, bunDB, activeCoupon("DESCUENTO20"))

	c, err := evaluator.Evaluate(context.Background(), bunDB, "DESCUENTO20", nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "DESCUENTO20", c.Code)
	assert.Equal(t, models.DiscountPercentage, c.DiscountType)
}

func TestEvaluateNotFound(t *testing.T) {
	bunDB := setupTestDB(t)
	evaluator := coupon.NewEvaluator()

	_, err := evaluator.Evaluate(context.Background(), bunDB, "NOPE", nil, time.Now())
	assert.ErrorIs(t, err, coupon.ErrNotFound)
}

func TestEvaluateInactiveIsNotFound(t *testing.T) {
	bunDB := setupTestDB(t)
	evaluator := coupon.NewEvaluator()

	c := activeCoupon("DISABLED")
	c.Active = false
	seedCoupon(t, bunDB, c)

	_, err := evaluator.Evaluate(context.Background(), bunDB, "DISABLED", nil, time.Now())
	assert.ErrorIs(t, err, coupon.ErrNotFound)
}

func TestEvaluateExpired(t *testing.T) {
	bunDB := setupTestDB(t)
	evaluator := coupon.NewEvaluator()

	c := activeCoupon("OLD")
	c.ValidFrom = time.Now().Add(-48 * time.Hour)
	c.ValidTo = time.Now().Add(-24 * time.Hour)
	seedCoupon(t, bunDB, c)

	_, err := evaluator.Evaluate(context.Background(), bunDB, "OLD", nil, time.Now())
	assert.ErrorIs(t, err, coupon.ErrExpired)

	// Not yet active is expired too.
	c2 := activeCoupon("FUTURE")
	c2.ValidFrom = time.Now().Add(24 * time.Hour)
	c2.ValidTo = time.Now().Add(48 * time.Hour)
	seedCoupon(t, bunDB, c2)

	_, err = evaluator.Evaluate(context.Background(), bunDB, "FUTURE", nil, time.Now())
	assert.ErrorIs(t, err, coupon.ErrExpired)
}

func TestEvaluateLimitReached(t *testing.T) {
	bunDB := setupTestDB(t)
	evaluator := coupon.NewEvaluator()

	c := activeCoupon("MAXED")
	c.UsageLimit = 5
	c.UsageCount = 5
	seedCoupon(t, bunDB, c)

	_, err := evaluator.Evaluate(context.Background(), bunDB, "MAXED", nil, time.Now())
	assert.ErrorIs(t, err, coupon.ErrLimitReached)
}

func TestEvaluateEventScope(t *testing.T) {
	bunDB := setupTestDB(t)
	evaluator := coupon.NewEvaluator()

	eventID := int64(42)
	c := activeCoupon("SCOPED")
	c.EventID = &eventID
	seedCoupon(t, bunDB, c)

	// No line item belongs to event 42: rejected.
	_, err := evaluator.Evaluate(context.Background(), bunDB, "SCOPED", map[int64]struct{}{7: {}}, time.Now())
	assert.ErrorIs(t, err, coupon.ErrNotApplicable)

	// One item belongs to event 42: accepted.
	_, err = evaluator.Evaluate(context.Background(), bunDB, "SCOPED", map[int64]struct{}{7: {}, 42: {}}, time.Now())
	assert.NoError(t, err)
}

func TestDiscountArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		dtype    string
		value    float64
		subtotal float64
		want     float64
	}{
		{"twenty percent", models.DiscountPercentage, 20, 100000, 80000},
		{"fixed amount", models.DiscountFixed, 10000, 100000, 90000},
		{"fixed larger than subtotal clamps to zero", models.DiscountFixed, 150000, 100000, 0},
		{"hundred percent", models.DiscountPercentage, 100, 100000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &models.Coupon{DiscountType: tt.dtype, DiscountValue: tt.value}
			assert.InDelta(t, tt.want, coupon.Discount(c, tt.subtotal), 0.001)
		})
	}
}

func TestRecordUsage(t *testing.T) {
	bunDB := setupTestDB(t)
	evaluator := coupon.NewEvaluator()
	ctx := context.Background()

	c := seedCoupon(t, bunDB, activeCoupon("DESCUENTO20"))

	err := evaluator.RecordUsage(ctx, bunDB, &c, 1, time.Now())
	require.NoError(t, err)

	var stored models.Coupon
	require.NoError(t, bunDB.NewSelect().Model(&stored).Where("id = ?", c.ID).Scan(ctx))
	assert.Equal(t, 1, stored.UsageCount)

	count, err := bunDB.NewSelect().
		Model((*models.CouponUsage)(nil)).
		Where("coupon_id = ? AND order_id = ?", c.ID, 1).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordUsageLimitIsAtomic(t *testing.T) {
	bunDB := setupTestDB(t)
	evaluator := coupon.NewEvaluator()
	ctx := context.Background()

	c := activeCoupon("ONCE")
	c.UsageLimit = 1
	c = seedCoupon(t, bunDB, c)

	// The first application consumes the only use; the second hits the
	// guarded increment and is rejected.
	require.NoError(t, evaluator.RecordUsage(ctx, bunDB, &c, 1, time.Now()))
	err := evaluator.RecordUsage(ctx, bunDB, &c, 2, time.Now())
	assert.ErrorIs(t, err, coupon.ErrLimitReached)

	var stored models.Coupon
	require.NoError(t, bunDB.NewSelect().Model(&stored).Where("id = ?", c.ID).Scan(ctx))
	assert.Equal(t, 1, stored.UsageCount)
}
