package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/testutil"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/validation"
)

func TestManualPriceService(t *testing.T) {
	t.Run("set, list and remove", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestManualPriceService(t, db)
		ctx := context.Background()

		hours := 2.0
		o, err := svc.SetOverride(ctx, "alice", "air.nz", request.SetManualPriceRequest{
			Price:        decimal.RequireFromString("1.85"),
			Reason:       "trading halt",
			ExpiresHours: &hours,
		})
		require.NoError(t, err)
		assert.Equal(t, "AIR.NZ", o.Ticker)
		require.NotNil(t, o.ExpiresAt)
		assert.WithinDuration(t, o.CreatedAt.Add(2*time.Hour), *o.ExpiresAt, time.Second)

		active, err := svc.ListActive(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.True(t, decimal.RequireFromString("1.85").Equal(active[0].Price))

		require.NoError(t, svc.RemoveOverride(ctx, "alice", "AIR.NZ"))
		assert.ErrorIs(t, svc.RemoveOverride(ctx, "alice", "AIR.NZ"), apperrors.ErrOverrideNotFound)
	})

	t.Run("expired overrides are not listed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		testutil.CreateOverride(t, db, "alice", "OLD", 10, -time.Hour)
		testutil.CreateOverride(t, db, "alice", "NEW", 10, 0)
		svc := testutil.NewTestManualPriceService(t, db)

		active, err := svc.ListActive(context.Background(), "alice")
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "NEW", active[0].Ticker)
	})

	t.Run("validates the request", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestManualPriceService(t, db)
		ctx := context.Background()

		_, err := svc.SetOverride(ctx, "alice", "AAPL", request.SetManualPriceRequest{Price: decimal.NewFromInt(-1)})
		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "price")

		_, err = svc.SetOverride(ctx, "alice", "bad ticker!", request.SetManualPriceRequest{Price: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, apperrors.ErrInvalidTicker)
	})
}
