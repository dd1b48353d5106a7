package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/testutil"
	"github.com/2Raz/mnam-backend-sub001/internal/usecase"
)

func TestPricingCalendar_NightlyPrices(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.Repos().PricingPolicies.Save(ctx, &model.PricingPolicy{
		UnitID:        "U1",
		BasePrice:     decimal.NewFromInt(400),
		WeekendMarkup: decimal.NewFromInt(25),
		WeekendDays:   "5,6",
		Currency:      "SAR",
	}))

	calendar := usecase.NewPricingCalendar(store.Repos().PricingPolicies)

	// 2025-01-01 is a Wednesday.
	prices, err := calendar.NightlyPrices(ctx, "U1", testToday, testToday.AddDate(0, 0, 5))
	require.NoError(t, err)
	require.Len(t, prices, 5)

	want := []int64{400, 400, 500, 500, 400}
	for i, p := range prices {
		assert.Equal(t, testToday.AddDate(0, 0, i), p.Date)
		assert.True(t, decimal.NewFromInt(want[i]).Equal(p.Price), "night %d: got %s", i, p.Price)
		assert.Equal(t, "SAR", p.Currency)
	}

	t.Run("empty window", func(t *testing.T) {
		prices, err := calendar.NightlyPrices(ctx, "U1", testToday, testToday)
		require.NoError(t, err)
		assert.Empty(t, prices)
	})

	t.Run("unknown unit", func(t *testing.T) {
		_, err := calendar.NightlyPrices(ctx, "U404", testToday, testToday.AddDate(0, 0, 1))
		assert.ErrorIs(t, err, domainErrors.ErrPricingPolicyNotFound)
	})
}

func TestAvailabilityCalendar_Daily(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	bookings := store.Repos().Bookings

	require.NoError(t, bookings.Upsert(ctx, &model.Booking{
		UnitID:    "U1",
		Provider:  "channex",
		Status:    model.BookingStatusConfirmed,
		GuestName: "Sara Ali",
		CheckIn:   testutil.Date(2025, time.January, 2),
		CheckOut:  testutil.Date(2025, time.January, 4),
		Currency:  "SAR",
	}))
	require.NoError(t, bookings.Upsert(ctx, &model.Booking{
		UnitID:    "U1",
		Provider:  "direct",
		Status:    model.BookingStatusCancelled,
		GuestName: "Omar",
		CheckIn:   testutil.Date(2025, time.January, 5),
		CheckOut:  testutil.Date(2025, time.January, 6),
		Currency:  "SAR",
	}))

	calendar := usecase.NewAvailabilityCalendar(bookings)
	days, err := calendar.Daily(ctx, "U1", testToday, testToday.AddDate(0, 0, 6))
	require.NoError(t, err)

	got := make([]int, len(days))
	for i, d := range days {
		got[i] = d.Available
	}
	// The check-out night is free again and cancelled stays do not block.
	assert.Equal(t, []int{1, 0, 0, 1, 1, 1}, got)

	other, err := calendar.Daily(ctx, "U2", testToday, testToday.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, other[0].Available)
	assert.Equal(t, 1, other[1].Available)
}
