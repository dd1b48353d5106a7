package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/usecase"
)

func quarantined(t *testing.T, w *webhookEnv, roomType, eventID string) *model.UnmatchedWebhookEvent {
	t.Helper()
	p := newB1("1", eventID)
	p.roomType = roomType
	require.Equal(t, entity.ActionUnmatched, w.deliver(t, p).Action)

	events, _, err := w.quarantine.List(context.Background(), model.UnmatchedStatusPending, entity.PaginationParams{})
	require.NoError(t, err)
	require.NotEmpty(t, events)
	return events[0]
}

func TestQuarantineService_ResolveStillUnmatched(t *testing.T) {
	w := newWebhookEnv(t)
	ctx := context.Background()
	event := quarantined(t, w, "RT7", "evt-7")

	result, err := w.quarantine.Resolve(ctx, event.ID, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.UnmatchedStatusRetrying, result.Status)
	assert.Equal(t, domainErrors.ReasonNoMapping, result.Reason)

	row, err := w.store.Repos().Unmatched.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnmatchedStatusRetrying, row.Status)
	assert.True(t, row.Status.Open())
}

func TestQuarantineService_Discard(t *testing.T) {
	w := newWebhookEnv(t)
	ctx := context.Background()
	event := quarantined(t, w, "RT7", "evt-7")

	require.NoError(t, w.quarantine.Discard(ctx, event.ID, "ops@example.com"))

	row, err := w.store.Repos().Unmatched.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnmatchedStatusDiscarded, row.Status)

	t.Run("closed events cannot be reopened", func(t *testing.T) {
		_, err := w.quarantine.Resolve(ctx, event.ID, "ops@example.com")
		assert.ErrorIs(t, err, domainErrors.ErrUnmatchedClosed)

		err = w.quarantine.Discard(ctx, event.ID, "ops@example.com")
		assert.ErrorIs(t, err, domainErrors.ErrUnmatchedClosed)
	})

	t.Run("discarded events are skipped by sweeps", func(t *testing.T) {
		summary, err := w.quarantine.ResolvePending(ctx, 10)
		require.NoError(t, err)
		assert.Zero(t, summary.Resolved)
	})

	t.Run("unknown id", func(t *testing.T) {
		err := w.quarantine.Discard(ctx, "00000000-0000-0000-0000-000000000000", "ops")
		assert.ErrorIs(t, err, domainErrors.ErrUnmatchedNotFound)
	})
}

func TestQuarantineService_ResolvePendingSweep(t *testing.T) {
	w := newWebhookEnv(t)
	ctx := context.Background()
	event := quarantined(t, w, "RT2", "evt-2")

	summary, err := w.quarantine.ResolvePending(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, summary.Resolved)

	_, err = w.connections.CreateMapping(ctx, w.conn.ID, usecase.CreateMappingInput{UnitID: "U2", RoomTypeID: "RT2"})
	require.NoError(t, err)

	row, err := w.store.Repos().Unmatched.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnmatchedStatusResolved, row.Status)
}

func TestQuarantineService_ResolveAppliesWaitingCancellation(t *testing.T) {
	w := newWebhookEnv(t)
	ctx := context.Background()

	first := quarantined(t, w, "RT2", "evt-1")
	assert.Equal(t, domainErrors.ReasonNoMapping, first.Reason)

	cancel := w.deliver(t, payload{eventType: "booking.cancelled", eventID: "evt-2", bookingID: "B1", revision: "2"})
	require.Equal(t, entity.ActionUnmatched, cancel.Action)
	require.Equal(t, domainErrors.ReasonBookingNotFound, cancel.Reason)

	_, err := w.connections.CreateMapping(ctx, w.conn.ID, usecase.CreateMappingInput{
		UnitID:     "U2",
		RoomTypeID: "RT2",
		RatePlanID: "RP2",
	})
	require.NoError(t, err)

	booking, err := w.store.Repos().Bookings.FindByExternalID(ctx, "channex", "B1")
	require.NoError(t, err)
	require.NotNil(t, booking)
	assert.Equal(t, "U2", booking.UnitID)
	assert.Equal(t, model.BookingStatusCancelled, booking.Status)

	events, _, err := w.quarantine.List(ctx, model.UnmatchedStatusResolved, entity.PaginationParams{})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	open, _, err := w.quarantine.List(ctx, model.UnmatchedStatusRetrying, entity.PaginationParams{})
	require.NoError(t, err)
	assert.Empty(t, open)
}
