package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/testutil"
)

func TestRevisionReconciler_CreatesBooking(t *testing.T) {
	e := newEnv(t)

	result := e.reconcile(t, newB1("1", "evt-1"))

	assert.Equal(t, entity.ActionCreated, result.Action)
	assert.Equal(t, "U1", result.UnitID)
	assert.Equal(t, testutil.Date(2025, 3, 1), result.DateFrom)
	assert.Equal(t, testutil.Date(2025, 3, 4), result.DateTo)

	b := e.booking(t, "B1")
	require.NotNil(t, b)
	assert.Equal(t, result.BookingID, b.ID)
	assert.Equal(t, model.BookingStatusConfirmed, b.Status)
	assert.Equal(t, "Sara", b.GuestName)
	assert.Equal(t, "channex", b.Channel)
	assert.Equal(t, "SAR", b.Currency)
	assert.Equal(t, "450", b.TotalPrice.String())
	assert.Equal(t, "1", model.Deref(b.CurrentRevisionID))
	assert.Equal(t, 3, b.Nights())
}

func TestRevisionReconciler_InOrderCancellation(t *testing.T) {
	e := newEnv(t)

	first := e.reconcile(t, newB1("1", "evt-1"))
	second := e.reconcile(t, cancelB1("2", "evt-2"))

	assert.Equal(t, entity.ActionCreated, first.Action)
	assert.Equal(t, entity.ActionCancelled, second.Action)
	assert.Equal(t, first.BookingID, second.BookingID)

	b := e.booking(t, "B1")
	assert.Equal(t, model.BookingStatusCancelled, b.Status)
	assert.Equal(t, "2", model.Deref(b.CurrentRevisionID))
}

func TestRevisionReconciler_OutOfOrderConverges(t *testing.T) {
	e := newEnv(t)

	// Revision 2 (cancellation) overtakes revision 1 (creation).
	cancelled := e.reconcile(t, cancelB1("2", "evt-2"))
	stale := e.reconcile(t, newB1("1", "evt-1"))

	assert.Equal(t, entity.ActionCancelled, cancelled.Action)
	assert.Equal(t, entity.ActionSuperseded, stale.Action)
	assert.Equal(t, cancelled.BookingID, stale.BookingID)

	b := e.booking(t, "B1")
	require.NotNil(t, b)
	assert.Equal(t, model.BookingStatusCancelled, b.Status)
	assert.Equal(t, "2", model.Deref(b.CurrentRevisionID))

	revs, err := e.store.Repos().Revisions.ListByExternalID(context.Background(), "B1")
	require.NoError(t, err)
	require.Len(t, revs, 2)
	applied := map[string]bool{}
	for _, r := range revs {
		applied[r.RevisionID] = r.Applied
	}
	assert.Equal(t, map[string]bool{"1": false, "2": true}, applied)
}

func TestRevisionReconciler_ModificationWidensWindow(t *testing.T) {
	e := newEnv(t)
	e.reconcile(t, newB1("1", "evt-1"))

	mod := newB1("2", "evt-2")
	mod.eventType = "booking.modified"
	mod.checkIn, mod.checkOut = "2025-03-03", "2025-03-07"
	mod.guest = nil

	result := e.reconcile(t, mod)

	assert.Equal(t, entity.ActionUpdated, result.Action)
	assert.Equal(t, testutil.Date(2025, 3, 1), result.DateFrom)
	assert.Equal(t, testutil.Date(2025, 3, 7), result.DateTo)
	assert.Empty(t, result.PreviousUnitID)

	b := e.booking(t, "B1")
	assert.Equal(t, testutil.Date(2025, 3, 3), b.CheckIn.UTC())
	assert.Equal(t, testutil.Date(2025, 3, 7), b.CheckOut.UTC())
	assert.Equal(t, "Sara", b.GuestName, "a modification without a guest keeps the name")
}

func TestRevisionReconciler_ModificationMovesUnit(t *testing.T) {
	e := newEnv(t)
	testutil.Mapping(t, e.store, e.conn.ID, "U2", "RT2", "RP2")
	e.reconcile(t, newB1("1", "evt-1"))

	mod := newB1("2", "evt-2")
	mod.eventType = "booking.modified"
	mod.roomType = "RT2"

	result := e.reconcile(t, mod)

	assert.Equal(t, entity.ActionUpdated, result.Action)
	assert.Equal(t, "U2", result.UnitID)
	assert.Equal(t, "U1", result.PreviousUnitID)
	assert.Equal(t, "U2", e.booking(t, "B1").UnitID)
}

func TestRevisionReconciler_Unmatched(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, e *env)
		input  func() payload
		reason string
	}{
		{
			name: "modification of unknown booking without snapshot",
			input: func() payload {
				p := newB1("2", "evt-2")
				p.eventType = "booking.modified"
				p.roomType = ""
				return p
			},
			reason: domainErrors.ReasonBookingNotFound,
		},
		{
			name: "unknown room type",
			input: func() payload {
				p := newB1("1", "evt-1")
				p.roomType = "RT-unknown"
				return p
			},
			reason: domainErrors.ReasonNoMapping,
		},
		{
			name: "check-out before check-in",
			input: func() payload {
				p := newB1("1", "evt-1")
				p.checkIn, p.checkOut = "2025-03-04", "2025-03-01"
				return p
			},
			reason: domainErrors.ReasonInvalidDateRange,
		},
		{
			name: "stay already over",
			input: func() payload {
				p := newB1("1", "evt-1")
				p.checkIn, p.checkOut = "2024-12-01", "2024-12-05"
				return p
			},
			reason: domainErrors.ReasonDatesInPast,
		},
		{
			name: "too far ahead",
			input: func() payload {
				p := newB1("1", "evt-1")
				p.checkIn, p.checkOut = "2027-06-01", "2027-06-05"
				return p
			},
			reason: domainErrors.ReasonDatesTooFar,
		},
		{
			name: "negative price",
			input: func() payload {
				p := newB1("1", "evt-1")
				p.price = "-1"
				return p
			},
			reason: domainErrors.ReasonInvalidPrice,
		},
		{
			name: "new booking without dates",
			input: func() payload {
				p := newB1("1", "evt-1")
				p.checkIn, p.checkOut = "", ""
				return p
			},
			reason: domainErrors.ReasonMissingDates,
		},
		{
			name: "overlaps another reservation",
			setup: func(t *testing.T, e *env) {
				other := newB1("1", "evt-0")
				other.bookingID = "B0"
				other.checkIn, other.checkOut = "2025-03-03", "2025-03-06"
				require.Equal(t, entity.ActionCreated, e.reconcile(t, other).Action)
			},
			input:  func() payload { return newB1("1", "evt-1") },
			reason: domainErrors.ReasonDateConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			if tt.setup != nil {
				tt.setup(t, e)
			}

			result := e.reconcile(t, tt.input())

			assert.Equal(t, entity.ActionUnmatched, result.Action)
			assert.Equal(t, tt.reason, result.Reason)
			assert.NotEmpty(t, result.Message)
			assert.Nil(t, e.booking(t, "B1"))
		})
	}
}

func TestRevisionReconciler_BackToBackStaysDoNotConflict(t *testing.T) {
	e := newEnv(t)
	e.reconcile(t, newB1("1", "evt-1"))

	next := newB1("1", "evt-9")
	next.bookingID = "B2"
	next.checkIn, next.checkOut = "2025-03-04", "2025-03-06"

	assert.Equal(t, entity.ActionCreated, e.reconcile(t, next).Action)
}

func TestRevisionReconciler_EventsWithoutRevisionApplyInArrivalOrder(t *testing.T) {
	e := newEnv(t)

	first := e.reconcile(t, newB1("", "evt-1"))
	second := e.reconcile(t, cancelB1("", "evt-2"))

	assert.Equal(t, entity.ActionCreated, first.Action)
	assert.Equal(t, entity.ActionCancelled, second.Action)
	assert.Equal(t, "event:evt-2", model.Deref(e.booking(t, "B1").CurrentRevisionID))
}

func TestRevisionReconciler_EventWithoutRevisionAfterNumberedRevision(t *testing.T) {
	t.Run("modification is superseded", func(t *testing.T) {
		e := newEnv(t)
		require.Equal(t, entity.ActionCreated, e.reconcile(t, newB1("2", "evt-1")).Action)

		p := newB1("", "evt-2")
		p.eventType = "booking.modified"
		p.checkOut = "2025-03-06"
		result := e.reconcile(t, p)

		assert.Equal(t, entity.ActionSuperseded, result.Action)
		booking := e.booking(t, "B1")
		assert.Equal(t, "2", model.Deref(booking.CurrentRevisionID))
		assert.Equal(t, testutil.Date(2025, 3, 4), booking.CheckOut.UTC())
	})

	t.Run("cancellation still applies", func(t *testing.T) {
		e := newEnv(t)
		require.Equal(t, entity.ActionCreated, e.reconcile(t, newB1("2", "evt-1")).Action)

		result := e.reconcile(t, cancelB1("", "evt-2"))

		assert.Equal(t, entity.ActionCancelled, result.Action)
		assert.Equal(t, model.BookingStatusCancelled, e.booking(t, "B1").Status)
	})
}

func TestRevisionReconciler_CancelledSnapshotSkipsValidation(t *testing.T) {
	e := newEnv(t)

	p := cancelB1("3", "evt-3")
	p.checkIn, p.checkOut = "2024-06-01", "2024-06-03"

	result := e.reconcile(t, p)

	assert.Equal(t, entity.ActionCancelled, result.Action)
	assert.Equal(t, model.BookingStatusCancelled, e.booking(t, "B1").Status)
}
