package usecase_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/usecase"
)

func TestParseBookingEvent(t *testing.T) {
	body := []byte(`{
		"event": "booking.new",
		"id": "evt-1",
		"property_id": "P1",
		"data": {
			"id": "B1",
			"revision_id": "1",
			"room_type_id": "RT1",
			"rate_plan_id": "RP1",
			"status": "new",
			"ota_name": "Booking.com",
			"arrival_date": "2025-03-01",
			"departure_date": "2025-03-04T00:00:00Z",
			"total_price": "450.50",
			"currency": "sar",
			"customer": {"name": "Sara", "surname": "Ali", "mail": "sara@example.com"}
		}
	}`)

	event, err := usecase.ParseBookingEvent("channex", "conn-1", body)
	require.NoError(t, err)

	assert.Equal(t, "booking.new", event.EventType)
	assert.Equal(t, entity.BookingEventNew, event.Kind)
	assert.Equal(t, "evt-1", event.EventID)
	assert.Equal(t, "P1", event.PropertyID)
	assert.Equal(t, "B1", event.ExternalBookingID)
	assert.Equal(t, "1", event.RevisionID)
	assert.Equal(t, "RT1", event.RoomTypeID)
	assert.Equal(t, "RP1", event.RatePlanID)
	assert.Equal(t, "SAR", event.Currency)
	assert.Equal(t, "sara@example.com", event.Guest.Email)
	assert.Equal(t, "Ali", event.Guest.LastName)
	require.NotNil(t, event.CheckIn)
	require.NotNil(t, event.CheckOut)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *event.CheckIn)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), *event.CheckOut)
	require.NotNil(t, event.TotalPrice)
	assert.Equal(t, "450.5", event.TotalPrice.String())
	assert.True(t, event.HasSnapshot())
}

func TestParseBookingEvent_RoomsFallbackAndHashedID(t *testing.T) {
	body := []byte(`{"event":"booking","event_type":"modified","property_id":"P1",
		"data":{"id":"B1","rooms":[{"room_type_id":"RT9","rate_plan_id":"RP9"}],"amount":100}}`)

	event, err := usecase.ParseBookingEvent("channex", "conn-1", body)
	require.NoError(t, err)

	assert.Equal(t, "booking.modified", event.EventType)
	assert.Equal(t, entity.BookingEventModified, event.Kind)
	assert.Equal(t, "RT9", event.RoomTypeID)
	assert.Equal(t, "RP9", event.RatePlanID)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, event.EventID)
	assert.False(t, event.HasSnapshot())

	again, err := usecase.ParseBookingEvent("channex", "conn-1", body)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, again.EventID)
}

func TestParseBookingEvent_InvalidPrice(t *testing.T) {
	body := []byte(`{"event":"booking.new","property_id":"P1","data":{"id":"B1","total_price":"abc"}}`)

	event, err := usecase.ParseBookingEvent("channex", "conn-1", body)
	require.NoError(t, err)
	assert.True(t, event.InvalidPrice)
	assert.Nil(t, event.TotalPrice)
}

func TestParseBookingEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `not-json`},
		{"json array", `[1,2]`},
		{"missing event", `{"property_id":"P1","data":{"id":"B1"}}`},
		{"missing property", `{"event":"booking.new","data":{"id":"B1"}}`},
		{"missing reservation id", `{"event":"booking.new","property_id":"P1","data":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := usecase.ParseBookingEvent("channex", "conn-1", []byte(tt.body))
			var malformed *domainErrors.MalformedPayloadError
			assert.True(t, errors.As(err, &malformed), "got %v", err)
		})
	}
}

func TestParseBookingEvent_UnknownKindWithoutReservation(t *testing.T) {
	event, err := usecase.ParseBookingEvent("channex", "conn-1", []byte(`{"event":"ari.updated","property_id":"P1"}`))
	require.NoError(t, err)
	assert.Equal(t, entity.BookingEventUnknown, event.Kind)
}

func TestClassifyEvent(t *testing.T) {
	tests := map[string]entity.BookingEventKind{
		"booking.new":          entity.BookingEventNew,
		"booking_created":      entity.BookingEventNew,
		"booking.modified":     entity.BookingEventModified,
		"booking_updated":      entity.BookingEventModified,
		"booking.modification": entity.BookingEventModified,
		"booking.cancelled":    entity.BookingEventCancelled,
		"booking_cancelled":    entity.BookingEventCancelled,
		"booking.cancellation": entity.BookingEventCancelled,
		" BOOKING.NEW ":        entity.BookingEventNew,
		"booking.unmapped":     entity.BookingEventUnknown,
		"":                     entity.BookingEventUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, usecase.ClassifyEvent(in), in)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   interface{}
		want *time.Time
	}{
		{"2025-03-01", ptrTime(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))},
		{"2025-03-01T14:00:00", ptrTime(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))},
		{"2025-03-01T14:00:00Z", ptrTime(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))},
		{"2025-03-01 14:00:00", ptrTime(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))},
		{"01/03/2025", nil},
		{"2025-13-01", nil},
		{"2025-03-01X", nil},
		{"", nil},
		{nil, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, usecase.ParseDate(tt.in), "%v", tt.in)
	}
}

func TestMapBookingStatus(t *testing.T) {
	tests := map[string]model.BookingStatus{
		"cancelled":  model.BookingStatusCancelled,
		"Canceled":   model.BookingStatusCancelled,
		"checked_in": model.BookingStatusCheckedIn,
		"checkout":   model.BookingStatusCheckedOut,
		"completed":  model.BookingStatusCompleted,
		"new":        model.BookingStatusConfirmed,
		"modified":   model.BookingStatusConfirmed,
		"":           model.BookingStatusConfirmed,
		"who-knows":  model.BookingStatusConfirmed,
	}
	for in, want := range tests {
		assert.Equal(t, want, usecase.MapBookingStatus(in), in)
	}
}

func TestMapChannel(t *testing.T) {
	tests := map[string]string{
		"":            "channex",
		"Airbnb":      "airbnb",
		"Booking.com": "booking.com",
		"Expedia":     "expedia",
		"agoda":       "agoda",
		"Gathern":     "other_ota",
	}
	for in, want := range tests {
		assert.Equal(t, want, usecase.MapChannel(in), in)
	}
}

func TestExtractGuestName(t *testing.T) {
	tests := []struct {
		name  string
		guest entity.Guest
		want  string
	}{
		{"full name wins", entity.Guest{FullName: "Sara Ali", Name: "S", FirstName: "X"}, "Sara Ali"},
		{"name next", entity.Guest{Name: "Sara", FirstName: "X"}, "Sara"},
		{"first and last", entity.Guest{FirstName: "Sara", LastName: "Ali"}, "Sara Ali"},
		{"first only", entity.Guest{FirstName: "Sara"}, "Sara"},
		{"last only", entity.Guest{LastName: "Ali"}, "Ali"},
		{"blank", entity.Guest{FullName: "  "}, usecase.DefaultGuestName},
		{"empty", entity.Guest{}, "OTA Guest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, usecase.ExtractGuestName(tt.guest))
		})
	}
}

func TestCompareRevisions(t *testing.T) {
	assert.Equal(t, 1, usecase.CompareRevisions("10", "9"))
	assert.Equal(t, -1, usecase.CompareRevisions("2", "10"))
	assert.Equal(t, 0, usecase.CompareRevisions("7", "7"))
	assert.Equal(t, 1, usecase.CompareRevisions("123456789012345678901234567890", "99"))
	assert.Equal(t, 1, usecase.CompareRevisions("rev-b", "rev-a"))
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
