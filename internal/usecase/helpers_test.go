package usecase_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/config"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
	"github.com/2Raz/mnam-backend-sub001/internal/infrastructure/database"
	"github.com/2Raz/mnam-backend-sub001/internal/testutil"
	"github.com/2Raz/mnam-backend-sub001/internal/usecase"
)

var testToday = testutil.Date(2025, time.January, 1)

func bookingConfig() config.BookingConfig {
	return config.BookingConfig{
		MaxAdvanceDays:  730,
		MaxStayNights:   365,
		MaxNightlyPrice: decimal.NewFromInt(1_000_000),
		DefaultCurrency: "SAR",
	}
}

func dispatcherConfig() config.DispatcherConfig {
	return config.DispatcherConfig{
		Workers:                  1,
		PollInterval:             time.Second,
		BatchSize:                50,
		LeaseTimeout:             5 * time.Minute,
		RequestTimeout:           5 * time.Second,
		MaxAttempts:              3,
		BaseBackoff:              time.Minute,
		MaxBackoff:               time.Hour,
		MaxPayloadBytes:          10 * 1024 * 1024,
		SyncDays:                 30,
		ConnectionErrorThreshold: 5,
	}
}

// env is the common fixture: property P1 on one connection, unit U1 mapped
// to room type RT1 / rate plan RP1.
type env struct {
	store      *database.Store
	now        time.Time
	conn       *model.ChannelConnection
	mapping    *model.ExternalMapping
	reconciler *usecase.RevisionReconciler
	outbox     *usecase.OutboxService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{store: testutil.NewStore(t), now: testToday.Add(9 * time.Hour)}
	e.conn = testutil.Connection(t, e.store, "P1")
	e.mapping = testutil.Mapping(t, e.store, e.conn.ID, "U1", "RT1", "RP1")

	e.reconciler = usecase.NewRevisionReconciler(usecase.NewBookingValidator(bookingConfig()), "SAR", zap.NewNop())
	e.reconciler.SetClock(testutil.FixedClock(&e.now))
	e.outbox = usecase.NewOutboxService(e.store, dispatcherConfig(), zap.NewNop())
	e.outbox.SetClock(testutil.FixedClock(&e.now))
	return e
}

type payload struct {
	eventType string
	eventID   string
	bookingID string
	revision  string
	roomType  string
	status    string
	checkIn   string
	checkOut  string
	price     string
	guest     map[string]interface{}
}

func (p payload) JSON() []byte {
	data := map[string]interface{}{"id": p.bookingID}
	set := func(k, v string) {
		if v != "" {
			data[k] = v
		}
	}
	set("revision_id", p.revision)
	set("room_type_id", p.roomType)
	set("status", p.status)
	set("arrival_date", p.checkIn)
	set("departure_date", p.checkOut)
	set("total_price", p.price)
	if p.guest != nil {
		data["customer"] = p.guest
	}

	body := map[string]interface{}{
		"event":       p.eventType,
		"property_id": "P1",
		"data":        data,
	}
	if p.eventID != "" {
		body["id"] = p.eventID
	}
	raw, _ := json.Marshal(body)
	return raw
}

func (e *env) event(t *testing.T, p payload) *entity.BookingEvent {
	t.Helper()
	event, err := usecase.ParseBookingEvent("channex", e.conn.ID, p.JSON())
	require.NoError(t, err)
	return event
}

func (e *env) reconcile(t *testing.T, p payload) *entity.ReconcileResult {
	t.Helper()
	event := e.event(t, p)

	var result *entity.ReconcileResult
	err := e.store.Transaction(context.Background(), func(tx *repository.Repositories) error {
		var err error
		result, err = e.reconciler.Reconcile(context.Background(), tx, event)
		return err
	})
	require.NoError(t, err)
	return result
}

func (e *env) booking(t *testing.T, externalID string) *model.Booking {
	t.Helper()
	b, err := e.store.Repos().Bookings.FindByExternalID(context.Background(), "channex", externalID)
	require.NoError(t, err)
	return b
}

func newB1(rev, eventID string) payload {
	return payload{
		eventType: "booking.new",
		eventID:   eventID,
		bookingID: "B1",
		revision:  rev,
		roomType:  "RT1",
		status:    "new",
		checkIn:   "2025-03-01",
		checkOut:  "2025-03-04",
		price:     "450.00",
		guest:     map[string]interface{}{"name": "Sara", "surname": "Ali"},
	}
}

func cancelB1(rev, eventID string) payload {
	p := newB1(rev, eventID)
	p.eventType = "booking.cancelled"
	p.status = "cancelled"
	return p
}
