package entity

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// BookingEventKind is the normalized kind of a reservation webhook.
type BookingEventKind string

const (
	BookingEventNew       BookingEventKind = "new"
	BookingEventModified  BookingEventKind = "modified"
	BookingEventCancelled BookingEventKind = "cancelled"
	BookingEventUnknown   BookingEventKind = "unknown"
)

// Guest is the guest block of a reservation payload, already merged from
// the "guest" and "customer" objects.
type Guest struct {
	FullName  string `json:"full_name,omitempty"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// BookingEvent is a provider reservation event in normalized form.
type BookingEvent struct {
	Provider          string           `json:"provider"`
	ConnectionID      string           `json:"connection_id"`
	EventID           string           `json:"event_id"`
	EventType         string           `json:"event_type"`
	Kind              BookingEventKind `json:"kind"`
	PropertyID        string           `json:"property_id"`
	ExternalBookingID string           `json:"external_booking_id"`
	RevisionID        string           `json:"revision_id"`
	RoomTypeID        string           `json:"room_type_id"`
	RatePlanID        string           `json:"rate_plan_id"`
	Status            string           `json:"status"`
	OTAName           string           `json:"ota_name"`
	CheckIn           *time.Time       `json:"check_in,omitempty"`
	CheckOut          *time.Time       `json:"check_out,omitempty"`
	TotalPrice        *decimal.Decimal `json:"total_price,omitempty"`
	InvalidPrice      bool             `json:"-"`
	Currency          string           `json:"currency"`
	Guest             Guest            `json:"guest"`
	Notes             string           `json:"notes,omitempty"`
	Raw               json.RawMessage  `json:"-"`
}

// HasSnapshot reports whether the event carries enough to materialize a
// booking on its own.
func (e *BookingEvent) HasSnapshot() bool {
	return e.RoomTypeID != "" && e.CheckIn != nil && e.CheckOut != nil
}
