package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/infrastructure/crypto"
)

// DefaultGuestName is used when the payload names nobody.
const DefaultGuestName = "OTA Guest"

const eventIDHashPrefix = "sha256:"

// ParseBookingEvent normalizes a raw reservation webhook. It fails with a
// MalformedPayloadError when the body is not JSON or lacks the event type,
// the property or the reservation id.
func ParseBookingEvent(provider, connectionID string, raw []byte) (*entity.BookingEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil || payload == nil {
		return nil, domainErrors.NewMalformedPayloadError("", "body is not a JSON object")
	}

	data, _ := payload["data"].(map[string]interface{})
	if data == nil {
		data = map[string]interface{}{}
	}

	event := &entity.BookingEvent{
		Provider:          provider,
		ConnectionID:      connectionID,
		EventType:         DeriveEventType(payload),
		PropertyID:        firstString(payload, "property_id"),
		ExternalBookingID: firstString(data, "id", "reservation_id", "booking_id"),
		EventID:           firstString(payload, "id", "event_id", "webhook_id"),
		RevisionID:        firstString(data, "revision_id"),
		RoomTypeID:        firstString(data, "room_type_id"),
		RatePlanID:        firstString(data, "rate_plan_id"),
		Status:            firstString(data, "status"),
		OTAName:           firstString(data, "ota_name", "channel"),
		Currency:          strings.ToUpper(firstString(data, "currency")),
		Notes:             firstString(data, "notes"),
		CheckIn:           ParseDate(first(data, "arrival_date", "check_in")),
		CheckOut:          ParseDate(first(data, "departure_date", "check_out")),
		Guest:             parseGuest(data),
		Raw:               json.RawMessage(raw),
	}
	event.Kind = ClassifyEvent(event.EventType)

	if event.PropertyID == "" {
		event.PropertyID = firstString(data, "property_id")
	}
	if event.RoomTypeID == "" || event.RatePlanID == "" {
		if rooms, ok := data["rooms"].([]interface{}); ok && len(rooms) > 0 {
			if room, ok := rooms[0].(map[string]interface{}); ok {
				if event.RoomTypeID == "" {
					event.RoomTypeID = firstString(room, "room_type_id")
				}
				if event.RatePlanID == "" {
					event.RatePlanID = firstString(room, "rate_plan_id")
				}
			}
		}
	}
	if event.EventID == "" {
		event.EventID = eventIDHashPrefix + crypto.SHA256Hex(raw)
	}

	if price := first(data, "total_price", "amount"); price != nil {
		amount, err := decimal.NewFromString(toString(price))
		if err != nil {
			event.InvalidPrice = true
		} else {
			event.TotalPrice = &amount
		}
	}

	switch {
	case event.EventType == "":
		return nil, domainErrors.NewMalformedPayloadError("event", "is missing")
	case event.PropertyID == "":
		return nil, domainErrors.NewMalformedPayloadError("property_id", "is missing")
	case event.ExternalBookingID == "" && event.Kind != entity.BookingEventUnknown:
		return nil, domainErrors.NewMalformedPayloadError("data.id", "is missing")
	}

	return event, nil
}

// DeriveEventType accepts "event":"booking.new", "event_type":"booking.new"
// and the split form "event":"booking","event_type":"new".
func DeriveEventType(payload map[string]interface{}) string {
	ev := firstString(payload, "event")
	evType := firstString(payload, "event_type")

	switch {
	case strings.Contains(ev, "."):
		return ev
	case strings.Contains(evType, "."):
		return evType
	case ev != "" && evType != "":
		return ev + "." + evType
	case ev != "":
		return ev
	default:
		return evType
	}
}

// ClassifyEvent maps provider event names onto the three booking mutations.
func ClassifyEvent(eventType string) entity.BookingEventKind {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case "booking.new", "booking_created", "booking.created":
		return entity.BookingEventNew
	case "booking.modified", "booking_updated", "booking.modification", "booking.updated":
		return entity.BookingEventModified
	case "booking.cancelled", "booking_cancelled", "booking.cancellation", "booking.canceled":
		return entity.BookingEventCancelled
	default:
		return entity.BookingEventUnknown
	}
}

// ParseDate accepts YYYY-MM-DD or an ISO datetime and keeps the date part.
// Anything else yields nil.
func ParseDate(v interface{}) *time.Time {
	s := strings.TrimSpace(toString(v))
	if len(s) < 10 {
		return nil
	}
	if len(s) > 10 && s[10] != 'T' && s[10] != ' ' {
		return nil
	}
	t, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return nil
	}
	return &t
}

// MapBookingStatus maps provider statuses onto booking states. Unknown and
// empty values are treated as confirmed.
func MapBookingStatus(status string) model.BookingStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "cancelled", "canceled":
		return model.BookingStatusCancelled
	case "checked_in", "checkin":
		return model.BookingStatusCheckedIn
	case "checked_out", "checkout":
		return model.BookingStatusCheckedOut
	case "completed":
		return model.BookingStatusCompleted
	default:
		return model.BookingStatusConfirmed
	}
}

// MapChannel derives the booking channel from the OTA name.
func MapChannel(otaName string) string {
	name := strings.ToLower(strings.TrimSpace(otaName))
	switch {
	case name == "":
		return "channex"
	case strings.Contains(name, "airbnb"):
		return "airbnb"
	case strings.Contains(name, "booking"):
		return "booking.com"
	case strings.Contains(name, "expedia"):
		return "expedia"
	case strings.Contains(name, "agoda"):
		return "agoda"
	default:
		return "other_ota"
	}
}

// ExtractGuestName picks full_name, then name, then first and last name.
func ExtractGuestName(g entity.Guest) string {
	if name := strings.TrimSpace(g.FullName); name != "" {
		return name
	}
	if name := strings.TrimSpace(g.Name); name != "" {
		return name
	}
	if name := strings.TrimSpace(strings.TrimSpace(g.FirstName) + " " + strings.TrimSpace(g.LastName)); name != "" {
		return name
	}
	return DefaultGuestName
}

// CompareRevisions orders revision ids numerically when both are integers
// and lexicographically otherwise. It returns -1, 0 or 1.
func CompareRevisions(a, b string) int {
	x, okA := new(big.Int).SetString(strings.TrimSpace(a), 10)
	y, okB := new(big.Int).SetString(strings.TrimSpace(b), 10)
	if okA && okB {
		return x.Cmp(y)
	}
	return strings.Compare(a, b)
}

func parseGuest(data map[string]interface{}) entity.Guest {
	src, _ := data["guest"].(map[string]interface{})
	if len(src) == 0 {
		src, _ = data["customer"].(map[string]interface{})
	}
	if src == nil {
		return entity.Guest{}
	}

	guest := entity.Guest{
		FullName:  firstString(src, "full_name"),
		Name:      firstString(src, "name"),
		FirstName: firstString(src, "first_name"),
		LastName:  firstString(src, "last_name", "surname"),
		Email:     firstString(src, "email", "mail"),
		Phone:     firstString(src, "phone"),
	}
	return guest
}

func first(m map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil && toString(v) != "" {
			return v
		}
	}
	return nil
}

func firstString(m map[string]interface{}, keys ...string) string {
	return strings.TrimSpace(toString(first(m, keys...)))
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool, float64, int, int64:
		return fmt.Sprint(val)
	default:
		return ""
	}
}
