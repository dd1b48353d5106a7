package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UnmatchedStatus is the quarantine lifecycle state.
type UnmatchedStatus string

const (
	UnmatchedStatusPending   UnmatchedStatus = "pending"
	UnmatchedStatusRetrying  UnmatchedStatus = "retrying"
	UnmatchedStatusResolved  UnmatchedStatus = "resolved"
	UnmatchedStatusDiscarded UnmatchedStatus = "discarded"
)

// Open reports whether the event may still be resolved.
func (s UnmatchedStatus) Open() bool {
	return s == UnmatchedStatusPending || s == UnmatchedStatusRetrying
}

// UnmatchedWebhookEvent holds an inbound event that could not be placed on an
// internal unit or booking.
type UnmatchedWebhookEvent struct {
	ID                    string          `gorm:"type:uuid;primaryKey" json:"id"`
	Provider              string          `gorm:"size:50;not null;default:'channex'" json:"provider"`
	ConnectionID          *string         `gorm:"type:uuid;index" json:"connection_id,omitempty"`
	EventType             string          `gorm:"size:50;not null" json:"event_type"`
	ExternalEventID       *string         `gorm:"size:255" json:"external_event_id,omitempty"`
	ExternalReservationID *string         `gorm:"size:100;index" json:"external_reservation_id,omitempty"`
	PropertyID            *string         `gorm:"size:100;index" json:"property_id,omitempty"`
	RoomTypeID            *string         `gorm:"size:100;index" json:"room_type_id,omitempty"`
	RatePlanID            *string         `gorm:"size:100" json:"rate_plan_id,omitempty"`
	RevisionID            *string         `gorm:"size:100" json:"revision_id,omitempty"`
	RawPayload            datatypes.JSON  `json:"raw_payload"`
	Reason                string          `gorm:"size:50;not null" json:"reason"`
	Status                UnmatchedStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	RetryCount            int             `gorm:"not null;default:0" json:"retry_count"`
	LastError             *string         `gorm:"type:text" json:"last_error,omitempty"`
	ResolvedBookingID     *string         `gorm:"size:64" json:"resolved_booking_id,omitempty"`
	ResolvedAt            *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy            *string         `gorm:"size:100" json:"resolved_by,omitempty"`
	CreatedAt             time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (UnmatchedWebhookEvent) TableName() string {
	return "unmatched_webhook_events"
}

func (e *UnmatchedWebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = newID()
	}
	return nil
}
