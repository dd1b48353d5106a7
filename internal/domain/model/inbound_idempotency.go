package model

import (
	"time"

	"gorm.io/gorm"
)

// InboundIdempotencyRecord marks an inbound event as owned by exactly one
// delivery. Rows are written once; only the result columns are updated.
type InboundIdempotencyRecord struct {
	ID                    string     `gorm:"type:uuid;primaryKey" json:"id"`
	Provider              string     `gorm:"size:50;not null;uniqueIndex:uq_inbound_idempotency_event" json:"provider"`
	ExternalEventID       string     `gorm:"size:255;not null;uniqueIndex:uq_inbound_idempotency_event" json:"external_event_id"`
	ExternalReservationID *string    `gorm:"size:100;index" json:"external_reservation_id,omitempty"`
	RevisionID            *string    `gorm:"size:100" json:"revision_id,omitempty"`
	ResultAction          *string    `gorm:"size:30" json:"result_action,omitempty"`
	InternalBookingID     *string    `gorm:"size:64" json:"internal_booking_id,omitempty"`
	ProcessedAt           *time.Time `json:"processed_at,omitempty"`
	CreatedAt             time.Time  `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (InboundIdempotencyRecord) TableName() string {
	return "inbound_idempotency"
}

func (r *InboundIdempotencyRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = newID()
	}
	return nil
}
