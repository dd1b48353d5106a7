package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RevisionEventType classifies the mutation a revision carries.
type RevisionEventType string

const (
	RevisionEventNew          RevisionEventType = "new"
	RevisionEventModification RevisionEventType = "modification"
	RevisionEventCancellation RevisionEventType = "cancellation"
)

// BookingRevision is the append-only history of one external reservation.
// Exactly one revision per external booking is applied at a time.
type BookingRevision struct {
	ID                string            `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID         *string           `gorm:"size:64;index" json:"booking_id,omitempty"`
	ExternalBookingID string            `gorm:"size:100;not null;uniqueIndex:uq_booking_revisions_external_revision;index:idx_booking_revisions_applied,priority:1" json:"external_booking_id"`
	RevisionID        string            `gorm:"size:100;not null;uniqueIndex:uq_booking_revisions_external_revision" json:"revision_id"`
	EventType         RevisionEventType `gorm:"size:20;not null" json:"event_type"`
	Status            string            `gorm:"size:20" json:"status"`
	Payload           datatypes.JSON    `json:"payload"`
	Applied           bool              `gorm:"not null;default:false;index:idx_booking_revisions_applied,priority:2" json:"applied"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (BookingRevision) TableName() string {
	return "booking_revisions"
}

func (r *BookingRevision) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = newID()
	}
	return nil
}
