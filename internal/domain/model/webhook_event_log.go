package model

import (
	"time"

	"gorm.io/gorm"
)

// WebhookEventStatus represents the processing state of a received webhook
type WebhookEventStatus string

const (
	WebhookEventReceived   WebhookEventStatus = "received"
	WebhookEventProcessing WebhookEventStatus = "processing"
	WebhookEventProcessed  WebhookEventStatus = "processed"
	WebhookEventFailed     WebhookEventStatus = "failed"
	WebhookEventRejected   WebhookEventStatus = "rejected"
	WebhookEventIgnored    WebhookEventStatus = "ignored"
)

const (
	EndpointBookings = "bookings"
	EndpointHealth   = "health"
)

// WebhookEventLog records every inbound webhook call before any business
// decision is made. Payload keeps the raw body so failed rows can be replayed.
type WebhookEventLog struct {
	ID              string             `gorm:"type:uuid;primaryKey" json:"id"`
	Provider        string             `gorm:"size:50;not null;default:'channex'" json:"provider"`
	EndpointType    string             `gorm:"size:20;not null;default:'bookings'" json:"endpoint_type"`
	ConnectionID    *string            `gorm:"type:uuid;index" json:"connection_id,omitempty"`
	PropertyID      *string            `gorm:"size:100" json:"property_id,omitempty"`
	EventID         *string            `gorm:"size:255;index" json:"event_id,omitempty"`
	EventType       *string            `gorm:"size:50" json:"event_type,omitempty"`
	ExternalID      *string            `gorm:"size:100;index" json:"external_id,omitempty"`
	RevisionID      *string            `gorm:"size:100" json:"revision_id,omitempty"`
	Payload         string             `gorm:"type:text" json:"payload"`
	PayloadHash     string             `gorm:"size:64;index" json:"payload_hash"`
	RequestHeaders  JSONB              `gorm:"type:jsonb" json:"request_headers,omitempty"`
	Status          WebhookEventStatus `gorm:"size:20;not null;default:'received';index:idx_webhook_event_logs_retry,priority:1" json:"status"`
	Attempts        int                `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts     int                `gorm:"not null;default:5" json:"max_attempts"`
	NextRetryAt     *time.Time         `gorm:"index:idx_webhook_event_logs_retry,priority:2" json:"next_retry_at,omitempty"`
	LockedBy        *string            `gorm:"size:100" json:"locked_by,omitempty"`
	LockedAt        *time.Time         `json:"locked_at,omitempty"`
	ResultAction    *string            `gorm:"size:30" json:"result_action,omitempty"`
	ResultBookingID *string            `gorm:"size:64" json:"result_booking_id,omitempty"`
	ErrorMessage    *string            `gorm:"type:text" json:"error_message,omitempty"`
	ReceivedAt      time.Time          `gorm:"not null;index" json:"received_at"`
	ProcessedAt     *time.Time         `json:"processed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (WebhookEventLog) TableName() string {
	return "webhook_event_logs"
}

func (w *WebhookEventLog) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = newID()
	}
	if w.ReceivedAt.IsZero() {
		w.ReceivedAt = time.Now().UTC()
	}
	if w.MaxAttempts == 0 {
		w.MaxAttempts = 5
	}
	return nil
}
