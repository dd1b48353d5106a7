package model

import (
	"time"

	"gorm.io/gorm"
)

// OutboxEventType is the kind of outbound sync task.
type OutboxEventType string

const (
	OutboxEventPriceUpdate OutboxEventType = "price_update"
	OutboxEventAvailUpdate OutboxEventType = "avail_update"
	OutboxEventFullSync    OutboxEventType = "full_sync"
)

// OutboxStatus is the dispatch state of an outbox row.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusSending   OutboxStatus = "sending"
	OutboxStatusCompleted OutboxStatus = "completed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

const DefaultOutboxMaxAttempts = 5

// IntegrationOutboxItem is one durable outbound task.
type IntegrationOutboxItem struct {
	ID             string          `gorm:"type:uuid;primaryKey" json:"id"`
	ConnectionID   string          `gorm:"type:uuid;not null;index" json:"connection_id"`
	EventType      OutboxEventType `gorm:"size:30;not null" json:"event_type"`
	UnitID         string          `gorm:"size:64;index" json:"unit_id"`
	DateFrom       *time.Time      `gorm:"type:date" json:"date_from,omitempty"`
	DateTo         *time.Time      `gorm:"type:date" json:"date_to,omitempty"`
	Payload        JSONB           `gorm:"type:jsonb" json:"payload,omitempty"`
	Status         OutboxStatus    `gorm:"size:20;not null;default:'pending';index:idx_outbox_status_next_attempt,priority:1" json:"status"`
	Attempts       int             `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts    int             `gorm:"not null;default:5" json:"max_attempts"`
	NextAttemptAt  time.Time       `gorm:"not null;index:idx_outbox_status_next_attempt,priority:2" json:"next_attempt_at"`
	LockedBy       *string         `gorm:"size:100" json:"locked_by,omitempty"`
	LockedAt       *time.Time      `json:"locked_at,omitempty"`
	LastError      *string         `gorm:"type:text" json:"last_error,omitempty"`
	ResponseData   JSONB           `gorm:"type:jsonb" json:"response_data,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	IdempotencyKey *string         `gorm:"size:255;uniqueIndex" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (IntegrationOutboxItem) TableName() string {
	return "integration_outbox"
}

func (o *IntegrationOutboxItem) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = newID()
	}
	if o.Status == "" {
		o.Status = OutboxStatusPending
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = DefaultOutboxMaxAttempts
	}
	if o.NextAttemptAt.IsZero() {
		o.NextAttemptAt = time.Now().UTC()
	}
	return nil
}

// CoalesceKey groups rows that would push the same data.
func (o *IntegrationOutboxItem) CoalesceKey() string {
	return o.ConnectionID + "|" + o.UnitID + "|" + string(o.EventType)
}

// Window returns the date range, falling back to [from, from+days).
func (o *IntegrationOutboxItem) Window(from time.Time, days int) (time.Time, time.Time) {
	start := Day(from)
	if o.DateFrom != nil {
		start = Day(*o.DateFrom)
	}
	end := start.AddDate(0, 0, days)
	if o.DateTo != nil {
		end = Day(*o.DateTo)
	}
	return start, end
}
