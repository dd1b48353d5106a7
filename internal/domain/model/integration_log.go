package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	LogTypeAPICall = "api_call"
	LogTypeError   = "error"
)

// IntegrationLog is one physical HTTP exchange with the channel manager.
type IntegrationLog struct {
	ID             string         `gorm:"type:uuid;primaryKey" json:"id"`
	ConnectionID   *string        `gorm:"type:uuid;index" json:"connection_id,omitempty"`
	OutboxID       *string        `gorm:"type:uuid;index" json:"outbox_id,omitempty"`
	LogType        string         `gorm:"size:20;not null" json:"log_type"`
	Direction      AuditDirection `gorm:"size:10;not null" json:"direction"`
	EventType      *string        `gorm:"size:50" json:"event_type,omitempty"`
	RequestMethod  *string        `gorm:"size:10" json:"request_method,omitempty"`
	RequestURL     *string        `gorm:"size:500" json:"request_url,omitempty"`
	RequestPayload JSONB          `gorm:"type:jsonb" json:"request_payload,omitempty"`
	ResponseStatus *int           `json:"response_status,omitempty"`
	ResponseBody   *string        `gorm:"type:text" json:"response_body,omitempty"`
	Success        bool           `gorm:"not null;default:false" json:"success"`
	ErrorMessage   *string        `gorm:"type:text" json:"error_message,omitempty"`
	DurationMS     int64          `gorm:"column:duration_ms;not null;default:0" json:"duration_ms"`
	RequestID      *string        `gorm:"size:64" json:"request_id,omitempty"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (IntegrationLog) TableName() string {
	return "integration_logs"
}

func (l *IntegrationLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = newID()
	}
	return nil
}
