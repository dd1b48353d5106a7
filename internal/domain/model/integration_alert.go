package model

import (
	"time"

	"gorm.io/gorm"
)

type AlertType string

const (
	AlertUnmappedRoom  AlertType = "unmapped_room"
	AlertUnmappedRate  AlertType = "unmapped_rate"
	AlertSyncError     AlertType = "sync_error"
	AlertRateError     AlertType = "rate_error"
	AlertNonAcked      AlertType = "non_acked"
	AlertWebhookFailed AlertType = "webhook_failed"
	AlertChannelError  AlertType = "channel_error"
)

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

type AlertStatus string

const (
	AlertStatusOpen         AlertStatus = "open"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// IntegrationAlert is an operator-facing problem report. Alerts sharing a
// DedupeKey are raised once until resolved.
type IntegrationAlert struct {
	ID             string        `gorm:"type:uuid;primaryKey" json:"id"`
	ConnectionID   *string       `gorm:"type:uuid;index" json:"connection_id,omitempty"`
	PropertyID     *string       `gorm:"size:100" json:"property_id,omitempty"`
	AlertType      AlertType     `gorm:"size:30;not null;index" json:"alert_type"`
	Severity       AlertSeverity `gorm:"size:10;not null;default:'medium'" json:"severity"`
	Status         AlertStatus   `gorm:"size:20;not null;default:'open';index" json:"status"`
	Message        string        `gorm:"type:text;not null" json:"message"`
	Payload        JSONB         `gorm:"type:jsonb" json:"payload,omitempty"`
	DedupeKey      *string       `gorm:"size:255;index" json:"dedupe_key,omitempty"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty"`
	AcknowledgedBy *string       `gorm:"size:100" json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy     *string       `gorm:"size:100" json:"resolved_by,omitempty"`
	CreatedAt      time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (IntegrationAlert) TableName() string {
	return "integration_alerts"
}

func (a *IntegrationAlert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = newID()
	}
	if a.Status == "" {
		a.Status = AlertStatusOpen
	}
	return nil
}
