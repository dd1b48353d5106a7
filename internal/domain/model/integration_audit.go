package model

import (
	"time"

	"gorm.io/gorm"
)

type AuditDirection string

const (
	DirectionInbound  AuditDirection = "inbound"
	DirectionOutbound AuditDirection = "outbound"
)

type AuditStatus string

const (
	AuditStatusSuccess  AuditStatus = "success"
	AuditStatusFailed   AuditStatus = "failed"
	AuditStatusRetrying AuditStatus = "retrying"
	AuditStatusSkipped  AuditStatus = "skipped"
)

// IntegrationAuditRecord is one logical sync operation. Append-only.
type IntegrationAuditRecord struct {
	ID               string         `gorm:"type:uuid;primaryKey" json:"id"`
	ConnectionID     *string        `gorm:"type:uuid;index" json:"connection_id,omitempty"`
	Direction        AuditDirection `gorm:"size:10;not null" json:"direction"`
	EntityType       string         `gorm:"size:30;not null;index" json:"entity_type"`
	ExternalID       *string        `gorm:"size:100" json:"external_id,omitempty"`
	UnitID           *string        `gorm:"size:64;index" json:"unit_id,omitempty"`
	PayloadHash      *string        `gorm:"size:64" json:"payload_hash,omitempty"`
	PayloadSizeBytes int            `gorm:"not null;default:0" json:"payload_size_bytes"`
	DateFrom         *time.Time     `gorm:"type:date" json:"date_from,omitempty"`
	DateTo           *time.Time     `gorm:"type:date" json:"date_to,omitempty"`
	RecordsCount     int            `gorm:"not null;default:0" json:"records_count"`
	Status           AuditStatus    `gorm:"size:20;not null;index" json:"status"`
	ErrorMessage     *string        `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount       int            `gorm:"not null;default:0" json:"retry_count"`
	DurationMS       int64          `gorm:"column:duration_ms;not null;default:0" json:"duration_ms"`
	RequestID        *string        `gorm:"size:64" json:"request_id,omitempty"`
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (IntegrationAuditRecord) TableName() string {
	return "integration_audit"
}

func (r *IntegrationAuditRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = newID()
	}
	return nil
}
