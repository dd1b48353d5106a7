package model

import (
	"time"

	"gorm.io/gorm"
)

// ConnectionStatus is the health state of a channel connection.
type ConnectionStatus string

const (
	ConnectionStatusPending  ConnectionStatus = "pending"
	ConnectionStatusActive   ConnectionStatus = "active"
	ConnectionStatusInactive ConnectionStatus = "inactive"
	ConnectionStatusError    ConnectionStatus = "error"
)

// ChannelConnection is one remote property credential set for a project.
// Credentials are stored AES-GCM encrypted.
type ChannelConnection struct {
	ID                     string           `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID              string           `gorm:"size:64;not null;index" json:"project_id"`
	Provider               string           `gorm:"size:50;not null;default:'channex'" json:"provider"`
	APIKeyEncrypted        string           `gorm:"column:api_key_encrypted;not null" json:"-"`
	APIKeyIV               string           `gorm:"column:api_key_iv;size:64;not null" json:"-"`
	PropertyID             string           `gorm:"size:100;not null;index" json:"property_id"`
	GroupID                *string          `gorm:"size:100" json:"group_id,omitempty"`
	WebhookSecretEncrypted string           `gorm:"column:webhook_secret_encrypted" json:"-"`
	WebhookSecretIV        string           `gorm:"column:webhook_secret_iv;size:64" json:"-"`
	WebhookURL             *string          `gorm:"size:500" json:"webhook_url,omitempty"`
	Status                 ConnectionStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	LastSyncAt             *time.Time       `json:"last_sync_at,omitempty"`
	LastError              *string          `gorm:"type:text" json:"last_error,omitempty"`
	ErrorCount             int              `gorm:"not null;default:0" json:"error_count"`
	RequestsToday          int              `gorm:"not null;default:0" json:"requests_today"`
	RequestsDay            *time.Time       `gorm:"type:date" json:"requests_day,omitempty"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
	DeletedAt              gorm.DeletedAt   `gorm:"index" json:"-"`
}

// TableName specifies the table name for GORM
func (ChannelConnection) TableName() string {
	return "channel_connections"
}

func (c *ChannelConnection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = newID()
	}
	return nil
}

// Dispatchable reports whether outbound work may be sent for the connection.
func (c *ChannelConnection) Dispatchable() bool {
	return c.Status != ConnectionStatusInactive && !c.DeletedAt.Valid
}
