package model

import (
	"time"

	"gorm.io/gorm"
)

const MappingTypeUnitToRoom = "unit_to_room"

// ExternalMapping links an internal unit to a remote room type and rate plan.
// At most one active mapping exists per (connection, unit).
type ExternalMapping struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	ConnectionID    string     `gorm:"type:uuid;not null;uniqueIndex:uq_external_mappings_active_unit,where:is_active = true;index" json:"connection_id"`
	UnitID          string     `gorm:"size:64;not null;uniqueIndex:uq_external_mappings_active_unit,where:is_active = true;index" json:"unit_id"`
	RoomTypeID      string     `gorm:"size:100;not null;index" json:"room_type_id"`
	RatePlanID      *string    `gorm:"size:100;index" json:"rate_plan_id,omitempty"`
	MappingType     string     `gorm:"size:30;not null;default:'unit_to_room'" json:"mapping_type"`
	IsActive        bool       `gorm:"not null;default:true" json:"is_active"`
	LastPriceSyncAt *time.Time `json:"last_price_sync_at,omitempty"`
	LastAvailSyncAt *time.Time `json:"last_avail_sync_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ExternalMapping) TableName() string {
	return "external_mappings"
}

func (m *ExternalMapping) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = newID()
	}
	return nil
}
