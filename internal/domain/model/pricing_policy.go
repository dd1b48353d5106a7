package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingPolicy is the per-unit nightly price table consumed by the
// reference pricing calendar.
type PricingPolicy struct {
	UnitID        string          `gorm:"size:64;primaryKey" json:"unit_id"`
	BasePrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_price"`
	WeekendMarkup decimal.Decimal `gorm:"column:weekend_markup_percent;type:decimal(5,2);not null;default:0" json:"weekend_markup_percent"`
	// WeekendDays lists time.Weekday values, comma separated. Friday and
	// Saturday by default.
	WeekendDays string    `gorm:"size:20;not null;default:'5,6'" json:"weekend_days"`
	Currency    string    `gorm:"size:3;not null;default:'SAR'" json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (PricingPolicy) TableName() string {
	return "pricing_policies"
}
