package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusCheckedIn  BookingStatus = "checked-in"
	BookingStatusCheckedOut BookingStatus = "checked-out"
	BookingStatusCompleted  BookingStatus = "completed"
)

// Booking is the reference row of the internal booking store.
type Booking struct {
	ID                string          `gorm:"type:uuid;primaryKey" json:"id"`
	UnitID            string          `gorm:"size:64;not null;index:idx_bookings_unit_dates,priority:1" json:"unit_id"`
	Provider          string          `gorm:"size:50;not null;default:'direct';uniqueIndex:uq_bookings_provider_external" json:"provider"`
	ExternalID        *string         `gorm:"size:100;uniqueIndex:uq_bookings_provider_external" json:"external_id,omitempty"`
	Channel           string          `gorm:"size:30;not null;default:'direct'" json:"channel"`
	Status            BookingStatus   `gorm:"size:20;not null;default:'confirmed';index" json:"status"`
	GuestName         string          `gorm:"size:200;not null" json:"guest_name"`
	GuestEmail        *string         `gorm:"size:200" json:"guest_email,omitempty"`
	GuestPhone        *string         `gorm:"size:50" json:"guest_phone,omitempty"`
	CheckIn           time.Time       `gorm:"type:date;not null;index:idx_bookings_unit_dates,priority:2" json:"check_in"`
	CheckOut          time.Time       `gorm:"type:date;not null;index:idx_bookings_unit_dates,priority:3" json:"check_out"`
	TotalPrice        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_price"`
	Currency          string          `gorm:"size:3;not null;default:'SAR'" json:"currency"`
	Notes             *string         `gorm:"type:text" json:"notes,omitempty"`
	CurrentRevisionID *string         `gorm:"size:100" json:"current_revision_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = newID()
	}
	return nil
}

// Nights is the length of stay.
func (b *Booking) Nights() int {
	return int(Day(b.CheckOut).Sub(Day(b.CheckIn)).Hours() / 24)
}

// Occupies reports whether the booking blocks the given night.
func (b *Booking) Occupies(night time.Time) bool {
	n := Day(night)
	return b.Status != BookingStatusCancelled && !n.Before(Day(b.CheckIn)) && n.Before(Day(b.CheckOut))
}
