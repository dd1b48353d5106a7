package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// NightlyPrice is the price of one night for a unit.
type NightlyPrice struct {
	Date     time.Time       `json:"date"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
}

// DailyAvailability is the sellable count of a unit for one night.
type DailyAvailability struct {
	Date      time.Time `json:"date"`
	Available int       `json:"available"`
}
