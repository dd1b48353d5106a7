package usecase

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
)

var hundred = decimal.NewFromInt(100)

// PricingCalendar computes nightly prices from the unit's price table.
type PricingCalendar struct {
	policies repository.PricingPolicyRepository
}

// NewPricingCalendar creates a new pricing calendar
func NewPricingCalendar(policies repository.PricingPolicyRepository) *PricingCalendar {
	return &PricingCalendar{policies: policies}
}

// NightlyPrices returns one price per night in [from, to).
func (c *PricingCalendar) NightlyPrices(ctx context.Context, unitID string, from, to time.Time) ([]entity.NightlyPrice, error) {
	policy, err := c.policies.Get(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, domainErrors.ErrPricingPolicyNotFound
	}

	weekend := parseWeekendDays(policy.WeekendDays)
	weekendPrice := policy.BasePrice.Mul(decimal.NewFromInt(1).Add(policy.WeekendMarkup.Div(hundred))).Round(2)

	var prices []entity.NightlyPrice
	for day := model.Day(from); day.Before(model.Day(to)); day = day.AddDate(0, 0, 1) {
		price := policy.BasePrice
		if weekend[day.Weekday()] {
			price = weekendPrice
		}
		prices = append(prices, entity.NightlyPrice{Date: day, Price: price, Currency: policy.Currency})
	}
	return prices, nil
}

func parseWeekendDays(s string) map[time.Weekday]bool {
	days := make(map[time.Weekday]bool)
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 6 {
			continue
		}
		days[time.Weekday(n)] = true
	}
	return days
}

// AvailabilityCalendar derives per-night availability from the booking
// store. Units are single-inventory: 1 when free, 0 when occupied.
type AvailabilityCalendar struct {
	bookings repository.BookingStore
}

// NewAvailabilityCalendar creates a new availability calendar
func NewAvailabilityCalendar(bookings repository.BookingStore) *AvailabilityCalendar {
	return &AvailabilityCalendar{bookings: bookings}
}

// Daily returns availability for every night in [from, to).
func (c *AvailabilityCalendar) Daily(ctx context.Context, unitID string, from, to time.Time) ([]entity.DailyAvailability, error) {
	bookings, err := c.bookings.ListActiveInRange(ctx, unitID, model.Day(from), model.Day(to))
	if err != nil {
		return nil, err
	}

	var days []entity.DailyAvailability
	for day := model.Day(from); day.Before(model.Day(to)); day = day.AddDate(0, 0, 1) {
		available := 1
		for _, b := range bookings {
			if b.Occupies(day) {
				available = 0
				break
			}
		}
		days = append(days, entity.DailyAvailability{Date: day, Available: available})
	}
	return days, nil
}
