package usecase

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/2Raz/mnam-backend-sub001/internal/config"
	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
)

// BookingWindow is the part of an inbound reservation that is validated
// before it may touch the booking store.
type BookingWindow struct {
	CheckIn      *time.Time
	CheckOut     *time.Time
	TotalPrice   *decimal.Decimal
	InvalidPrice bool
	// AllowPast skips the "already over" check, for changes to stays that
	// have started.
	AllowPast bool
}

// BookingValidator enforces the acceptance window for inbound bookings.
type BookingValidator struct {
	cfg config.BookingConfig
}

// NewBookingValidator creates a validator with the given limits
func NewBookingValidator(cfg config.BookingConfig) *BookingValidator {
	return &BookingValidator{cfg: cfg}
}

// Validate returns an UnmappedEntityError naming the first violated rule.
func (v *BookingValidator) Validate(w BookingWindow, today time.Time) *domainErrors.UnmappedEntityError {
	if w.CheckIn == nil || w.CheckOut == nil {
		return domainErrors.NewUnmappedEntityError(domainErrors.ReasonMissingDates, "check-in and check-out dates are required")
	}

	checkIn, checkOut, today := model.Day(*w.CheckIn), model.Day(*w.CheckOut), model.Day(today)
	if !checkOut.After(checkIn) {
		return domainErrors.NewUnmappedEntityError(domainErrors.ReasonInvalidDateRange,
			fmt.Sprintf("check-out %s is not after check-in %s", checkOut.Format(time.DateOnly), checkIn.Format(time.DateOnly)))
	}
	if !w.AllowPast && checkOut.Before(today) {
		return domainErrors.NewUnmappedEntityError(domainErrors.ReasonDatesInPast,
			fmt.Sprintf("stay ended on %s", checkOut.Format(time.DateOnly)))
	}
	if checkIn.After(today.AddDate(0, 0, v.cfg.MaxAdvanceDays)) {
		return domainErrors.NewUnmappedEntityError(domainErrors.ReasonDatesTooFar,
			fmt.Sprintf("check-in is more than %d days ahead", v.cfg.MaxAdvanceDays))
	}

	nights := int(checkOut.Sub(checkIn).Hours() / 24)
	if nights < 1 {
		return domainErrors.NewUnmappedEntityError(domainErrors.ReasonDurationTooShort, "stay must be at least one night")
	}
	if nights > v.cfg.MaxStayNights {
		return domainErrors.NewUnmappedEntityError(domainErrors.ReasonDurationTooLong,
			fmt.Sprintf("stay of %d nights exceeds %d", nights, v.cfg.MaxStayNights))
	}

	if w.InvalidPrice {
		return domainErrors.NewUnmappedEntityError(domainErrors.ReasonInvalidPrice, "total price is not a number")
	}
	if w.TotalPrice != nil {
		if w.TotalPrice.IsNegative() {
			return domainErrors.NewUnmappedEntityError(domainErrors.ReasonInvalidPrice, "total price is negative")
		}
		perNight := w.TotalPrice.Div(decimal.NewFromInt(int64(nights)))
		if perNight.GreaterThan(v.cfg.MaxNightlyPrice) {
			return domainErrors.NewUnmappedEntityError(domainErrors.ReasonInvalidPrice,
				fmt.Sprintf("nightly price %s exceeds %s", perNight.StringFixed(2), v.cfg.MaxNightlyPrice.String()))
		}
	}

	return nil
}
