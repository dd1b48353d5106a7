package repository

import (
	"context"
	"time"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
)

// BookingStore is the boundary to the internal booking store
type BookingStore interface {
	FindByExternalID(ctx context.Context, provider, externalID string) (*model.Booking, error)
	// Upsert creates the booking when ID is empty, otherwise updates it
	Upsert(ctx context.Context, booking *model.Booking) error
	Cancel(ctx context.Context, bookingID string) (*model.Booking, error)
	// HasOverlap reports a non-cancelled booking of the unit overlapping
	// [checkIn, checkOut), ignoring excludeID
	HasOverlap(ctx context.Context, unitID string, checkIn, checkOut time.Time, excludeID string) (bool, error)
	ListActiveInRange(ctx context.Context, unitID string, from, to time.Time) ([]*model.Booking, error)
}

// PricingPolicyRepository reads unit price tables
type PricingPolicyRepository interface {
	Get(ctx context.Context, unitID string) (*model.PricingPolicy, error)
	Save(ctx context.Context, policy *model.PricingPolicy) error
}
