package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	domainRepo "github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type bookingRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewBookingRepository creates the reference booking store
func NewBookingRepository(db *gorm.DB, logger *zap.Logger) domainRepo.BookingStore {
	return &bookingRepository{
		db:     db,
		logger: logger,
	}
}

func (r *bookingRepository) FindByExternalID(ctx context.Context, provider, externalID string) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find booking by external id: %w", err)
	}
	return &booking, nil
}

func (r *bookingRepository) Upsert(ctx context.Context, booking *model.Booking) error {
	var err error
	if booking.ID == "" {
		err = r.db.WithContext(ctx).Create(booking).Error
	} else {
		err = r.db.WithContext(ctx).Save(booking).Error
	}
	if err != nil {
		r.logger.Error("Failed to upsert booking",
			zap.String("unit_id", booking.UnitID),
			zap.String("external_id", model.Deref(booking.ExternalID)),
			zap.Error(err))
		return fmt.Errorf("failed to upsert booking: %w", err)
	}
	return nil
}

func (r *bookingRepository) Cancel(ctx context.Context, bookingID string) (*model.Booking, error) {
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ?", bookingID).
		Update("status", model.BookingStatusCancelled).Error
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	var booking model.Booking
	if err := r.db.WithContext(ctx).Where("id = ?", bookingID).First(&booking).Error; err != nil {
		return nil, fmt.Errorf("failed to reload cancelled booking: %w", err)
	}
	return &booking, nil
}

func (r *bookingRepository) HasOverlap(ctx context.Context, unitID string, checkIn, checkOut time.Time, excludeID string) (bool, error) {
	q := r.overlapping(ctx, unitID, checkIn, checkOut)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check booking overlap: %w", err)
	}
	return count > 0, nil
}

func (r *bookingRepository) ListActiveInRange(ctx context.Context, unitID string, from, to time.Time) ([]*model.Booking, error) {
	var bookings []*model.Booking
	err := r.overlapping(ctx, unitID, from, to).
		Order("check_in ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings in range: %w", err)
	}
	return bookings, nil
}

func (r *bookingRepository) overlapping(ctx context.Context, unitID string, from, to time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("unit_id = ? AND status <> ?", unitID, model.BookingStatusCancelled).
		Where("check_in < ? AND check_out > ?", model.Day(to), model.Day(from))
}
