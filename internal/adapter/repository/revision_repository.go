package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	domainRepo "github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type revisionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRevisionRepository creates a new booking revision repository
func NewRevisionRepository(db *gorm.DB, logger *zap.Logger) domainRepo.RevisionRepository {
	return &revisionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *revisionRepository) GetApplied(ctx context.Context, externalBookingID string) (*model.BookingRevision, error) {
	var rev model.BookingRevision
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_booking_id = ? AND applied = ?", externalBookingID, true).
		Order("created_at DESC").
		First(&rev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get applied revision: %w", err)
	}
	return &rev, nil
}

func (r *revisionRepository) InsertApplied(ctx context.Context, rev *model.BookingRevision) error {
	rev.Applied = true
	// A replayed revision that was stored as history becomes the applied one.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_booking_id"}, {Name: "revision_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"applied", "booking_id", "status", "payload", "updated_at"}),
		}).
		Create(rev).Error
	if err != nil {
		r.logger.Error("Failed to insert applied revision",
			zap.String("external_booking_id", rev.ExternalBookingID),
			zap.String("revision_id", rev.RevisionID),
			zap.Error(err))
		return fmt.Errorf("failed to insert applied revision: %w", err)
	}
	return nil
}

func (r *revisionRepository) InsertHistory(ctx context.Context, rev *model.BookingRevision) (bool, error) {
	rev.Applied = false
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rev)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert revision history: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *revisionRepository) Demote(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).
		Model(&model.BookingRevision{}).
		Where("id = ?", id).
		Update("applied", false).Error
	if err != nil {
		return fmt.Errorf("failed to demote revision: %w", err)
	}
	return nil
}

func (r *revisionRepository) ListByExternalID(ctx context.Context, externalBookingID string) ([]*model.BookingRevision, error) {
	var revs []*model.BookingRevision
	err := r.db.WithContext(ctx).
		Where("external_booking_id = ?", externalBookingID).
		Order("created_at ASC").
		Find(&revs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	return revs, nil
}
