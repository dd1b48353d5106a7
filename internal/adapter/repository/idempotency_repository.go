package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	domainRepo "github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type idempotencyRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewIdempotencyRepository creates a new inbound idempotency repository
func NewIdempotencyRepository(db *gorm.DB, logger *zap.Logger) domainRepo.IdempotencyRepository {
	return &idempotencyRepository{
		db:     db,
		logger: logger,
	}
}

// Insert relies on the unique (provider, external_event_id) key. A conflict
// inserts nothing and reports false.
func (r *idempotencyRepository) Insert(ctx context.Context, record *model.InboundIdempotencyRecord) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record)
	if result.Error != nil {
		r.logger.Error("Failed to insert idempotency record",
			zap.String("provider", record.Provider),
			zap.String("event_id", record.ExternalEventID),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to insert idempotency record: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *idempotencyRepository) Complete(ctx context.Context, id string, action entity.ReconcileAction, bookingID string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.InboundIdempotencyRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"result_action":       string(action),
			"internal_booking_id": model.StringPtr(bookingID),
			"processed_at":        at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to complete idempotency record: %w", err)
	}
	return nil
}

func (r *idempotencyRepository) Get(ctx context.Context, provider, externalEventID string) (*model.InboundIdempotencyRecord, error) {
	var record model.InboundIdempotencyRecord
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_event_id = ?", provider, externalEventID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	return &record, nil
}
