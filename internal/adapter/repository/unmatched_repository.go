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
)

type unmatchedRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewUnmatchedRepository creates a new quarantine repository
func NewUnmatchedRepository(db *gorm.DB, logger *zap.Logger) domainRepo.UnmatchedRepository {
	return &unmatchedRepository{
		db:     db,
		logger: logger,
	}
}

func (r *unmatchedRepository) Create(ctx context.Context, event *model.UnmatchedWebhookEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		r.logger.Error("Failed to quarantine webhook event",
			zap.String("event_type", event.EventType),
			zap.String("reason", event.Reason),
			zap.Error(err))
		return fmt.Errorf("failed to create unmatched event: %w", err)
	}
	return nil
}

func (r *unmatchedRepository) GetByID(ctx context.Context, id string) (*model.UnmatchedWebhookEvent, error) {
	var event model.UnmatchedWebhookEvent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get unmatched event: %w", err)
	}
	return &event, nil
}

func (r *unmatchedRepository) List(ctx context.Context, status model.UnmatchedStatus, page entity.PaginationParams) ([]*model.UnmatchedWebhookEvent, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.UnmatchedWebhookEvent{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count unmatched events: %w", err)
	}

	var events []*model.UnmatchedWebhookEvent
	err := q.Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&events).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list unmatched events: %w", err)
	}
	return events, total, nil
}

func (r *unmatchedRepository) ListOpen(ctx context.Context, connectionID string, limit int) ([]*model.UnmatchedWebhookEvent, error) {
	q := r.db.WithContext(ctx).
		Where("status IN ?", []model.UnmatchedStatus{model.UnmatchedStatusPending, model.UnmatchedStatusRetrying})
	if connectionID != "" {
		q = q.Where("connection_id = ?", connectionID)
	}

	var events []*model.UnmatchedWebhookEvent
	if err := q.Order("created_at ASC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list open unmatched events: %w", err)
	}
	return events, nil
}

func (r *unmatchedRepository) ListWaiting(ctx context.Context, provider, externalReservationID, reason string) ([]*model.UnmatchedWebhookEvent, error) {
	var events []*model.UnmatchedWebhookEvent
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_reservation_id = ? AND reason = ?", provider, externalReservationID, reason).
		Where("status IN ?", []model.UnmatchedStatus{model.UnmatchedStatusPending, model.UnmatchedStatusRetrying}).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list waiting unmatched events: %w", err)
	}
	return events, nil
}

func (r *unmatchedRepository) MarkResolved(ctx context.Context, id, bookingID, actor string, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":              model.UnmatchedStatusResolved,
		"resolved_booking_id": model.StringPtr(bookingID),
		"resolved_by":         actor,
		"resolved_at":         at,
		"last_error":          nil,
	})
}

func (r *unmatchedRepository) MarkRetrying(ctx context.Context, id, reason, message string) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":      model.UnmatchedStatusRetrying,
		"reason":      reason,
		"last_error":  message,
		"retry_count": gorm.Expr("retry_count + 1"),
	})
}

func (r *unmatchedRepository) MarkDiscarded(ctx context.Context, id, actor string, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":      model.UnmatchedStatusDiscarded,
		"resolved_by": actor,
		"resolved_at": at,
	})
}

func (r *unmatchedRepository) update(ctx context.Context, id string, values map[string]interface{}) error {
	err := r.db.WithContext(ctx).
		Model(&model.UnmatchedWebhookEvent{}).
		Where("id = ?", id).
		Updates(values).Error
	if err != nil {
		r.logger.Error("Failed to update unmatched event",
			zap.String("id", id),
			zap.Error(err))
		return fmt.Errorf("failed to update unmatched event: %w", err)
	}
	return nil
}
