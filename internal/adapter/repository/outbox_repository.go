package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	domainRepo "github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type outboxRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewOutboxRepository creates a new integration outbox repository
func NewOutboxRepository(db *gorm.DB, logger *zap.Logger) domainRepo.OutboxRepository {
	return &outboxRepository{
		db:     db,
		logger: logger,
	}
}

func (r *outboxRepository) Enqueue(ctx context.Context, item *model.IntegrationOutboxItem) (*model.IntegrationOutboxItem, bool, error) {
	if item.IdempotencyKey == nil {
		if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
			return nil, false, fmt.Errorf("failed to enqueue outbox item: %w", err)
		}
		return item, true, nil
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(item)
	if result.Error != nil {
		r.logger.Error("Failed to enqueue outbox item",
			zap.String("idempotency_key", *item.IdempotencyKey),
			zap.String("event_type", string(item.EventType)),
			zap.Error(result.Error))
		return nil, false, fmt.Errorf("failed to enqueue outbox item: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return item, true, nil
	}

	var existing model.IntegrationOutboxItem
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", *item.IdempotencyKey).
		First(&existing).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing outbox item: %w", err)
	}
	return &existing, false, nil
}

func (r *outboxRepository) GetByID(ctx context.Context, id string) (*model.IntegrationOutboxItem, error) {
	var item model.IntegrationOutboxItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get outbox item: %w", err)
	}
	return &item, nil
}

func (r *outboxRepository) FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.IntegrationOutboxItem, error) {
	var items []*model.IntegrationOutboxItem
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", model.OutboxStatusPending, now).
		Order("next_attempt_at ASC, created_at ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due outbox items: %w", err)
	}
	return items, nil
}

func (r *outboxRepository) Claim(ctx context.Context, id, lockedBy string, at time.Time) (bool, error) {
	return r.transition(ctx, id, model.OutboxStatusPending, map[string]interface{}{
		"status":    model.OutboxStatusSending,
		"locked_by": lockedBy,
		"locked_at": at,
	})
}

func (r *outboxRepository) Widen(ctx context.Context, id string, from, to time.Time) (bool, error) {
	return r.transition(ctx, id, model.OutboxStatusPending, map[string]interface{}{
		"date_from": from,
		"date_to":   to,
	})
}

func (r *outboxRepository) MarkMerged(ctx context.Context, id, intoID string, at time.Time) (bool, error) {
	return r.transition(ctx, id, model.OutboxStatusPending, map[string]interface{}{
		"status":       model.OutboxStatusCompleted,
		"last_error":   "merged into " + intoID,
		"completed_at": at,
	})
}

func (r *outboxRepository) Complete(ctx context.Context, id, lockedBy string, response model.JSONB, at time.Time) error {
	return r.mustTransition(ctx, id, lockedBy, map[string]interface{}{
		"status":        model.OutboxStatusCompleted,
		"response_data": response,
		"completed_at":  at,
		"last_error":    nil,
		"locked_by":     nil,
		"locked_at":     nil,
	})
}

func (r *outboxRepository) Release(ctx context.Context, id, lockedBy string) error {
	return r.mustTransition(ctx, id, lockedBy, map[string]interface{}{
		"status":    model.OutboxStatusPending,
		"locked_by": nil,
		"locked_at": nil,
	})
}

func (r *outboxRepository) Reschedule(ctx context.Context, id, lockedBy string, attempts int, next time.Time, lastErr string) error {
	return r.mustTransition(ctx, id, lockedBy, map[string]interface{}{
		"status":          model.OutboxStatusPending,
		"attempts":        attempts,
		"next_attempt_at": next,
		"last_error":      lastErr,
		"locked_by":       nil,
		"locked_at":       nil,
	})
}

func (r *outboxRepository) Fail(ctx context.Context, id, lockedBy string, attempts int, lastErr string) error {
	return r.mustTransition(ctx, id, lockedBy, map[string]interface{}{
		"status":     model.OutboxStatusFailed,
		"attempts":   attempts,
		"last_error": lastErr,
		"locked_by":  nil,
		"locked_at":  nil,
	})
}

func (r *outboxRepository) ReleaseStale(ctx context.Context, lockedBefore time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.IntegrationOutboxItem{}).
		Where("status = ? AND locked_at < ?", model.OutboxStatusSending, lockedBefore).
		Updates(map[string]interface{}{
			"status":    model.OutboxStatusPending,
			"locked_by": nil,
			"locked_at": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to release stale outbox claims: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *outboxRepository) ListFailed(ctx context.Context, page entity.PaginationParams) ([]*model.IntegrationOutboxItem, int64, error) {
	q := r.db.WithContext(ctx).
		Model(&model.IntegrationOutboxItem{}).
		Where("status = ?", model.OutboxStatusFailed)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count failed outbox items: %w", err)
	}

	var items []*model.IntegrationOutboxItem
	err := q.Order("updated_at DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list failed outbox items: %w", err)
	}
	return items, total, nil
}

func (r *outboxRepository) Retry(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.transition(ctx, id, model.OutboxStatusFailed, retryValues(at))
}

func (r *outboxRepository) RetryAllFailed(ctx context.Context, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.IntegrationOutboxItem{}).
		Where("status = ?", model.OutboxStatusFailed).
		Updates(retryValues(at))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to retry failed outbox items: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func retryValues(at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"status":          model.OutboxStatusPending,
		"attempts":        0,
		"next_attempt_at": at,
		"last_error":      nil,
	}
}

// transition applies values only while the row is still in status from.
func (r *outboxRepository) transition(ctx context.Context, id string, from model.OutboxStatus, values map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.IntegrationOutboxItem{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		r.logger.Error("Failed to update outbox item",
			zap.String("id", id),
			zap.String("from", string(from)),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to update outbox item: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// mustTransition updates a row claimed under lockedBy and reports
// ErrClaimLost when the claim was taken away, for example by the stale
// sweeper handing the row to another worker.
func (r *outboxRepository) mustTransition(ctx context.Context, id, lockedBy string, values map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.IntegrationOutboxItem{}).
		Where("id = ? AND status = ? AND locked_by = ?", id, model.OutboxStatusSending, lockedBy).
		Updates(values)
	if result.Error != nil {
		r.logger.Error("Failed to update claimed outbox item",
			zap.String("id", id),
			zap.String("locked_by", lockedBy),
			zap.Error(result.Error))
		return fmt.Errorf("failed to update outbox item: %w", result.Error)
	}
	if result.RowsAffected != 1 {
		return domainErrors.ErrClaimLost
	}
	return nil
}
