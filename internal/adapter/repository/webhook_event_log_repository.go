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
	"gorm.io/gorm/clause"
)

type webhookEventLogRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookEventLogRepository creates a new webhook event log repository
func NewWebhookEventLogRepository(db *gorm.DB, logger *zap.Logger) domainRepo.WebhookEventLogRepository {
	return &webhookEventLogRepository{
		db:     db,
		logger: logger,
	}
}

func (r *webhookEventLogRepository) Create(ctx context.Context, log *model.WebhookEventLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		r.logger.Error("Failed to save webhook event log",
			zap.String("status", string(log.Status)),
			zap.Error(err))
		return fmt.Errorf("failed to save webhook event log: %w", err)
	}
	return nil
}

func (r *webhookEventLogRepository) GetByID(ctx context.Context, id string) (*model.WebhookEventLog, error) {
	var log model.WebhookEventLog
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get webhook event log: %w", err)
	}
	return &log, nil
}

func (r *webhookEventLogRepository) Save(ctx context.Context, log *model.WebhookEventLog) error {
	if err := r.db.WithContext(ctx).Save(log).Error; err != nil {
		r.logger.Error("Failed to update webhook event log",
			zap.String("id", log.ID),
			zap.String("status", string(log.Status)),
			zap.Error(err))
		return fmt.Errorf("failed to update webhook event log: %w", err)
	}
	return nil
}

func (r *webhookEventLogRepository) ClaimForReplay(ctx context.Context, worker string, now, staleBefore time.Time, limit int) ([]*model.WebhookEventLog, error) {
	var claimed []*model.WebhookEventLog

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []*model.WebhookEventLog
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("endpoint_type = ?", model.EndpointBookings).
			Where("attempts < max_attempts").
			Where("(status = ? AND next_retry_at <= ?) OR (status IN ? AND COALESCE(locked_at, received_at) < ?)",
				model.WebhookEventFailed, now,
				[]model.WebhookEventStatus{model.WebhookEventReceived, model.WebhookEventProcessing}, staleBefore).
			Order("received_at ASC").
			Limit(limit).
			Find(&rows).Error
		if err != nil {
			return err
		}

		for _, row := range rows {
			err := tx.Model(&model.WebhookEventLog{}).
				Where("id = ?", row.ID).
				Updates(map[string]interface{}{
					"status":    model.WebhookEventProcessing,
					"locked_by": worker,
					"locked_at": now,
				}).Error
			if err != nil {
				return err
			}
			row.Status = model.WebhookEventProcessing
			row.LockedBy = &worker
			lockedAt := now
			row.LockedAt = &lockedAt
			claimed = append(claimed, row)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to claim webhook events for replay", zap.Error(err))
		return nil, fmt.Errorf("failed to claim webhook events: %w", err)
	}
	return claimed, nil
}
