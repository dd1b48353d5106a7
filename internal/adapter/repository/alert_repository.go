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

type alertRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAlertRepository creates a new integration alert repository
func NewAlertRepository(db *gorm.DB, logger *zap.Logger) domainRepo.AlertRepository {
	return &alertRepository{
		db:     db,
		logger: logger,
	}
}

func (r *alertRepository) Create(ctx context.Context, alert *model.IntegrationAlert) error {
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		r.logger.Error("Failed to create alert",
			zap.String("alert_type", string(alert.AlertType)),
			zap.Error(err))
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (r *alertRepository) GetByID(ctx context.Context, id string) (*model.IntegrationAlert, error) {
	var alert model.IntegrationAlert
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &alert, nil
}

func (r *alertRepository) FindUnresolved(ctx context.Context, alertType model.AlertType, dedupeKey string) (*model.IntegrationAlert, error) {
	var alert model.IntegrationAlert
	err := r.db.WithContext(ctx).
		Where("alert_type = ? AND dedupe_key = ?", alertType, dedupeKey).
		Where("status <> ?", model.AlertStatusResolved).
		Order("created_at DESC").
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find unresolved alert: %w", err)
	}
	return &alert, nil
}

func (r *alertRepository) List(ctx context.Context, status model.AlertStatus, page entity.PaginationParams) ([]*model.IntegrationAlert, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.IntegrationAlert{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	var alerts []*model.IntegrationAlert
	err := q.Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&alerts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, total, nil
}

func (r *alertRepository) Acknowledge(ctx context.Context, id, actor string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.IntegrationAlert{}).
		Where("id = ? AND status = ?", id, model.AlertStatusOpen).
		Updates(map[string]interface{}{
			"status":          model.AlertStatusAcknowledged,
			"acknowledged_by": actor,
			"acknowledged_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	return nil
}

func (r *alertRepository) Resolve(ctx context.Context, id, actor string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.IntegrationAlert{}).
		Where("id = ? AND status <> ?", id, model.AlertStatusResolved).
		Updates(map[string]interface{}{
			"status":      model.AlertStatusResolved,
			"resolved_by": actor,
			"resolved_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}
	return nil
}
