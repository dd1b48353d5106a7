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

type connectionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewConnectionRepository creates a new channel connection repository
func NewConnectionRepository(db *gorm.DB, logger *zap.Logger) domainRepo.ConnectionRepository {
	return &connectionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *connectionRepository) Create(ctx context.Context, conn *model.ChannelConnection) error {
	if err := r.db.WithContext(ctx).Create(conn).Error; err != nil {
		r.logger.Error("Failed to create channel connection",
			zap.String("project_id", conn.ProjectID),
			zap.String("property_id", conn.PropertyID),
			zap.Error(err))
		return fmt.Errorf("failed to create channel connection: %w", err)
	}
	return nil
}

func (r *connectionRepository) GetByID(ctx context.Context, id string) (*model.ChannelConnection, error) {
	var conn model.ChannelConnection
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get channel connection: %w", err)
	}
	return &conn, nil
}

func (r *connectionRepository) ListActive(ctx context.Context) ([]*model.ChannelConnection, error) {
	var conns []*model.ChannelConnection
	err := r.db.WithContext(ctx).
		Where("status <> ?", model.ConnectionStatusInactive).
		Order("created_at ASC").
		Find(&conns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list channel connections: %w", err)
	}
	return conns, nil
}

func (r *connectionRepository) SoftDelete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.ChannelConnection{})
	if result.Error != nil {
		r.logger.Error("Failed to delete channel connection",
			zap.String("connection_id", id),
			zap.Error(result.Error))
		return fmt.Errorf("failed to delete channel connection: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *connectionRepository) RecordSuccess(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.ChannelConnection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.ConnectionStatusActive,
			"error_count":  0,
			"last_error":   nil,
			"last_sync_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to record connection success: %w", err)
	}
	return nil
}

func (r *connectionRepository) RecordFailure(ctx context.Context, id string, message string, threshold int) error {
	err := r.db.WithContext(ctx).
		Model(&model.ChannelConnection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"error_count": gorm.Expr("error_count + 1"),
			"last_error":  message,
			"status": gorm.Expr("CASE WHEN error_count + 1 >= ? THEN ? ELSE status END",
				threshold, model.ConnectionStatusError),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to record connection failure: %w", err)
	}
	return nil
}

func (r *connectionRepository) IncrementRequests(ctx context.Context, id string, day time.Time) error {
	day = model.Day(day)
	err := r.db.WithContext(ctx).
		Model(&model.ChannelConnection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"requests_today": gorm.Expr("CASE WHEN requests_day = ? THEN requests_today + 1 ELSE 1 END", day),
			"requests_day":   day,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to increment request counter: %w", err)
	}
	return nil
}
