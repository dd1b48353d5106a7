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

type mappingRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewMappingRepository creates a new external mapping repository
func NewMappingRepository(db *gorm.DB, logger *zap.Logger) domainRepo.MappingRepository {
	return &mappingRepository{
		db:     db,
		logger: logger,
	}
}

func (r *mappingRepository) Create(ctx context.Context, mapping *model.ExternalMapping) error {
	if err := r.db.WithContext(ctx).Create(mapping).Error; err != nil {
		r.logger.Error("Failed to create external mapping",
			zap.String("connection_id", mapping.ConnectionID),
			zap.String("unit_id", mapping.UnitID),
			zap.String("room_type_id", mapping.RoomTypeID),
			zap.Error(err))
		return fmt.Errorf("failed to create external mapping: %w", err)
	}
	return nil
}

func (r *mappingRepository) GetByID(ctx context.Context, id string) (*model.ExternalMapping, error) {
	var mapping model.ExternalMapping
	return r.first(r.db.WithContext(ctx).Where("id = ?", id), &mapping)
}

func (r *mappingRepository) Deactivate(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&model.ExternalMapping{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate external mapping: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *mappingRepository) ResolveUnit(ctx context.Context, connectionID, roomTypeID, ratePlanID string) (*model.ExternalMapping, error) {
	active := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Where("connection_id = ? AND is_active = ?", connectionID, true).
			Order("created_at DESC")
	}

	if roomTypeID != "" {
		var mapping model.ExternalMapping
		found, err := r.first(active().Where("room_type_id = ?", roomTypeID), &mapping)
		if err != nil || found != nil {
			return found, err
		}
	}

	if ratePlanID != "" {
		var mapping model.ExternalMapping
		return r.first(active().Where("rate_plan_id = ?", ratePlanID), &mapping)
	}

	return nil, nil
}

func (r *mappingRepository) GetActiveForUnit(ctx context.Context, connectionID, unitID string) (*model.ExternalMapping, error) {
	var mapping model.ExternalMapping
	return r.first(r.db.WithContext(ctx).
		Where("connection_id = ? AND unit_id = ? AND is_active = ?", connectionID, unitID, true), &mapping)
}

func (r *mappingRepository) ListActiveByUnit(ctx context.Context, unitID string) ([]*model.ExternalMapping, error) {
	var mappings []*model.ExternalMapping
	err := r.db.WithContext(ctx).
		Where("unit_id = ? AND is_active = ?", unitID, true).
		Order("created_at ASC").
		Find(&mappings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings for unit: %w", err)
	}
	return mappings, nil
}

func (r *mappingRepository) ListActiveByConnection(ctx context.Context, connectionID string) ([]*model.ExternalMapping, error) {
	var mappings []*model.ExternalMapping
	err := r.db.WithContext(ctx).
		Where("connection_id = ? AND is_active = ?", connectionID, true).
		Order("created_at ASC").
		Find(&mappings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings for connection: %w", err)
	}
	return mappings, nil
}

func (r *mappingRepository) TouchSync(ctx context.Context, id string, bucket model.Bucket, at time.Time) error {
	column := "last_avail_sync_at"
	if bucket == model.BucketPrice {
		column = "last_price_sync_at"
	}
	err := r.db.WithContext(ctx).
		Model(&model.ExternalMapping{}).
		Where("id = ?", id).
		Update(column, at).Error
	if err != nil {
		return fmt.Errorf("failed to update mapping sync time: %w", err)
	}
	return nil
}

func (r *mappingRepository) first(q *gorm.DB, mapping *model.ExternalMapping) (*model.ExternalMapping, error) {
	if err := q.First(mapping).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get external mapping: %w", err)
	}
	return mapping, nil
}
