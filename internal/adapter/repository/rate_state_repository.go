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

type rateStateRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRateStateRepository creates a new property rate state repository
func NewRateStateRepository(db *gorm.DB, logger *zap.Logger) domainRepo.RateStateRepository {
	return &rateStateRepository{
		db:     db,
		logger: logger,
	}
}

// Update is the only write path for limiter rows. The row stays locked from
// the first read until commit, so concurrent workers serialize here.
func (r *rateStateRepository) Update(ctx context.Context, propertyID string, seed func() *model.PropertyRateState, fn func(state *model.PropertyRateState) error) (*model.PropertyRateState, error) {
	var state model.PropertyRateState

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := func() error {
			return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("property_id = ?", propertyID).
				First(&state).Error
		}

		err := locked()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "property_id"}},
				DoNothing: true,
			}).Create(seed()).Error
			if err != nil {
				return err
			}
			err = locked()
		}
		if err != nil {
			return err
		}

		if err := fn(&state); err != nil {
			return err
		}
		return tx.Save(&state).Error
	})
	if err != nil {
		r.logger.Error("Failed to update rate state",
			zap.String("property_id", propertyID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to update rate state: %w", err)
	}
	return &state, nil
}

func (r *rateStateRepository) Get(ctx context.Context, propertyID string) (*model.PropertyRateState, error) {
	var state model.PropertyRateState
	err := r.db.WithContext(ctx).Where("property_id = ?", propertyID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rate state: %w", err)
	}
	return &state, nil
}
