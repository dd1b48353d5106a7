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

type pricingPolicyRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPricingPolicyRepository creates a new pricing policy repository
func NewPricingPolicyRepository(db *gorm.DB, logger *zap.Logger) domainRepo.PricingPolicyRepository {
	return &pricingPolicyRepository{
		db:     db,
		logger: logger,
	}
}

func (r *pricingPolicyRepository) Get(ctx context.Context, unitID string) (*model.PricingPolicy, error) {
	var policy model.PricingPolicy
	err := r.db.WithContext(ctx).Where("unit_id = ?", unitID).First(&policy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pricing policy: %w", err)
	}
	return &policy, nil
}

func (r *pricingPolicyRepository) Save(ctx context.Context, policy *model.PricingPolicy) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(policy).Error
	if err != nil {
		return fmt.Errorf("failed to save pricing policy: %w", err)
	}
	return nil
}
