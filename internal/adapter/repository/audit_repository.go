package repository

import (
	"context"
	"fmt"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	domainRepo "github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type auditRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB, logger *zap.Logger) domainRepo.AuditRepository {
	return &auditRepository{
		db:     db,
		logger: logger,
	}
}

func (r *auditRepository) CreateAudit(ctx context.Context, record *model.IntegrationAuditRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create audit record: %w", err)
	}
	return nil
}

func (r *auditRepository) CreateLog(ctx context.Context, log *model.IntegrationLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create integration log: %w", err)
	}
	return nil
}
