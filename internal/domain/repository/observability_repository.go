package repository

import (
	"context"
	"time"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
)

// AuditRepository is the append-only sink for audit records and exchange logs
type AuditRepository interface {
	CreateAudit(ctx context.Context, record *model.IntegrationAuditRecord) error
	CreateLog(ctx context.Context, log *model.IntegrationLog) error
}

// AlertRepository stores operator alerts
type AlertRepository interface {
	Create(ctx context.Context, alert *model.IntegrationAlert) error
	GetByID(ctx context.Context, id string) (*model.IntegrationAlert, error)
	// FindUnresolved returns the open or acknowledged alert with the key, if any
	FindUnresolved(ctx context.Context, alertType model.AlertType, dedupeKey string) (*model.IntegrationAlert, error)
	List(ctx context.Context, status model.AlertStatus, page entity.PaginationParams) ([]*model.IntegrationAlert, int64, error)
	Acknowledge(ctx context.Context, id, actor string, at time.Time) error
	Resolve(ctx context.Context, id, actor string, at time.Time) error
}
