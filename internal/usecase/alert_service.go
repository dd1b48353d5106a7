package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
	"github.com/2Raz/mnam-backend-sub001/pkg/messaging"
)

// ChannelAlerts is the pub/sub channel raised alerts are announced on.
const ChannelAlerts = "channel.alerts"

// RaiseAlert is the input of AlertService.Raise.
type RaiseAlert struct {
	Type         model.AlertType
	Severity     model.AlertSeverity
	ConnectionID string
	PropertyID   string
	Message      string
	Payload      model.JSONB
	// DedupeKey suppresses the alert while another one with the same type
	// and key is unresolved.
	DedupeKey string
}

// AlertService stores operator alerts and announces new ones.
type AlertService struct {
	alerts    repository.AlertRepository
	publisher messaging.Publisher
	logger    *zap.Logger
	now       Clock
}

// NewAlertService creates a new alert service
func NewAlertService(alerts repository.AlertRepository, publisher messaging.Publisher, logger *zap.Logger) *AlertService {
	return &AlertService{
		alerts:    alerts,
		publisher: publisher,
		logger:    logger,
		now:       SystemClock,
	}
}

// Raise stores an open alert. Publication is best-effort. When a keyed
// alert is still unresolved it is returned instead of raising a new one.
func (s *AlertService) Raise(ctx context.Context, in RaiseAlert) (*model.IntegrationAlert, error) {
	if in.DedupeKey != "" {
		existing, err := s.alerts.FindUnresolved(ctx, in.Type, in.DedupeKey)
		if err != nil {
			return nil, fmt.Errorf("failed to raise alert: %w", err)
		}
		if existing != nil {
			s.logger.Debug("Integration alert already raised",
				zap.String("alert_id", existing.ID),
				zap.String("alert_type", string(in.Type)),
				zap.String("dedupe_key", in.DedupeKey))
			return existing, nil
		}
	}

	severity := in.Severity
	if severity == "" {
		severity = model.SeverityMedium
	}

	alert := &model.IntegrationAlert{
		ConnectionID: model.StringPtr(in.ConnectionID),
		PropertyID:   model.StringPtr(in.PropertyID),
		AlertType:    in.Type,
		Severity:     severity,
		Status:       model.AlertStatusOpen,
		Message:      in.Message,
		Payload:      in.Payload,
	}
	if in.DedupeKey != "" {
		alert.DedupeKey = model.StringPtr(in.DedupeKey)
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		s.logger.Error("Failed to raise alert",
			zap.String("alert_type", string(in.Type)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to raise alert: %w", err)
	}

	s.logger.Warn("Integration alert raised",
		zap.String("alert_id", alert.ID),
		zap.String("alert_type", string(alert.AlertType)),
		zap.String("severity", string(alert.Severity)),
		zap.String("connection_id", in.ConnectionID),
		zap.String("message", in.Message))

	if err := s.publisher.Publish(ctx, ChannelAlerts, alert); err != nil {
		s.logger.Warn("Failed to publish alert", zap.String("alert_id", alert.ID), zap.Error(err))
	}

	return alert, nil
}

// List returns alerts filtered by status; an empty status lists all.
func (s *AlertService) List(ctx context.Context, status model.AlertStatus, page entity.PaginationParams) ([]*model.IntegrationAlert, *entity.PaginationMeta, error) {
	page.Validate()
	alerts, total, err := s.alerts.List(ctx, status, page)
	if err != nil {
		return nil, nil, err
	}
	meta := entity.NewPaginationMeta(page, total)
	return alerts, &meta, nil
}

// Acknowledge marks an open alert as seen by actor.
func (s *AlertService) Acknowledge(ctx context.Context, id, actor string) (*model.IntegrationAlert, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.alerts.Acknowledge(ctx, id, actor, s.now()); err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

// Resolve closes an alert.
func (s *AlertService) Resolve(ctx context.Context, id, actor string) (*model.IntegrationAlert, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.alerts.Resolve(ctx, id, actor, s.now()); err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

func (s *AlertService) get(ctx context.Context, id string) (*model.IntegrationAlert, error) {
	alert, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, domainErrors.ErrAlertNotFound
	}
	return alert, nil
}

// AlertTypeForHealthEvent maps a channel manager health event name to an
// alert type.
func AlertTypeForHealthEvent(event string) model.AlertType {
	switch strings.ToLower(strings.TrimSpace(event)) {
	case "unmapped_room", "booking_unmapped_room":
		return model.AlertUnmappedRoom
	case "unmapped_rate", "booking_unmapped_rate":
		return model.AlertUnmappedRate
	case "sync_error":
		return model.AlertSyncError
	case "rate_error":
		return model.AlertRateError
	case "non_acked":
		return model.AlertNonAcked
	default:
		return model.AlertChannelError
	}
}
