package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/config"
	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
)

// EnqueueRequest describes one outbound push to schedule.
type EnqueueRequest struct {
	EventType      model.OutboxEventType
	ConnectionID   string
	UnitID         string
	DateFrom       *time.Time
	DateTo         *time.Time
	IdempotencyKey string
	Payload        model.JSONB
}

// OutboxService schedules outbound work. Every method that takes a
// *repository.Repositories runs on the caller's transaction.
type OutboxService struct {
	store  repository.Store
	cfg    config.DispatcherConfig
	logger *zap.Logger
	now    Clock
}

// NewOutboxService creates a new outbox service
func NewOutboxService(store repository.Store, cfg config.DispatcherConfig, logger *zap.Logger) *OutboxService {
	return &OutboxService{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    SystemClock,
	}
}

// SetClock replaces the clock used for next_attempt_at.
func (s *OutboxService) SetClock(now Clock) {
	s.now = now
}

// Enqueue stores the item unless its idempotency key was seen before, in
// which case the existing row is returned with created=false.
func (s *OutboxService) Enqueue(ctx context.Context, repos *repository.Repositories, req EnqueueRequest) (*model.IntegrationOutboxItem, bool, error) {
	if repos == nil {
		repos = s.store.Repos()
	}

	item := &model.IntegrationOutboxItem{
		ConnectionID:   req.ConnectionID,
		EventType:      req.EventType,
		UnitID:         req.UnitID,
		Payload:        req.Payload,
		Status:         model.OutboxStatusPending,
		MaxAttempts:    s.cfg.MaxAttempts,
		NextAttemptAt:  s.now(),
		IdempotencyKey: model.StringPtr(req.IdempotencyKey),
	}
	if req.DateFrom != nil {
		from := model.Day(*req.DateFrom)
		item.DateFrom = &from
	}
	if req.DateTo != nil {
		to := model.Day(*req.DateTo)
		item.DateTo = &to
	}

	stored, created, err := repos.Outbox.Enqueue(ctx, item)
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.Debug("Outbox item enqueued",
			zap.String("outbox_id", stored.ID),
			zap.String("event_type", string(stored.EventType)),
			zap.String("connection_id", stored.ConnectionID),
			zap.String("unit_id", stored.UnitID))
	}
	return stored, created, nil
}

// EnqueuePriceUpdate schedules a rate push for one mapped unit.
func (s *OutboxService) EnqueuePriceUpdate(ctx context.Context, connectionID, unitID string, from, to *time.Time, key string) (*model.IntegrationOutboxItem, error) {
	item, _, err := s.Enqueue(ctx, nil, EnqueueRequest{
		EventType:      model.OutboxEventPriceUpdate,
		ConnectionID:   connectionID,
		UnitID:         unitID,
		DateFrom:       from,
		DateTo:         to,
		IdempotencyKey: key,
	})
	return item, err
}

// EnqueueAvailabilityUpdate schedules an availability push for one mapped unit.
func (s *OutboxService) EnqueueAvailabilityUpdate(ctx context.Context, connectionID, unitID string, from, to *time.Time, key string) (*model.IntegrationOutboxItem, error) {
	item, _, err := s.Enqueue(ctx, nil, EnqueueRequest{
		EventType:      model.OutboxEventAvailUpdate,
		ConnectionID:   connectionID,
		UnitID:         unitID,
		DateFrom:       from,
		DateTo:         to,
		IdempotencyKey: key,
	})
	return item, err
}

// EnqueueFullSync schedules a price and availability refresh over the
// default window.
func (s *OutboxService) EnqueueFullSync(ctx context.Context, connectionID, unitID, key string) (*model.IntegrationOutboxItem, error) {
	item, _, err := s.Enqueue(ctx, nil, EnqueueRequest{
		EventType:      model.OutboxEventFullSync,
		ConnectionID:   connectionID,
		UnitID:         unitID,
		IdempotencyKey: key,
	})
	return item, err
}

// EnqueueForUnit schedules eventType for every active mapping of the unit.
func (s *OutboxService) EnqueueForUnit(ctx context.Context, eventType model.OutboxEventType, unitID string, from, to *time.Time) ([]*model.IntegrationOutboxItem, error) {
	mappings, err := s.store.Repos().Mappings.ListActiveByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, domainErrors.ErrMappingNotFound
	}

	items := make([]*model.IntegrationOutboxItem, 0, len(mappings))
	for _, mapping := range mappings {
		item, _, err := s.Enqueue(ctx, nil, EnqueueRequest{
			EventType:    eventType,
			ConnectionID: mapping.ConnectionID,
			UnitID:       unitID,
			DateFrom:     from,
			DateTo:       to,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// EnqueueAvailabilityForBooking schedules availability pushes for every
// connection the affected units are mapped on. It runs on tx so the pushes
// commit together with the booking change.
func (s *OutboxService) EnqueueAvailabilityForBooking(ctx context.Context, tx *repository.Repositories, result *entity.ReconcileResult, revision string) (int, error) {
	units := []string{result.UnitID}
	if result.PreviousUnitID != "" && result.PreviousUnitID != result.UnitID {
		units = append(units, result.PreviousUnitID)
	}

	var from, to *time.Time
	if !result.DateFrom.IsZero() && !result.DateTo.IsZero() {
		f, t := result.DateFrom, result.DateTo
		from, to = &f, &t
	}

	count := 0
	for i, unitID := range units {
		mappings, err := tx.Mappings.ListActiveByUnit(ctx, unitID)
		if err != nil {
			return count, err
		}
		for _, mapping := range mappings {
			key := fmt.Sprintf("avail:booking:%s:%s:%s", result.BookingID, mapping.ConnectionID, revision)
			if i > 0 {
				key += ":" + unitID
			}
			_, created, err := s.Enqueue(ctx, tx, EnqueueRequest{
				EventType:      model.OutboxEventAvailUpdate,
				ConnectionID:   mapping.ConnectionID,
				UnitID:         unitID,
				DateFrom:       from,
				DateTo:         to,
				IdempotencyKey: key,
			})
			if err != nil {
				return count, err
			}
			if created {
				count++
			}
		}
	}
	return count, nil
}

// ListFailed returns rows that ran out of attempts or failed permanently.
func (s *OutboxService) ListFailed(ctx context.Context, page entity.PaginationParams) ([]*model.IntegrationOutboxItem, *entity.PaginationMeta, error) {
	page.Validate()
	items, total, err := s.store.Repos().Outbox.ListFailed(ctx, page)
	if err != nil {
		return nil, nil, err
	}
	meta := entity.NewPaginationMeta(page, total)
	return items, &meta, nil
}

// RetryFailed resets a failed row so the dispatcher picks it up again.
func (s *OutboxService) RetryFailed(ctx context.Context, id string) (*model.IntegrationOutboxItem, error) {
	repo := s.store.Repos().Outbox
	ok, err := repo.Retry(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainErrors.ErrOutboxItemNotFound
	}

	s.logger.Info("Outbox item reset for retry", zap.String("outbox_id", id))
	return repo.GetByID(ctx, id)
}

// RetryAllFailed resets every failed row.
func (s *OutboxService) RetryAllFailed(ctx context.Context) (int64, error) {
	n, err := s.store.Repos().Outbox.RetryAllFailed(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.logger.Info("Failed outbox items reset for retry", zap.Int64("count", n))
	return n, nil
}
