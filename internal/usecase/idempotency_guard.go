package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
)

// IdempotencyGuard decides once per (provider, external event id) whether an
// inbound event may be applied. The decision is the outcome of a unique
// insert, never of a read.
type IdempotencyGuard struct {
	logger *zap.Logger
	now    Clock
}

// NewIdempotencyGuard creates a new idempotency guard
func NewIdempotencyGuard(logger *zap.Logger) *IdempotencyGuard {
	return &IdempotencyGuard{
		logger: logger,
		now:    SystemClock,
	}
}

// Admit inserts the processing marker through repo, which must be bound to
// the caller's transaction so a later failure removes the marker again.
func (g *IdempotencyGuard) Admit(ctx context.Context, repo repository.IdempotencyRepository, event *entity.BookingEvent) (entity.AdmitResult, error) {
	record := &model.InboundIdempotencyRecord{
		Provider:              event.Provider,
		ExternalEventID:       event.EventID,
		ExternalReservationID: model.StringPtr(event.ExternalBookingID),
		RevisionID:            model.StringPtr(event.RevisionID),
	}

	inserted, err := repo.Insert(ctx, record)
	if err != nil {
		return entity.AdmitResult{}, fmt.Errorf("failed to admit event: %w", err)
	}
	if !inserted {
		g.logger.Info("Duplicate webhook event",
			zap.String("provider", event.Provider),
			zap.String("event_id", event.EventID))
		return entity.AdmitResult{Admitted: false}, nil
	}

	return entity.AdmitResult{Admitted: true, RecordID: record.ID}, nil
}

// Complete stores the outcome on the marker.
func (g *IdempotencyGuard) Complete(ctx context.Context, repo repository.IdempotencyRepository, recordID string, action entity.ReconcileAction, bookingID string) error {
	if recordID == "" {
		return nil
	}
	return repo.Complete(ctx, recordID, action, bookingID, g.now())
}
