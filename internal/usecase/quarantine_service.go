package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
	"github.com/2Raz/mnam-backend-sub001/pkg/messaging"
)

const (
	// ChannelMappingCreated announces new external mappings.
	ChannelMappingCreated = "channel.mapping.created"

	// ActorMapping resolves events automatically after a mapping was created.
	ActorMapping = "system:mapping"
	// ActorReconcile resolves events from the batch reconciler.
	ActorReconcile = "system:reconcile"
	// ActorRevision resolves events that waited for an earlier revision of
	// the same reservation.
	ActorRevision = "system:revision"

	resolveBatchSize = 100
)

// MappingCreatedMessage is published on ChannelMappingCreated.
type MappingCreatedMessage struct {
	MappingID    string `json:"mapping_id"`
	ConnectionID string `json:"connection_id"`
	UnitID       string `json:"unit_id"`
}

// QuarantineResult is the outcome of one resolution attempt.
type QuarantineResult struct {
	ID        string                 `json:"id"`
	Status    model.UnmatchedStatus  `json:"status"`
	Action    entity.ReconcileAction `json:"action"`
	BookingID string                 `json:"booking_id,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// ResolveSummary counts the outcomes of a batch resolution.
type ResolveSummary struct {
	Attempted int `json:"attempted"`
	Resolved  int `json:"resolved"`
	Retrying  int `json:"retrying"`
	Failed    int `json:"failed"`
}

// QuarantineService manages inbound events that could not be applied.
type QuarantineService struct {
	store      repository.Store
	reconciler *RevisionReconciler
	outbox     *OutboxService
	logger     *zap.Logger
	now        Clock
}

// NewQuarantineService creates a new quarantine service
func NewQuarantineService(store repository.Store, reconciler *RevisionReconciler, outbox *OutboxService, logger *zap.Logger) *QuarantineService {
	return &QuarantineService{
		store:      store,
		reconciler: reconciler,
		outbox:     outbox,
		logger:     logger,
		now:        SystemClock,
	}
}

// List returns quarantined events; an empty status lists all.
func (s *QuarantineService) List(ctx context.Context, status model.UnmatchedStatus, page entity.PaginationParams) ([]*model.UnmatchedWebhookEvent, *entity.PaginationMeta, error) {
	page.Validate()
	events, total, err := s.store.Repos().Unmatched.List(ctx, status, page)
	if err != nil {
		return nil, nil, err
	}
	meta := entity.NewPaginationMeta(page, total)
	return events, &meta, nil
}

// Resolve re-runs reconciliation from the stored payload. Events that are
// still unmatched move to retrying with the new reason.
func (s *QuarantineService) Resolve(ctx context.Context, id, actor string) (*QuarantineResult, error) {
	row, err := s.open(ctx, id)
	if err != nil {
		return nil, err
	}

	event, err := ParseBookingEvent(row.Provider, model.Deref(row.ConnectionID), row.RawPayload)
	if err != nil {
		if err := s.store.Repos().Unmatched.MarkRetrying(ctx, id, domainErrors.ReasonInvalidPayload, err.Error()); err != nil {
			return nil, err
		}
		return &QuarantineResult{ID: id, Status: model.UnmatchedStatusRetrying, Action: entity.ActionUnmatched, Reason: domainErrors.ReasonInvalidPayload, Message: err.Error()}, nil
	}

	var out *QuarantineResult
	err = s.store.Transaction(ctx, func(tx *repository.Repositories) error {
		res, err := s.reconciler.Reconcile(ctx, tx, event)
		if err != nil {
			return err
		}

		if res.Action == entity.ActionUnmatched {
			out = &QuarantineResult{ID: id, Status: model.UnmatchedStatusRetrying, Action: res.Action, Reason: res.Reason, Message: res.Message}
			return tx.Unmatched.MarkRetrying(ctx, id, res.Reason, res.Message)
		}

		if err := closeQuarantined(ctx, tx, s.outbox, row.ID, event, res, actor, s.now()); err != nil {
			return err
		}
		out = &QuarantineResult{ID: id, Status: model.UnmatchedStatusResolved, Action: res.Action, BookingID: res.BookingID}

		if res.Action.Applied() {
			_, err := applyWaitingRevisions(ctx, tx, s.reconciler, s.outbox, event, row.ID, s.now(), s.logger)
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to resolve unmatched event",
			zap.String("unmatched_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to resolve unmatched event: %w", err)
	}

	s.logger.Info("Unmatched event resolution attempted",
		zap.String("unmatched_id", id),
		zap.String("actor", actor),
		zap.String("status", string(out.Status)),
		zap.String("action", string(out.Action)),
		zap.String("reason", out.Reason))
	return out, nil
}

// Discard closes an event without applying it.
func (s *QuarantineService) Discard(ctx context.Context, id, actor string) error {
	if _, err := s.open(ctx, id); err != nil {
		return err
	}
	if err := s.store.Repos().Unmatched.MarkDiscarded(ctx, id, actor, s.now()); err != nil {
		return err
	}
	s.logger.Info("Unmatched event discarded",
		zap.String("unmatched_id", id),
		zap.String("actor", actor))
	return nil
}

// ResolveForConnection retries every open event of the connection.
func (s *QuarantineService) ResolveForConnection(ctx context.Context, connectionID string) (ResolveSummary, error) {
	return s.resolveOpen(ctx, connectionID, ActorMapping, resolveBatchSize)
}

// ResolvePending retries up to limit open events across all connections.
func (s *QuarantineService) ResolvePending(ctx context.Context, limit int) (ResolveSummary, error) {
	return s.resolveOpen(ctx, "", ActorReconcile, limit)
}

func (s *QuarantineService) resolveOpen(ctx context.Context, connectionID, actor string, limit int) (ResolveSummary, error) {
	var summary ResolveSummary

	rows, err := s.store.Repos().Unmatched.ListOpen(ctx, connectionID, limit)
	if err != nil {
		return summary, err
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Attempted++

		res, err := s.Resolve(ctx, row.ID, actor)
		switch {
		case errors.Is(err, domainErrors.ErrUnmatchedClosed):
			// Closed earlier in this pass by a revision it was waiting for.
			summary.Resolved++
		case err != nil:
			summary.Failed++
		case res.Status == model.UnmatchedStatusResolved:
			summary.Resolved++
		default:
			summary.Retrying++
		}
	}

	if summary.Attempted > 0 {
		s.logger.Info("Unmatched events resolution pass",
			zap.String("connection_id", connectionID),
			zap.Int("attempted", summary.Attempted),
			zap.Int("resolved", summary.Resolved),
			zap.Int("retrying", summary.Retrying),
			zap.Int("failed", summary.Failed))
	}
	return summary, nil
}

// MappingCreated resolves the connection's open events in place.
func (s *QuarantineService) MappingCreated(ctx context.Context, mapping *model.ExternalMapping) {
	if _, err := s.ResolveForConnection(ctx, mapping.ConnectionID); err != nil {
		s.logger.Warn("Failed to resolve events after mapping creation",
			zap.String("mapping_id", mapping.ID),
			zap.Error(err))
	}
}

// Subscribe consumes ChannelMappingCreated until ctx is cancelled.
func (s *QuarantineService) Subscribe(ctx context.Context, client messaging.RedisClient) error {
	messages, err := client.Subscribe(ctx, ChannelMappingCreated)
	if err != nil {
		return err
	}

	for msg := range messages {
		var created MappingCreatedMessage
		if err := json.Unmarshal(msg.Payload, &created); err != nil {
			s.logger.Warn("Invalid mapping message", zap.Error(err))
			continue
		}
		if _, err := s.ResolveForConnection(ctx, created.ConnectionID); err != nil {
			s.logger.Warn("Failed to resolve events after mapping creation",
				zap.String("mapping_id", created.MappingID),
				zap.Error(err))
		}
	}
	return nil
}

// closeQuarantined records the outcome of a quarantined event that finally
// reconciled: availability is scheduled for applied revisions, the inbound
// idempotency record takes the new action and the row is resolved.
func closeQuarantined(ctx context.Context, tx *repository.Repositories, outbox *OutboxService, id string, event *entity.BookingEvent, res *entity.ReconcileResult, actor string, at time.Time) error {
	if res.Action.Applied() {
		if _, err := outbox.EnqueueAvailabilityForBooking(ctx, tx, res, revisionKey(event)); err != nil {
			return err
		}
	}

	record, err := tx.Idempotency.Get(ctx, event.Provider, event.EventID)
	if err != nil {
		return err
	}
	if record != nil {
		if err := tx.Idempotency.Complete(ctx, record.ID, res.Action, res.BookingID, at); err != nil {
			return err
		}
	}
	return tx.Unmatched.MarkResolved(ctx, id, res.BookingID, actor, at)
}

// applyWaitingRevisions re-runs, in revision order and inside tx, the
// quarantined events of event's reservation that failed because the
// booking did not exist yet. Newer ones apply on top of the booking, older
// ones end up superseded; both close the quarantine row. It returns the
// number of rows closed.
func applyWaitingRevisions(ctx context.Context, tx *repository.Repositories, reconciler *RevisionReconciler, outbox *OutboxService, event *entity.BookingEvent, skipID string, at time.Time, logger *zap.Logger) (int, error) {
	rows, err := tx.Unmatched.ListWaiting(ctx, event.Provider, event.ExternalBookingID, domainErrors.ReasonBookingNotFound)
	if err != nil {
		return 0, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return CompareRevisions(model.Deref(rows[i].RevisionID), model.Deref(rows[j].RevisionID)) < 0
	})

	closed := 0
	for _, row := range rows {
		if row.ID == skipID {
			continue
		}
		waiting, err := ParseBookingEvent(row.Provider, model.Deref(row.ConnectionID), row.RawPayload)
		if err != nil {
			continue
		}

		res, err := reconciler.Reconcile(ctx, tx, waiting)
		if err != nil {
			return closed, err
		}
		if res.Action == entity.ActionUnmatched {
			continue
		}
		if err := closeQuarantined(ctx, tx, outbox, row.ID, waiting, res, ActorRevision, at); err != nil {
			return closed, err
		}
		closed++

		logger.Info("Waiting revision reconciled",
			zap.String("unmatched_id", row.ID),
			zap.String("external_booking_id", waiting.ExternalBookingID),
			zap.String("revision_id", waiting.RevisionID),
			zap.String("action", string(res.Action)))
	}
	return closed, nil
}

func (s *QuarantineService) open(ctx context.Context, id string) (*model.UnmatchedWebhookEvent, error) {
	row, err := s.store.Repos().Unmatched.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domainErrors.ErrUnmatchedNotFound
	}
	if !row.Status.Open() {
		return nil, domainErrors.ErrUnmatchedClosed
	}
	return row, nil
}

// MappingPublisher announces new mappings over pub/sub so the server
// process resolves the waiting events.
type MappingPublisher struct {
	publisher messaging.Publisher
	logger    *zap.Logger
}

// NewMappingPublisher creates a new mapping publisher
func NewMappingPublisher(publisher messaging.Publisher, logger *zap.Logger) *MappingPublisher {
	return &MappingPublisher{publisher: publisher, logger: logger}
}

func (p *MappingPublisher) MappingCreated(ctx context.Context, mapping *model.ExternalMapping) {
	msg := MappingCreatedMessage{
		MappingID:    mapping.ID,
		ConnectionID: mapping.ConnectionID,
		UnitID:       mapping.UnitID,
	}
	if err := p.publisher.Publish(ctx, ChannelMappingCreated, msg); err != nil {
		p.logger.Warn("Failed to publish mapping creation",
			zap.String("mapping_id", mapping.ID),
			zap.Error(err))
	}
}
