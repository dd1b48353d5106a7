package repository

import (
	"context"
	"time"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
)

// IdempotencyRepository stores inbound processing markers
type IdempotencyRepository interface {
	// Insert attempts the unique insert; false means the key already exists
	Insert(ctx context.Context, record *model.InboundIdempotencyRecord) (bool, error)
	Complete(ctx context.Context, id string, action entity.ReconcileAction, bookingID string, at time.Time) error
	Get(ctx context.Context, provider, externalEventID string) (*model.InboundIdempotencyRecord, error)
}

// RevisionRepository stores the revision history of external bookings
type RevisionRepository interface {
	// GetApplied returns the applied revision, locking it on databases that support it
	GetApplied(ctx context.Context, externalBookingID string) (*model.BookingRevision, error)
	InsertApplied(ctx context.Context, rev *model.BookingRevision) error
	// InsertHistory stores a non-applied row; false when the pair already exists
	InsertHistory(ctx context.Context, rev *model.BookingRevision) (bool, error)
	Demote(ctx context.Context, id string) error
	ListByExternalID(ctx context.Context, externalBookingID string) ([]*model.BookingRevision, error)
}

// UnmatchedRepository stores quarantined inbound events
type UnmatchedRepository interface {
	Create(ctx context.Context, event *model.UnmatchedWebhookEvent) error
	GetByID(ctx context.Context, id string) (*model.UnmatchedWebhookEvent, error)
	List(ctx context.Context, status model.UnmatchedStatus, page entity.PaginationParams) ([]*model.UnmatchedWebhookEvent, int64, error)
	ListOpen(ctx context.Context, connectionID string, limit int) ([]*model.UnmatchedWebhookEvent, error)
	// ListWaiting returns open events of one reservation quarantined for reason
	ListWaiting(ctx context.Context, provider, externalReservationID, reason string) ([]*model.UnmatchedWebhookEvent, error)
	MarkResolved(ctx context.Context, id, bookingID, actor string, at time.Time) error
	MarkRetrying(ctx context.Context, id, reason, message string) error
	MarkDiscarded(ctx context.Context, id, actor string, at time.Time) error
}

// WebhookEventLogRepository stores raw inbound calls
type WebhookEventLogRepository interface {
	Create(ctx context.Context, log *model.WebhookEventLog) error
	GetByID(ctx context.Context, id string) (*model.WebhookEventLog, error)
	Save(ctx context.Context, log *model.WebhookEventLog) error
	// ClaimForReplay locks failed rows that are due and rows stuck in
	// received or processing since before staleBefore
	ClaimForReplay(ctx context.Context, worker string, now, staleBefore time.Time, limit int) ([]*model.WebhookEventLog, error)
}
