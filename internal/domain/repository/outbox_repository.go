package repository

import (
	"context"
	"time"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
)

// OutboxRepository is the durable outbound queue
type OutboxRepository interface {
	// Enqueue inserts the item unless its idempotency key exists; it returns
	// the stored row and whether it was created by this call
	Enqueue(ctx context.Context, item *model.IntegrationOutboxItem) (*model.IntegrationOutboxItem, bool, error)
	GetByID(ctx context.Context, id string) (*model.IntegrationOutboxItem, error)
	FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.IntegrationOutboxItem, error)

	// Claim moves a pending row to sending under the claim token lockedBy;
	// false when another worker won
	Claim(ctx context.Context, id, lockedBy string, at time.Time) (bool, error)
	// Widen replaces the date window of a still pending row
	Widen(ctx context.Context, id string, from, to time.Time) (bool, error)
	// MarkMerged completes a pending row superseded by a newer one
	MarkMerged(ctx context.Context, id, intoID string, at time.Time) (bool, error)

	// The updates below apply only while lockedBy still holds the claim and
	// return ErrClaimLost otherwise.
	Complete(ctx context.Context, id, lockedBy string, response model.JSONB, at time.Time) error
	// Release returns a claimed row to pending without touching next_attempt_at
	Release(ctx context.Context, id, lockedBy string) error
	Reschedule(ctx context.Context, id, lockedBy string, attempts int, next time.Time, lastErr string) error
	Fail(ctx context.Context, id, lockedBy string, attempts int, lastErr string) error
	ReleaseStale(ctx context.Context, lockedBefore time.Time) (int64, error)

	ListFailed(ctx context.Context, page entity.PaginationParams) ([]*model.IntegrationOutboxItem, int64, error)
	Retry(ctx context.Context, id string, at time.Time) (bool, error)
	RetryAllFailed(ctx context.Context, at time.Time) (int64, error)
}

// RateStateRepository guards the shared limiter rows
type RateStateRepository interface {
	// Update locks the property row, creating it from seed when missing,
	// applies fn and persists the result in one transaction
	Update(ctx context.Context, propertyID string, seed func() *model.PropertyRateState, fn func(state *model.PropertyRateState) error) (*model.PropertyRateState, error)
	Get(ctx context.Context, propertyID string) (*model.PropertyRateState, error)
}
