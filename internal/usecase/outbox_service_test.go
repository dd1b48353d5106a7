package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/testutil"
	"github.com/2Raz/mnam-backend-sub001/internal/usecase"
)

func (e *env) due(t *testing.T) []*model.IntegrationOutboxItem {
	t.Helper()
	items, err := e.store.Repos().Outbox.FetchDue(context.Background(), e.now.Add(time.Hour), 100)
	require.NoError(t, err)
	return items
}

func TestOutboxService_EnqueueIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	from, to := testutil.Date(2025, time.February, 1), testutil.Date(2025, time.February, 8)

	first, err := e.outbox.EnqueuePriceUpdate(ctx, e.conn.ID, "U1", &from, &to, "price:U1:feb")
	require.NoError(t, err)
	second, err := e.outbox.EnqueuePriceUpdate(ctx, e.conn.ID, "U1", &from, &to, "price:U1:feb")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	items := e.due(t)
	require.Len(t, items, 1)
	assert.Equal(t, model.OutboxStatusPending, items[0].Status)
	assert.Equal(t, 3, items[0].MaxAttempts)
	assert.Zero(t, items[0].Attempts)

	t.Run("rows without a key never collide", func(t *testing.T) {
		_, err := e.outbox.EnqueueAvailabilityUpdate(ctx, e.conn.ID, "U1", &from, &to, "")
		require.NoError(t, err)
		_, err = e.outbox.EnqueueAvailabilityUpdate(ctx, e.conn.ID, "U1", &from, &to, "")
		require.NoError(t, err)
		assert.Len(t, e.due(t), 3)
	})
}

func TestOutboxService_EnqueueForUnit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	other := testutil.Connection(t, e.store, "P2")
	testutil.Mapping(t, e.store, other.ID, "U1", "RT9", "RP9")

	items, err := e.outbox.EnqueueForUnit(ctx, model.OutboxEventPriceUpdate, "U1", nil, nil)
	require.NoError(t, err)
	require.Len(t, items, 2)

	connections := []string{items[0].ConnectionID, items[1].ConnectionID}
	assert.ElementsMatch(t, []string{e.conn.ID, other.ID}, connections)

	_, err = e.outbox.EnqueueForUnit(ctx, model.OutboxEventPriceUpdate, "U404", nil, nil)
	assert.ErrorIs(t, err, domainErrors.ErrMappingNotFound)
}

func TestOutboxService_EnqueueAvailabilityForBooking(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.Mapping(t, e.store, e.conn.ID, "U2", "RT2", "RP2")

	result := &entity.ReconcileResult{
		Action:         entity.ActionUpdated,
		BookingID:      "booking-1",
		UnitID:         "U2",
		PreviousUnitID: "U1",
		DateFrom:       testutil.Date(2025, time.March, 1),
		DateTo:         testutil.Date(2025, time.March, 6),
	}

	enqueue := func() int {
		n, err := e.outbox.EnqueueAvailabilityForBooking(ctx, e.store.Repos(), result, "3")
		require.NoError(t, err)
		return n
	}

	assert.Equal(t, 2, enqueue(), "both the new and the previous unit are refreshed")
	assert.Zero(t, enqueue(), "the same revision enqueues nothing twice")

	units := map[string]string{}
	for _, item := range e.due(t) {
		units[item.UnitID] = model.Deref(item.IdempotencyKey)
		assert.Equal(t, model.OutboxEventAvailUpdate, item.EventType)
		assert.Equal(t, result.DateFrom, item.DateFrom.UTC())
		assert.Equal(t, result.DateTo, item.DateTo.UTC())
	}
	assert.Equal(t, map[string]string{
		"U2": "avail:booking:booking-1:" + e.conn.ID + ":3",
		"U1": "avail:booking:booking-1:" + e.conn.ID + ":3:U1",
	}, units)
}

func TestOutboxService_RetryFailed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	repo := e.store.Repos().Outbox

	item, err := e.outbox.EnqueueFullSync(ctx, e.conn.ID, "U1", "")
	require.NoError(t, err)

	_, err = e.outbox.RetryFailed(ctx, item.ID)
	assert.ErrorIs(t, err, domainErrors.ErrOutboxItemNotFound, "pending rows are not retryable")

	ok, err := repo.Claim(ctx, item.ID, "worker-1", e.now)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, repo.Fail(ctx, item.ID, "worker-1", 3, "HTTP 400: invalid rate plan"))

	failed, meta, err := e.outbox.ListFailed(ctx, entity.PaginationParams{})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.EqualValues(t, 1, meta.Total)
	assert.Equal(t, "HTTP 400: invalid rate plan", model.Deref(failed[0].LastError))

	e.now = e.now.Add(time.Hour)
	retried, err := e.outbox.RetryFailed(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusPending, retried.Status)
	assert.Zero(t, retried.Attempts)
	assert.Nil(t, retried.LockedBy)
	assert.Len(t, e.due(t), 1)

	n, err := e.outbox.RetryAllFailed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCoalesce(t *testing.T) {
	base := testToday
	item := func(id, unit string, eventType model.OutboxEventType, age time.Duration) *model.IntegrationOutboxItem {
		return &model.IntegrationOutboxItem{
			ID:           id,
			ConnectionID: "C1",
			UnitID:       unit,
			EventType:    eventType,
			CreatedAt:    base.Add(-age),
		}
	}

	items := []*model.IntegrationOutboxItem{
		item("a", "U1", model.OutboxEventPriceUpdate, 3*time.Minute),
		item("b", "U1", model.OutboxEventPriceUpdate, time.Minute),
		item("c", "U1", model.OutboxEventAvailUpdate, 2*time.Minute),
		item("d", "U2", model.OutboxEventPriceUpdate, 2*time.Minute),
		item("e", "U1", model.OutboxEventPriceUpdate, 2*time.Minute),
	}

	keep, merges := usecase.Coalesce(items, base, 30)

	var ids []string
	for _, k := range keep {
		ids = append(ids, k.ID)
	}
	assert.Equal(t, []string{"b", "c", "d"}, ids)
	require.Len(t, merges, 1)
	assert.Equal(t, "b", merges[0].Into.ID)
	assert.Equal(t, []string{"a", "e"}, merges[0].Merged)
	assert.False(t, merges[0].Widen, "identical windows need no widening")
}

func TestCoalesce_Windows(t *testing.T) {
	windowed := func(id string, age time.Duration, from, to time.Time) *model.IntegrationOutboxItem {
		return &model.IntegrationOutboxItem{
			ID:           id,
			ConnectionID: "C1",
			UnitID:       "U1",
			EventType:    model.OutboxEventAvailUpdate,
			DateFrom:     &from,
			DateTo:       &to,
			CreatedAt:    testToday.Add(-age),
		}
	}
	feb := func(d int) time.Time { return testutil.Date(2025, time.February, d) }
	mar := func(d int) time.Time { return testutil.Date(2025, time.March, d) }

	t.Run("disjoint windows are all kept", func(t *testing.T) {
		keep, merges := usecase.Coalesce([]*model.IntegrationOutboxItem{
			windowed("a", 2*time.Minute, feb(1), feb(4)),
			windowed("b", time.Minute, mar(10), mar(12)),
		}, testToday, 30)

		assert.Len(t, keep, 2)
		assert.Empty(t, merges)
	})

	t.Run("overlapping windows merge into the union", func(t *testing.T) {
		keep, merges := usecase.Coalesce([]*model.IntegrationOutboxItem{
			windowed("a", 3*time.Minute, feb(1), feb(5)),
			windowed("b", time.Minute, feb(3), feb(8)),
			windowed("c", 2*time.Minute, mar(10), mar(12)),
		}, testToday, 30)

		require.Len(t, keep, 2)
		assert.Equal(t, "b", keep[0].ID)
		assert.Equal(t, "c", keep[1].ID)
		require.Len(t, merges, 1)
		assert.Equal(t, "b", merges[0].Into.ID)
		assert.Equal(t, []string{"a"}, merges[0].Merged)
		assert.True(t, merges[0].Widen)
		assert.Equal(t, feb(1), merges[0].From)
		assert.Equal(t, feb(8), merges[0].To)
	})

	t.Run("adjacent windows merge", func(t *testing.T) {
		keep, merges := usecase.Coalesce([]*model.IntegrationOutboxItem{
			windowed("a", time.Minute, feb(1), feb(4)),
			windowed("b", 2*time.Minute, feb(4), feb(6)),
		}, testToday, 30)

		require.Len(t, keep, 1)
		assert.Equal(t, "a", keep[0].ID)
		require.Len(t, merges, 1)
		assert.Equal(t, feb(1), merges[0].From)
		assert.Equal(t, feb(6), merges[0].To)
	})

	t.Run("dated rows beyond the default window stay apart", func(t *testing.T) {
		undated := &model.IntegrationOutboxItem{ID: "full", ConnectionID: "C1", UnitID: "U1", EventType: model.OutboxEventAvailUpdate, CreatedAt: testToday}
		keep, merges := usecase.Coalesce([]*model.IntegrationOutboxItem{
			undated,
			windowed("late", time.Minute, mar(10), mar(12)),
		}, testToday, 30)

		assert.Len(t, keep, 2)
		assert.Empty(t, merges)
	})
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		r        float64
		want     time.Duration
	}{
		{name: "first retry, no jitter", attempts: 1, r: 0.5, want: time.Minute},
		{name: "doubles", attempts: 3, r: 0.5, want: 4 * time.Minute},
		{name: "capped", attempts: 20, r: 0.5, want: time.Hour},
		{name: "lower jitter bound", attempts: 1, r: 0, want: 48 * time.Second},
		{name: "upper jitter bound", attempts: 1, r: 1, want: 72 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := usecase.BackoffDelay(tt.attempts, time.Minute, time.Hour, tt.r)
			assert.Equal(t, tt.want, got)
		})
	}
}
