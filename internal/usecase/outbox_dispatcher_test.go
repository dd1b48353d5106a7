package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/config"
	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/provider"
	"github.com/2Raz/mnam-backend-sub001/internal/testutil"
	"github.com/2Raz/mnam-backend-sub001/internal/usecase"
)

// MockChannelProvider is a mock implementation of provider.ChannelProvider
type MockChannelProvider struct {
	mock.Mock
}

func (m *MockChannelProvider) UpdateRates(ctx context.Context, req *provider.RateUpdateRequest) (*provider.PushResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.PushResult), args.Error(1)
}

func (m *MockChannelProvider) UpdateAvailability(ctx context.Context, req *provider.AvailabilityUpdateRequest) (*provider.PushResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.PushResult), args.Error(1)
}

func (m *MockChannelProvider) GetProviderName() string {
	return "channex"
}

type registryFunc func(name string) (provider.ChannelProvider, error)

func (f registryFunc) Get(name string) (provider.ChannelProvider, error) {
	return f(name)
}

type dispatchEnv struct {
	*webhookEnv
	provider   *MockChannelProvider
	limiter    *usecase.RateLimiter
	dispatcher *usecase.OutboxDispatcher
}

func newDispatchEnv(t *testing.T) *dispatchEnv {
	t.Helper()
	w := newWebhookEnv(t)
	clock := testutil.FixedClock(&w.now)
	repos := w.store.Repos()

	testutil.PricingPolicy(t, w.store, "U1", 500)

	d := &dispatchEnv{webhookEnv: w, provider: new(MockChannelProvider)}
	d.limiter = usecase.NewRateLimiter(repos.RateStates, config.RateLimitConfig{
		Capacity:        10,
		RefillPerSecond: 1,
		BasePause:       time.Minute,
		MaxPause:        10 * time.Minute,
	}, nil, zap.NewNop())
	d.limiter.SetClock(clock)

	d.dispatcher = usecase.NewOutboxDispatcher(usecase.OutboxDispatcherDeps{
		Store:       w.store,
		Connections: w.connections,
		Providers: registryFunc(func(name string) (provider.ChannelProvider, error) {
			if name != "channex" {
				return nil, errors.New("unknown provider")
			}
			return d.provider, nil
		}),
		Limiter:      d.limiter,
		Pricing:      usecase.NewPricingCalendar(repos.PricingPolicies),
		Availability: usecase.NewAvailabilityCalendar(repos.Bookings),
		Outbox:       w.outbox,
		Audit:        usecase.NewAuditRecorder(repos.Audit, repos.Connections, zap.NewNop()),
		Alerts:       w.alerts,
	}, dispatcherConfig(), zap.NewNop())
	d.dispatcher.SetClock(clock)
	d.dispatcher.SetJitter(func() float64 { return 0.5 })
	return d
}

func (d *dispatchEnv) enqueuePrices(t *testing.T, key string) *model.IntegrationOutboxItem {
	t.Helper()
	from, to := testutil.Date(2025, time.February, 1), testutil.Date(2025, time.February, 4)
	item, err := d.outbox.EnqueuePriceUpdate(context.Background(), d.conn.ID, "U1", &from, &to, key)
	require.NoError(t, err)
	return item
}

func (d *dispatchEnv) dispatch(t *testing.T) int {
	t.Helper()
	n, err := d.dispatcher.DispatchOnce(context.Background())
	require.NoError(t, err)
	return n
}

func (d *dispatchEnv) item(t *testing.T, id string) *model.IntegrationOutboxItem {
	t.Helper()
	item, err := d.store.Repos().Outbox.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, item)
	return item
}

func ratesFor(ratePlan string, nights int) interface{} {
	return mock.MatchedBy(func(req *provider.RateUpdateRequest) bool {
		return req.RatePlanID == ratePlan &&
			len(req.Values) == nights &&
			req.Credentials.APIKey == "api-key" &&
			req.Credentials.PropertyID == "P1"
	})
}

func TestOutboxDispatcher_DeliversPrices(t *testing.T) {
	d := newDispatchEnv(t)
	ctx := context.Background()
	item := d.enqueuePrices(t, "")

	d.provider.On("UpdateRates", mock.Anything, ratesFor("RP1", 3)).
		Run(func(args mock.Arguments) {
			req := args.Get(1).(*provider.RateUpdateRequest)
			assert.Equal(t, item.ID, req.OutboxID)
			assert.Equal(t, testutil.Date(2025, time.February, 1), req.Values[0].Date)
			assert.True(t, decimal.NewFromInt(500).Equal(req.Values[0].Rate))
		}).
		Return(&provider.PushResult{StatusCode: 200, RequestID: "req-1", Records: 3}, nil).
		Once()

	assert.Equal(t, 1, d.dispatch(t))

	done := d.item(t, item.ID)
	assert.Equal(t, model.OutboxStatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)
	assert.EqualValues(t, 3, done.ResponseData["records"])

	conn, err := d.store.Repos().Connections.GetByID(ctx, d.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionStatusActive, conn.Status)
	assert.NotNil(t, conn.LastSyncAt)

	assert.Zero(t, d.dispatch(t), "completed rows are not picked up again")
	d.provider.AssertExpectations(t)
}

func TestOutboxDispatcher_RemoteRateLimit(t *testing.T) {
	d := newDispatchEnv(t)
	ctx := context.Background()
	item := d.enqueuePrices(t, "")
	start := d.now

	d.provider.On("UpdateRates", mock.Anything, ratesFor("RP1", 3)).
		Return(nil, domainErrors.NewRateLimitedError(30*time.Second)).
		Once()
	d.provider.On("UpdateRates", mock.Anything, ratesFor("RP1", 3)).
		Return(&provider.PushResult{StatusCode: 200, Records: 3}, nil).
		Once()

	d.dispatch(t)

	rescheduled := d.item(t, item.ID)
	assert.Equal(t, model.OutboxStatusPending, rescheduled.Status)
	assert.Zero(t, rescheduled.Attempts, "a 429 does not consume an attempt")
	assert.Equal(t, start.Add(30*time.Second), rescheduled.NextAttemptAt.UTC())

	state, err := d.limiter.State(ctx, "P1")
	require.NoError(t, err)
	require.NotNil(t, state.PausedUntil)
	assert.Equal(t, 1, state.PauseCount)

	assert.Zero(t, d.dispatch(t), "nothing is due inside the pause")

	d.now = start.Add(31 * time.Second)
	assert.Equal(t, 1, d.dispatch(t))
	assert.Equal(t, model.OutboxStatusCompleted, d.item(t, item.ID).Status)

	state, err = d.limiter.State(ctx, "P1")
	require.NoError(t, err)
	assert.Nil(t, state.PausedUntil)
	assert.Zero(t, state.PauseCount)
	d.provider.AssertExpectations(t)
}

func TestOutboxDispatcher_TransientFailuresExhaustAttempts(t *testing.T) {
	d := newDispatchEnv(t)
	item := d.enqueuePrices(t, "")
	start := d.now

	d.provider.On("UpdateRates", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset by peer")).
		Times(3)

	d.dispatch(t)
	retried := d.item(t, item.ID)
	assert.Equal(t, model.OutboxStatusPending, retried.Status)
	assert.Equal(t, 1, retried.Attempts)
	assert.Equal(t, start.Add(time.Minute), retried.NextAttemptAt.UTC())
	assert.Equal(t, "connection reset by peer", model.Deref(retried.LastError))

	d.now = d.now.Add(2 * time.Hour)
	d.dispatch(t)
	assert.Equal(t, 2, d.item(t, item.ID).Attempts)
	assert.Empty(t, d.openAlerts(t))

	d.now = d.now.Add(2 * time.Hour)
	d.dispatch(t)
	failed := d.item(t, item.ID)
	assert.Equal(t, model.OutboxStatusFailed, failed.Status)
	assert.Equal(t, 3, failed.Attempts)
	assert.Contains(t, model.Deref(failed.LastError), domainErrors.ErrAttemptsExhausted.Error())

	alerts := d.openAlerts(t)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertSyncError, alerts[0].AlertType)
	d.provider.AssertExpectations(t)
}

func TestOutboxDispatcher_PermanentFailures(t *testing.T) {
	t.Run("rejected by remote", func(t *testing.T) {
		d := newDispatchEnv(t)
		item := d.enqueuePrices(t, "")

		d.provider.On("UpdateRates", mock.Anything, mock.Anything).
			Return(nil, provider.NewProviderError(422, "unknown rate plan")).
			Once()

		d.dispatch(t)
		failed := d.item(t, item.ID)
		assert.Equal(t, model.OutboxStatusFailed, failed.Status)
		assert.Equal(t, 1, failed.Attempts)
		assert.Len(t, d.openAlerts(t), 1)
		d.provider.AssertExpectations(t)
	})

	t.Run("missing pricing policy", func(t *testing.T) {
		d := newDispatchEnv(t)
		testutil.Mapping(t, d.store, d.conn.ID, "U7", "RT7", "RP7")
		item, err := d.outbox.EnqueuePriceUpdate(context.Background(), d.conn.ID, "U7", nil, nil, "")
		require.NoError(t, err)

		d.dispatch(t)
		failed := d.item(t, item.ID)
		assert.Equal(t, model.OutboxStatusFailed, failed.Status)
		assert.Contains(t, model.Deref(failed.LastError), domainErrors.ErrPricingPolicyNotFound.Error())
		d.provider.AssertNotCalled(t, "UpdateRates", mock.Anything, mock.Anything)
	})

	t.Run("deleted connection", func(t *testing.T) {
		d := newDispatchEnv(t)
		item := d.enqueuePrices(t, "")
		require.NoError(t, d.connections.Delete(context.Background(), d.conn.ID))

		d.dispatch(t)
		assert.Equal(t, model.OutboxStatusFailed, d.item(t, item.ID).Status)
		d.provider.AssertNotCalled(t, "UpdateRates", mock.Anything, mock.Anything)
	})
}

func TestOutboxDispatcher_LocalLimiterDefers(t *testing.T) {
	d := newDispatchEnv(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := d.limiter.TryAcquire(ctx, "P1", model.BucketAvailability)
		require.NoError(t, err)
	}

	from, to := testutil.Date(2025, time.February, 1), testutil.Date(2025, time.February, 4)
	item, err := d.outbox.EnqueueAvailabilityUpdate(ctx, d.conn.ID, "U1", &from, &to, "")
	require.NoError(t, err)

	d.dispatch(t)
	deferred := d.item(t, item.ID)
	assert.Equal(t, model.OutboxStatusPending, deferred.Status)
	assert.Zero(t, deferred.Attempts)
	assert.Nil(t, deferred.LockedBy)
	d.provider.AssertNotCalled(t, "UpdateAvailability", mock.Anything, mock.Anything)
}

func TestOutboxDispatcher_FullSyncExpands(t *testing.T) {
	d := newDispatchEnv(t)
	ctx := context.Background()

	parent, err := d.outbox.EnqueueFullSync(ctx, d.conn.ID, "U1", "")
	require.NoError(t, err)

	assert.Equal(t, 1, d.dispatch(t))
	expanded := d.item(t, parent.ID)
	assert.Equal(t, model.OutboxStatusCompleted, expanded.Status)
	assert.Len(t, expanded.ResponseData["expanded_into"], 2)

	children, err := d.store.Repos().Outbox.FetchDue(ctx, d.now, 10)
	require.NoError(t, err)
	require.Len(t, children, 2)
	for _, child := range children {
		assert.Equal(t, testToday, child.DateFrom.UTC())
		assert.Equal(t, testToday.AddDate(0, 0, 30), child.DateTo.UTC())
	}

	d.provider.On("UpdateRates", mock.Anything, ratesFor("RP1", 30)).
		Return(&provider.PushResult{StatusCode: 200, Records: 30}, nil).
		Once()
	d.provider.On("UpdateAvailability", mock.Anything, mock.MatchedBy(func(req *provider.AvailabilityUpdateRequest) bool {
		if req.RoomTypeID != "RT1" || len(req.Values) != 30 {
			return false
		}
		for _, v := range req.Values {
			if v.Availability != 1 {
				return false
			}
		}
		return true
	})).
		Return(&provider.PushResult{StatusCode: 200, Records: 30}, nil).
		Once()

	assert.Equal(t, 2, d.dispatch(t))
	d.provider.AssertExpectations(t)
}

func TestOutboxDispatcher_CoalescesDuplicates(t *testing.T) {
	d := newDispatchEnv(t)
	first := d.enqueuePrices(t, "price:1")
	second := d.enqueuePrices(t, "price:2")

	d.provider.On("UpdateRates", mock.Anything, ratesFor("RP1", 3)).
		Return(&provider.PushResult{StatusCode: 200, Records: 3}, nil).
		Once()

	assert.Equal(t, 1, d.dispatch(t))

	a, b := d.item(t, first.ID), d.item(t, second.ID)
	assert.Equal(t, model.OutboxStatusCompleted, a.Status)
	assert.Equal(t, model.OutboxStatusCompleted, b.Status)

	merged := 0
	for _, it := range []*model.IntegrationOutboxItem{a, b} {
		if model.Deref(it.LastError) != "" {
			assert.Contains(t, model.Deref(it.LastError), "merged into")
			merged++
		}
	}
	assert.Equal(t, 1, merged)
	d.provider.AssertExpectations(t)
}

func (d *dispatchEnv) enqueueAvailability(t *testing.T, key string, from, to time.Time) *model.IntegrationOutboxItem {
	t.Helper()
	item, err := d.outbox.EnqueueAvailabilityUpdate(context.Background(), d.conn.ID, "U1", &from, &to, key)
	require.NoError(t, err)
	return item
}

func recordAvailabilityDates(dates *[]time.Time) func(mock.Arguments) {
	return func(args mock.Arguments) {
		req := args.Get(1).(*provider.AvailabilityUpdateRequest)
		for _, v := range req.Values {
			*dates = append(*dates, v.Date)
		}
	}
}

func TestOutboxDispatcher_DisjointWindowsAreNotMerged(t *testing.T) {
	d := newDispatchEnv(t)
	february := d.enqueueAvailability(t, "avail:a", testutil.Date(2025, time.February, 1), testutil.Date(2025, time.February, 4))
	march := d.enqueueAvailability(t, "avail:b", testutil.Date(2025, time.March, 10), testutil.Date(2025, time.March, 12))

	var pushed []time.Time
	d.provider.On("UpdateAvailability", mock.Anything, mock.Anything).
		Run(recordAvailabilityDates(&pushed)).
		Return(&provider.PushResult{StatusCode: 200, Records: 1}, nil)

	assert.Equal(t, 2, d.dispatch(t))

	for _, id := range []string{february.ID, march.ID} {
		stored := d.item(t, id)
		assert.Equal(t, model.OutboxStatusCompleted, stored.Status)
		assert.NotContains(t, model.Deref(stored.LastError), "merged into")
	}
	assert.ElementsMatch(t, []time.Time{
		testutil.Date(2025, time.February, 1),
		testutil.Date(2025, time.February, 2),
		testutil.Date(2025, time.February, 3),
		testutil.Date(2025, time.March, 10),
		testutil.Date(2025, time.March, 11),
	}, pushed)
}

func TestOutboxDispatcher_OverlappingWindowsPushTheUnion(t *testing.T) {
	d := newDispatchEnv(t)
	d.enqueueAvailability(t, "avail:a", testutil.Date(2025, time.February, 1), testutil.Date(2025, time.February, 4))
	d.enqueueAvailability(t, "avail:b", testutil.Date(2025, time.February, 3), testutil.Date(2025, time.February, 6))

	var pushed []time.Time
	d.provider.On("UpdateAvailability", mock.Anything, mock.Anything).
		Run(recordAvailabilityDates(&pushed)).
		Return(&provider.PushResult{StatusCode: 200, Records: 5}, nil).
		Once()

	assert.Equal(t, 1, d.dispatch(t))

	require.Len(t, pushed, 5)
	assert.Equal(t, testutil.Date(2025, time.February, 1), pushed[0])
	assert.Equal(t, testutil.Date(2025, time.February, 5), pushed[4])
	d.provider.AssertExpectations(t)
}

func TestOutboxDispatcher_LateUpdateAfterReclaimIsRejected(t *testing.T) {
	d := newDispatchEnv(t)
	ctx := context.Background()
	repo := d.store.Repos().Outbox
	item := d.enqueuePrices(t, "")

	ok, err := repo.Claim(ctx, item.ID, "worker-a", d.now.Add(-10*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	d.dispatcher.Sweep(ctx)

	d.provider.On("UpdateRates", mock.Anything, ratesFor("RP1", 3)).
		Return(&provider.PushResult{StatusCode: 200, Records: 3}, nil).
		Once()
	assert.Equal(t, 1, d.dispatch(t))

	err = repo.Reschedule(ctx, item.ID, "worker-a", 1, d.now.Add(time.Minute), "timeout")
	assert.ErrorIs(t, err, domainErrors.ErrClaimLost)

	stored := d.item(t, item.ID)
	assert.Equal(t, model.OutboxStatusCompleted, stored.Status)
	assert.Nil(t, stored.LastError)
}

func TestOutboxDispatcher_SweepReleasesStaleClaims(t *testing.T) {
	d := newDispatchEnv(t)
	ctx := context.Background()
	item := d.enqueuePrices(t, "")

	ok, err := d.store.Repos().Outbox.Claim(ctx, item.ID, "crashed-worker", d.now.Add(-10*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	d.dispatcher.Sweep(ctx)

	released := d.item(t, item.ID)
	assert.Equal(t, model.OutboxStatusPending, released.Status)
	assert.Nil(t, released.LockedBy)
}
