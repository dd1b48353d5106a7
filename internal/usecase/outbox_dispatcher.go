package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/config"
	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/provider"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
)

// Rough JSON sizes of one pushed value, used to split large windows.
const (
	rateValueBytes  = 96
	availValueBytes = 128
)

// OutboxDispatcherDeps groups the collaborators of the dispatcher.
type OutboxDispatcherDeps struct {
	Store        repository.Store
	Connections  *ConnectionService
	Providers    provider.Registry
	Limiter      *RateLimiter
	Pricing      *PricingCalendar
	Availability *AvailabilityCalendar
	Outbox       *OutboxService
	Audit        *AuditRecorder
	Alerts       *AlertService
	Metrics      *Metrics
}

// OutboxDispatcher drains the integration outbox towards the channel
// manager with a fixed pool of workers.
type OutboxDispatcher struct {
	deps     OutboxDispatcherDeps
	cfg      config.DispatcherConfig
	workerID string
	wakeup   <-chan struct{}
	lastPoll atomic.Int64
	logger   *zap.Logger
	now      Clock
	jitter   func() float64
}

// NewOutboxDispatcher creates a new outbox dispatcher
func NewOutboxDispatcher(deps OutboxDispatcherDeps, cfg config.DispatcherConfig, logger *zap.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		deps:     deps,
		cfg:      cfg,
		workerID: "dispatcher-" + uuid.NewString()[:8],
		logger:   logger,
		now:      SystemClock,
		jitter:   rand.Float64,
	}
}

// SetClock replaces the dispatcher clock.
func (d *OutboxDispatcher) SetClock(now Clock) {
	d.now = now
}

// SetJitter replaces the random source of the retry backoff; f returns a
// value in [0, 1).
func (d *OutboxDispatcher) SetJitter(f func() float64) {
	d.jitter = f
}

// SetWakeup makes the poll loop also react to ch, e.g. database notifications.
func (d *OutboxDispatcher) SetWakeup(ch <-chan struct{}) {
	d.wakeup = ch
}

// Healthy reports whether the poll loop ran recently.
func (d *OutboxDispatcher) Healthy() bool {
	last := d.lastPoll.Load()
	if last == 0 {
		return false
	}
	return time.Since(time.Unix(0, last)) < 3*d.cfg.PollInterval+d.cfg.RequestTimeout
}

// Run polls the outbox and feeds the worker pool until ctx is cancelled.
// Claimed items still in flight finish before Run returns.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	jobs := make(chan *model.IntegrationOutboxItem)

	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				d.process(context.WithoutCancel(ctx), item)
			}
		}()
	}

	poll := time.NewTicker(d.cfg.PollInterval)
	defer poll.Stop()
	sweep := time.NewTicker(d.cfg.LeaseTimeout / 2)
	defer sweep.Stop()

	d.logger.Info("Outbox dispatcher started",
		zap.String("worker_id", d.workerID),
		zap.Int("workers", d.cfg.Workers),
		zap.Duration("poll_interval", d.cfg.PollInterval))

	d.feed(ctx, jobs)
	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			d.logger.Info("Outbox dispatcher stopped")
			return
		case <-poll.C:
			d.feed(ctx, jobs)
		case <-d.wakeup:
			d.feed(ctx, jobs)
		case <-sweep.C:
			d.Sweep(ctx)
		}
	}
}

func (d *OutboxDispatcher) feed(ctx context.Context, jobs chan<- *model.IntegrationOutboxItem) {
	items, err := d.claimDue(ctx)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Error("Failed to claim outbox items", zap.Error(err))
		}
		return
	}

	for i, item := range items {
		select {
		case jobs <- item:
		case <-ctx.Done():
			// Claimed but never started; hand the rest back.
			for _, rest := range items[i:] {
				d.release(context.WithoutCancel(ctx), rest)
			}
			return
		}
	}
}

// DispatchOnce claims one batch and processes it on the calling goroutine.
// It returns the number of items handled.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	items, err := d.claimDue(ctx)
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		d.process(ctx, item)
	}
	return len(items), nil
}

// Sweep returns claims older than the lease timeout to pending.
func (d *OutboxDispatcher) Sweep(ctx context.Context) {
	n, err := d.deps.Store.Repos().Outbox.ReleaseStale(ctx, d.now().Add(-d.cfg.LeaseTimeout))
	if err != nil {
		d.logger.Error("Failed to release stale outbox claims", zap.Error(err))
		return
	}
	if n > 0 {
		d.logger.Warn("Released stale outbox claims", zap.Int64("count", n))
	}
}

// claimDue fetches due rows, merges duplicates and claims the survivors.
func (d *OutboxDispatcher) claimDue(ctx context.Context) ([]*model.IntegrationOutboxItem, error) {
	d.lastPoll.Store(time.Now().UnixNano())

	repo := d.deps.Store.Repos().Outbox
	now := d.now()

	due, err := repo.FetchDue(ctx, now, d.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	keep, merges := Coalesce(due, now, d.cfg.SyncDays)
	for _, m := range merges {
		d.merge(ctx, m, now)
	}

	claimed := make([]*model.IntegrationOutboxItem, 0, len(keep))
	for _, item := range keep {
		token := d.workerID + "/" + uuid.NewString()[:8]
		ok, err := repo.Claim(ctx, item.ID, token, now)
		if err != nil {
			d.logger.Warn("Failed to claim outbox item", zap.String("outbox_id", item.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		item.Status = model.OutboxStatusSending
		item.LockedBy = &token
		item.LockedAt = &now
		claimed = append(claimed, item)
	}
	return claimed, nil
}

// merge widens the survivor to the union window and completes the rows it
// absorbs, in one transaction. A survivor taken by another worker leaves
// every row pending for the next poll.
func (d *OutboxDispatcher) merge(ctx context.Context, m OutboxMerge, now time.Time) {
	errSurvivorGone := errors.New("survivor no longer pending")

	err := d.deps.Store.Transaction(ctx, func(tx *repository.Repositories) error {
		if m.Widen {
			ok, err := tx.Outbox.Widen(ctx, m.Into.ID, m.From, m.To)
			if err != nil {
				return err
			}
			if !ok {
				return errSurvivorGone
			}
		}
		for _, id := range m.Merged {
			ok, err := tx.Outbox.MarkMerged(ctx, id, m.Into.ID, now)
			if err != nil {
				return err
			}
			if ok {
				d.deps.Metrics.OutboxResult(m.Into.EventType, "merged")
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, errSurvivorGone) {
			d.logger.Warn("Failed to merge outbox items",
				zap.String("outbox_id", m.Into.ID),
				zap.Strings("merged", m.Merged),
				zap.Error(err))
		}
		return
	}
	if m.Widen {
		from, to := m.From, m.To
		m.Into.DateFrom, m.Into.DateTo = &from, &to
	}
}

// OutboxMerge collapses the Merged rows into Into, whose window becomes
// [From, To) when Widen is set.
type OutboxMerge struct {
	Into   *model.IntegrationOutboxItem
	Merged []string
	From   time.Time
	To     time.Time
	Widen  bool
}

// Coalesce groups rows by (connection, unit, event type) and, inside a
// group, by overlapping or adjacent date windows. Each cluster collapses to
// its newest row, covering the union of the cluster's windows. Rows without
// dates span [now, now+syncDays). Survivors keep their input order.
func Coalesce(items []*model.IntegrationOutboxItem, now time.Time, syncDays int) ([]*model.IntegrationOutboxItem, []OutboxMerge) {
	type windowed struct {
		item     *model.IntegrationOutboxItem
		from, to time.Time
	}

	var keys []string
	groups := make(map[string][]windowed)
	for _, item := range items {
		key := item.CoalesceKey()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		from, to := item.Window(now, syncDays)
		groups[key] = append(groups[key], windowed{item: item, from: from, to: to})
	}

	survivors := make(map[string]bool, len(items))
	var merges []OutboxMerge
	for _, key := range keys {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool { return group[i].from.Before(group[j].from) })

		for start := 0; start < len(group); {
			end := start + 1
			clusterTo := group[start].to
			for end < len(group) && !group[end].from.After(clusterTo) {
				if group[end].to.After(clusterTo) {
					clusterTo = group[end].to
				}
				end++
			}

			cluster := group[start:end]
			winner := cluster[0]
			for _, w := range cluster[1:] {
				if w.item.CreatedAt.After(winner.item.CreatedAt) {
					winner = w
				}
			}
			survivors[winner.item.ID] = true

			if len(cluster) > 1 {
				m := OutboxMerge{
					Into:  winner.item,
					From:  cluster[0].from,
					To:    clusterTo,
					Widen: !winner.from.Equal(cluster[0].from) || !winner.to.Equal(clusterTo),
				}
				for _, w := range cluster {
					if w.item.ID != winner.item.ID {
						m.Merged = append(m.Merged, w.item.ID)
					}
				}
				merges = append(merges, m)
			}
			start = end
		}
	}

	keep := make([]*model.IntegrationOutboxItem, 0, len(survivors))
	for _, item := range items {
		if survivors[item.ID] {
			keep = append(keep, item)
		}
	}
	return keep, merges
}

// BackoffDelay is base*2^(attempts-1) capped at max, scaled by ±20% using
// r in [0, 1).
func BackoffDelay(attempts int, base, max time.Duration, r float64) time.Duration {
	d := base
	for i := 1; i < attempts && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return time.Duration(float64(d) * (0.8 + 0.4*r))
}

type pushChunk struct {
	rates []provider.RateValue
	avail []provider.AvailabilityValue
}

func (c pushChunk) size() int {
	return len(c.rates) + len(c.avail)
}

func (d *OutboxDispatcher) process(ctx context.Context, item *model.IntegrationOutboxItem) {
	started := time.Now()
	log := d.logger.With(
		zap.String("outbox_id", item.ID),
		zap.String("event_type", string(item.EventType)),
		zap.String("connection_id", item.ConnectionID),
		zap.String("unit_id", item.UnitID))

	repos := d.deps.Store.Repos()

	conn, err := repos.Connections.GetByID(ctx, item.ConnectionID)
	if err != nil {
		d.retry(ctx, log, item, nil, err)
		return
	}
	if conn == nil || !conn.Dispatchable() {
		d.failPermanently(ctx, log, item, nil, fmt.Errorf("connection %s is not available", item.ConnectionID))
		return
	}

	if item.EventType == model.OutboxEventFullSync {
		d.expandFullSync(ctx, log, item)
		return
	}

	mapping, err := repos.Mappings.GetActiveForUnit(ctx, conn.ID, item.UnitID)
	if err != nil {
		d.retry(ctx, log, item, conn, err)
		return
	}
	if mapping == nil {
		d.failPermanently(ctx, log, item, conn, domainErrors.ErrMappingNotFound)
		return
	}

	client, err := d.deps.Providers.Get(conn.Provider)
	if err != nil {
		d.failPermanently(ctx, log, item, conn, err)
		return
	}
	creds, err := d.deps.Connections.Credentials(conn)
	if err != nil {
		d.failPermanently(ctx, log, item, conn, err)
		return
	}

	from, to := item.Window(d.now(), d.cfg.SyncDays)
	chunks, bucket, err := d.buildChunks(ctx, item, mapping, from, to)
	if err != nil {
		if errors.Is(err, domainErrors.ErrPricingPolicyNotFound) || errors.Is(err, domainErrors.ErrMappingNotFound) {
			d.failPermanently(ctx, log, item, conn, err)
		} else {
			d.retry(ctx, log, item, conn, err)
		}
		return
	}

	records := 0
	var requestIDs []string
	for i, chunk := range chunks {
		decision, err := d.deps.Limiter.TryAcquire(ctx, conn.PropertyID, bucket)
		if err != nil {
			d.retry(ctx, log, item, conn, err)
			return
		}
		if !decision.Allowed {
			log.Debug("Outbox item deferred by rate limiter",
				zap.Int("chunk", i),
				zap.Duration("wait", decision.Wait))
			d.release(ctx, item)
			d.deps.Metrics.OutboxResult(item.EventType, "deferred")
			return
		}

		result, err := d.push(ctx, client, creds, item, mapping, chunk)
		if err != nil {
			d.handlePushError(ctx, log, item, conn, err, started)
			return
		}
		records += result.Records
		if result.RequestID != "" {
			requestIDs = append(requestIDs, result.RequestID)
		}
	}

	d.succeed(ctx, log, item, conn, mapping, bucket, from, to, records, requestIDs, started)
}

func (d *OutboxDispatcher) buildChunks(ctx context.Context, item *model.IntegrationOutboxItem, mapping *model.ExternalMapping, from, to time.Time) ([]pushChunk, model.Bucket, error) {
	switch item.EventType {
	case model.OutboxEventPriceUpdate:
		if model.Deref(mapping.RatePlanID) == "" {
			return nil, model.BucketPrice, fmt.Errorf("mapping %s has no rate plan: %w", mapping.ID, domainErrors.ErrMappingNotFound)
		}
		prices, err := d.deps.Pricing.NightlyPrices(ctx, item.UnitID, from, to)
		if err != nil {
			return nil, model.BucketPrice, err
		}
		values := make([]provider.RateValue, len(prices))
		for i, p := range prices {
			values[i] = provider.RateValue{Date: p.Date, Rate: p.Price}
		}
		per := d.perChunk(rateValueBytes)
		var chunks []pushChunk
		for start := 0; start < len(values); start += per {
			end := min(start+per, len(values))
			chunks = append(chunks, pushChunk{rates: values[start:end]})
		}
		return chunks, model.BucketPrice, nil

	case model.OutboxEventAvailUpdate:
		days, err := d.deps.Availability.Daily(ctx, item.UnitID, from, to)
		if err != nil {
			return nil, model.BucketAvailability, err
		}
		values := make([]provider.AvailabilityValue, len(days))
		for i, day := range days {
			values[i] = provider.AvailabilityValue{Date: day.Date, Availability: day.Available}
		}
		per := d.perChunk(availValueBytes)
		var chunks []pushChunk
		for start := 0; start < len(values); start += per {
			end := min(start+per, len(values))
			chunks = append(chunks, pushChunk{avail: values[start:end]})
		}
		return chunks, model.BucketAvailability, nil

	default:
		return nil, "", fmt.Errorf("unsupported outbox event type %q", item.EventType)
	}
}

func (d *OutboxDispatcher) perChunk(valueBytes int) int {
	return max(1, d.cfg.MaxPayloadBytes/valueBytes)
}

func (d *OutboxDispatcher) push(ctx context.Context, client provider.ChannelProvider, creds provider.Credentials, item *model.IntegrationOutboxItem, mapping *model.ExternalMapping, chunk pushChunk) (*provider.PushResult, error) {
	rctx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	started := time.Now()
	defer func() {
		d.deps.Metrics.PushObserved(item.EventType, time.Since(started))
	}()

	if chunk.rates != nil {
		return client.UpdateRates(rctx, &provider.RateUpdateRequest{
			Credentials: creds,
			OutboxID:    item.ID,
			RatePlanID:  model.Deref(mapping.RatePlanID),
			Values:      chunk.rates,
		})
	}
	return client.UpdateAvailability(rctx, &provider.AvailabilityUpdateRequest{
		Credentials: creds,
		OutboxID:    item.ID,
		RoomTypeID:  mapping.RoomTypeID,
		Values:      chunk.avail,
	})
}

func (d *OutboxDispatcher) expandFullSync(ctx context.Context, log *zap.Logger, item *model.IntegrationOutboxItem) {
	from, to := item.Window(d.now(), d.cfg.SyncDays)

	var ids []string
	err := d.deps.Store.Transaction(ctx, func(tx *repository.Repositories) error {
		for _, part := range []struct {
			eventType model.OutboxEventType
			suffix    string
		}{
			{model.OutboxEventPriceUpdate, ":price"},
			{model.OutboxEventAvailUpdate, ":avail"},
		} {
			child, _, err := d.deps.Outbox.Enqueue(ctx, tx, EnqueueRequest{
				EventType:      part.eventType,
				ConnectionID:   item.ConnectionID,
				UnitID:         item.UnitID,
				DateFrom:       &from,
				DateTo:         &to,
				IdempotencyKey: item.ID + part.suffix,
			})
			if err != nil {
				return err
			}
			ids = append(ids, child.ID)
		}
		return tx.Outbox.Complete(ctx, item.ID, model.Deref(item.LockedBy), model.JSONB{"expanded_into": ids}, d.now())
	})
	if err != nil {
		if errors.Is(err, domainErrors.ErrClaimLost) {
			log.Warn("Outbox claim lost during full sync expansion")
			return
		}
		d.retry(ctx, log, item, nil, err)
		return
	}

	d.deps.Metrics.OutboxResult(item.EventType, "expanded")
	log.Info("Full sync expanded", zap.Strings("items", ids))
}

func (d *OutboxDispatcher) succeed(ctx context.Context, log *zap.Logger, item *model.IntegrationOutboxItem, conn *model.ChannelConnection, mapping *model.ExternalMapping, bucket model.Bucket, from, to time.Time, records int, requestIDs []string, started time.Time) {
	repos := d.deps.Store.Repos()
	now := d.now()

	response := model.JSONB{"records": records, "request_ids": requestIDs}
	if err := repos.Outbox.Complete(ctx, item.ID, model.Deref(item.LockedBy), response, now); err != nil {
		log.Warn("Failed to complete outbox item", zap.Error(err))
		return
	}

	if err := repos.Mappings.TouchSync(ctx, mapping.ID, bucket, now); err != nil {
		log.Warn("Failed to record mapping sync time", zap.Error(err))
	}
	if err := repos.Connections.RecordSuccess(ctx, conn.ID, now); err != nil {
		log.Warn("Failed to record connection success", zap.Error(err))
	}
	if err := d.deps.Limiter.OnSuccess(ctx, conn.PropertyID); err != nil {
		log.Warn("Failed to record limiter success", zap.Error(err))
	}

	requestID := ""
	if len(requestIDs) > 0 {
		requestID = requestIDs[0]
	}
	d.audit(ctx, item, conn, mapping, model.AuditStatusSuccess, nil, &from, &to, records, requestID, started)
	d.deps.Metrics.OutboxResult(item.EventType, "completed")

	log.Info("Outbox item delivered",
		zap.Int("records", records),
		zap.Duration("duration", time.Since(started)))
}

func (d *OutboxDispatcher) handlePushError(ctx context.Context, log *zap.Logger, item *model.IntegrationOutboxItem, conn *model.ChannelConnection, err error, started time.Time) {
	var rateLimited *domainErrors.RateLimitedError
	var rejected *provider.ProviderError

	switch {
	case errors.As(err, &rateLimited):
		d.deps.Metrics.RemoteRateLimited()
		until, lerr := d.deps.Limiter.OnRateLimited(ctx, conn.PropertyID, rateLimited.RetryAfter)
		if lerr != nil {
			log.Warn("Failed to pause property", zap.Error(lerr))
			until = d.now().Add(BackoffDelay(1, d.cfg.BaseBackoff, d.cfg.MaxBackoff, d.jitter()))
		}
		if rerr := d.deps.Store.Repos().Outbox.Reschedule(ctx, item.ID, model.Deref(item.LockedBy), item.Attempts, until, err.Error()); rerr != nil {
			log.Warn("Failed to reschedule rate limited item", zap.Error(rerr))
			return
		}
		d.audit(ctx, item, conn, nil, model.AuditStatusRetrying, err, nil, nil, 0, "", started)
		d.deps.Metrics.OutboxResult(item.EventType, "rate_limited")
		log.Warn("Outbox item rate limited by remote", zap.Time("next_attempt_at", until))

	case errors.As(err, &rejected):
		d.failPermanently(ctx, log, item, conn, err)

	default:
		d.retry(ctx, log, item, conn, err)
	}
}

// retry counts a transient failure and reschedules or fails the item.
func (d *OutboxDispatcher) retry(ctx context.Context, log *zap.Logger, item *model.IntegrationOutboxItem, conn *model.ChannelConnection, cause error) {
	attempts := item.Attempts + 1
	repo := d.deps.Store.Repos().Outbox

	if conn != nil {
		if err := d.deps.Store.Repos().Connections.RecordFailure(ctx, conn.ID, cause.Error(), d.cfg.ConnectionErrorThreshold); err != nil {
			log.Warn("Failed to record connection failure", zap.Error(err))
		}
	}

	if attempts >= item.MaxAttempts {
		exhausted := fmt.Errorf("%w: %v", domainErrors.ErrAttemptsExhausted, cause)
		if err := repo.Fail(ctx, item.ID, model.Deref(item.LockedBy), attempts, exhausted.Error()); err != nil {
			log.Warn("Failed to fail outbox item", zap.Error(err))
			return
		}
		d.audit(ctx, item, conn, nil, model.AuditStatusFailed, exhausted, nil, nil, 0, "", time.Now())
		d.raiseSyncError(ctx, item, conn, exhausted)
		d.deps.Metrics.OutboxResult(item.EventType, "failed")
		log.Error("Outbox item failed after retries", zap.Int("attempts", attempts), zap.Error(cause))
		return
	}

	next := d.now().Add(BackoffDelay(attempts, d.cfg.BaseBackoff, d.cfg.MaxBackoff, d.jitter()))
	if err := repo.Reschedule(ctx, item.ID, model.Deref(item.LockedBy), attempts, next, cause.Error()); err != nil {
		log.Warn("Failed to reschedule outbox item", zap.Error(err))
		return
	}
	d.audit(ctx, item, conn, nil, model.AuditStatusRetrying, cause, nil, nil, 0, "", time.Now())
	d.deps.Metrics.OutboxResult(item.EventType, "retrying")
	log.Warn("Outbox item rescheduled",
		zap.Int("attempts", attempts),
		zap.Time("next_attempt_at", next),
		zap.Error(cause))
}

func (d *OutboxDispatcher) failPermanently(ctx context.Context, log *zap.Logger, item *model.IntegrationOutboxItem, conn *model.ChannelConnection, cause error) {
	attempts := item.Attempts + 1
	if err := d.deps.Store.Repos().Outbox.Fail(ctx, item.ID, model.Deref(item.LockedBy), attempts, cause.Error()); err != nil {
		log.Warn("Failed to fail outbox item", zap.Error(err))
		return
	}
	if conn != nil {
		if err := d.deps.Store.Repos().Connections.RecordFailure(ctx, conn.ID, cause.Error(), d.cfg.ConnectionErrorThreshold); err != nil {
			log.Warn("Failed to record connection failure", zap.Error(err))
		}
	}

	d.audit(ctx, item, conn, nil, model.AuditStatusFailed, cause, nil, nil, 0, "", time.Now())
	d.raiseSyncError(ctx, item, conn, cause)
	d.deps.Metrics.OutboxResult(item.EventType, "failed")
	log.Error("Outbox item failed permanently", zap.Error(cause))
}

func (d *OutboxDispatcher) release(ctx context.Context, item *model.IntegrationOutboxItem) {
	if err := d.deps.Store.Repos().Outbox.Release(ctx, item.ID, model.Deref(item.LockedBy)); err != nil {
		d.logger.Warn("Failed to release outbox item",
			zap.String("outbox_id", item.ID),
			zap.Error(err))
	}
}

func (d *OutboxDispatcher) raiseSyncError(ctx context.Context, item *model.IntegrationOutboxItem, conn *model.ChannelConnection, cause error) {
	propertyID := ""
	if conn != nil {
		propertyID = conn.PropertyID
	}
	_, _ = d.deps.Alerts.Raise(ctx, RaiseAlert{
		Type:         model.AlertSyncError,
		Severity:     model.SeverityHigh,
		ConnectionID: item.ConnectionID,
		PropertyID:   propertyID,
		Message:      fmt.Sprintf("%s for unit %s failed: %v", item.EventType, item.UnitID, cause),
		Payload:      model.JSONB{"outbox_id": item.ID, "attempts": item.Attempts + 1},
	})
}

func (d *OutboxDispatcher) audit(ctx context.Context, item *model.IntegrationOutboxItem, conn *model.ChannelConnection, mapping *model.ExternalMapping, status model.AuditStatus, cause error, from, to *time.Time, records int, requestID string, started time.Time) {
	externalID := ""
	if mapping != nil {
		externalID = mapping.RoomTypeID
		if item.EventType == model.OutboxEventPriceUpdate {
			externalID = model.Deref(mapping.RatePlanID)
		}
	}
	payload, _ := json.Marshal(item.Payload)
	if item.Payload == nil {
		payload = nil
	}

	d.deps.Audit.RecordAudit(ctx, AuditEntry{
		ConnectionID: item.ConnectionID,
		Direction:    model.DirectionOutbound,
		EntityType:   string(item.EventType),
		ExternalID:   externalID,
		UnitID:       item.UnitID,
		Payload:      payload,
		DateFrom:     from,
		DateTo:       to,
		RecordsCount: records,
		Status:       status,
		Err:          cause,
		RetryCount:   item.Attempts,
		Duration:     time.Since(started),
		RequestID:    requestID,
	})
}
