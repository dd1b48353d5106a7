package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/config"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/entity"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
)

// RateLimiter enforces the per-property token buckets shared by every worker
// and process. All state lives in the property_rate_states table.
type RateLimiter struct {
	repo    repository.RateStateRepository
	policy  model.BucketPolicy
	metrics *Metrics
	logger  *zap.Logger
	now     Clock
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(repo repository.RateStateRepository, cfg config.RateLimitConfig, metrics *Metrics, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		repo: repo,
		policy: model.BucketPolicy{
			Capacity:        cfg.Capacity,
			RefillPerSecond: cfg.RefillPerSecond,
			BasePause:       cfg.BasePause,
			MaxPause:        cfg.MaxPause,
		},
		metrics: metrics,
		logger:  logger,
		now:     SystemClock,
	}
}

// SetClock replaces the limiter clock.
func (l *RateLimiter) SetClock(now Clock) {
	l.now = now
}

func (l *RateLimiter) seed(propertyID string) func() *model.PropertyRateState {
	return func() *model.PropertyRateState {
		return model.NewPropertyRateState(propertyID, l.policy, l.now())
	}
}

// TryAcquire takes one token from the bucket of the property.
func (l *RateLimiter) TryAcquire(ctx context.Context, propertyID string, bucket model.Bucket) (entity.Decision, error) {
	var decision entity.Decision

	_, err := l.repo.Update(ctx, propertyID, l.seed(propertyID), func(state *model.PropertyRateState) error {
		allowed, wait := state.TryConsume(bucket, l.policy, l.now())
		decision = entity.Decision{Allowed: allowed, Wait: wait}
		return nil
	})
	if err != nil {
		return entity.Decision{}, fmt.Errorf("failed to acquire rate token: %w", err)
	}

	if !decision.Allowed {
		l.metrics.RateLimitDenied(bucket)
		l.logger.Debug("Rate limit denied",
			zap.String("property_id", propertyID),
			zap.String("bucket", string(bucket)),
			zap.Duration("wait", decision.Wait))
	}

	return decision, nil
}

// OnRateLimited pauses the property after a 429. It returns the end of the
// pause window.
func (l *RateLimiter) OnRateLimited(ctx context.Context, propertyID string, hint time.Duration) (time.Time, error) {
	var until time.Time

	state, err := l.repo.Update(ctx, propertyID, l.seed(propertyID), func(state *model.PropertyRateState) error {
		until = state.Pause(l.policy, hint, l.now())
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to pause property: %w", err)
	}

	l.logger.Warn("Property paused after rate limit",
		zap.String("property_id", propertyID),
		zap.Time("paused_until", until),
		zap.Int("pause_count", state.PauseCount),
		zap.Duration("hint", hint))

	return until, nil
}

// OnSuccess relaxes the penalty once a pause window has passed.
func (l *RateLimiter) OnSuccess(ctx context.Context, propertyID string) error {
	current, err := l.repo.Get(ctx, propertyID)
	if err != nil {
		return err
	}
	if current == nil || current.PausedUntil == nil {
		return nil
	}

	_, err = l.repo.Update(ctx, propertyID, l.seed(propertyID), func(state *model.PropertyRateState) error {
		state.Recover(l.now())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record rate success: %w", err)
	}
	return nil
}

// State returns the stored limiter row, refilled to now without persisting.
func (l *RateLimiter) State(ctx context.Context, propertyID string) (*model.PropertyRateState, error) {
	state, err := l.repo.Get(ctx, propertyID)
	if err != nil || state == nil {
		return state, err
	}
	now := l.now()
	state.Refill(model.BucketPrice, l.policy, now)
	state.Refill(model.BucketAvailability, l.policy, now)
	return state, nil
}
