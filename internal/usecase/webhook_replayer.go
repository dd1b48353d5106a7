package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/config"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
)

// WebhookReplayer re-processes stored webhook events that failed or were
// left unfinished by a crashed process.
type WebhookReplayer struct {
	store     repository.Store
	processor *WebhookProcessor
	metrics   *Metrics
	cfg       config.ReplayConfig
	workerID  string
	logger    *zap.Logger
	now       Clock
}

// NewWebhookReplayer creates a new webhook replayer
func NewWebhookReplayer(store repository.Store, processor *WebhookProcessor, metrics *Metrics, cfg config.ReplayConfig, logger *zap.Logger) *WebhookReplayer {
	return &WebhookReplayer{
		store:     store,
		processor: processor,
		metrics:   metrics,
		cfg:       cfg,
		workerID:  "replayer-" + uuid.NewString()[:8],
		logger:    logger,
		now:       SystemClock,
	}
}

// SetClock replaces the replayer clock.
func (r *WebhookReplayer) SetClock(now Clock) {
	r.now = now
}

// Run replays due events every interval until ctx is cancelled.
func (r *WebhookReplayer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("Webhook replayer started",
		zap.String("worker_id", r.workerID),
		zap.Duration("interval", r.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Webhook replayer stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("Webhook replay pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce claims one batch and replays it. It returns the number of events
// that ended without error.
func (r *WebhookReplayer) RunOnce(ctx context.Context) (int, error) {
	now := r.now()
	rows, err := r.store.Repos().WebhookEvents.ClaimForReplay(ctx, r.workerID, now, now.Add(-r.cfg.StaleAfter), r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}

		result, err := r.processor.Replay(ctx, row)
		if err != nil {
			r.metrics.WebhookReplayed("failed")
			r.logger.Warn("Webhook replay failed",
				zap.String("log_id", row.ID),
				zap.Int("attempts", row.Attempts),
				zap.Error(err))
			continue
		}

		done++
		r.metrics.WebhookReplayed(string(result.Action))
		r.logger.Info("Webhook replayed",
			zap.String("log_id", row.ID),
			zap.String("action", string(result.Action)))
	}
	return done, nil
}
