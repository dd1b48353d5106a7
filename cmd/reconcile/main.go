package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/config"
	"github.com/2Raz/mnam-backend-sub001/internal/infrastructure/database"
	"github.com/2Raz/mnam-backend-sub001/internal/usecase"
	pkgLogger "github.com/2Raz/mnam-backend-sub001/pkg/logger"
)

// reconcile runs one quarantine resolution pass and, optionally, puts every
// failed outbox row back in the queue.
func main() {
	limit := flag.Int("limit", 500, "maximum quarantined events to retry")
	retryFailed := flag.Bool("retry-failed-outbox", false, "reset failed outbox rows to pending")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall deadline")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := pkgLogger.NewZapLogger(pkgLogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, logger); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	if err := database.Migrate(db, logger); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	store := database.NewStore(db, logger)
	outbox := usecase.NewOutboxService(store, cfg.Dispatcher, logger)
	reconciler := usecase.NewRevisionReconciler(usecase.NewBookingValidator(cfg.Booking), cfg.Booking.DefaultCurrency, logger)
	quarantine := usecase.NewQuarantineService(store, reconciler, outbox, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	summary, err := quarantine.ResolvePending(ctx, *limit)
	if err != nil {
		logger.Fatal("Quarantine resolution failed", zap.Error(err))
	}
	logger.Info("Quarantine resolution finished",
		zap.Int("attempted", summary.Attempted),
		zap.Int("resolved", summary.Resolved),
		zap.Int("retrying", summary.Retrying),
		zap.Int("failed", summary.Failed))

	if *retryFailed {
		reset, err := outbox.RetryAllFailed(ctx)
		if err != nil {
			logger.Fatal("Failed to reset outbox rows", zap.Error(err))
		}
		logger.Info("Failed outbox rows requeued", zap.Int64("count", reset))
	}
}
