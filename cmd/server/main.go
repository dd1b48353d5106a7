package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	handlers "github.com/2Raz/mnam-backend-sub001/internal/adapter/handler/http"
	"github.com/2Raz/mnam-backend-sub001/internal/config"
	"github.com/2Raz/mnam-backend-sub001/internal/infrastructure/crypto"
	"github.com/2Raz/mnam-backend-sub001/internal/infrastructure/database"
	grpcServer "github.com/2Raz/mnam-backend-sub001/internal/infrastructure/grpc"
	httpServer "github.com/2Raz/mnam-backend-sub001/internal/infrastructure/http"
	providerFactory "github.com/2Raz/mnam-backend-sub001/internal/infrastructure/provider"
	"github.com/2Raz/mnam-backend-sub001/internal/usecase"
	pkgLogger "github.com/2Raz/mnam-backend-sub001/pkg/logger"
	"github.com/2Raz/mnam-backend-sub001/pkg/messaging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := pkgLogger.NewZapLogger(pkgLogger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		FilePath:    cfg.Log.FilePath,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger = logger.With(
		zap.String("service", cfg.Service.Name),
		zap.String("environment", cfg.Service.Environment),
		zap.String("version", cfg.Service.Version))

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
	repos := store.Repos()

	redisClient := messaging.NewNoopClient()
	if cfg.Redis.Enabled {
		redisClient, err = messaging.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
	}
	defer redisClient.Close()

	encryptor, err := crypto.NewAESEncryptionService(cfg.Encryption.Key)
	if err != nil {
		logger.Fatal("Failed to initialize encryption", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := usecase.NewMetrics(registry)

	audit := usecase.NewAuditRecorder(repos.Audit, repos.Connections, logger)
	providers := providerFactory.NewFactory(cfg, audit, logger)

	alerts := usecase.NewAlertService(repos.Alerts, redisClient, logger)
	outbox := usecase.NewOutboxService(store, cfg.Dispatcher, logger)
	connections := usecase.NewConnectionService(store, encryptor, outbox, cfg.Webhook.ConnectionCache, logger)
	limiter := usecase.NewRateLimiter(repos.RateStates, cfg.RateLimit, metrics, logger)

	validator := usecase.NewBookingValidator(cfg.Booking)
	reconciler := usecase.NewRevisionReconciler(validator, cfg.Booking.DefaultCurrency, logger)
	quarantine := usecase.NewQuarantineService(store, reconciler, outbox, logger)

	processor := usecase.NewWebhookProcessor(usecase.WebhookProcessorDeps{
		Store:       store,
		Connections: connections,
		Guard:       usecase.NewIdempotencyGuard(logger),
		Reconciler:  reconciler,
		Outbox:      outbox,
		Alerts:      alerts,
		Publisher:   redisClient,
		Metrics:     metrics,
	}, cfg.Webhook, cfg.Replay, cfg.Service.Provider, logger)

	dispatcher := usecase.NewOutboxDispatcher(usecase.OutboxDispatcherDeps{
		Store:        store,
		Connections:  connections,
		Providers:    providers,
		Limiter:      limiter,
		Pricing:      usecase.NewPricingCalendar(repos.PricingPolicies),
		Availability: usecase.NewAvailabilityCalendar(repos.Bookings),
		Outbox:       outbox,
		Audit:        audit,
		Alerts:       alerts,
		Metrics:      metrics,
	}, cfg.Dispatcher, logger)

	replayer := usecase.NewWebhookReplayer(store, processor, metrics, cfg.Replay, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var workers sync.WaitGroup
	startWorker := func(name string, run func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			logger.Info("Starting worker", zap.String("worker", name))
			run(ctx)
			logger.Info("Worker stopped", zap.String("worker", name))
		}()
	}

	// Mapping creation reaches the quarantine through redis when it is on,
	// so every replica can react; otherwise it is called directly.
	if cfg.Redis.Enabled {
		connections.SetMappingObserver(usecase.NewMappingPublisher(redisClient, logger))
		startWorker("mapping-subscriber", func(ctx context.Context) {
			if err := quarantine.Subscribe(ctx, redisClient); err != nil {
				logger.Error("Mapping subscription failed", zap.Error(err))
			}
		})
	} else {
		connections.SetMappingObserver(quarantine)
	}

	if cfg.Dispatcher.ListenNotify {
		listener := database.NewNotifyListener(cfg.Database.URL(), database.OutboxChannel, logger)
		dispatcher.SetWakeup(listener.C())
		startWorker("outbox-notify", listener.Run)
	}
	startWorker("outbox-dispatcher", dispatcher.Run)
	if cfg.Replay.Enabled {
		startWorker("webhook-replayer", replayer.Run)
	}

	grpcSrv := grpcServer.NewServer(cfg, logger, dispatcher.Healthy)
	startWorker("health-check", grpcSrv.Watch)

	httpSrv := httpServer.NewServer(cfg, logger, httpServer.Handlers{
		Webhook:    handlers.NewWebhookHandler(processor, logger),
		Connection: handlers.NewConnectionHandler(connections, logger),
		Outbox:     handlers.NewOutboxHandler(outbox, logger),
		Unmatched:  handlers.NewUnmatchedHandler(quarantine, logger),
		Alert:      handlers.NewAlertHandler(alerts, logger),
		RateState:  handlers.NewRateStateHandler(limiter, logger),
	}, registry, dispatcher.Healthy)

	go func() {
		if err := grpcSrv.Start(); err != nil {
			logger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info("Shutting down servers...", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	// Workers finish the item in hand; unfinished leases are swept on restart.
	cancel()
	workers.Wait()

	if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown gRPC server", zap.Error(err))
	}

	logger.Info("Servers shut down successfully")
}
