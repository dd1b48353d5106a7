package database

import (
	"context"

	"github.com/2Raz/mnam-backend-sub001/internal/adapter/repository"
	domainRepo "github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *domainRepo.Repositories {
	return &domainRepo.Repositories{
		Connections:     repository.NewConnectionRepository(db, logger),
		Mappings:        repository.NewMappingRepository(db, logger),
		Idempotency:     repository.NewIdempotencyRepository(db, logger),
		Revisions:       repository.NewRevisionRepository(db, logger),
		Unmatched:       repository.NewUnmatchedRepository(db, logger),
		WebhookEvents:   repository.NewWebhookEventLogRepository(db, logger),
		Outbox:          repository.NewOutboxRepository(db, logger),
		RateStates:      repository.NewRateStateRepository(db, logger),
		Audit:           repository.NewAuditRepository(db, logger),
		Alerts:          repository.NewAlertRepository(db, logger),
		Bookings:        repository.NewBookingRepository(db, logger),
		PricingPolicies: repository.NewPricingPolicyRepository(db, logger),
	}
}

// Store is the gorm backed unit of work
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	repos  *domainRepo.Repositories
}

// NewStore creates a store over db
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
		repos:  NewRepositories(db, logger),
	}
}

func (s *Store) Repos() *domainRepo.Repositories {
	return s.repos
}

func (s *Store) Transaction(ctx context.Context, fn func(tx *domainRepo.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx, s.logger))
	})
}

// DB returns the underlying handle
func (s *Store) DB() *gorm.DB {
	return s.db
}
