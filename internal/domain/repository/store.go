package repository

import "context"

// Repositories holds all repository instances bound to one database handle
type Repositories struct {
	Connections     ConnectionRepository
	Mappings        MappingRepository
	Idempotency     IdempotencyRepository
	Revisions       RevisionRepository
	Unmatched       UnmatchedRepository
	WebhookEvents   WebhookEventLogRepository
	Outbox          OutboxRepository
	RateStates      RateStateRepository
	Audit           AuditRepository
	Alerts          AlertRepository
	Bookings        BookingStore
	PricingPolicies PricingPolicyRepository
}

// Store exposes the repositories and runs units of work atomically
type Store interface {
	Repos() *Repositories
	// Transaction runs fn with repositories bound to one transaction; any
	// error rolls everything back
	Transaction(ctx context.Context, fn func(tx *Repositories) error) error
}
