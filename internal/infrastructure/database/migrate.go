package database

import (
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OutboxChannel is the postgres notification channel raised on outbox inserts.
const OutboxChannel = "outbox_ready"

// Migrate runs database migrations. Postgres-only objects are skipped on
// other dialects so the same schema can back sqlite tests.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	postgres := db.Dialector.Name() == "postgres"
	if postgres {
		if err := createExtensions(db); err != nil {
			logger.Error("Failed to create extensions", zap.Error(err))
			return err
		}
	}

	err := db.AutoMigrate(
		&model.ChannelConnection{},
		&model.ExternalMapping{},
		&model.InboundIdempotencyRecord{},
		&model.BookingRevision{},
		&model.UnmatchedWebhookEvent{},
		&model.IntegrationOutboxItem{},
		&model.PropertyRateState{},
		&model.IntegrationAuditRecord{},
		&model.IntegrationLog{},
		&model.WebhookEventLog{},
		&model.IntegrationAlert{},
		&model.Booking{},
		&model.PricingPolicy{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if postgres {
		if err := createCustomIndexes(db); err != nil {
			logger.Error("Failed to create custom indexes", zap.Error(err))
			return err
		}
		if err := createDatabaseFunctions(db); err != nil {
			logger.Error("Failed to create database functions", zap.Error(err))
			return err
		}
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates partial indexes GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_outbox_due ON integration_outbox (next_attempt_at) WHERE status = 'pending'`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_sending ON integration_outbox (locked_at) WHERE status = 'sending'`,
		`CREATE INDEX IF NOT EXISTS idx_unmatched_open ON unmatched_webhook_events (connection_id, created_at) WHERE status IN ('pending', 'retrying')`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_open ON integration_alerts (created_at) WHERE status = 'open'`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// createExtensions creates required PostgreSQL extensions
func createExtensions(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error
}

// createDatabaseFunctions installs the trigger that wakes dispatchers when
// an outbox row becomes pending.
func createDatabaseFunctions(db *gorm.DB) error {
	notifySQL := `
CREATE OR REPLACE FUNCTION notify_outbox_ready() RETURNS TRIGGER AS $$
BEGIN
    IF NEW.status = 'pending' THEN
        PERFORM pg_notify('` + OutboxChannel + `', NEW.id::text);
    END IF;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;`

	if err := db.Exec(notifySQL).Error; err != nil {
		return err
	}
	if err := db.Exec(`DROP TRIGGER IF EXISTS integration_outbox_notify ON integration_outbox`).Error; err != nil {
		return err
	}
	return db.Exec(`
CREATE TRIGGER integration_outbox_notify
    AFTER INSERT ON integration_outbox
    FOR EACH ROW EXECUTE FUNCTION notify_outbox_ready();`).Error
}
