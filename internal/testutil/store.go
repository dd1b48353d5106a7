// Package testutil builds throwaway sqlite stores and fixtures for tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/infrastructure/database"
)

// NewStore opens a private in-memory sqlite database and migrates it.
func NewStore(t testing.TB) *database.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db, zap.NewNop()))
	return database.NewStore(db, zap.NewNop())
}

// FixedClock returns a clock frozen at *now; tests advance it by assignment.
func FixedClock(now *time.Time) func() time.Time {
	return func() time.Time { return *now }
}

// Date returns midnight UTC of the given day.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Connection inserts an active connection for propertyID. Credentials are
// placeholders; services that decrypt need CreateConnection instead.
func Connection(t testing.TB, store *database.Store, propertyID string) *model.ChannelConnection {
	t.Helper()
	conn := &model.ChannelConnection{
		ProjectID:       "project-1",
		Provider:        "channex",
		PropertyID:      propertyID,
		APIKeyEncrypted: "unused",
		APIKeyIV:        "unused",
		Status:          model.ConnectionStatusActive,
	}
	require.NoError(t, store.Repos().Connections.Create(context.Background(), conn))
	return conn
}

// Mapping inserts an active mapping of unitID onto roomTypeID.
func Mapping(t testing.TB, store *database.Store, connectionID, unitID, roomTypeID, ratePlanID string) *model.ExternalMapping {
	t.Helper()
	mapping := &model.ExternalMapping{
		ConnectionID: connectionID,
		UnitID:       unitID,
		RoomTypeID:   roomTypeID,
		RatePlanID:   model.StringPtr(ratePlanID),
		MappingType:  model.MappingTypeUnitToRoom,
		IsActive:     true,
	}
	require.NoError(t, store.Repos().Mappings.Create(context.Background(), mapping))
	return mapping
}

// PricingPolicy stores a flat nightly price for unitID.
func PricingPolicy(t testing.TB, store *database.Store, unitID string, base int64) *model.PricingPolicy {
	t.Helper()
	policy := &model.PricingPolicy{
		UnitID:        unitID,
		BasePrice:     decimal.NewFromInt(base),
		WeekendMarkup: decimal.Zero,
		WeekendDays:   "5,6",
		Currency:      "SAR",
	}
	require.NoError(t, store.Repos().PricingPolicies.Save(context.Background(), policy))
	return policy
}
