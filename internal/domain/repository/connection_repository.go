package repository

import (
	"context"
	"time"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
)

// ConnectionRepository manages channel connections
type ConnectionRepository interface {
	Create(ctx context.Context, conn *model.ChannelConnection) error
	// GetByID returns nil when the connection does not exist or was deleted
	GetByID(ctx context.Context, id string) (*model.ChannelConnection, error)
	ListActive(ctx context.Context) ([]*model.ChannelConnection, error)
	SoftDelete(ctx context.Context, id string) error

	// RecordSuccess marks the connection active and resets its error count
	RecordSuccess(ctx context.Context, id string, at time.Time) error
	// RecordFailure bumps the error count and flips to error at threshold
	RecordFailure(ctx context.Context, id string, message string, threshold int) error
	// IncrementRequests counts one outbound exchange for the given day
	IncrementRequests(ctx context.Context, id string, day time.Time) error
}

// MappingRepository manages unit to room type mappings
type MappingRepository interface {
	Create(ctx context.Context, mapping *model.ExternalMapping) error
	GetByID(ctx context.Context, id string) (*model.ExternalMapping, error)
	Deactivate(ctx context.Context, id string) error

	// ResolveUnit finds the active mapping for a remote room type, falling
	// back to the rate plan when the room type is unknown
	ResolveUnit(ctx context.Context, connectionID, roomTypeID, ratePlanID string) (*model.ExternalMapping, error)
	GetActiveForUnit(ctx context.Context, connectionID, unitID string) (*model.ExternalMapping, error)
	ListActiveByUnit(ctx context.Context, unitID string) ([]*model.ExternalMapping, error)
	ListActiveByConnection(ctx context.Context, connectionID string) ([]*model.ExternalMapping, error)
	TouchSync(ctx context.Context, id string, bucket model.Bucket, at time.Time) error
}
