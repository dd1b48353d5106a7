package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gorm.io/gorm"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/provider"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/repository"
	"github.com/2Raz/mnam-backend-sub001/internal/infrastructure/crypto"
)

// MappingObserver is told about new mappings so quarantined events waiting
// for them can be retried.
type MappingObserver interface {
	MappingCreated(ctx context.Context, mapping *model.ExternalMapping)
}

// CreateConnectionInput carries plaintext credentials; they are encrypted
// before storage.
type CreateConnectionInput struct {
	ProjectID     string
	Provider      string
	PropertyID    string
	GroupID       string
	APIKey        string
	WebhookSecret string
	WebhookURL    string
}

// CreateMappingInput links a unit to a remote room type.
type CreateMappingInput struct {
	UnitID     string
	RoomTypeID string
	RatePlanID string
}

type webhookEntry struct {
	connection *model.ChannelConnection
	secret     string
}

// ConnectionService manages connections and mappings and serves decrypted
// credentials to the webhook and dispatch paths.
type ConnectionService struct {
	store     repository.Store
	encryptor crypto.EncryptionService
	outbox    *OutboxService
	observer  MappingObserver
	cache     *cache.Cache
	logger    *zap.Logger
}

// NewConnectionService creates a new connection service. cacheTTL bounds how
// long a resolved webhook secret is reused.
func NewConnectionService(store repository.Store, encryptor crypto.EncryptionService, outbox *OutboxService, cacheTTL time.Duration, logger *zap.Logger) *ConnectionService {
	return &ConnectionService{
		store:     store,
		encryptor: encryptor,
		outbox:    outbox,
		cache:     cache.New(cacheTTL, 2*cacheTTL),
		logger:    logger,
	}
}

// SetMappingObserver registers the observer notified after CreateMapping.
func (s *ConnectionService) SetMappingObserver(observer MappingObserver) {
	s.observer = observer
}

// Create stores a new connection in pending state.
func (s *ConnectionService) Create(ctx context.Context, in CreateConnectionInput) (*model.ChannelConnection, error) {
	apiKey, apiKeyIV, err := s.encryptor.Encrypt(in.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt api key: %w", err)
	}

	conn := &model.ChannelConnection{
		ProjectID:       in.ProjectID,
		Provider:        in.Provider,
		APIKeyEncrypted: apiKey,
		APIKeyIV:        apiKeyIV,
		PropertyID:      in.PropertyID,
		GroupID:         model.StringPtr(in.GroupID),
		WebhookURL:      model.StringPtr(in.WebhookURL),
		Status:          model.ConnectionStatusPending,
	}
	if conn.Provider == "" {
		conn.Provider = "channex"
	}

	if in.WebhookSecret != "" {
		secret, secretIV, err := s.encryptor.Encrypt(in.WebhookSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt webhook secret: %w", err)
		}
		conn.WebhookSecretEncrypted = secret
		conn.WebhookSecretIV = secretIV
	}

	if err := s.store.Repos().Connections.Create(ctx, conn); err != nil {
		return nil, err
	}

	s.logger.Info("Channel connection created",
		zap.String("connection_id", conn.ID),
		zap.String("project_id", conn.ProjectID),
		zap.String("property_id", conn.PropertyID))
	return conn, nil
}

// Get returns the connection or ErrConnectionNotFound.
func (s *ConnectionService) Get(ctx context.Context, id string) (*model.ChannelConnection, error) {
	conn, err := s.store.Repos().Connections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, domainErrors.ErrConnectionNotFound
	}
	return conn, nil
}

// Delete soft deletes the connection. Pending outbox rows for it fail on
// dispatch.
func (s *ConnectionService) Delete(ctx context.Context, id string) error {
	if err := s.store.Repos().Connections.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainErrors.ErrConnectionNotFound
		}
		return err
	}
	s.cache.Delete(id)
	s.logger.Info("Channel connection deleted", zap.String("connection_id", id))
	return nil
}

// WebhookSecret resolves the connection for an inbound call together with
// its decrypted webhook secret. Results are cached briefly.
func (s *ConnectionService) WebhookSecret(ctx context.Context, id string) (*model.ChannelConnection, string, error) {
	if cached, ok := s.cache.Get(id); ok {
		entry := cached.(webhookEntry)
		return entry.connection, entry.secret, nil
	}

	conn, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	secret, err := s.encryptor.Decrypt(conn.WebhookSecretEncrypted, conn.WebhookSecretIV)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decrypt webhook secret: %w", err)
	}

	s.cache.SetDefault(id, webhookEntry{connection: conn, secret: secret})
	return conn, secret, nil
}

// Credentials decrypts the API key of conn.
func (s *ConnectionService) Credentials(conn *model.ChannelConnection) (provider.Credentials, error) {
	apiKey, err := s.encryptor.Decrypt(conn.APIKeyEncrypted, conn.APIKeyIV)
	if err != nil {
		return provider.Credentials{}, fmt.Errorf("failed to decrypt api key: %w", err)
	}
	return provider.Credentials{
		ConnectionID: conn.ID,
		APIKey:       apiKey,
		PropertyID:   conn.PropertyID,
	}, nil
}

// CreateMapping links a unit to a remote room type, schedules a full sync
// for it and notifies the mapping observer.
func (s *ConnectionService) CreateMapping(ctx context.Context, connectionID string, in CreateMappingInput) (*model.ExternalMapping, error) {
	if _, err := s.Get(ctx, connectionID); err != nil {
		return nil, err
	}

	mapping := &model.ExternalMapping{
		ConnectionID: connectionID,
		UnitID:       in.UnitID,
		RoomTypeID:   in.RoomTypeID,
		RatePlanID:   model.StringPtr(in.RatePlanID),
		MappingType:  model.MappingTypeUnitToRoom,
		IsActive:     true,
	}
	if err := s.store.Repos().Mappings.Create(ctx, mapping); err != nil {
		return nil, err
	}

	s.logger.Info("External mapping created",
		zap.String("mapping_id", mapping.ID),
		zap.String("connection_id", connectionID),
		zap.String("unit_id", in.UnitID),
		zap.String("room_type_id", in.RoomTypeID))

	if _, err := s.outbox.EnqueueFullSync(ctx, connectionID, in.UnitID, "full_sync:mapping:"+mapping.ID); err != nil {
		s.logger.Warn("Failed to schedule initial sync",
			zap.String("mapping_id", mapping.ID),
			zap.Error(err))
	}

	if s.observer != nil {
		s.observer.MappingCreated(ctx, mapping)
	}
	return mapping, nil
}

// DeactivateMapping retires a mapping; a new one may then be created for
// the same unit.
func (s *ConnectionService) DeactivateMapping(ctx context.Context, id string) error {
	if err := s.store.Repos().Mappings.Deactivate(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainErrors.ErrMappingNotFound
		}
		return err
	}
	s.logger.Info("External mapping deactivated", zap.String("mapping_id", id))
	return nil
}

// RequestFullSync schedules a full sync for every active mapping of the
// connection.
func (s *ConnectionService) RequestFullSync(ctx context.Context, connectionID string) ([]*model.IntegrationOutboxItem, error) {
	if _, err := s.Get(ctx, connectionID); err != nil {
		return nil, err
	}

	mappings, err := s.store.Repos().Mappings.ListActiveByConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	items := make([]*model.IntegrationOutboxItem, 0, len(mappings))
	for _, mapping := range mappings {
		item, err := s.outbox.EnqueueFullSync(ctx, connectionID, mapping.UnitID, "")
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	s.logger.Info("Full sync requested",
		zap.String("connection_id", connectionID),
		zap.Int("mappings", len(mappings)))
	return items, nil
}
