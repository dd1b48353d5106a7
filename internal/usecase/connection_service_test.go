package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/2Raz/mnam-backend-sub001/internal/domain/errors"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/usecase"
)

type recordingObserver struct {
	created []*model.ExternalMapping
}

func (o *recordingObserver) MappingCreated(_ context.Context, mapping *model.ExternalMapping) {
	o.created = append(o.created, mapping)
}

func TestConnectionService_CredentialsAreEncrypted(t *testing.T) {
	w := newWebhookEnv(t)
	ctx := context.Background()

	stored, err := w.store.Repos().Connections.GetByID(ctx, w.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionStatusPending, stored.Status)
	assert.NotContains(t, stored.APIKeyEncrypted, "api-key")
	assert.NotContains(t, stored.WebhookSecretEncrypted, testWebhookSecret)
	assert.NotEmpty(t, stored.APIKeyIV)

	creds, err := w.connections.Credentials(stored)
	require.NoError(t, err)
	assert.Equal(t, "api-key", creds.APIKey)
	assert.Equal(t, "P1", creds.PropertyID)
	assert.Equal(t, w.conn.ID, creds.ConnectionID)

	conn, secret, err := w.connections.WebhookSecret(ctx, w.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, testWebhookSecret, secret)
	assert.Equal(t, w.conn.ID, conn.ID)
}

func TestConnectionService_Delete(t *testing.T) {
	w := newWebhookEnv(t)
	ctx := context.Background()

	_, _, err := w.connections.WebhookSecret(ctx, w.conn.ID)
	require.NoError(t, err)

	require.NoError(t, w.connections.Delete(ctx, w.conn.ID))

	_, _, err = w.connections.WebhookSecret(ctx, w.conn.ID)
	assert.ErrorIs(t, err, domainErrors.ErrConnectionNotFound, "the cached secret is dropped with the connection")

	_, err = w.connections.Get(ctx, w.conn.ID)
	assert.ErrorIs(t, err, domainErrors.ErrConnectionNotFound)

	err = w.connections.Delete(ctx, w.conn.ID)
	assert.ErrorIs(t, err, domainErrors.ErrConnectionNotFound)
}

func TestConnectionService_Mappings(t *testing.T) {
	w := newWebhookEnv(t)
	ctx := context.Background()

	observer := &recordingObserver{}
	w.connections.SetMappingObserver(observer)

	mapping, err := w.connections.CreateMapping(ctx, w.conn.ID, usecase.CreateMappingInput{
		UnitID:     "U2",
		RoomTypeID: "RT2",
		RatePlanID: "RP2",
	})
	require.NoError(t, err)
	require.Len(t, observer.created, 1)
	assert.Equal(t, mapping.ID, observer.created[0].ID)

	items := w.pendingOutbox(t)
	require.Len(t, items, 1)
	assert.Equal(t, model.OutboxEventFullSync, items[0].EventType)
	assert.Equal(t, "U2", items[0].UnitID)
	assert.Equal(t, "full_sync:mapping:"+mapping.ID, model.Deref(items[0].IdempotencyKey))

	t.Run("full sync covers every active mapping", func(t *testing.T) {
		queued, err := w.connections.RequestFullSync(ctx, w.conn.ID)
		require.NoError(t, err)
		assert.Len(t, queued, 2)
	})

	t.Run("deactivated mappings stop resolving", func(t *testing.T) {
		require.NoError(t, w.connections.DeactivateMapping(ctx, mapping.ID))

		resolved, err := w.store.Repos().Mappings.ResolveUnit(ctx, w.conn.ID, "RT2", "")
		require.NoError(t, err)
		assert.Nil(t, resolved)

		err = w.connections.DeactivateMapping(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, domainErrors.ErrMappingNotFound)
	})

	t.Run("unknown connection", func(t *testing.T) {
		_, err := w.connections.CreateMapping(ctx, "00000000-0000-0000-0000-000000000000", usecase.CreateMappingInput{UnitID: "U3", RoomTypeID: "RT3"})
		assert.ErrorIs(t, err, domainErrors.ErrConnectionNotFound)
	})
}
