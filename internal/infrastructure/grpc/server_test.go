package grpc

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/2Raz/mnam-backend-sub001/internal/config"
)

func TestServer_Refresh(t *testing.T) {
	var up atomic.Bool
	up.Store(true)

	s := NewServer(&config.Config{}, zap.NewNop(), up.Load)
	ctx := context.Background()

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		resp, err := s.Health().Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		return resp.Status
	}

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, s.Refresh())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(ServiceName))

	up.Store(false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, s.Refresh())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(ServiceName))
}

func TestServer_RefreshWithoutHealthCheck(t *testing.T) {
	s := NewServer(&config.Config{}, zap.NewNop(), nil)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, s.Refresh())
}

func TestServer_WatchStopsWithContext(t *testing.T) {
	s := NewServer(&config.Config{}, zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Watch(ctx)
		close(done)
	}()
	cancel()
	<-done

	resp, err := s.Health().Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
