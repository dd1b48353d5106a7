package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/2Raz/mnam-backend-sub001/internal/config"
	"github.com/2Raz/mnam-backend-sub001/pkg/logger"
)

// ServiceName is the health service entry tracking the sync workers.
const ServiceName = "channel_sync.Dispatcher"

const defaultCheckInterval = 5 * time.Second

// Server exposes the standard gRPC health service. The overall and
// dispatcher statuses follow the liveness check.
type Server struct {
	config   *config.Config
	logger   *zap.Logger
	server   *grpc.Server
	health   *health.Server
	healthy  func() bool
	interval time.Duration
}

func NewServer(cfg *config.Config, log *zap.Logger, healthy func() bool) *Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(logger.NewGrpcUnaryServerInterceptor(log)),
		grpc.ChainStreamInterceptor(logger.NewGrpcStreamServerInterceptor(log)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &Server{
		config:   cfg,
		logger:   log,
		server:   srv,
		health:   hs,
		healthy:  healthy,
		interval: defaultCheckInterval,
	}
}

// Health returns the underlying health server.
func (s *Server) Health() *health.Server {
	return s.health
}

// Refresh sets the serving status from the liveness check once.
func (s *Server) Refresh() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.healthy != nil && !s.healthy() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Watch refreshes the status until ctx is done.
func (s *Server) Watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := s.Refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if status := s.Refresh(); status != last {
				s.logger.Warn("Health status changed",
					zap.String("from", last.String()),
					zap.String("to", status.String()))
				last = status
			}
		}
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.GRPC.Host, s.config.Server.GRPC.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.Refresh()
	s.logger.Info("Starting gRPC server", zap.String("address", addr))

	return s.server.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	}
	return nil
}
