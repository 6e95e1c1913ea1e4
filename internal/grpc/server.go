// Package grpc wires a gRPC server exposing the standard health and
// reflection services over a ReferenceModeStore process, grounded on
// the teacher's internal/grpc/server.go (keepalive params, middleware
// chaining, prometheus interceptors, graceful stop).
//
// Domain operations (post operations, subscribe to model updates) are
// served over REST and WebSocket (internal/api); this package's
// surface is limited to what a service mesh or orchestrator needs —
// health and reflection — since defining custom protobuf RPCs for the
// store's own message types requires a protoc code-generation step
// this exercise does not run.
package grpc

import (
	"fmt"
	"net"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// Config holds gRPC server tuning parameters.
type Config struct {
	Port                  int
	MaxConnectionIdle     time.Duration
	MaxConnectionAge      time.Duration
	MaxConnectionAgeGrace time.Duration
	Time                  time.Duration
	Timeout               time.Duration
}

// Server wraps the gRPC server and its health reporting surface.
type Server struct {
	grpcServer   *grpc.Server
	healthServer *health.Server
	logger       *zap.Logger
	port         int
}

// NewServer constructs a Server with keepalive, recovery and
// prometheus interceptors wired per cfg.
func NewServer(cfg Config, logger *zap.Logger) *Server {
	kaep := keepalive.EnforcementPolicy{
		MinTime:             5 * time.Second,
		PermitWithoutStream: true,
	}
	kasp := keepalive.ServerParameters{
		MaxConnectionIdle:     cfg.MaxConnectionIdle,
		MaxConnectionAge:      cfg.MaxConnectionAge,
		MaxConnectionAgeGrace: cfg.MaxConnectionAgeGrace,
		Time:                  cfg.Time,
		Timeout:               cfg.Timeout,
	}

	recoveryFunc := func(p interface{}) error {
		logger.Error("grpc panic recovered", zap.Any("panic", p))
		return status.Errorf(codes.Internal, "internal server error")
	}

	grpcServer := grpc.NewServer(
		grpc.KeepaliveEnforcementPolicy(kaep),
		grpc.KeepaliveParams(kasp),
		grpc.Creds(insecure.NewCredentials()),
		grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(
			grpc_prometheus.StreamServerInterceptor,
			grpc_recovery.StreamServerInterceptor(grpc_recovery.WithRecoveryHandler(recoveryFunc)),
		)),
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
			grpc_prometheus.UnaryServerInterceptor,
			grpc_recovery.UnaryServerInterceptor(grpc_recovery.WithRecoveryHandler(recoveryFunc)),
		)),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpc_prometheus.Register(grpcServer)

	return &Server{
		grpcServer:   grpcServer,
		healthServer: healthServer,
		logger:       logger,
		port:         cfg.Port,
	}
}

// SetServing marks component as serving or not serving for gRPC health
// checks keyed on that component name.
func (s *Server) SetServing(component string, serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus(component, status)
}

// Start listens on cfg.Port and serves until the listener errors or
// Stop is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("grpc: listen on port %d: %w", s.port, err)
	}

	s.SetServing("", true)
	s.logger.Info("starting grpc server", zap.String("address", listener.Addr().String()))
	return s.grpcServer.Serve(listener)
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	s.logger.Info("shutting down grpc server")
	s.SetServing("", false)
	s.grpcServer.GracefulStop()
}
