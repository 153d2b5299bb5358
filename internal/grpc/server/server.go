package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	grpctls "github.com/EternisAI/botping/internal/grpc/tls"
	"github.com/EternisAI/botping/internal/probe"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

type Config struct {
	Port int            `mapstructure:"port"`
	TLS  grpctls.Config `mapstructure:"tls"`
}

// LivenessChecker runs a single liveness query.
type LivenessChecker interface {
	Check(ctx context.Context, handle string) probe.Result
}

// Server answers grpc.health.v1 checks where the service name is an agent
// handle.
type Server struct {
	healthpb.UnimplementedHealthServer
	grpcServer *grpc.Server
	checker    LivenessChecker
	port       int
}

func NewServer(cfg Config, checker LivenessChecker, tokens TokenVerifier) (*Server, error) {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(unaryAuthInterceptor(tokens)),
	}

	if cfg.TLS.Enabled {
		creds, err := grpctls.ServerCredentials(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
		slog.Info("gRPC TLS enabled", "client_auth", cfg.TLS.ClientAuth)
	}

	s := &Server{
		grpcServer: grpc.NewServer(opts...),
		checker:    checker,
		port:       cfg.Port,
	}
	healthpb.RegisterHealthServer(s.grpcServer, s)

	return s, nil
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}

	slog.Info("Starting gRPC server", "port", s.port)
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}
	return nil
}

// Check reports SERVING for an alive agent and NOT_SERVING when it did not
// answer in time. An empty service name asks about this server itself.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	handle := req.GetService()
	if handle == "" {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
	}

	result := s.checker.Check(ctx, handle)
	switch result.Outcome {
	case probe.OutcomeAlive:
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
	case probe.OutcomeNoReply:
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	case probe.OutcomeUnknownTarget:
		return nil, status.Errorf(codes.NotFound, "%s is not on the allow-list", handle)
	default:
		return nil, status.Errorf(codes.Unavailable, "cannot send to %s", handle)
	}
}

func (s *Server) Stop(ctx context.Context) error {
	slog.Info("Stopping gRPC server")

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		slog.Info("gRPC server stopped gracefully")
	case <-ctx.Done():
		slog.Warn("gRPC server stop timeout, forcing shutdown")
		s.grpcServer.Stop()
	}

	return nil
}

func (s *Server) StopWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Stop(ctx)
}
