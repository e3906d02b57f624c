// Package grpcx exposes the gRPC health service (grpc.health.v1) and server
// reflection for orchestration probes.
package grpcx

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is reported next to the overall ("") status.
const ServiceName = "chat.v1.ChatService"

type Server struct {
	srv    *grpc.Server
	health *health.Server
}

func NewServer(callTimeout time.Duration) *Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(callTimeout)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	s := &Server{srv: srv, health: hs}
	s.SetServing(false)
	return s
}

// SetServing flips both the overall and the chat service status.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func (s *Server) Serve(lis net.Listener) error {
	slog.Info("grpc listening", "addr", lis.Addr().String())
	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Shutdown reports NOT_SERVING and drains in-flight calls until ctx expires.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.srv.Stop()
	}
}
