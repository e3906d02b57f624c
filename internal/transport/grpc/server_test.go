package grpcx

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func startHealth(t *testing.T) (*Server, healthpb.HealthClient) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := NewServer(time.Second)
	go func() { _ = s.Serve(lis) }()

	cc, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = cc.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s, healthpb.NewHealthClient(cc)
}

func check(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("check %q: %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealth_Lifecycle(t *testing.T) {
	s, c := startHealth(t)

	if got := check(t, c, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("initial status = %v", got)
	}

	s.SetServing(true)
	if got := check(t, c, ServiceName); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status after start = %v", got)
	}

	s.SetServing(false)
	if got := check(t, c, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status after stop = %v", got)
	}
}

func TestHealth_UnknownService(t *testing.T) {
	_, c := startHealth(t)

	_, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "nope"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestUnaryInterceptor_RecoversAndGuardsDeadline(t *testing.T) {
	ic := UnaryServerInterceptor(50 * time.Millisecond)
	info := &grpc.UnaryServerInfo{FullMethod: "/test/Panic"}

	_, err := ic(context.Background(), nil, info, func(ctx context.Context, _ any) (any, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("panic must map to Internal, got %v", err)
	}

	var hadDeadline bool
	_, _ = ic(context.Background(), nil, info, func(ctx context.Context, _ any) (any, error) {
		_, hadDeadline = ctx.Deadline()
		return nil, nil
	})
	if !hadDeadline {
		t.Fatalf("calls without a deadline must get one")
	}
}
