package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultCallTimeout = 10 * time.Second

// UnaryServerInterceptor recovers panics, logs every call and bounds calls
// that arrive without a deadline to guard.
func UnaryServerInterceptor(guard time.Duration) grpc.UnaryServerInterceptor {
	if guard <= 0 {
		guard = defaultCallTimeout
	}
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, guard)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				slog.Error("grpc unary panic",
					"method", info.FullMethod,
					"panic", r,
					"stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
			slog.Log(ctx, callLevel(info.FullMethod, err), "grpc unary",
				"method", info.FullMethod,
				"dur_ms", time.Since(start).Milliseconds(),
				"code", status.Code(err).String())
		}()

		return handler(ctx, req)
	}
}

func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				slog.Error("grpc stream panic",
					"method", info.FullMethod,
					"panic", r,
					"stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
			slog.Log(ss.Context(), callLevel(info.FullMethod, err), "grpc stream",
				"method", info.FullMethod,
				"dur_ms", time.Since(start).Milliseconds(),
				"code", status.Code(err).String())
		}()

		return handler(srv, ss)
	}
}

// health probes are polled constantly; keep them out of info logs
func callLevel(method string, err error) slog.Level {
	switch {
	case err != nil && status.Code(err) == codes.Internal:
		return slog.LevelError
	case strings.HasPrefix(method, "/grpc.health.v1.Health/"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
