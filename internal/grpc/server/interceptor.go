package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/EternisAI/botping/internal/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const authorizationKey = "authorization"

// TokenVerifier checks a parsed caller token.
type TokenVerifier interface {
	Verify(token string) bool
}

// unaryAuthInterceptor requires a valid caller token in the authorization
// metadata. Checks of the server's own health pass through.
func unaryAuthInterceptor(tokens TokenVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if hc, ok := req.(*healthpb.HealthCheckRequest); ok && hc.GetService() == "" {
			return handler(ctx, req)
		}

		if err := authorize(ctx, tokens); err != nil {
			slog.Info("Rejected gRPC call", "method", info.FullMethod, "error", err)
			return nil, err
		}
		return handler(ctx, req)
	}
}

func authorize(ctx context.Context, tokens TokenVerifier) error {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(authorizationKey)
	if len(values) == 0 {
		return status.Error(codes.PermissionDenied, "missing authorization metadata")
	}

	token, err := auth.ParseToken(values[0])
	if errors.Is(err, auth.ErrMalformedToken) {
		return status.Error(codes.InvalidArgument, "invalid token value")
	}
	if err != nil || !tokens.Verify(token) {
		return status.Error(codes.PermissionDenied, "unauthorized")
	}
	return nil
}
