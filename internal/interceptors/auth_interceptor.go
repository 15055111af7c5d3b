package interceptors

import (
	"context"
	"strings"
	"time"

	"github.com/Dhoini/comics-billing/internal/middleware"
	"github.com/Dhoini/comics-billing/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type AuthInterceptor struct {
	log       *logger.Logger
	validator middleware.TokenValidator
}

func NewAuthInterceptor(log *logger.Logger, validator middleware.TokenValidator) *AuthInterceptor {
	return &AuthInterceptor{
		log:       log,
		validator: validator,
	}
}

// Unary возвращает UnaryServerInterceptor для проверки JWT. ID, роль и scope
// кладутся в контекст под ключами из пакета middleware.
func (i *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			i.log.Warnw("gRPC auth: missing metadata", "method", info.FullMethod)
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			i.log.Warnw("gRPC auth: missing authorization header", "method", info.FullMethod)
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}

		authHeader := authHeaders[0]
		if !strings.HasPrefix(authHeader, "Bearer ") {
			i.log.Warnw("gRPC auth: invalid authorization header format", "method", info.FullMethod)
			return nil, status.Error(codes.Unauthenticated, "invalid authorization header format")
		}

		claims, err := i.validator.Validate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			i.log.Warnw("gRPC auth: invalid token", "method", info.FullMethod, "error", err)
			return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
		}
		if claims.Subject == "" {
			return nil, status.Error(codes.Unauthenticated, "user ID (sub) missing in token")
		}

		ctx = context.WithValue(ctx, middleware.ContextUserIDKey, claims.Subject)
		ctx = context.WithValue(ctx, middleware.ContextRoleKey, claims.Role)
		ctx = context.WithValue(ctx, middleware.ContextScopeKey, claims.Scope)
		i.log.Debugw("User authenticated via gRPC", "userID", claims.Subject, "method", info.FullMethod)
		return handler(ctx, req)
	}
}

// Logging логирует каждый unary вызов с кодом ответа и длительностью.
func Logging(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Infow("gRPC call handled",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"latency_ms", time.Since(start).Milliseconds())
		return resp, err
	}
}
