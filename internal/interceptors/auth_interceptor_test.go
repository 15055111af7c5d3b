package interceptors

import (
	"context"
	"testing"
	"time"

	"github.com/Dhoini/comics-billing/internal/middleware"
	"github.com/Dhoini/comics-billing/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const secret = "interceptor-secret"

var info = &grpc.UnaryServerInfo{FullMethod: "/comics.billing.v1.AccessGate/IsUserSubscribed"}

func signed(t *testing.T, sub, role string) string {
	t.Helper()
	claims := middleware.TokenClaims{
		Role:  role,
		Scope: middleware.ScopeAccessCheck,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func call(ctx context.Context) (context.Context, error) {
	i := NewAuthInterceptor(logger.NewNop(), middleware.NewTokenValidator(secret))
	var seen context.Context
	_, err := i.Unary()(ctx, nil, info, func(ctx context.Context, _ any) (any, error) {
		seen = ctx
		return nil, nil
	})
	return seen, err
}

func TestAuthInterceptor_PutsIdentityInContext(t *testing.T) {
	md := metadata.Pairs("authorization", "Bearer "+signed(t, "user_789", middleware.RoleCreator))
	ctx, err := call(metadata.NewIncomingContext(context.Background(), md))
	require.NoError(t, err)
	assert.Equal(t, "user_789", ctx.Value(middleware.ContextUserIDKey))
	assert.Equal(t, middleware.RoleCreator, ctx.Value(middleware.ContextRoleKey))
	assert.Equal(t, middleware.ScopeAccessCheck, ctx.Value(middleware.ContextScopeKey))
}

func TestAuthInterceptor_Rejects(t *testing.T) {
	cases := map[string]context.Context{
		"no metadata": context.Background(),
		"no header":   metadata.NewIncomingContext(context.Background(), metadata.Pairs()),
		"not bearer":  metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic abc")),
		"bad token":   metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer nope")),
	}
	for name, ctx := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := call(ctx)
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
		})
	}
}
