package grpc

import (
	"context"
	"errors"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/internal/middleware"
	"github.com/Dhoini/comics-billing/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// AccessGateServiceName - полное имя сервиса.
	AccessGateServiceName = "comics.billing.v1.AccessGate"
	// IsUserSubscribedMethod - полное имя метода для интерсепторов.
	IsUserSubscribedMethod = "/" + AccessGateServiceName + "/IsUserSubscribed"
)

// IsUserSubscribedRequest - запрос проверки доступа. Пустой user_id
// означает пользователя из токена.
type IsUserSubscribedRequest struct {
	UserID string `json:"user_id"`
}

// IsUserSubscribedResponse - ответ проверки доступа.
type IsUserSubscribedResponse struct {
	UserID     string `json:"user_id"`
	Subscribed bool   `json:"subscribed"`
}

// AccessGateServer - серверная сторона comics.billing.v1.AccessGate.
type AccessGateServer interface {
	IsUserSubscribed(ctx context.Context, req *IsUserSubscribedRequest) (*IsUserSubscribedResponse, error)
}

// SubscriptionChecker - часть services.AccessGate, нужная серверу.
type SubscriptionChecker interface {
	IsUserSubscribed(ctx context.Context, userID string) (bool, error)
}

// AccessServer отдает решение AccessGate подсистеме контента.
type AccessServer struct {
	gate SubscriptionChecker
	log  *logger.Logger
}

func NewAccessServer(gate SubscriptionChecker, log *logger.Logger) *AccessServer {
	return &AccessServer{gate: gate, log: log}
}

// IsUserSubscribed отвечает про пользователя из токена. Про другого
// пользователя может спросить только токен со scope billing:access или admin.
func (s *AccessServer) IsUserSubscribed(ctx context.Context, req *IsUserSubscribedRequest) (*IsUserSubscribedResponse, error) {
	subject, _ := ctx.Value(middleware.ContextUserIDKey).(string)
	userID := req.UserID
	if userID == "" {
		userID = subject
	}
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	if userID != subject && !canCheckOthers(ctx) {
		s.log.Warnw("gRPC access check for another user denied", "subject", subject, "userID", userID)
		return nil, status.Error(codes.PermissionDenied, "token may only check its own subject")
	}

	subscribed, err := s.gate.IsUserSubscribed(ctx, userID)
	if err != nil {
		s.log.Errorw("gRPC access check failed", "userID", userID, "error", err)
		return nil, mapErrorToGRPCStatus(err)
	}
	return &IsUserSubscribedResponse{UserID: userID, Subscribed: subscribed}, nil
}

func canCheckOthers(ctx context.Context) bool {
	scopes, _ := ctx.Value(middleware.ContextScopeKey).(string)
	return middleware.ScopeGranted(scopes, middleware.ScopeAccessCheck) ||
		middleware.ScopeGranted(scopes, middleware.ScopeAdmin)
}

func mapErrorToGRPCStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrTransientStore):
		return status.Error(codes.Unavailable, "subscription store unavailable")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func isUserSubscribedHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(IsUserSubscribedRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AccessGateServer).IsUserSubscribed(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: IsUserSubscribedMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AccessGateServer).IsUserSubscribed(ctx, req.(*IsUserSubscribedRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// AccessGateServiceDesc описывает сервис без сгенерированного кода.
var AccessGateServiceDesc = grpc.ServiceDesc{
	ServiceName: AccessGateServiceName,
	HandlerType: (*AccessGateServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IsUserSubscribed", Handler: isUserSubscribedHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "comics/billing/v1/access_gate",
}

// RegisterAccessGateServer регистрирует реализацию на сервере.
func RegisterAccessGateServer(s grpc.ServiceRegistrar, srv AccessGateServer) {
	s.RegisterService(&AccessGateServiceDesc, srv)
}
