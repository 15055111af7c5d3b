package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/comics-billing/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
)

// ClientOptions настройки для gRPC клиента
type ClientOptions struct {
	Address          string
	Timeout          time.Duration
	KeepAlive        bool
	KeepAliveTime    time.Duration
	KeepAliveTimeout time.Duration
	DialOptions      []grpc.DialOption
}

// DefaultClientOptions возвращает настройки по умолчанию
func DefaultClientOptions(address string) *ClientOptions {
	return &ClientOptions{
		Address:          address,
		Timeout:          5 * time.Second,
		KeepAlive:        true,
		KeepAliveTime:    time.Minute,
		KeepAliveTimeout: 20 * time.Second,
	}
}

// AccessClient - клиент AccessGate для подсистемы контента.
type AccessClient struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	log     *logger.Logger
}

// NewAccessClient создает клиент. Соединение устанавливается лениво, при первом вызове.
func NewAccessClient(opts *ClientOptions, log *logger.Logger) (*AccessClient, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
	if opts.KeepAlive {
		dialOpts = append(dialOpts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                opts.KeepAliveTime,
			Timeout:             opts.KeepAliveTimeout,
			PermitWithoutStream: true,
		}))
	}
	dialOpts = append(dialOpts, opts.DialOptions...)

	conn, err := grpc.NewClient(opts.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for %s: %w", opts.Address, err)
	}

	log.Debugw("gRPC access client created", "address", opts.Address)
	return &AccessClient{conn: conn, timeout: opts.Timeout, log: log}, nil
}

// IsUserSubscribed вызывает AccessGate от имени владельца токена.
func (c *AccessClient) IsUserSubscribed(ctx context.Context, token, userID string) (bool, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)

	out := new(IsUserSubscribedResponse)
	if err := c.conn.Invoke(ctx, IsUserSubscribedMethod, &IsUserSubscribedRequest{UserID: userID}, out); err != nil {
		return false, err
	}
	return out.Subscribed, nil
}

// Close закрывает соединение с gRPC сервером
func (c *AccessClient) Close() error {
	return c.conn.Close()
}
