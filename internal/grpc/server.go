package grpc

import (
	"fmt"
	"net"
	"time"

	"github.com/Dhoini/comics-billing/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// Server gRPC сервер биллинга
type Server struct {
	grpcServer *grpc.Server
	log        *logger.Logger
}

// NewServer создает gRPC сервер с цепочкой интерсепторов
func NewServer(log *logger.Logger, interceptors ...grpc.UnaryServerInterceptor) *Server {
	kaParams := keepalive.ServerParameters{
		MaxConnectionIdle:     5 * time.Minute,
		MaxConnectionAge:      time.Hour,
		MaxConnectionAgeGrace: 5 * time.Minute,
		Time:                  2 * time.Minute,
		Timeout:               20 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(kaParams),
		grpc.ChainUnaryInterceptor(interceptors...),
	)

	return &Server{
		grpcServer: grpcServer,
		log:        log,
	}
}

// RegisterAccessGate регистрирует AccessGate и reflection
func (s *Server) RegisterAccessGate(srv AccessGateServer) {
	RegisterAccessGateServer(s.grpcServer, srv)
	reflection.Register(s.grpcServer)
}

// Serve обслуживает соединения на listener до Stop
func (s *Server) Serve(listener net.Listener) error {
	s.log.Infow("Starting gRPC server", "addr", listener.Addr().String())
	if err := s.grpcServer.Serve(listener); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// ListenAndServe слушает TCP порт
func (s *Server) ListenAndServe(port string) error {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(listener)
}

// Stop дожидается завершения активных вызовов
func (s *Server) Stop() {
	s.log.Infow("Stopping gRPC server")
	s.grpcServer.GracefulStop()
}
