package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/ogurasousui/onboarding-compliance/internal/adapters/grpc/handler"
	"github.com/ogurasousui/onboarding-compliance/internal/platform/obs"
	"google.golang.org/grpc"
)

// Options はサーバーに組み込むインターセプターの依存です。
type Options struct {
	Logger   *slog.Logger
	Metrics  handler.RequestObserver
	Verifier handler.TokenVerifier
}

// Server は gRPC サーバーのライフサイクルを管理します。
type Server struct {
	listenAddr string
	grpcServer *grpc.Server
	logger     *slog.Logger
}

// New は指定されたアドレスで待ち受ける gRPC サーバーを構築します。
// インターセプターはリクエスト ID、ログ、メトリクス、認証の順に実行されます。
func New(listenAddr string, integration *handler.IntegrationHandler, opts Options, grpcOpts ...grpc.ServerOption) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = obs.Discard()
	}

	interceptors := []grpc.UnaryServerInterceptor{
		handler.RequestIDInterceptor(),
		handler.LoggingInterceptor(logger),
	}
	if opts.Metrics != nil {
		interceptors = append(interceptors, handler.MetricsInterceptor(opts.Metrics))
	}
	if opts.Verifier != nil {
		interceptors = append(interceptors, handler.AuthInterceptor(opts.Verifier))
	}

	srv := grpc.NewServer(append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(interceptors...)}, grpcOpts...)...)
	integration.Register(srv)

	return &Server{
		listenAddr: listenAddr,
		grpcServer: srv,
		logger:     logger,
	}
}

// Run はサーバーを起動し、コンテキストがキャンセルされると GracefulStop します。
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve は lis で待ち受けます。
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.grpcServer.GracefulStop()
	}()

	s.logger.Info("grpc server listening", slog.String("addr", lis.Addr().String()))
	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	return nil
}

// GracefulStop はサーバーを安全に停止します。
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}
