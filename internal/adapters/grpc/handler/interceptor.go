package handler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/onboarding-compliance/internal/core/identity"
	"github.com/ogurasousui/onboarding-compliance/internal/platform/obs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	requestIDHeader     = "x-request-id"
	authorizationHeader = "authorization"
	bearerPrefix        = "bearer "
)

// TokenVerifier はベアラートークンを主体へ変換します。
type TokenVerifier interface {
	Verify(token string) (identity.Principal, error)
}

// RequestObserver はリクエストの結果を受け取ります。
type RequestObserver interface {
	ObserveRequest(method, code string, d time.Duration)
}

// RequestIDInterceptor はリクエスト ID をコンテキストとレスポンスヘッダーへ設定します。
// クライアントが x-request-id を送った場合はその値を引き継ぎます。
func RequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		id := firstMetadata(ctx, requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx = obs.ContextWithRequestID(ctx, id)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, id))
		return next(ctx, req)
	}
}

// AuthInterceptor は authorization ヘッダーのトークンを検証し、主体をコンテキストへ格納します。
func AuthInterceptor(verifier TokenVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		raw := firstMetadata(ctx, authorizationHeader)
		if len(raw) < len(bearerPrefix) || !strings.EqualFold(raw[:len(bearerPrefix)], bearerPrefix) {
			return nil, errUnauthenticated
		}
		principal, err := verifier.Verify(raw[len(bearerPrefix):])
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return next(identity.ContextWithPrincipal(ctx, principal), req)
	}
}

// LoggingInterceptor はリクエストごとに結果コードと所要時間を記録します。
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)

		attrs := []slog.Attr{
			slog.String("method", info.FullMethod),
			slog.String("code", code.String()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", obs.RequestIDFromContext(ctx)),
		}
		level := slog.LevelInfo
		switch code {
		case codes.OK:
		case codes.Internal, codes.Unknown, codes.DataLoss:
			level = slog.LevelError
			attrs = append(attrs, slog.String("error", err.Error()))
		default:
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		logger.LogAttrs(ctx, level, "grpc request", attrs...)
		return resp, err
	}
}

// MetricsInterceptor はリクエスト件数と所要時間を observer へ通知します。
func MetricsInterceptor(observer RequestObserver) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		observer.ObserveRequest(info.FullMethod, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
