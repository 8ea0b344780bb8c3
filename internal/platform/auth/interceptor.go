package auth

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor は authorization メタデータを検証し、Principal をコンテキストに格納します。
// skip に含まれるメソッド (例: ヘルスチェック) は検証しません。
func UnaryServerInterceptor(v *Verifier, skip ...string) grpc.UnaryServerInterceptor {
	skipped := make(map[string]struct{}, len(skip))
	for _, m := range skip {
		skipped[m] = struct{}{}
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := skipped[info.FullMethod]; ok || strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}

		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}

		p, err := v.Authenticate(ctx, header)
		if err != nil {
			return nil, grpcStatus(err)
		}

		return handler(WithPrincipal(ctx, p), req)
	}
}

func grpcStatus(err error) error {
	switch {
	case errors.Is(err, ErrAccountBlocked):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrUnknownAccount):
		return status.Error(codes.Unauthenticated, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
