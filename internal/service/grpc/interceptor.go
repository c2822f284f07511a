package grpcsvc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/vladislavdragonenkov/simpleshop/internal/auth"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

// Authenticator извлекает проверенного субъекта из bearer-токена.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// AuthUnaryInterceptor проверяет metadata "authorization" и кладёт субъекта в контекст.
// Health-проверки проходят без токена.
func AuthUnaryInterceptor(authenticator Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}

		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}
		token, err := auth.ParseBearer(header)
		if err != nil {
			return nil, toStatus(err)
		}
		subject, err := authenticator.Authenticate(token)
		if err != nil {
			return nil, toStatus(err)
		}
		return handler(auth.WithSubject(ctx, subject), req)
	}
}

// WithBearer добавляет токен в исходящую metadata клиента.
func WithBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}
