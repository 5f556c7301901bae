package auth

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying claims.
func NewContext(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// ClaimsFromContext returns the verified claims of the current call.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(*Claims)
	return c, ok
}

// Policy maps full gRPC method names to the role they require.
type Policy struct {
	// Exempt prefixes skip authentication entirely.
	ExemptPrefixes []string
	// Operator lists methods that change state; everything else needs viewer.
	Operator map[string]struct{}
}

// NewPolicy builds a policy. Health checks and reflection are always exempt.
func NewPolicy(operatorMethods ...string) Policy {
	set := make(map[string]struct{}, len(operatorMethods))
	for _, m := range operatorMethods {
		set[m] = struct{}{}
	}
	return Policy{
		ExemptPrefixes: []string{"/grpc.health.v1.", "/grpc.reflection."},
		Operator:       set,
	}
}

// RequiredRole resolves the role needed for method. ok is false for exempt methods.
func (p Policy) RequiredRole(method string) (Role, bool) {
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(method, prefix) {
			return "", false
		}
	}
	if _, ok := p.Operator[method]; ok {
		return RoleOperator, true
	}
	return RoleViewer, true
}

// UnaryInterceptor rejects calls without a valid "authorization: Bearer"
// token carrying a sufficient role.
func UnaryInterceptor(secret []byte, policy Policy) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		want, ok := policy.RequiredRole(info.FullMethod)
		if !ok {
			return handler(ctx, req)
		}

		token := bearerToken(ctx)
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}

		claims, err := ParseJWT(token, secret)
		if err != nil {
			log.Warn().Err(err).Str("method", info.FullMethod).Msg("rejected token")
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		if !claims.Role.Allows(want) {
			return nil, status.Errorf(codes.PermissionDenied, "role %q cannot call %s", claims.Role, info.FullMethod)
		}

		return handler(NewContext(ctx, claims), req)
	}
}

func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get("authorization") {
		if token, found := strings.CutPrefix(v, "Bearer "); found {
			return strings.TrimSpace(token)
		}
	}
	return ""
}
