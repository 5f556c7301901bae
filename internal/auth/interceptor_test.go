package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var secret = []byte("test-secret")

const (
	readMethod  = "/geiger.v1.GeigerService/GetLatestReading"
	writeMethod = "/geiger.v1.GeigerService/StartPoller"
)

func call(t *testing.T, method, token string) (context.Context, error) {
	t.Helper()

	ctx := context.Background()
	if token != "" {
		ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", "Bearer "+token))
	}

	var seen context.Context
	interceptor := UnaryInterceptor(secret, NewPolicy(writeMethod))
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, func(ctx context.Context, req any) (any, error) {
		seen = ctx
		return "ok", nil
	})
	return seen, err
}

func issue(t *testing.T, role Role, ttl time.Duration) string {
	t.Helper()
	token, err := IssueJWT(secret, "tester", role, ttl)
	require.NoError(t, err)
	return token
}

func TestUnaryInterceptor(t *testing.T) {
	viewer := issue(t, RoleViewer, time.Hour)
	operator := issue(t, RoleOperator, time.Hour)
	expired := issue(t, RoleOperator, -time.Minute)

	tests := []struct {
		name   string
		method string
		token  string
		want   codes.Code
	}{
		{"health exempt", "/grpc.health.v1.Health/Check", "", codes.OK},
		{"missing token", readMethod, "", codes.Unauthenticated},
		{"garbage token", readMethod, "abc", codes.Unauthenticated},
		{"expired token", readMethod, expired, codes.Unauthenticated},
		{"viewer reads", readMethod, viewer, codes.OK},
		{"viewer cannot write", writeMethod, viewer, codes.PermissionDenied},
		{"operator writes", writeMethod, operator, codes.OK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call(t, tt.method, tt.token)
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestUnaryInterceptor_StoresClaims(t *testing.T) {
	ctx, err := call(t, readMethod, issue(t, RoleOperator, time.Hour))
	require.NoError(t, err)

	claims, ok := ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, RoleOperator, claims.Role)
	assert.Equal(t, "tester", claims.Subject)
}

func TestParseJWT_WrongSecret(t *testing.T) {
	token, err := IssueJWT([]byte("other"), "tester", RoleViewer, time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT(token, secret)
	assert.Error(t, err)
}

func TestParseJWT_UnknownRole(t *testing.T) {
	token, err := IssueJWT(secret, "tester", Role("admin"), time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT(token, secret)
	assert.Error(t, err)
}

func TestRoleAllows(t *testing.T) {
	assert.True(t, RoleOperator.Allows(RoleViewer))
	assert.True(t, RoleViewer.Allows(RoleViewer))
	assert.False(t, RoleViewer.Allows(RoleOperator))
	assert.False(t, Role("").Allows(RoleViewer))
}
