package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quentinrf/geiger-monitor/internal/auth"
)

const testSecret = "0123456789abcdef"

func TestIssue_OperatorTokenParses(t *testing.T) {
	token, err := issue(testSecret, "ops", "operator", "PT1H")
	require.NoError(t, err)

	claims, err := auth.ParseJWT(token, []byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, auth.RoleOperator, claims.Role)
	assert.Equal(t, "ops", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestIssue_Rejects(t *testing.T) {
	tests := []struct {
		name                       string
		secret, subject, role, ttl string
	}{
		{"no subject", testSecret, "", "viewer", "1h"},
		{"short secret", "abc", "ops", "viewer", "1h"},
		{"unknown role", testSecret, "ops", "admin", "1h"},
		{"bad ttl", testSecret, "ops", "viewer", "soon"},
		{"zero ttl", testSecret, "ops", "viewer", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issue(tt.secret, tt.subject, tt.role, tt.ttl)
			assert.Error(t, err)
		})
	}
}
