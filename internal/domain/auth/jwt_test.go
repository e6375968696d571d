package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docjournal/internal/core/security"
)

func newService(t *testing.T) *JWTService {
	t.Helper()
	policy, err := security.NewAdminPolicy("", []string{"vgrubtsov"})
	require.NoError(t, err)
	return NewJWTService(DefaultJWTConfig("test-secret"), policy)
}

func TestValidateToken(t *testing.T) {
	svc := newService(t)

	tests := []struct {
		name      string
		username  string
		roles     []string
		wantAdmin bool
	}{
		{name: "plain user", username: "alice"},
		{name: "listed admin", username: "VGrubtsov", wantAdmin: true},
		{name: "admin role", username: "bob", roles: []string{"admin"}, wantAdmin: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _, err := svc.GenerateAccessToken(tt.username, tt.roles)
			require.NoError(t, err)

			user, err := svc.ValidateToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.username, user.UserID)
			assert.Equal(t, tt.wantAdmin, user.IsAdmin)
		})
	}
}

func TestValidateTokenRejects(t *testing.T) {
	svc := newService(t)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(DefaultJWTConfig("other"), nil)
		token, _, err := other.GenerateAccessToken("alice", nil)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		cfg := DefaultJWTConfig("test-secret")
		cfg.AccessTokenTTL = -time.Minute
		token, _, err := NewJWTService(cfg, nil).GenerateAccessToken("alice", nil)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("no username", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Issuer: "docjournal"},
		})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = svc.ValidateToken(signed)
		assert.ErrorContains(t, err, "no username")
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestNilPolicyGrantsNoAdmin(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("s"), nil)
	token, _, err := svc.GenerateAccessToken("root", []string{"admin"})
	require.NoError(t, err)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.False(t, user.IsAdmin)
}
