// Package auth validates the bearer tokens callers present to the journal.
//
// The journal keeps no user records: tokens are issued elsewhere and carry the
// username and roles. Whether a caller is an administrator is decided here by
// the admin policy, never by a claim in the token.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "docjournal/internal/core/context"
	"docjournal/internal/core/security"
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// DefaultJWTConfig returns default JWT configuration.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:         secret,
		Issuer:         "docjournal",
		AccessTokenTTL: 15 * time.Minute,
	}
}

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
}

// JWTService handles JWT operations.
type JWTService struct {
	config JWTConfig
	policy *security.AdminPolicy
}

// NewJWTService creates a new JWT service. policy decides IsAdmin for every
// validated token; nil grants no one admin.
func NewJWTService(config JWTConfig, policy *security.AdminPolicy) *JWTService {
	return &JWTService{config: config, policy: policy}
}

// GenerateAccessToken issues a token for username. Used by tooling and tests;
// production tokens come from the identity provider.
func (s *JWTService) GenerateAccessToken(username string, roles []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.AccessTokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: username,
		Roles:    roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates JWT and returns user context.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.UserContext, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	username := strings.TrimSpace(claims.Username)
	if username == "" {
		username = strings.TrimSpace(claims.Subject)
	}
	if username == "" {
		return nil, fmt.Errorf("token carries no username")
	}

	return &appctx.UserContext{
		UserID:   username,
		Username: username,
		Roles:    claims.Roles,
		IsAdmin:  s.policy.IsAdmin(security.Subject{Username: username, Roles: claims.Roles}),
	}, nil
}
