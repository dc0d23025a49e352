// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package middleware provides the HTTP middleware stack: JWT
// authentication, request metrics, and structured request logging.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/herpatlas/herpatlas/internal/apperror"
	"github.com/herpatlas/herpatlas/internal/config"
)

// Claims are the JWT claims carried by API tokens.
type Claims struct {
	UserID int64  `json:"user_id"`
	Login  string `json:"login"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller, stored in the request context.
type Identity struct {
	UserID int64
	Login  string
	Role   string
}

type contextKey struct{ name string }

var identityKey = &contextKey{"identity"}

// FromContext returns the authenticated identity, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}

// WithIdentity returns a context carrying the identity. Exported for tests.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// JWTManager creates and validates HMAC-SHA256 API tokens.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTManager builds a JWTManager from the auth configuration. The
// secret is required; it is stored as []byte and never logged.
func NewJWTManager(cfg *config.AuthConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("auth: jwt secret is required")
	}
	return &JWTManager{secret: []byte(cfg.JWTSecret), ttl: cfg.TokenTTL}, nil
}

// GenerateToken signs a token for the given user.
func (m *JWTManager) GenerateToken(userID int64, login, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Login:  login,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies the signature, algorithm, and time claims of a
// token and returns its claims.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		// Pinning the algorithm prevents confusion attacks.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: parsing token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	return claims, nil
}

// Authenticate requires a valid bearer token and stores the caller's
// identity in the request context. Requests without one get a structured
// 401.
func (m *JWTManager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeAuthError(w, apperror.Unauthenticated("authentication required"))
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == header {
			writeAuthError(w, apperror.Unauthenticated("authorization header must use the Bearer scheme"))
			return
		}
		claims, err := m.ValidateToken(tokenString)
		if err != nil {
			writeAuthError(w, apperror.Unauthenticated("invalid or expired token"))
			return
		}
		if claims.UserID <= 0 {
			writeAuthError(w, apperror.Unauthenticated("token carries no user identity"))
			return
		}
		id := &Identity{UserID: claims.UserID, Login: claims.Login, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func writeAuthError(w http.ResponseWriter, appErr *apperror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status())
	_ = json.NewEncoder(w).Encode(appErr)
}
