// Package auth issues and validates the JWTs carried in the Authorization
// header. Claims are deliberately minimal: user ID and role, nothing that
// would need revocation on profile changes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/sabimarket/sabimarket-backend/internal/data"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

type Claims struct {
	UserID string        `json:"user_id"`
	Role   data.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// TokenAuthenticator signs and verifies API tokens with a shared HMAC secret.
type TokenAuthenticator struct {
	secret []byte
	maxAge time.Duration
}

func NewTokenAuthenticator(secret string, maxAge time.Duration) (*TokenAuthenticator, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret cannot be empty")
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &TokenAuthenticator{secret: []byte(secret), maxAge: maxAge}, nil
}

// Issue mints a signed token for a user.
func (a *TokenAuthenticator) Issue(userID string, role data.UserRole) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.maxAge)),
			Subject:   userID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Decode verifies a token and returns its claims.
func (a *TokenAuthenticator) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
