// Package jwt verifies the bearer tokens issued by the main client
// management app. The mailbox never registers users itself; it only
// checks that a caller carries a valid counterparty identity.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the token payload. The counterparty id rides in the standard
// subject claim so tokens stay compatible with the issuing app.
type Claims struct {
	CounterpartyID string `json:"sub"`
	Kind           string `json:"kind"`
	jwt.RegisteredClaims
}

// Manager signs and verifies HMAC tokens.
type Manager struct {
	secret []byte
	issuer string
	expiry time.Duration
}

// NewManager creates a manager for the shared secret.
func NewManager(secret, issuer string, expiry time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		issuer: issuer,
		expiry: expiry,
	}
}

// Generate signs a token for a counterparty, used by tooling and tests.
// Production tokens come from the main app.
func (m *Manager) Generate(counterpartyID, kind string) (string, error) {
	now := time.Now()
	claims := Claims{
		CounterpartyID: counterpartyID,
		Kind:           kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   counterpartyID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies the signature and expiry and returns the claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
