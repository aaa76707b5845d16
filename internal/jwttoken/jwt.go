// Package jwttoken issues and validates HMAC-signed admin tokens.
package jwttoken

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "storegate/pkg/domain-errors"
)

const defaultTTL = time.Hour

type Claims struct {
	jwt.RegisteredClaims
}

// Manager signs and validates tokens with a shared HMAC key.
type Manager struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

func NewManager(signingKey, issuer string) (*Manager, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("jwttoken: signing key is required")
	}
	return &Manager{key: []byte(signingKey), issuer: issuer, ttl: defaultTTL}, nil
}

// Issue creates a token for the given subject, valid from now.
func (m *Manager) Issue(subject string, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token, returning its subject.
// It satisfies the admin middleware's TokenValidator.
func (m *Manager) ValidateToken(raw string) (string, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return m.key, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	if !token.Valid || claims.Subject == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims.Subject, nil
}
