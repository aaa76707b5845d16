// Package secrets generates and verifies admin API tokens. Tokens are random
// and only their bcrypt hash is stored in configuration.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const tokenBytes = 32

// Generate returns a new random token and its bcrypt hash.
func Generate() (token, hash string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	hash, err = Hash(token)
	if err != nil {
		return "", "", err
	}
	return token, hash, nil
}

// Hash returns the bcrypt hash of a token.
func Hash(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(h), nil
}

// Verify compares a presented token against a stored hash.
func Verify(token, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
}
