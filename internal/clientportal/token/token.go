// Package token mints and validates the short-lived tokens end customers
// use on the portal. They are signed with their own secret and carry
// type "client", so an access token can never cross over and vice versa.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"handyman_portal_backend/platform/config"
)

const tokenType = "client"

// Minter issues and validates client portal tokens.
type Minter struct {
	secret []byte
	ttl    time.Duration
}

// New creates a token minter.
func New(cfg config.ClientTokenConfig) *Minter {
	ttl := cfg.GetClientTokenTTL()
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Minter{
		secret: []byte(cfg.GetClientTokenSecret()),
		ttl:    ttl,
	}
}

// Mint issues a token for the given portal user.
func (m *Minter) Mint(userID uuid.UUID) (string, int64, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"type": tokenType,
		"iat":  now.Unix(),
		"exp":  now.Add(m.ttl).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(m.ttl.Seconds()), nil
}

// Validate parses a client token and returns its subject. Tokens of any
// other type, signature or expiry state are rejected.
func (m *Minter) Validate(raw string) (uuid.UUID, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("invalid client token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid client token")
	}
	if typ, _ := claims["type"].(string); typ != tokenType {
		return uuid.Nil, fmt.Errorf("invalid client token")
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid client token")
	}
	return userID, nil
}
