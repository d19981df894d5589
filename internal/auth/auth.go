// Package auth guards the HTTP and websocket surfaces with bearer tokens.
// Tokens are HS256 JWTs minted by the token endpoint; a static API key may
// additionally gate token minting itself.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type Authenticator struct {
	secret   []byte
	apiKey   string
	tokenTTL time.Duration
	enabled  bool

	now func() time.Time
}

// New builds an authenticator. An empty secret is replaced with a random
// one, which keeps single-process deployments working but invalidates
// tokens across restarts.
func New(secret, apiKey string, tokenTTL time.Duration, enabled bool) *Authenticator {
	if secret == "" {
		secret = randomSecret()
	}
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &Authenticator{
		secret:   []byte(secret),
		apiKey:   apiKey,
		tokenTTL: tokenTTL,
		enabled:  enabled,
		now:      time.Now,
	}
}

func (a *Authenticator) Enabled() bool { return a.enabled }

// CheckAPIKey verifies the static key gating token minting. A server
// configured without a key accepts any caller.
func (a *Authenticator) CheckAPIKey(candidate string) bool {
	if a.apiKey == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(a.apiKey)) == 1
}

// MintToken issues a signed session token for a user.
func (a *Authenticator) MintToken(userID string) (string, time.Time, error) {
	now := a.now().UTC()
	expiry := now.Add(a.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiry, nil
}

// VerifyToken validates a bearer token and returns its subject.
func (a *Authenticator) VerifyToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingToken
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("auth: read random secret: %v", err))
	}
	return hex.EncodeToString(buf)
}
