package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/helpdesk-bot/internal/domain"
)

// TokenManager validates the JWTs the chat gateway attaches to
// interaction webhooks. The gateway and the bot share the secret.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Claims describes the JWT payload carried on interaction webhooks.
type Claims struct {
	PrincipalID string   `json:"sub"`
	DisplayName string   `json:"name"`
	Roles       []string `json:"roles,omitempty"`
	Staff       bool     `json:"staff"`
	Admin       bool     `json:"admin"`
	jwt.RegisteredClaims
}

// Principal converts claims into the domain principal.
func (c *Claims) Principal() domain.Principal {
	return domain.Principal{
		ID:          c.PrincipalID,
		DisplayName: c.DisplayName,
		Roles:       c.Roles,
		Staff:       c.Staff,
		Admin:       c.Admin,
	}
}

// GenerateToken builds and signs a JWT for the principal. The bot only
// verifies in production; signing is for the gateway contract and tests.
func (tm *TokenManager) GenerateToken(principal domain.Principal, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := &Claims{
		PrincipalID: principal.ID,
		DisplayName: principal.DisplayName,
		Roles:       principal.Roles,
		Staff:       principal.Staff,
		Admin:       principal.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
