package account

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionClaims mirrors the shape internal/gateway/middleware.AuthMiddleware
// validates locally — the two packages intentionally don't share a Go type,
// since in production they're different services and the contract is the
// signed token itself, not a shared struct.
type sessionClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"account_id"`
	TokenType string `json:"type"`
}

func issueSessionToken(secret []byte, accountID string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			Subject:   accountID,
		},
		AccountID: accountID,
		TokenType: "access",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
