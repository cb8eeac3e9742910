// Package auth turns bearer tokens from the external identity provider
// into domain principals. The marketplace core trusts the principal; no
// credential verification happens past this boundary.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tokeniq/assetmarket/internal/domain"
)

// Claims is the JWT payload the identity provider issues: the account
// id in the subject plus the role set.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Mint signs an HS256 token for the given account and roles. Used by
// tooling and tests; in production the identity provider mints tokens.
func Mint(secret []byte, accountID string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Parse validates an HS256 token and extracts the principal. Any
// parsing or validation failure maps to domain.ErrUnauthorized.
func Parse(secret []byte, tokenString string) (domain.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Principal{}, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return domain.Principal{}, domain.ErrUnauthorized
	}

	return domain.Principal{
		AccountID: claims.Subject,
		Roles:     claims.Roles,
	}, nil
}
