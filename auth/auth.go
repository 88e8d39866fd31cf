// Package auth verifies the bearer tokens that front every chat request.
package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/agentstudio/ragchat/errors"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
}

// Verifier validates HMAC-signed JWTs.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a verifier from the shared signing secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: empty signing secret")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// VerifyHeader checks an Authorization header value and returns the caller's
// identity. Every failure wraps ErrUnauthorized; callers must not leak the
// detail to clients.
func (v *Verifier) VerifyHeader(header string) (Identity, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return Identity{}, fmt.Errorf("%w: missing bearer token", apperrors.ErrUnauthorized)
	}
	return v.Verify(strings.TrimPrefix(header, prefix))
}

// Verify checks a raw token string.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", apperrors.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("%w: invalid claims", apperrors.ErrUnauthorized)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", apperrors.ErrUnauthorized)
	}
	return Identity{UserID: sub}, nil
}
