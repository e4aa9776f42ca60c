// Package tokenverify exposes access-token verification to transports (HTTP
// middleware, NATS responder) without leaking the issuer internals.
package tokenverify

import (
	"errors"

	"github.com/example/devtrack-api/internal/usecase"
)

var ErrInvalidToken = errors.New("invalid_token")

type Result struct {
	UserID   string
	Email    string
	Username string
}

type Verifier interface {
	Verify(token string) (*Result, error)
}

type issuerVerifier struct {
	issuer usecase.TokenIssuer
}

func NewVerifier(issuer usecase.TokenIssuer) Verifier {
	return &issuerVerifier{issuer: issuer}
}

// Verify checks the access-token signature, expiry, and purpose header.
// Session state is deliberately not consulted here: access tokens stay
// valid for their short lifetime even after the session is revoked.
func (v *issuerVerifier) Verify(token string) (*Result, error) {
	claims, err := v.issuer.VerifyAccessToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &Result{UserID: claims.UserID, Email: claims.Email, Username: claims.Username}, nil
}
