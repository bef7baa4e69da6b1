package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/users"
)

// Token is a minimal interface for ID-token payloads. It is satisfied
// by *oidc.IDToken and by test fakes.
type Token interface {
	Claims(v interface{}) error
}

// TokenVerifier validates a raw ID token and returns its payload.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// Verifier wraps the OIDC provider discovery and token verification.
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &Verifier{provider: provider, verifier: verifier}, nil
}

func (v *Verifier) Verify(ctx context.Context, raw string) (Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, err, "invalid id token")
	}
	return idToken, nil
}

// rawClaims is the subset of standard OIDC claims the directory needs.
type rawClaims struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// ExtractClaim maps a verified token payload onto the identity claim
// consumed by users.Service.Reconcile. The subject and email are
// required; reconciliation cannot match or create without them.
func ExtractClaim(tok Token) (users.ExternalClaim, error) {
	var c rawClaims
	if err := tok.Claims(&c); err != nil {
		return users.ExternalClaim{}, apperr.Wrap(apperr.KindUnauthenticated, err, "unreadable token claims")
	}
	if c.Sub == "" {
		return users.ExternalClaim{}, apperr.Unauthenticated("token has no subject")
	}
	if c.Email == "" {
		return users.ExternalClaim{}, apperr.Unauthenticated("token has no email claim")
	}
	return users.ExternalClaim{
		ExternalID: c.Sub,
		Email:      c.Email,
		Name:       c.Name,
		AvatarURL:  c.Picture,
	}, nil
}
