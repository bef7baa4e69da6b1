package oidc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
)

// insecureToken exposes claims parsed straight from a JWT payload.
type insecureToken struct {
	claims map[string]interface{}
}

func (t *insecureToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// InsecureVerifier decodes tokens WITHOUT validating signatures. Only
// for local/integration runs under explicit opt-in via env var.
type InsecureVerifier struct{}

func NewInsecureVerifier() *InsecureVerifier { return &InsecureVerifier{} }

func (v *InsecureVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	parts := strings.Split(raw, ".")
	if len(parts) < 2 {
		return nil, apperr.Unauthenticated("invalid token format")
	}
	payload := parts[1]
	if m := len(payload) % 4; m != 0 {
		payload += strings.Repeat("=", 4-m)
	}
	data, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, err, "undecodable token payload")
	}
	var claims map[string]interface{}
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, err, "unreadable token payload")
	}
	return &insecureToken{claims: claims}, nil
}
