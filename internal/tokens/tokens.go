package tokens

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// NewSessionToken returns a 256-bit random opaque token, hex encoded.
// Session tokens are bearer credentials; they are generated here, at
// the boundary, and handed to the session store as plain values.
func NewSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateState creates a short-lived signed OAuth state parameter.
// The nonce binds the authorization redirect to the callback so a
// forged callback cannot complete the login.
func GenerateState(secret string, ttl time.Duration) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	claims := jwt.MapClaims{
		"nonce": hex.EncodeToString(nonce),
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(ttl).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(secret))
}

// VerifyState checks the signature and expiry of an OAuth state value.
func VerifyState(secret, state string) error {
	tok, err := jwt.Parse(state, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if !tok.Valid {
		return fmt.Errorf("invalid state token")
	}
	return nil
}
