package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier validates bearer tokens issued by the identity provider and
// extracts the subject. The service never issues tokens itself.
type Verifier struct {
	Secret    []byte
	Issuer    string
	ClockSkew time.Duration
}

// NewVerifier constructs a Verifier for an HS256 shared secret.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: secret is required")
	}
	return &Verifier{Secret: []byte(secret), Issuer: issuer, ClockSkew: 30 * time.Second}, nil
}

// Subject parses and validates the token, returning its subject claim.
func (v *Verifier) Subject(raw string) (string, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, v.Secret),
		jwt.WithValidate(false),
	)
	if err != nil {
		return "", fmt.Errorf("auth: parse token: %w", err)
	}

	options := []jwt.ValidateOption{}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if err := jwt.Validate(tok, options...); err != nil {
		return "", fmt.Errorf("auth: validate token: %w", err)
	}

	sub := strings.TrimSpace(tok.Subject())
	if sub == "" {
		return "", errors.New("auth: token missing subject")
	}
	return sub, nil
}
