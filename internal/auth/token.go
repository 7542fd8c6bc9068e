// Package auth implements the shared-secret bearer token check that gates
// the feed API's signing and mutating endpoints.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingAuth        = errors.New("missing authorization header")
	ErrMalformedToken     = errors.New("malformed authorization header")
	ErrVerificationFailed = errors.New("token verification failed")
)

// Validator verifies bearer tokens against a shared secret.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	secret []byte
	method jwt.SigningMethod
}

// NewValidator returns a Validator accepting tokens signed with secret using HS256.
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret), method: jwt.SigningMethodHS256}
}

// Validate checks an Authorization header value of the form "<scheme> <token>".
// The scheme itself is not inspected.
func (v *Validator) Validate(header string) error {
	if header == "" {
		return ErrMissingAuth
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 {
		return ErrMalformedToken
	}

	_, err := jwt.ParseWithClaims(parts[1], &jwt.RegisteredClaims{}, v.keyFunc,
		jwt.WithValidMethods([]string{v.method.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	return nil
}

func (v *Validator) keyFunc(token *jwt.Token) (any, error) {
	if len(v.secret) == 0 {
		return nil, errors.New("jwt secret not configured")
	}
	return v.secret, nil
}

// Issuer mints tokens the Validator built from the same secret accepts.
type Issuer struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewIssuer returns an HS256 Issuer.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), method: jwt.SigningMethodHS256, now: time.Now}
}

// Issue signs a token for subject that expires after ttl.
func (i *Issuer) Issue(subject string, ttl time.Duration) (string, error) {
	if len(i.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}

	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
