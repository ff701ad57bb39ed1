// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// TokenLifetime is the fixed validity of issued tokens.
const TokenLifetime = 7 * 24 * time.Hour

// TokenService issues and verifies signed, time-limited identity tokens.
// Tokens are never persisted; verification is purely signature and expiry.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// TokenOption customizes a TokenService.
type TokenOption func(*TokenService)

// WithTokenClock replaces the time source. Used by expiry tests.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService creates a TokenService signing with the given secret.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, oops.Code("AUTH_SECRET_REQUIRED").Errorf("signing secret is required")
	}

	s := &TokenService{
		secret:   []byte(secret),
		lifetime: TokenLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue produces a signed token embedding the subject id with an expiry
// seven days out.
func (s *TokenService) Issue(subjectID string) (string, error) {
	if subjectID == "" {
		return "", oops.Code("AUTH_SUBJECT_REQUIRED").Errorf("subject id is required")
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify validates signature and expiry and returns the embedded subject
// id. Verification failures are data, not faults: malformed input, a bad
// signature, an unexpected algorithm, and expiry all come back as a coded
// AUTH_TOKEN_INVALID error and never panic.
func (s *TokenService) Verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, oops.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", oops.Code("AUTH_TOKEN_INVALID").Wrapf(err, "token rejected")
	}
	if !token.Valid || claims.Subject == "" {
		return "", oops.Code("AUTH_TOKEN_INVALID").Errorf("token rejected")
	}
	return claims.Subject, nil
}
