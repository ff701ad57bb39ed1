// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/necrotome/necrotome/internal/session"
)

// dummyPasswordDigest is verified when an email has no account, so the
// response time for "unknown email" matches "wrong password". It is a
// published bcrypt test vector, not a credential.
//
//nolint:gosec // G101: intentionally fake digest for timing attack prevention.
const dummyPasswordDigest = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// errInvalidCredentials is shared by every login failure the client may
// not distinguish: unknown email and wrong password produce this exact
// error, enumeration resistance depends on it.
func errInvalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid credentials")
}

// Service provides registration, login, logout, and session-to-identity
// resolution.
type Service struct {
	repo     IdentityRepository
	sessions session.Store
	hasher   PasswordHasher
	tokens   *TokenService
	logger   *slog.Logger
}

// NewService creates a Service.
func NewService(repo IdentityRepository, sessions session.Store, hasher PasswordHasher, tokens *TokenService, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, oops.Errorf("identity repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo:     repo,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		logger:   logger,
	}, nil
}

// Tokens returns the token service used by this Service.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// Register creates an identity, establishes a session, and issues a token.
// Returns the sanitized identity, the session, and the token.
func (s *Service) Register(ctx context.Context, email, password, name string) (*Identity, *session.Session, string, error) {
	if email == "" || password == "" || name == "" {
		return nil, nil, "", oops.Code("AUTH_INVALID_INPUT").
			Errorf("email, password and name are required")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, nil, "", err
	}
	if existing != nil {
		return nil, nil, "", oops.Code("AUTH_EMAIL_TAKEN").
			Errorf("email already registered")
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, "", err
	}

	identity, err := s.repo.Create(ctx, NewIdentity{
		Email:          email,
		Name:           name,
		PasswordDigest: digest,
	})
	if err != nil {
		return nil, nil, "", err
	}

	sess, token, err := s.establish(ctx, *identity)
	if err != nil {
		return nil, nil, "", err
	}

	s.logger.Info("identity registered", "user_id", identity.ID)

	sanitized := identity.Sanitized()
	return &sanitized, sess, token, nil
}

// Login verifies credentials and, on success, establishes a session and
// issues a token. Unknown email and wrong password are indistinguishable
// to the caller; a dummy digest is verified when the account does not
// exist to keep response time constant.
func (s *Service) Login(ctx context.Context, email, password string) (*Identity, *session.Session, string, error) {
	if email == "" || password == "" {
		return nil, nil, "", errInvalidCredentials()
	}

	identity, lookupErr := s.repo.FindByEmail(ctx, email)

	targetDigest := dummyPasswordDigest
	exists := false

	switch {
	case lookupErr == nil:
		targetDigest = identity.PasswordDigest
		exists = true
	case errors.Is(lookupErr, ErrNotFound):
		// Keep the dummy digest; verification still runs.
	default:
		return nil, nil, "", lookupErr
	}

	valid, verifyErr := s.hasher.Verify(password, targetDigest)
	if verifyErr != nil && exists {
		return nil, nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !exists || !valid {
		return nil, nil, "", errInvalidCredentials()
	}

	sess, token, err := s.establish(ctx, *identity)
	if err != nil {
		return nil, nil, "", err
	}

	s.logger.Info("login succeeded", "user_id", identity.ID)

	sanitized := identity.Sanitized()
	return &sanitized, sess, token, nil
}

// Logout destroys a session. The client is expected to discard its token;
// tokens cannot be invalidated server-side before expiry.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}

// ResolveIdentity maps an opaque session or token subject key back to a
// full identity. Returns ErrNotFound (wrapped) when the identity no longer
// exists.
func (s *Service) ResolveIdentity(ctx context.Context, key string) (*Identity, error) {
	return s.repo.Lookup(ctx, key)
}

// establish creates the session and token for an authenticated identity.
func (s *Service) establish(ctx context.Context, identity Identity) (*session.Session, string, error) {
	sess, err := session.New(SessionKeyOf(identity))
	if err != nil {
		return nil, "", err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(SessionKeyOf(identity))
	if err != nil {
		return nil, "", err
	}
	return &sess, token, nil
}
