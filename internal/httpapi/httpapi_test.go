// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package httpapi_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/necrotome/necrotome/internal/auth"
	"github.com/necrotome/necrotome/internal/httpapi"
	"github.com/necrotome/necrotome/internal/session"
	"github.com/necrotome/necrotome/internal/store"
)

const testSecret = "test-signing-secret"

// fakeRepo is an in-memory IdentityRepository with a switchable outage.
type fakeRepo struct {
	byID    map[string]auth.Identity
	byEmail map[string]auth.Identity
	nextID  int
	down    bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byID:    make(map[string]auth.Identity),
		byEmail: make(map[string]auth.Identity),
	}
}

func (r *fakeRepo) outage() error {
	return oops.Code("STORE_UNAVAILABLE").Errorf("store is down")
}

func (r *fakeRepo) Lookup(_ context.Context, id string) (*auth.Identity, error) {
	if r.down {
		return nil, r.outage()
	}
	identity, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("lookup %q: %w", id, auth.ErrNotFound)
	}
	clean := identity.Sanitized()
	return &clean, nil
}

func (r *fakeRepo) FindByEmail(_ context.Context, email string) (*auth.Identity, error) {
	if r.down {
		return nil, r.outage()
	}
	identity, ok := r.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("find %q: %w", email, auth.ErrNotFound)
	}
	return &identity, nil
}

func (r *fakeRepo) Create(_ context.Context, in auth.NewIdentity) (*auth.Identity, error) {
	if r.down {
		return nil, r.outage()
	}
	r.nextID++
	identity := auth.Identity{
		ID:             fmt.Sprintf("user-%d", r.nextID),
		Email:          in.Email,
		Name:           in.Name,
		PasswordDigest: in.PasswordDigest,
	}
	r.byID[identity.ID] = identity
	r.byEmail[identity.Email] = identity
	return &identity, nil
}

// fakeHasher keeps handler tests off real bcrypt.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", auth.ErrEmptyPassword
	}
	return "digest:" + password, nil
}

func (fakeHasher) Verify(password, digest string) (bool, error) {
	return digest == "digest:"+password, nil
}

// env is a fully wired API under test.
type env struct {
	repo     *fakeRepo
	svc      *auth.Service
	sessions *session.Swappable
	manager  *store.Manager
	handler  http.Handler
}

func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	cli, err := mongo.NewClient(options.Client().ApplyURI("mongodb://localhost:27017"))
	require.NoError(t, err)
	return cli.Database("necro_tome")
}

// newEnv builds the API. With storeUp the manager dials a stub database
// handle without network activity; without it the manager is unconfigured,
// the degraded mode of a missing MONGODB_URI.
func newEnv(t *testing.T, storeUp bool) *env {
	t.Helper()

	cfg := store.Config{}
	var opts []store.Option
	if storeUp {
		db := testDatabase(t)
		cfg = store.Config{URI: "mongodb://localhost:27017", Database: "necro_tome"}
		opts = append(opts,
			store.WithDialer(func(context.Context) (*mongo.Client, *mongo.Database, error) {
				return nil, db, nil
			}),
			store.WithLiveness(func(time.Time) bool { return true }),
		)
	}
	manager := store.NewManager(cfg, slog.Default(), opts...)

	repo := newFakeRepo()
	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)

	sessions := session.NewSwappable(session.NewMemoryStore(), "memory")
	svc, err := auth.NewService(repo, sessions, fakeHasher{}, tokens, nil)
	require.NoError(t, err)

	api := httpapi.NewServer(httpapi.Config{Addr: ":0"}, svc, sessions, manager, nil, slog.Default())

	return &env{
		repo:     repo,
		svc:      svc,
		sessions: sessions,
		manager:  manager,
		handler:  api.Handler(),
	}
}

// register drives the real endpoint and returns the response body fields
// plus the session cookie.
func (e *env) register(t *testing.T, email, password, name string) (map[string]any, *http.Cookie) {
	t.Helper()

	body := fmt.Sprintf(`{"email":%q,"password":%q,"name":%q}`, email, password, name)
	rec := e.do(t, http.MethodPost, "/auth/register", body, nil, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	return decodeBody(t, rec), sessionCookie(rec)
}

func (e *env) do(t *testing.T, method, path, body string, cookie *http.Cookie, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}
