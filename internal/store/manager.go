// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

// Package store owns the lifecycle of the MongoDB client: lazy
// construction, bounded handshakes, freshness-window caching with cheap
// liveness checks, and coalescing of concurrent connection attempts.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Default lifecycle bounds.
const (
	DefaultFreshness      = 30 * time.Second
	DefaultConnectTimeout = 30 * time.Second
	DefaultProbeTimeout   = 5 * time.Second
)

// Config holds connection settings for the document store.
type Config struct {
	URI      string // empty means no store is configured
	Database string

	ConnectTimeout time.Duration
	ProbeTimeout   time.Duration
	Freshness      time.Duration
	MaxPoolSize    uint64
	MinPoolSize    uint64
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = DefaultConnectTimeout
	}
	if out.ProbeTimeout <= 0 {
		out.ProbeTimeout = DefaultProbeTimeout
	}
	if out.Freshness <= 0 {
		out.Freshness = DefaultFreshness
	}
	if out.MaxPoolSize == 0 {
		out.MaxPoolSize = 10
	}
	if out.MinPoolSize == 0 {
		out.MinPoolSize = 1
	}
	return out
}

// attempt is one in-flight connection handshake. All callers that arrive
// while it runs share its eventual result.
type attempt struct {
	done chan struct{}
	db   *mongo.Database
	err  error
}

// dialFunc performs one handshake and returns a connected client plus the
// selected database handle. Replaced in tests.
type dialFunc func(ctx context.Context) (*mongo.Client, *mongo.Database, error)

// Manager is the process-wide connection manager. The zero value is not
// usable; construct with NewManager.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	health *healthMonitor

	mu           sync.Mutex
	client       *mongo.Client
	started      bool // Connect has been called on the current client
	db           *mongo.Database
	inflight     *attempt
	lastVerified time.Time

	dial     dialFunc
	alive    func(now time.Time) bool
	now      func() time.Time
	observer func(err error)
}

// Option customizes a Manager.
type Option func(*Manager)

// WithDialer replaces the handshake implementation. Used by tests.
func WithDialer(dial dialFunc) Option {
	return func(m *Manager) { m.dial = dial }
}

// WithLiveness replaces the cheap liveness check. Used by tests.
func WithLiveness(alive func(now time.Time) bool) Option {
	return func(m *Manager) { m.alive = alive }
}

// WithClock replaces the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithAttemptObserver registers a callback invoked once per completed
// handshake attempt with its outcome. Used for metrics.
func WithAttemptObserver(fn func(err error)) Option {
	return func(m *Manager) { m.observer = fn }
}

// NewManager creates a connection manager. The manager performs no network
// activity until Connect or EnsureConnected is called.
func NewManager(cfg Config, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:    cfg.withDefaults(),
		logger: logger,
		health: &healthMonitor{},
		now:    time.Now,
	}
	m.dial = m.defaultDial
	m.alive = func(now time.Time) bool {
		return m.health.Healthy(now, m.cfg.Freshness)
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configured reports whether a store endpoint is configured at all.
func (m *Manager) Configured() bool {
	return m.cfg.URI != ""
}

// GetClient returns the lazily-constructed client singleton, not yet
// connected, or nil when no store endpoint is configured. Repeat calls
// return the same instance.
func (m *Manager) GetClient() *mongo.Client {
	if !m.Configured() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clientLocked()
}

func (m *Manager) clientLocked() *mongo.Client {
	if m.client != nil {
		return m.client
	}

	cli, err := mongo.NewClient(m.clientOptions())
	if err != nil {
		m.logger.Error("store client construction failed", "error", err)
		return nil
	}
	m.client = cli
	m.started = false
	return cli
}

func (m *Manager) clientOptions() *options.ClientOptions {
	return options.Client().
		ApplyURI(m.cfg.URI).
		SetConnectTimeout(m.cfg.ConnectTimeout).
		SetSocketTimeout(m.cfg.ConnectTimeout).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetMaxPoolSize(m.cfg.MaxPoolSize).
		SetMinPoolSize(m.cfg.MinPoolSize).
		SetServerMonitor(m.health.ServerMonitor())
}

// Connect performs the handshake once and returns the database handle.
// Idempotent: a healthy cached handle is returned immediately. Handshake
// failures are absorbed and come back as a STORE_UNAVAILABLE error; the
// process never crashes on an unreachable store.
func (m *Manager) Connect(ctx context.Context) (*mongo.Database, error) {
	if !m.Configured() {
		return nil, errNotConfigured()
	}

	m.mu.Lock()
	if m.db != nil {
		db := m.db
		m.mu.Unlock()
		return db, nil
	}
	return m.connectLocked(ctx)
}

// EnsureConnected is the per-request hot path.
//
//   - A handle verified within the freshness window is returned with no
//     network call.
//   - A stale handle is re-validated from topology heartbeat state (cheap,
//     no round-trip); on failure the handle is discarded and a reconnect
//     starts.
//   - While an attempt is in flight, callers await that same attempt; a
//     cold start with N concurrent callers performs exactly one handshake.
func (m *Manager) EnsureConnected(ctx context.Context) (*mongo.Database, error) {
	if !m.Configured() {
		return nil, errNotConfigured()
	}

	now := m.now()

	m.mu.Lock()
	if m.db != nil {
		if now.Sub(m.lastVerified) <= m.cfg.Freshness {
			db := m.db
			m.mu.Unlock()
			return db, nil
		}

		if m.alive(now) {
			m.lastVerified = now
			db := m.db
			m.mu.Unlock()
			return db, nil
		}

		m.logger.Warn("store connection lost, reconnecting")
		m.discardLocked()
	}
	return m.connectLocked(ctx)
}

// connectLocked joins the in-flight attempt or claims a new one. The mutex
// must be held on entry; it is released before any network activity.
func (m *Manager) connectLocked(ctx context.Context) (*mongo.Database, error) {
	if att := m.inflight; att != nil {
		m.mu.Unlock()
		return m.await(ctx, att)
	}

	att := &attempt{done: make(chan struct{})}
	m.inflight = att
	m.mu.Unlock()

	// The handshake runs on a detached context so one caller's
	// cancellation cannot fail the attempt for every waiter.
	dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ConnectTimeout)
	defer cancel()

	cli, db, err := m.dial(dialCtx)

	m.mu.Lock()
	if err == nil {
		m.client = cli
		m.started = true
		m.db = db
		m.lastVerified = m.now()
	}
	m.inflight = nil
	m.mu.Unlock()

	if m.observer != nil {
		m.observer(err)
	}

	if err != nil {
		m.logger.Error("store connection failed", "error", err)
		att.err = oops.Code("STORE_UNAVAILABLE").
			With("database", m.cfg.Database).
			Wrap(err)
	} else {
		m.logger.Info("store connected", "database", m.cfg.Database)
		att.db = db
	}
	close(att.done)

	return att.db, att.err
}

// await blocks until the shared attempt completes or the caller's own
// context is done. The attempt itself keeps running for other waiters.
func (m *Manager) await(ctx context.Context, att *attempt) (*mongo.Database, error) {
	select {
	case <-att.done:
		return att.db, att.err
	case <-ctx.Done():
		return nil, oops.Code("STORE_UNAVAILABLE").Wrap(ctx.Err())
	}
}

// discardLocked drops the current handle and tears the client down in the
// background. Mutex must be held.
func (m *Manager) discardLocked() {
	cli := m.client
	m.client = nil
	m.started = false
	m.db = nil
	m.lastVerified = time.Time{}
	m.health.Reset()

	if cli != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), DefaultProbeTimeout)
			defer cancel()
			if err := cli.Disconnect(ctx); err != nil {
				m.logger.Debug("stale client disconnect", "error", err)
			}
		}()
	}
}

// Connected reports whether a database handle is currently held. Used as
// the readiness signal.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db != nil
}

// Shutdown disconnects the client, if any.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	cli := m.client
	m.client = nil
	m.started = false
	m.db = nil
	m.lastVerified = time.Time{}
	m.mu.Unlock()

	if cli == nil {
		return nil
	}
	if err := cli.Disconnect(ctx); err != nil {
		return oops.Code("STORE_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}

// defaultDial performs the real handshake: connect the singleton client,
// verify it with a bounded ping, then probe the named database. Probe
// failure is non-fatal; the handle is kept and later liveness checks catch
// real unavailability.
func (m *Manager) defaultDial(ctx context.Context) (*mongo.Client, *mongo.Database, error) {
	m.mu.Lock()
	cli := m.clientLocked()
	started := m.started
	m.mu.Unlock()

	if cli == nil {
		return nil, nil, oops.Code("STORE_UNAVAILABLE").Errorf("client construction failed")
	}

	if !started {
		if err := cli.Connect(ctx); err != nil {
			m.failClient(cli)
			return nil, nil, err
		}
		m.mu.Lock()
		m.started = true
		m.mu.Unlock()
	}

	if err := cli.Ping(ctx, nil); err != nil {
		m.failClient(cli)
		return nil, nil, err
	}

	db := cli.Database(m.cfg.Database)

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	if err := db.RunCommand(probeCtx, pingCommand()).Err(); err != nil {
		m.logger.Warn("store health probe failed, keeping handle", "error", err)
	}

	return cli, db, nil
}

// failClient discards a client whose handshake failed so the next attempt
// constructs a fresh one. Connect may only be called once per client.
func (m *Manager) failClient(cli *mongo.Client) {
	m.mu.Lock()
	if m.client == cli {
		m.client = nil
		m.started = false
	}
	m.mu.Unlock()
	m.health.Reset()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultProbeTimeout)
		defer cancel()
		_ = cli.Disconnect(ctx)
	}()
}

func errNotConfigured() error {
	return oops.Code("STORE_NOT_CONFIGURED").
		Errorf("MONGODB_URI is not configured")
}
