// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/necrotome/necrotome/internal/auth"
	authmongo "github.com/necrotome/necrotome/internal/auth/mongodb"
	"github.com/necrotome/necrotome/internal/config"
	"github.com/necrotome/necrotome/internal/httpapi"
	"github.com/necrotome/necrotome/internal/logging"
	"github.com/necrotome/necrotome/internal/observability"
	"github.com/necrotome/necrotome/internal/session"
	"github.com/necrotome/necrotome/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API server. Sessions begin on an in-memory store and
upgrade to MongoDB once a connection is established in the background.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logging.SetDefault(logging.Options{
		Service: "necrotome",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
	})
	logger := slog.Default()

	secret, usedFallback := cfg.SigningSecret()
	if usedFallback {
		if cfg.IsProduction() {
			return oops.Code("CONFIG_INVALID").
				Errorf("JWT_SECRET or SESSION_SECRET must be set in production")
		}
		logger.Warn("using built-in development signing secret; set JWT_SECRET before deploying")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager, sessions, obsServer := buildServices(cfg, logger)

	var metrics *observability.Metrics
	if obsServer != nil {
		metrics = obsServer.Metrics()
	}

	tokens, err := auth.NewTokenService(secret)
	if err != nil {
		return err
	}

	repo := authmongo.NewIdentityRepository(manager)
	svc, err := auth.NewService(repo, sessions, auth.NewBcryptHasher(), tokens, logger)
	if err != nil {
		return err
	}

	if manager.Configured() {
		go connectStore(ctx, manager, sessions, logger)
	} else {
		logger.Warn("MONGODB_URI not set; sessions stay in memory and persisted operations return 503")
	}

	var obsErrCh <-chan error
	if obsServer != nil {
		obsErrCh, err = obsServer.Start()
		if err != nil {
			return err
		}
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	api := httpapi.NewServer(httpapi.Config{
		Addr:          cfg.HTTPAddr(),
		SecureCookies: cfg.IsProduction(),
	}, svc, sessions, manager, metrics, logger)

	apiErrCh := make(chan error, 1)
	go func() {
		apiErrCh <- api.Run()
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err = <-apiErrCh:
		if err != nil {
			logger.Error("api server failed", "error", err)
		}
	case obsErr := <-obsErrCh:
		if obsErr != nil {
			logger.Error("observability server failed", "error", obsErr)
			err = obsErr
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if shutdownErr := api.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("error stopping api server", "error", shutdownErr)
	}
	if obsServer != nil {
		if stopErr := obsServer.Stop(shutdownCtx); stopErr != nil {
			logger.Warn("error stopping observability server", "error", stopErr)
		}
	}
	if manager.Configured() {
		if closeErr := manager.Shutdown(shutdownCtx); closeErr != nil {
			logger.Warn("error closing store", "error", closeErr)
		}
	}

	logger.Info("shutdown complete")
	return err
}

// buildServices assembles the store manager, the swappable session store,
// and the observability server.
func buildServices(cfg config.Config, logger *slog.Logger) (*store.Manager, *session.Swappable, *observability.Server) {
	var (
		obsServer *observability.Server
		manager   *store.Manager
		opts      []store.Option
	)
	if cfg.MetricsAddr != "" {
		// Memory-only deployments are always ready; with a store configured,
		// readiness tracks the connection.
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool {
			return manager == nil || !manager.Configured() || manager.Connected()
		})
		opts = append(opts, store.WithAttemptObserver(obsServer.Metrics().RecordConnectAttempt))
	}

	manager = store.NewManager(store.Config{
		URI:            cfg.MongoURI,
		Database:       cfg.MongoDatabase,
		ConnectTimeout: config.ConnectTimeout,
		MaxPoolSize:    config.MaxPoolSize,
		MinPoolSize:    config.MinPoolSize,
	}, logging.Component(logger, "store"), opts...)

	sessions := session.NewSwappable(session.NewMemoryStore(), "memory")

	return manager, sessions, obsServer
}

// connectStore retries the initial connection with backoff, then ensures
// indexes and swaps session backing to MongoDB. Requests proceed on the
// memory store in the meantime.
func connectStore(ctx context.Context, manager *store.Manager, sessions *session.Swappable, logger *slog.Logger) {
	backoff := retry.WithCappedDuration(30*time.Second, retry.NewFibonacci(time.Second))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		db, err := manager.Connect(ctx)
		if err != nil {
			logger.Warn("store connection attempt failed", "error", err)
			return retry.RetryableError(err)
		}
		if err := store.EnsureIndexes(ctx, db); err != nil {
			logger.Warn("index creation failed", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		logger.Error("giving up on store connection", "error", err)
		return
	}

	prev := sessions.Swap(session.NewMongoStore(manager), "mongodb", logger)
	logger.Info("session store upgraded", "from", prev, "to", "mongodb")
}
