// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/necrotome/necrotome/internal/config"
	"github.com/necrotome/necrotome/internal/logging"
	"github.com/necrotome/necrotome/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create database indexes",
		Long: `Connect to MongoDB and create the indexes the service relies on:
the unique email index on users and the TTL index on sessions.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if cfg.MongoURI == "" {
		return oops.Code("CONFIG_INVALID").Errorf("MONGODB_URI environment variable is required")
	}

	logging.SetDefault(logging.Options{
		Service: "necrotome",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
	})

	ctx := cmd.Context()
	manager := store.NewManager(store.Config{
		URI:            cfg.MongoURI,
		Database:       cfg.MongoDatabase,
		ConnectTimeout: config.ConnectTimeout,
	}, slog.Default())

	cmd.Println("Connecting to database...")
	db, err := manager.Connect(ctx)
	if err != nil {
		return oops.Code("STORE_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer func() {
		_ = manager.Shutdown(ctx)
	}()

	cmd.Println("Creating indexes...")
	if err := store.EnsureIndexes(ctx, db); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create indexes").Wrap(err)
	}

	cmd.Println("Indexes created successfully")
	return nil
}
