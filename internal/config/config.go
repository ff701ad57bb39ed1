// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

// Package config loads service configuration from defaults, an optional
// YAML file, and environment variables (highest precedence).
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
)

// DefaultDevSecret is the token-signing fallback used when neither
// JWT_SECRET nor SESSION_SECRET is configured. It exists so the service
// works out of the box in development; the serve command refuses to start
// with it in production.
const DefaultDevSecret = "necrotome-jwt-secret-change-in-production"

// Config holds all service configuration.
type Config struct {
	Port        string
	Env         string // "development" or "production"
	LogFormat   string // "json" or "text"
	LogLevel    string
	MetricsAddr string // empty disables the observability server

	MongoURI      string // empty degrades to memory-only session backing
	MongoDatabase string

	SessionSecret string
	JWTSecret     string
}

// Defaults mirrors the original deployment's out-of-the-box behavior.
func defaults() Config {
	return Config{
		Port:          "5000",
		Env:           "development",
		LogFormat:     "json",
		LogLevel:      "info",
		MetricsAddr:   "127.0.0.1:9100",
		MongoDatabase: "necro_tome",
	}
}

// Load reads configuration. path is an optional YAML file; environment
// variables always win (MONGODB_URI, SESSION_SECRET, JWT_SECRET, PORT,
// APP_ENV, METRICS_ADDR, LOG_FORMAT, LOG_LEVEL, MONGODB_DATABASE).
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_FILE_INVALID").
				With("path", path).
				Wrap(err)
		}
	}

	// Environment keys map onto config keys: MONGODB_URI -> mongodb.uri.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(s), "_", ".")
	}), nil); err != nil {
		return Config{}, oops.Code("CONFIG_ENV_INVALID").Wrap(err)
	}

	cfg := defaults()

	pick := func(target *string, keys ...string) {
		for _, key := range keys {
			if v := k.String(key); v != "" {
				*target = v
				return
			}
		}
	}

	pick(&cfg.Port, "port")
	pick(&cfg.Env, "app.env")
	pick(&cfg.LogFormat, "log.format")
	pick(&cfg.LogLevel, "log.level")
	pick(&cfg.MetricsAddr, "metrics.addr")
	pick(&cfg.MongoURI, "mongodb.uri")
	pick(&cfg.MongoDatabase, "mongodb.database")
	pick(&cfg.SessionSecret, "session.secret")
	pick(&cfg.JWTSecret, "jwt.secret")

	return cfg, nil
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// SigningSecret resolves the token-signing secret: JWT_SECRET, then
// SESSION_SECRET, then the development fallback. The second return value
// is true when the fallback was used.
func (c Config) SigningSecret() (string, bool) {
	if c.JWTSecret != "" {
		return c.JWTSecret, false
	}
	if c.SessionSecret != "" {
		return c.SessionSecret, false
	}
	return DefaultDevSecret, true
}

// HTTPAddr returns the listen address for the API server.
func (c Config) HTTPAddr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// Store tuning carried from the original client configuration.
const (
	ConnectTimeout = 30 * time.Second
	SocketTimeout  = 30 * time.Second
	MaxPoolSize    = 10
	MinPoolSize    = 1
)
