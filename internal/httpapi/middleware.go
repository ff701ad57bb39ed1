// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

// Package httpapi serves the authentication endpoints and the hybrid
// credential middleware.
package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/necrotome/necrotome/internal/auth"
	"github.com/necrotome/necrotome/internal/observability"
	"github.com/necrotome/necrotome/internal/session"
	"github.com/necrotome/necrotome/pkg/errutil"
)

// identityKey is the gin context key carrying the authenticated identity.
const identityKey = "necrotome/identity"

// Uniform client-facing messages. Login and middleware rejections must not
// reveal which credential path failed or whether an account exists.
const (
	msgNotAuthenticated   = "not authenticated"
	msgInvalidCredentials = "invalid credentials"
	msgUnavailable        = "service temporarily unavailable"
)

// CurrentUser returns the identity attached by the middleware.
func CurrentUser(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	identity, ok := v.(auth.Identity)
	return identity, ok
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// isUnavailable reports whether an error means the store cannot serve the
// request right now, as opposed to the record not existing.
func isUnavailable(err error) bool {
	switch errutil.Code(err) {
	case "STORE_UNAVAILABLE", "STORE_NOT_CONFIGURED":
		return true
	default:
		return false
	}
}

// RequireAuth arbitrates between the two credential paths, strictly token
// first:
//
//  1. A bearer token that verifies and resolves to a live identity wins;
//     the session is not consulted.
//  2. Otherwise the session cookie is tried; a live session resolves back
//     to an identity through the same repository.
//  3. Otherwise the request is rejected with a uniform 401. A token whose
//     identity was deleted is indistinguishable from a forged token.
//
// Store unavailability is the one non-uniform outcome: it is a 503, since
// the caller should retry rather than re-authenticate.
func RequireAuth(svc *auth.Service, sessions session.Store, metrics *observability.Metrics, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if raw, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if subject, err := svc.Tokens().Verify(raw); err == nil {
				identity, err := svc.ResolveIdentity(ctx, subject)
				switch {
				case err == nil:
					metrics.RecordAuthDecision("token", "ok")
					c.Set(identityKey, identity.Sanitized())
					c.Next()
					return
				case isUnavailable(err):
					metrics.RecordAuthDecision("token", "unavailable")
					c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": msgUnavailable})
					return
				}
				// Identity gone after token issuance: fall through to the
				// session path exactly as an invalid token would.
			}
			logger.Debug("bearer token rejected, trying session")
		}

		if sid, err := c.Cookie(session.CookieName); err == nil && sid != "" {
			sess, err := sessions.Get(ctx, sid)
			switch {
			case err == nil:
				identity, err := svc.ResolveIdentity(ctx, sess.UserID)
				switch {
				case err == nil:
					metrics.RecordAuthDecision("session", "ok")
					c.Set(identityKey, identity.Sanitized())
					c.Next()
					return
				case isUnavailable(err):
					metrics.RecordAuthDecision("session", "unavailable")
					c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": msgUnavailable})
					return
				}
			case isUnavailable(err):
				metrics.RecordAuthDecision("session", "unavailable")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": msgUnavailable})
				return
			}
		}

		metrics.RecordAuthDecision("none", "rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgNotAuthenticated})
	}
}

// RequestLogger logs one line per request with method, path, status, and
// duration.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
