// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Necrotome Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/necrotome/necrotome/internal/auth"
	"github.com/necrotome/necrotome/internal/session"
	"github.com/necrotome/necrotome/internal/store"
	"github.com/necrotome/necrotome/pkg/errutil"
)

// storeGateTimeout bounds the pre-flight store check on login/register.
const storeGateTimeout = 5 * time.Second

// identityPayload is the public identity shape. The password digest never
// reaches this layer.
type identityPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
}

func payloadFor(identity auth.Identity, token string) identityPayload {
	return identityPayload{
		ID:    identity.ID,
		Email: identity.Email,
		Name:  identity.Name,
		Token: token,
	}
}

// Handlers serves the /auth endpoints.
type Handlers struct {
	svc      *auth.Service
	sessions *session.Swappable
	manager  *store.Manager
	secure   bool // Secure flag on session cookies
	logger   *slog.Logger
}

// NewHandlers creates the auth handlers.
func NewHandlers(svc *auth.Service, sessions *session.Swappable, manager *store.Manager, secureCookies bool, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		svc:      svc,
		sessions: sessions,
		manager:  manager,
		secure:   secureCookies,
		logger:   logger,
	}
}

// gateStore rejects persisted-identity operations early when the store
// cannot be reached within a short deadline, instead of letting the request
// hang for a full handshake.
func (h *Handlers) gateStore(c *gin.Context) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeGateTimeout)
	defer cancel()

	if _, err := h.manager.EnsureConnected(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": msgUnavailable})
		return false
	}
	return true
}

// respondError maps service errors onto the uniform client responses.
func (h *Handlers) respondError(c *gin.Context, err error) {
	switch errutil.Code(err) {
	case "STORE_UNAVAILABLE", "STORE_NOT_CONFIGURED":
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": msgUnavailable})
	case "AUTH_INVALID_CREDENTIALS":
		c.JSON(http.StatusUnauthorized, gin.H{"message": msgInvalidCredentials})
	case "AUTH_EMAIL_TAKEN":
		c.JSON(http.StatusBadRequest, gin.H{"message": "email already registered"})
	case "AUTH_INVALID_INPUT":
		c.JSON(http.StatusBadRequest, gin.H{"message": "email, password and name are required"})
	default:
		errutil.LogError(h.logger, "request failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
	}
}

// Me returns the authenticated identity.
func (h *Handlers) Me(c *gin.Context) {
	identity, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": msgNotAuthenticated})
		return
	}
	c.JSON(http.StatusOK, payloadFor(identity, ""))
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Register creates an identity, establishes a session, and returns the
// identity payload with a fresh token.
func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "email, password and name are required"})
		return
	}

	if !h.gateStore(c) {
		return
	}

	identity, sess, token, err := h.svc.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}

	session.SetCookie(c.Writer, sess.ID, sess.ExpiresAt, h.secure)
	c.JSON(http.StatusCreated, payloadFor(*identity, token))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials, establishes a session, and returns the
// identity payload with a fresh token. Failures are deliberately
// uninformative.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": msgInvalidCredentials})
		return
	}

	if !h.gateStore(c) {
		return
	}

	identity, sess, token, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	session.SetCookie(c.Writer, sess.ID, sess.ExpiresAt, h.secure)
	c.JSON(http.StatusOK, payloadFor(*identity, token))
}

// Logout destroys the session, if one exists, and clears the cookie. The
// client is expected to discard its token; issued tokens remain valid
// until expiry.
func (h *Handlers) Logout(c *gin.Context) {
	if sid, err := c.Cookie(session.CookieName); err == nil && sid != "" {
		if err := h.svc.Logout(c.Request.Context(), sid); err != nil {
			h.respondError(c, err)
			return
		}
	}

	session.ClearCookie(c.Writer, h.secure)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Healthz reports process health and which session backing is live.
func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"store":         h.manager.Connected(),
		"session_store": h.sessions.BackendName(),
	})
}
