package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teamlens/teamlens/internal/app"
	authsvc "github.com/teamlens/teamlens/internal/auth"
	"github.com/teamlens/teamlens/internal/httpserver/httputil"
)

type authHandler struct {
	container *app.Container
	service   *authsvc.Service
}

// Register wires up the login, token, and OIDC endpoints.
func Register(fiberApp *fiber.App, container *app.Container) {
	if fiberApp == nil || container == nil {
		return
	}

	handler := &authHandler{container: container, service: container.Auth}

	group := fiberApp.Group("/auth")
	group.Post("/login", handler.login)
	group.Post("/refresh", handler.refresh)
	group.Post("/logout", handler.logout)
	group.Get("/oidc/start", handler.oidcStart)
	group.Get("/oidc/callback", handler.oidcCallback)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *authHandler) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "email and password required")
	}

	pair, account, err := h.service.AuthenticateLocal(c.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, authsvc.ErrLocalDisabled) {
			return httputil.WriteError(c, fiber.StatusNotFound, "local login disabled")
		}
		return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid credentials")
	}
	h.setSessionCookie(c, pair)
	return c.JSON(tokenResponse(pair, account))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *authHandler) refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "refresh_token required")
	}

	pair, account, err := h.service.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid or expired refresh token")
	}
	h.setSessionCookie(c, pair)
	return c.JSON(tokenResponse(pair, account))
}

func (h *authHandler) logout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err == nil && req.RefreshToken != "" {
		h.service.Logout(c.Context(), req.RefreshToken)
	}
	if id, _, err := h.service.Tokens().AuthorizeAccessToken(bearerOrCookie(c, h.container)); err == nil {
		h.container.DropWorkspace(id.UserID)
	}
	c.ClearCookie(h.container.Config.Auth.Session.CookieName)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *authHandler) oidcStart(c *fiber.Ctx) error {
	url, err := h.service.BeginOIDC(c.Context())
	if err != nil {
		if errors.Is(err, authsvc.ErrOIDCDisabled) {
			return httputil.WriteError(c, fiber.StatusNotFound, "oidc login disabled")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, "could not start oidc flow")
	}
	return c.Redirect(url, fiber.StatusFound)
}

func (h *authHandler) oidcCallback(c *fiber.Ctx) error {
	state := strings.TrimSpace(c.Query("state"))
	code := strings.TrimSpace(c.Query("code"))
	if state == "" || code == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "state and code required")
	}

	pair, account, err := h.service.CompleteOIDC(c.Context(), state, code)
	if err != nil {
		if errors.Is(err, authsvc.ErrStateMismatch) {
			return httputil.WriteError(c, fiber.StatusBadRequest, "unknown or expired login state")
		}
		return httputil.WriteError(c, fiber.StatusUnauthorized, "oidc login failed")
	}
	h.setSessionCookie(c, pair)
	return c.JSON(tokenResponse(pair, account))
}

func (h *authHandler) setSessionCookie(c *fiber.Ctx, pair *authsvc.TokenPair) {
	name := h.container.Config.Auth.Session.CookieName
	if name == "" {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    pair.AccessToken,
		Expires:  pair.AccessExpiresAt,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
}

func tokenResponse(pair *authsvc.TokenPair, account authsvc.Account) fiber.Map {
	return fiber.Map{
		"access_token":       pair.AccessToken,
		"access_expires_at":  pair.AccessExpiresAt,
		"refresh_token":      pair.RefreshToken,
		"refresh_expires_at": pair.RefreshExpiresAt,
		"account":            account,
	}
}

func bearerOrCookie(c *fiber.Ctx, container *app.Container) string {
	raw := strings.TrimSpace(c.Get("Authorization"))
	if raw != "" {
		lower := strings.ToLower(raw)
		if strings.HasPrefix(lower, "bearer ") {
			return strings.TrimSpace(raw[len("bearer "):])
		}
	}
	return strings.TrimSpace(c.Cookies(container.Config.Auth.Session.CookieName))
}
