package dashboard

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teamlens/teamlens/internal/app"
	"github.com/teamlens/teamlens/internal/httpserver/httputil"
	"github.com/teamlens/teamlens/internal/scope"
)

const identityLocal = "identity"

func authMiddleware(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearer(c)
		if token == "" {
			token = strings.TrimSpace(c.Cookies(container.Config.Auth.Session.CookieName))
		}
		if token == "" {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "authorization required")
		}

		id, _, err := container.Auth.Tokens().AuthorizeAccessToken(token)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid or expired token")
		}

		c.Locals(identityLocal, id)
		return c.Next()
	}
}

func identityFromCtx(c *fiber.Ctx) (scope.Identity, bool) {
	id, ok := c.Locals(identityLocal).(scope.Identity)
	return id, ok
}

func extractBearer(c *fiber.Ctx) string {
	raw := strings.TrimSpace(c.Get("Authorization"))
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "bearer ") {
		return ""
	}
	return strings.TrimSpace(raw[len("bearer "):])
}
