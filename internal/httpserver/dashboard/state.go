package dashboard

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teamlens/teamlens/internal/httpserver/httputil"
	"github.com/teamlens/teamlens/internal/views"
)

func (h *dashHandler) workspace(c *fiber.Ctx) (*views.Workspace, error) {
	id, ok := identityFromCtx(c)
	if !ok {
		return nil, httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}
	return h.container.Workspace(c.Context(), id), nil
}

// state returns the session's filter state, its capability descriptor, and
// the conversation browser's pagination substate in one payload.
func (h *dashHandler) state(c *fiber.Ctx) error {
	ws, err := h.workspace(c)
	if ws == nil {
		return err
	}
	return h.writeState(c, ws)
}

func (h *dashHandler) writeState(c *fiber.Ctx, ws *views.Workspace) error {
	st, capability, gen := ws.Ctrl.Snapshot()
	return c.JSON(fiber.Map{
		"state":      st,
		"capability": capability,
		"generation": gen,
		"page":       ws.Conversations.Page(),
	})
}
