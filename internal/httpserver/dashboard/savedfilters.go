package dashboard

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teamlens/teamlens/internal/filter"
	"github.com/teamlens/teamlens/internal/httpserver/httputil"
)

type savedFilterRequest struct {
	Name   string       `json:"name"`
	State  filter.State `json:"state"`
	Shared bool         `json:"shared"`
}

func (h *dashHandler) listSavedFilters(c *fiber.Ctx) error {
	id, ok := identityFromCtx(c)
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}
	filters, err := h.container.Store.ListSavedFilters(c.Context(), id.UserID)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(fiber.Map{"filters": filters})
}

func (h *dashHandler) createSavedFilter(c *fiber.Ctx) error {
	id, ok := identityFromCtx(c)
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}
	var req savedFilterRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "name required")
	}
	sf, err := h.container.Store.CreateSavedFilter(c.Context(), id.UserID, req.Name, req.State, req.Shared)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sf)
}

func (h *dashHandler) updateSavedFilter(c *fiber.Ctx) error {
	id, ok := identityFromCtx(c)
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}
	filterID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid filter id")
	}
	var req savedFilterRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	sf, err := h.container.Store.UpdateSavedFilter(c.Context(), filterID, id.UserID, req.Name, req.State, req.Shared)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(sf)
}

func (h *dashHandler) deleteSavedFilter(c *fiber.Ctx) error {
	id, ok := identityFromCtx(c)
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}
	filterID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid filter id")
	}
	if err := h.container.Store.DeleteSavedFilter(c.Context(), filterID, id.UserID); err != nil {
		return writeDomainError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// applySavedFilter replaces the session's filter with a stored preset. The
// preset goes through the same normalization as a restored session, so a
// filter saved under a wider role never widens the applying caller's scope.
func (h *dashHandler) applySavedFilter(c *fiber.Ctx) error {
	id, ok := identityFromCtx(c)
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}
	filterID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid filter id")
	}
	sf, err := h.container.Store.GetSavedFilter(c.Context(), filterID, id.UserID)
	if err != nil {
		return writeDomainError(c, err)
	}

	ws := h.container.Workspace(c.Context(), id)
	if err := ws.Ctrl.Restore(sf.State); err != nil {
		return writeDomainError(c, err)
	}
	return h.writeState(c, ws)
}
