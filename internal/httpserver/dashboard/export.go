package dashboard

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teamlens/teamlens/internal/httpserver/httputil"
	"github.com/teamlens/teamlens/internal/limits"
	"github.com/teamlens/teamlens/internal/views"
)

// export runs the export pipeline and streams the generated file back.
func (h *dashHandler) export(c *fiber.Ctx) error {
	ws, err := h.workspace(c)
	if ws == nil {
		return err
	}
	var req views.ExportRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Mode == "" {
		req.Mode = views.ExportFiltered
	}

	id, _ := identityFromCtx(c)
	limitCfg := limits.ExportLimits{
		PerMinute:   h.container.Config.Exports.MaxPerMinute,
		MaxParallel: h.container.Config.Exports.MaxParallel,
	}
	if err := h.container.ExportLimiter.Acquire(c.Context(), id.UserID, limitCfg); err != nil {
		if err == limits.ErrLimitExceeded {
			return httputil.WriteError(c, fiber.StatusTooManyRequests, "export limit exceeded, retry later")
		}
		return writeDomainError(c, err)
	}
	defer h.container.ExportLimiter.Release(c.Context(), id.UserID, limitCfg)

	result, err := ws.Exports.Run(c.Context(), req)
	if err != nil {
		return writeDomainError(c, err)
	}
	h.container.Observability.RecordExport(string(req.Mode), req.Format)

	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+result.Filename+`"`)
	if result.ContentType != "" {
		c.Set(fiber.HeaderContentType, result.ContentType)
	}
	return c.Send(result.Data)
}

func (h *dashHandler) exportHistory(c *fiber.Ctx) error {
	id, ok := identityFromCtx(c)
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}
	records, err := h.container.Store.ListExports(c.Context(), id.UserID, h.container.Config.Exports.HistoryLimit)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(fiber.Map{"exports": records})
}
