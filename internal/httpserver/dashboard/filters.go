package dashboard

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	dashsvc "github.com/teamlens/teamlens/internal/dashboard"
	"github.com/teamlens/teamlens/internal/filter"
	"github.com/teamlens/teamlens/internal/httpserver/httputil"
	"github.com/teamlens/teamlens/internal/views"
)

type dateRangeRequest struct {
	Range     string `json:"range"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (h *dashHandler) setDateRange(c *fiber.Ctx) error {
	ws, err := h.workspace(c)
	if ws == nil {
		return err
	}
	var req dateRangeRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	r := filter.DateRange(strings.TrimSpace(req.Range))
	if r == filter.RangeCustom {
		err = ws.Ctrl.SetCustomDateRange(req.StartDate, req.EndDate, req.StartTime, req.EndTime)
	} else {
		err = ws.Ctrl.SetDateRange(r)
	}
	if err != nil {
		h.container.Observability.RecordFilterMutation("date_range", "rejected")
		return writeDomainError(c, err)
	}
	h.container.Observability.RecordFilterMutation("date_range", "applied")
	return h.writeState(c, ws)
}

type valueRequest struct {
	Value string `json:"value"`
}

func (h *dashHandler) setUser(c *fiber.Ctx) error {
	return h.applyValue(c, "user", func(ws *views.Workspace, v string) error {
		return ws.Ctrl.SetUser(v)
	})
}

func (h *dashHandler) setAgent(c *fiber.Ctx) error {
	return h.applyValue(c, "agent", func(ws *views.Workspace, v string) error {
		return ws.Ctrl.SetAgent(v)
	})
}

func (h *dashHandler) setModel(c *fiber.Ctx) error {
	return h.applyValue(c, "model", func(ws *views.Workspace, v string) error {
		return ws.Ctrl.SetModel(v)
	})
}

func (h *dashHandler) setSearch(c *fiber.Ctx) error {
	return h.applyValue(c, "search", func(ws *views.Workspace, v string) error {
		return ws.Ctrl.SetSearchQuery(v)
	})
}

func (h *dashHandler) setTeam(c *fiber.Ctx) error {
	return h.applyValue(c, "team", func(ws *views.Workspace, v string) error {
		return ws.Ctrl.SetTeam(v)
	})
}

// setMember additionally rejects members whose observability consent has
// lapsed since the picker was rendered.
func (h *dashHandler) setMember(c *fiber.Ctx) error {
	ws, err := h.workspace(c)
	if ws == nil {
		return err
	}
	var req valueRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	value := strings.TrimSpace(req.Value)

	if value != "" {
		st, _, _ := ws.Ctrl.Snapshot()
		if !h.container.RefData.IsObservable(c.Context(), ws.Ctrl.Identity(), st.TeamID, value) {
			h.container.Observability.RecordFilterMutation("member", "rejected")
			return httputil.WriteError(c, fiber.StatusForbidden, "member is not observable")
		}
	}
	if err := ws.Ctrl.SetObservableMember(value); err != nil {
		h.container.Observability.RecordFilterMutation("member", "rejected")
		return writeDomainError(c, err)
	}
	h.container.Observability.RecordFilterMutation("member", "applied")
	return h.writeState(c, ws)
}

func (h *dashHandler) clearAll(c *fiber.Ctx) error {
	ws, err := h.workspace(c)
	if ws == nil {
		return err
	}
	if err := ws.Ctrl.ClearAll(); err != nil {
		return writeDomainError(c, err)
	}
	h.container.Observability.RecordFilterMutation("all", "cleared")
	return h.writeState(c, ws)
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (h *dashHandler) setMode(c *fiber.Ctx) error {
	ws, err := h.workspace(c)
	if ws == nil {
		return err
	}
	var req modeRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	mode, ok := filter.ParseMode(req.Mode)
	if !ok {
		return httputil.WriteError(c, fiber.StatusBadRequest, "unknown mode")
	}
	if err := ws.Ctrl.SetMode(mode); err != nil {
		h.container.Observability.RecordFilterMutation("mode", "rejected")
		return writeDomainError(c, err)
	}
	h.container.Observability.RecordFilterMutation("mode", "applied")
	return h.writeState(c, ws)
}

func (h *dashHandler) drilldown(c *fiber.Ctx) error {
	ws, err := h.workspace(c)
	if ws == nil {
		return err
	}
	var patch dashsvc.Patch
	if err := c.BodyParser(&patch); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	view, err := ws.Ctrl.ApplyDrilldown(patch)
	if err != nil {
		h.container.Observability.RecordFilterMutation("drilldown", "rejected")
		return writeDomainError(c, err)
	}
	h.container.Observability.RecordFilterMutation("drilldown", "applied")
	st, capability, gen := ws.Ctrl.Snapshot()
	return c.JSON(fiber.Map{
		"view":       string(view),
		"state":      st,
		"capability": capability,
		"generation": gen,
		"page":       ws.Conversations.Page(),
	})
}

func (h *dashHandler) applyValue(c *fiber.Ctx, field string, apply func(*views.Workspace, string) error) error {
	ws, err := h.workspace(c)
	if ws == nil {
		return err
	}
	var req valueRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := apply(ws, strings.TrimSpace(req.Value)); err != nil {
		h.container.Observability.RecordFilterMutation(field, "rejected")
		return writeDomainError(c, err)
	}
	h.container.Observability.RecordFilterMutation(field, "applied")
	return h.writeState(c, ws)
}
