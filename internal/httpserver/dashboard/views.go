package dashboard

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teamlens/teamlens/internal/filter"
	"github.com/teamlens/teamlens/internal/httpserver/httputil"
	"github.com/teamlens/teamlens/internal/scope"
	"github.com/teamlens/teamlens/internal/views"
)

func (h *dashHandler) usage(c *fiber.Ctx) error {
	ws, err := h.workspace(c)
	if ws == nil {
		return err
	}
	summary, err := ws.Usage.Refresh(c.Context())
	if err != nil {
		h.recordStale(err, "usage")
		return writeDomainError(c, err)
	}
	return c.JSON(fiber.Map{
		"report":         summary.Report,
		"total_cost":     summary.TotalCost,
		"avg_daily_cost": summary.AvgDaily,
	})
}

func (h *dashHandler) conversations(c *fiber.Ctx) error {
	ws, err := h.workspace(c)
	if ws == nil {
		return err
	}

	if raw := c.Query("page"); raw != "" {
		ws.Conversations.SetPage(c.QueryInt("page"))
	}
	if raw := c.Query("page_size"); raw != "" {
		ws.Conversations.SetPageSize(c.QueryInt("page_size"))
	}
	if sort := strings.TrimSpace(c.Query("sort")); sort != "" {
		ws.Conversations.SetSort(sort, strings.TrimSpace(c.Query("direction")))
	}

	list, page, err := ws.Conversations.Refresh(c.Context())
	if err != nil {
		h.recordStale(err, "conversations")
		return writeDomainError(c, err)
	}
	ws.TrackProcessing(list.Items...)
	return c.JSON(fiber.Map{
		"items": list.Items,
		"total": list.Total,
		"page":  page,
	})
}

func (h *dashHandler) conversationDetail(c *fiber.Ctx) error {
	ws, err := h.workspace(c)
	if ws == nil {
		return err
	}
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "conversation id required")
	}
	detail, err := ws.Conversations.Detail(c.Context(), id)
	if err != nil {
		return writeDomainError(c, err)
	}
	ws.TrackProcessing(detail.ConversationSummary)
	return c.JSON(detail)
}

// processing reports the ingest statuses still being polled for this session.
func (h *dashHandler) processing(c *fiber.Ctx) error {
	ws, err := h.workspace(c)
	if ws == nil {
		return err
	}
	return c.JSON(fiber.Map{
		"items":   ws.Processing.Statuses(),
		"polling": ws.Processing.Tracking(),
	})
}

func (h *dashHandler) storage(c *fiber.Ctx) error {
	ws, err := h.workspace(c)
	if ws == nil {
		return err
	}
	if dataset := strings.TrimSpace(c.Query("dataset_id")); dataset != "" {
		ws.Storage.SetDataset(dataset)
	}
	if breakdown := strings.TrimSpace(c.Query("breakdown")); breakdown != "" {
		ws.Storage.SetBreakdown(breakdown)
	}
	report, err := ws.Storage.Refresh(c.Context())
	if err != nil {
		h.recordStale(err, "storage")
		return writeDomainError(c, err)
	}
	return c.JSON(report)
}

func (h *dashHandler) referenceLists(c *fiber.Ctx) error {
	id, ok := identityFromCtx(c)
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}
	ctrl := h.container.Sessions.Acquire(c.Context(), id)
	st, capability, _ := ctrl.Snapshot()
	lists := h.container.RefData.Lists(c.Context(), id, capability, st.TeamID)
	return c.JSON(lists)
}

// observableMembers serves the member picker. The capability check runs here,
// not upstream: requests to the analytics backend carry the shared service
// token, so an unscoped pass-through would let any caller enumerate any
// team's members.
func (h *dashHandler) observableMembers(c *fiber.Ctx) error {
	id, ok := identityFromCtx(c)
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "authentication required")
	}
	if id.Role == scope.RoleMember {
		return writeDomainError(c, scope.ErrScopeViolation)
	}
	teamID := strings.TrimSpace(c.Query("team_id"))
	if teamID == "" {
		ctrl := h.container.Sessions.Acquire(c.Context(), id)
		st, _, _ := ctrl.Snapshot()
		teamID = st.TeamID
	}
	if id.Role == scope.RoleObserver && teamID != "" && teamID != filter.TeamAll && !id.ManagesTeam(teamID) {
		return writeDomainError(c, scope.ErrScopeViolation)
	}
	members := h.container.RefData.Members(c.Context(), id, teamID)
	return c.JSON(fiber.Map{"members": members})
}

func (h *dashHandler) recordStale(err error, view string) {
	if errors.Is(err, views.ErrStale) {
		h.container.Observability.RecordStaleFetch(view)
	}
}
