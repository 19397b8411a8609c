package dashboard

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teamlens/teamlens/internal/app"
	"github.com/teamlens/teamlens/internal/filter"
	"github.com/teamlens/teamlens/internal/httpserver/httputil"
	"github.com/teamlens/teamlens/internal/scope"
	"github.com/teamlens/teamlens/internal/store"
	"github.com/teamlens/teamlens/internal/upstream"
	"github.com/teamlens/teamlens/internal/views"
)

type dashHandler struct {
	container *app.Container
}

// Register wires up the filter-state, view, reference, and export endpoints.
func Register(fiberApp *fiber.App, container *app.Container) {
	if fiberApp == nil || container == nil {
		return
	}

	handler := &dashHandler{container: container}

	group := fiberApp.Group("/dashboard", authMiddleware(container))
	group.Get("/state", handler.state)

	filters := group.Group("/filters")
	filters.Put("/daterange", handler.setDateRange)
	filters.Put("/user", handler.setUser)
	filters.Put("/agent", handler.setAgent)
	filters.Put("/model", handler.setModel)
	filters.Put("/search", handler.setSearch)
	filters.Put("/team", handler.setTeam)
	filters.Put("/member", handler.setMember)
	filters.Post("/clear", handler.clearAll)

	group.Put("/mode", handler.setMode)
	group.Post("/drilldown", handler.drilldown)

	group.Get("/views/usage", handler.usage)
	group.Get("/views/conversations", handler.conversations)
	group.Get("/views/conversations/:id", handler.conversationDetail)
	group.Get("/views/storage", handler.storage)
	group.Get("/views/processing", handler.processing)

	group.Post("/export", handler.export)
	group.Get("/exports", handler.exportHistory)

	saved := group.Group("/saved-filters")
	saved.Get("/", handler.listSavedFilters)
	saved.Post("/", handler.createSavedFilter)
	saved.Put("/:id", handler.updateSavedFilter)
	saved.Delete("/:id", handler.deleteSavedFilter)
	saved.Post("/:id/apply", handler.applySavedFilter)

	reference := group.Group("/reference")
	reference.Get("/filters", handler.referenceLists)
	reference.Get("/members", handler.observableMembers)
}

// writeDomainError maps domain sentinel errors onto HTTP statuses.
func writeDomainError(c *fiber.Ctx, err error) error {
	var statusErr *upstream.StatusError
	switch {
	case errors.Is(err, scope.ErrScopeViolation):
		return httputil.WriteError(c, fiber.StatusForbidden, "filter not permitted for your role")
	case errors.Is(err, filter.ErrInvalidRange):
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, views.ErrStale):
		return httputil.WriteError(c, fiber.StatusConflict, "filter changed while fetching, retry")
	case errors.Is(err, views.ErrBadExportRequest):
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return httputil.WriteError(c, fiber.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicateName):
		return httputil.WriteError(c, fiber.StatusConflict, "a saved filter with that name already exists")
	case errors.As(err, &statusErr):
		if statusErr.Code == fiber.StatusForbidden {
			return httputil.WriteError(c, fiber.StatusForbidden, "upstream denied the request")
		}
		return httputil.WriteError(c, fiber.StatusBadGateway, err.Error())
	default:
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
}
