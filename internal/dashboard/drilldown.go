package dashboard

import (
	"github.com/teamlens/teamlens/internal/filter"
	"github.com/teamlens/teamlens/internal/scope"
)

// View names a dashboard surface the UI shell can be told to activate.
type View string

const (
	ViewUsage         View = "usage"
	ViewConversations View = "conversations"
	ViewStorage       View = "storage"
)

// Patch is the payload of a NavigateWithFilter event: a partial filter
// overlay emitted by an aggregate view when the user drills into a chart
// bucket. nil fields are left alone; set fields overwrite. A drill-down
// therefore narrows the filter without discarding the date-range, user, or
// any other context already in effect.
type Patch struct {
	AgentID      *string `json:"agent_id,omitempty"`
	Model        *string `json:"model,omitempty"`
	SpecificDate *string `json:"specific_date,omitempty"`
	UserID       *string `json:"user_id,omitempty"`
}

// ApplyDrilldown merges a drill-down patch into the current filter and
// returns the view the shell should switch to. A patch carrying a user
// filter the caller may not set is rejected whole; partial application
// would desynchronize the chart the user clicked from the list they land on.
func (c *Controller) ApplyDrilldown(p Patch) (View, error) {
	if p.UserID != nil && c.identity.Role != scope.RoleAdmin {
		return "", scope.ErrScopeViolation
	}
	if p.SpecificDate != nil && *p.SpecificDate != "" {
		probe := c.currentState()
		probe.SpecificDate = *p.SpecificDate
		if _, err := filter.ResolveTimeScope(probe, c.loc); err != nil {
			return "", err
		}
	}
	err := c.mutate(func(st *filter.State) error {
		if p.AgentID != nil {
			st.AgentID = *p.AgentID
		}
		if p.Model != nil {
			st.Model = *p.Model
		}
		if p.SpecificDate != nil {
			st.SpecificDate = *p.SpecificDate
		}
		if p.UserID != nil {
			st.UserID = *p.UserID
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return ViewConversations, nil
}
