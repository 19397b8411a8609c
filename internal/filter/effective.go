package filter

import (
	"net/url"
	"strconv"
	"time"
)

// Effective is the fully resolved, role-scoped query the network layer
// consumes. It is derived from State by the scope resolver and never edited
// directly; a view that builds request parameters from raw State instead of
// an Effective is a bug.
type Effective struct {
	UserID string
	// TeamIDs is the concrete team scope: the "all" sentinel is expanded
	// into the caller's managed teams before it gets here, so the wire
	// never carries an open-ended team parameter.
	TeamIDs []string
	AgentID string
	Model   string
	Search  string
	Time    *TimeScope
}

// Query renders the effective filter as outbound query parameters. The time
// dimension emits either days=N or start_date/end_date bounds, never both.
func (e Effective) Query() url.Values {
	values := url.Values{}
	if e.Time != nil {
		if e.Time.Window != nil {
			values.Set("start_date", e.Time.Window.Start.Format(time.RFC3339))
			values.Set("end_date", e.Time.Window.End.Format(time.RFC3339))
		} else if e.Time.Days > 0 {
			values.Set("days", strconv.Itoa(e.Time.Days))
		}
	}
	if e.UserID != "" {
		values.Set("user_id", e.UserID)
	}
	for _, teamID := range e.TeamIDs {
		values.Add("team_id", teamID)
	}
	if e.AgentID != "" {
		values.Set("agent_id", e.AgentID)
	}
	if e.Model != "" {
		values.Set("model", e.Model)
	}
	if e.Search != "" {
		values.Set("search", e.Search)
	}
	return values
}
