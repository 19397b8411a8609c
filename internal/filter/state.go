package filter

import (
	"strconv"
	"strings"
)

// Mode selects whether the dashboard is scoped to the caller's own activity
// or to a team's consenting members.
type Mode string

const (
	ModeIndividual Mode = "individual"
	ModeTeam       Mode = "team"
)

// ParseMode converts a case-insensitive string to a Mode.
func ParseMode(value string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "individual":
		return ModeIndividual, true
	case "team":
		return ModeTeam, true
	default:
		return "", false
	}
}

// DateRange is a declarative range selector: a preset day count ("1", "7",
// "30", "90", "365"), "all", or "custom".
type DateRange string

const (
	RangeAll    DateRange = "all"
	RangeCustom DateRange = "custom"
)

// DefaultRange is applied to fresh sessions.
const DefaultRange DateRange = "30"

// Days returns the preset day count, or false when the range is not a preset.
func (r DateRange) Days() (int, bool) {
	days, err := strconv.Atoi(string(r))
	if err != nil || days <= 0 {
		return 0, false
	}
	return days, true
}

// Valid reports whether the selector is one of the recognized forms.
func (r DateRange) Valid() bool {
	if r == RangeAll || r == RangeCustom {
		return true
	}
	_, ok := r.Days()
	return ok
}

// TeamAll is the sentinel meaning "all teams the caller manages".
const TeamAll = "all"

// State is the raw, UI-editable filter. It is owned exclusively by the
// dashboard controller; views receive copies and must never mutate them.
// The network layer consumes Effective, never State.
type State struct {
	Mode      Mode      `json:"mode"`
	DateRange DateRange `json:"date_range"`

	// Custom range bounds, meaningful only when DateRange == RangeCustom.
	// Dates are calendar dates ("2006-01-02"); times are optional
	// clock values ("15:04:05") defaulting to the start/end of day.
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`

	// SpecificDate is a single-bucket drill-down target ("2006-01-02").
	// When present it supersedes DateRange.
	SpecificDate string `json:"specific_date,omitempty"`

	UserID             string `json:"user_id,omitempty"`
	AgentID            string `json:"agent_id,omitempty"`
	Model              string `json:"model,omitempty"`
	TeamID             string `json:"team_id,omitempty"`
	ObservableMemberID string `json:"observable_member_id,omitempty"`
	Search             string `json:"search,omitempty"`
}

// Default returns the filter applied to a fresh session.
func Default() State {
	return State{
		Mode:      ModeIndividual,
		DateRange: DefaultRange,
	}
}
