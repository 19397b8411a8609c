package scope

import (
	"errors"
	"time"

	"github.com/teamlens/teamlens/internal/filter"
)

// ErrScopeViolation flags an attempted filter mutation or query outside the
// caller's capability. It fails closed: the caller's state is left untouched
// and no request is sent.
var ErrScopeViolation = errors.New("filter scope violation")

// Capability describes which filter fields the current role and mode permit,
// and the user/team scope every outbound query must carry. It is recomputed
// synchronously from (identity, state) on each filter change; it is never
// cached across mode transitions.
type Capability struct {
	CanFilterByUser bool `json:"can_filter_by_user"`
	CanFilterByTeam bool `json:"can_filter_by_team"`
	CanSwitchMode   bool `json:"can_switch_mode"`

	// EffectiveUserID is the user scope enforced on outbound queries.
	// Empty means "all users reachable in the current scope".
	EffectiveUserID string `json:"effective_user_id,omitempty"`
	// EffectiveTeamID is the team scope in team mode. The filter.TeamAll
	// sentinel is for display only: EffectiveFilter expands it into the
	// caller's managed teams before anything reaches the wire.
	EffectiveTeamID string `json:"effective_team_id,omitempty"`
}

// Resolve computes the capability descriptor. This is the sole client-side
// authorization boundary: every outbound query must be built from its output.
//
//   - Admins filter by any user; mode is inert for them.
//   - Observers in individual mode behave exactly like members: the scope is
//     forced to self regardless of any stale user filter.
//   - Observers in team mode scope to a managed team (or all of them) and
//     optionally to one consenting member.
//   - Members are always scoped to self.
func Resolve(id Identity, st filter.State) Capability {
	switch id.Role {
	case RoleAdmin:
		return Capability{
			CanFilterByUser: true,
			EffectiveUserID: st.UserID,
		}
	case RoleObserver:
		if st.Mode != filter.ModeTeam {
			return Capability{
				CanSwitchMode:   true,
				EffectiveUserID: id.UserID,
			}
		}
		teamID := st.TeamID
		if teamID == "" {
			teamID = filter.TeamAll
		}
		return Capability{
			CanFilterByUser: true,
			CanFilterByTeam: true,
			CanSwitchMode:   true,
			EffectiveUserID: st.ObservableMemberID,
			EffectiveTeamID: teamID,
		}
	default:
		return Capability{EffectiveUserID: id.UserID}
	}
}

// EffectiveFilter resolves raw state into the scoped, time-bounded filter
// the network layer consumes. Observers selecting a team they do not manage
// are rejected rather than silently widened, and the "all" sentinel is
// expanded here into the caller's managed teams: the upstream trusts the
// parameters we compute, so an unexpanded sentinel would scope to every team.
func EffectiveFilter(id Identity, st filter.State, loc *time.Location) (filter.Effective, error) {
	cap := Resolve(id, st)
	var teams []string
	switch {
	case cap.EffectiveTeamID == "":
	case cap.EffectiveTeamID == filter.TeamAll:
		if len(id.ManagedTeamIDs) == 0 {
			return filter.Effective{}, ErrScopeViolation
		}
		teams = append(teams, id.ManagedTeamIDs...)
	default:
		if !id.ManagesTeam(cap.EffectiveTeamID) {
			return filter.Effective{}, ErrScopeViolation
		}
		teams = []string{cap.EffectiveTeamID}
	}
	ts, err := filter.ResolveTimeScope(st, loc)
	if err != nil {
		return filter.Effective{}, err
	}
	return filter.Effective{
		UserID:  cap.EffectiveUserID,
		TeamIDs: teams,
		AgentID: st.AgentID,
		Model:   st.Model,
		Search:  st.Search,
		Time:    ts,
	}, nil
}
