package scope

import (
	"errors"
	"testing"
	"time"

	"github.com/teamlens/teamlens/internal/filter"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{in: "admin", want: RoleAdmin, ok: true},
		{in: "Developer", want: RoleAdmin, ok: true},
		{in: "observer", want: RoleObserver, ok: true},
		{in: "manager", want: RoleObserver, ok: true},
		{in: "member", want: RoleMember, ok: true},
		{in: "user", want: RoleMember, ok: true},
		{in: "root", ok: false},
		{in: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseRole(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestResolveAdmin(t *testing.T) {
	id := Identity{UserID: "admin-1", Role: RoleAdmin}

	cap := Resolve(id, filter.State{})
	if !cap.CanFilterByUser {
		t.Fatal("admin must be able to filter by user")
	}
	if cap.CanSwitchMode {
		t.Fatal("mode is inert for admins")
	}
	if cap.EffectiveUserID != "" {
		t.Fatalf("admin with no user filter must see all users, got %q", cap.EffectiveUserID)
	}

	cap = Resolve(id, filter.State{UserID: "target"})
	if cap.EffectiveUserID != "target" {
		t.Fatalf("admin user filter not honored: %q", cap.EffectiveUserID)
	}
}

func TestResolveMemberAlwaysSelfScoped(t *testing.T) {
	id := Identity{UserID: "member-1", Role: RoleMember}

	// A stale user filter must not widen a member's scope.
	cap := Resolve(id, filter.State{UserID: "someone-else", Mode: filter.ModeTeam})
	if cap.EffectiveUserID != "member-1" {
		t.Fatalf("member scope = %q, want self", cap.EffectiveUserID)
	}
	if cap.CanFilterByUser || cap.CanFilterByTeam || cap.CanSwitchMode {
		t.Fatalf("member capability too wide: %+v", cap)
	}
}

func TestResolveObserverIndividualModeBehavesLikeMember(t *testing.T) {
	id := Identity{UserID: "obs-1", Role: RoleObserver, ManagedTeamIDs: []string{"t1"}}

	cap := Resolve(id, filter.State{Mode: filter.ModeIndividual, UserID: "sneaky"})
	if cap.EffectiveUserID != "obs-1" {
		t.Fatalf("observer in individual mode must scope to self, got %q", cap.EffectiveUserID)
	}
	if cap.CanFilterByUser || cap.CanFilterByTeam {
		t.Fatalf("observer capability too wide in individual mode: %+v", cap)
	}
	if !cap.CanSwitchMode {
		t.Fatal("observers must keep the mode switch")
	}
}

func TestResolveObserverTeamMode(t *testing.T) {
	id := Identity{UserID: "obs-1", Role: RoleObserver, ManagedTeamIDs: []string{"t1", "t2"}}

	cap := Resolve(id, filter.State{Mode: filter.ModeTeam})
	if !cap.CanFilterByTeam || !cap.CanFilterByUser || !cap.CanSwitchMode {
		t.Fatalf("observer team-mode capability too narrow: %+v", cap)
	}
	if cap.EffectiveTeamID != filter.TeamAll {
		t.Fatalf("empty team must default to the all sentinel, got %q", cap.EffectiveTeamID)
	}
	if cap.EffectiveUserID != "" {
		t.Fatalf("no member selected, user scope should be open: %q", cap.EffectiveUserID)
	}

	cap = Resolve(id, filter.State{Mode: filter.ModeTeam, TeamID: "t2", ObservableMemberID: "m7"})
	if cap.EffectiveTeamID != "t2" || cap.EffectiveUserID != "m7" {
		t.Fatalf("team/member scope not honored: %+v", cap)
	}
}

func TestEffectiveFilterRejectsUnmanagedTeam(t *testing.T) {
	id := Identity{UserID: "obs-1", Role: RoleObserver, ManagedTeamIDs: []string{"t1"}}
	st := filter.State{Mode: filter.ModeTeam, TeamID: "other-team", DateRange: "7"}

	_, err := EffectiveFilter(id, st, time.UTC)
	if !errors.Is(err, ErrScopeViolation) {
		t.Fatalf("expected ErrScopeViolation, got %v", err)
	}
}

func TestEffectiveFilterExpandsAllToManagedTeams(t *testing.T) {
	id := Identity{UserID: "obs-1", Role: RoleObserver, ManagedTeamIDs: []string{"t1", "t2"}}
	st := filter.State{Mode: filter.ModeTeam, TeamID: filter.TeamAll, DateRange: "30"}

	eff, err := EffectiveFilter(id, st, time.UTC)
	if err != nil {
		t.Fatalf("effective filter: %v", err)
	}
	// The wire never carries the sentinel: it resolves to the caller's
	// managed teams before any request is built.
	if len(eff.TeamIDs) != 2 || eff.TeamIDs[0] != "t1" || eff.TeamIDs[1] != "t2" {
		t.Fatalf("team scope = %v, want the managed set", eff.TeamIDs)
	}
	values := eff.Query()
	if got := values["team_id"]; len(got) != 2 || got[0] != "t1" || got[1] != "t2" {
		t.Fatalf("query team_id = %v, want explicit managed teams", got)
	}
	if eff.Time == nil || eff.Time.Days != 30 {
		t.Fatalf("time scope not resolved: %+v", eff.Time)
	}
}

func TestEffectiveFilterScopesSingleManagedTeam(t *testing.T) {
	id := Identity{UserID: "obs-1", Role: RoleObserver, ManagedTeamIDs: []string{"t1", "t2"}}
	st := filter.State{Mode: filter.ModeTeam, TeamID: "t2", DateRange: "7"}

	eff, err := EffectiveFilter(id, st, time.UTC)
	if err != nil {
		t.Fatalf("effective filter: %v", err)
	}
	if len(eff.TeamIDs) != 1 || eff.TeamIDs[0] != "t2" {
		t.Fatalf("team scope = %v, want [t2]", eff.TeamIDs)
	}
}

func TestEffectiveFilterRejectsAllWithNoManagedTeams(t *testing.T) {
	id := Identity{UserID: "obs-1", Role: RoleObserver}
	st := filter.State{Mode: filter.ModeTeam, TeamID: filter.TeamAll, DateRange: "7"}

	// An empty expansion would scope to every team; fail closed instead.
	_, err := EffectiveFilter(id, st, time.UTC)
	if !errors.Is(err, ErrScopeViolation) {
		t.Fatalf("expected ErrScopeViolation, got %v", err)
	}
}

func TestEffectiveFilterCarriesBreakdownFields(t *testing.T) {
	id := Identity{UserID: "member-1", Role: RoleMember}
	st := filter.State{DateRange: "7", AgentID: "a1", Model: "m1", Search: "error"}

	eff, err := EffectiveFilter(id, st, time.UTC)
	if err != nil {
		t.Fatalf("effective filter: %v", err)
	}
	if eff.UserID != "member-1" {
		t.Fatalf("member scope = %q, want self", eff.UserID)
	}
	if eff.AgentID != "a1" || eff.Model != "m1" || eff.Search != "error" {
		t.Fatalf("breakdown fields dropped: %+v", eff)
	}
}

func TestEffectiveFilterPropagatesRangeErrors(t *testing.T) {
	id := Identity{UserID: "u1", Role: RoleMember}
	st := filter.State{DateRange: filter.RangeCustom, StartDate: "2025-01-01"}

	_, err := EffectiveFilter(id, st, time.UTC)
	if !errors.Is(err, filter.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestManagesTeam(t *testing.T) {
	id := Identity{UserID: "obs-1", Role: RoleObserver, ManagedTeamIDs: []string{"t1", "t2"}}
	if !id.ManagesTeam("t1") || !id.ManagesTeam("t2") {
		t.Fatal("managed teams not recognized")
	}
	if id.ManagesTeam("t3") || id.ManagesTeam("") {
		t.Fatal("unmanaged team recognized")
	}
}
