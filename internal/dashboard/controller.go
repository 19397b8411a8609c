package dashboard

import (
	"sync"
	"time"

	"github.com/teamlens/teamlens/internal/filter"
	"github.com/teamlens/teamlens/internal/scope"
)

// Change describes a committed filter mutation, delivered synchronously to
// subscribers after the new state is in place. TeamChanged also covers mode
// transitions, since the observable-member scope depends on both.
type Change struct {
	Gen         uint64
	State       filter.State
	ModeChanged bool
	TeamChanged bool
}

// Controller is the single owner of a session's FilterState. All mutations
// flow through its entry points; views hold read-only snapshots and report
// intents back through the controller. Mutations outside the caller's
// capability fail closed with scope.ErrScopeViolation and leave the state
// untouched.
type Controller struct {
	identity scope.Identity
	loc      *time.Location

	mu    sync.Mutex
	state filter.State
	gen   uint64

	subs     []func(Change)
	onCommit func(filter.State)
}

// Option customizes controller construction.
type Option func(*Controller)

// WithInitialState restores a previously persisted filter. The restored
// state is normalized so a role change between sessions cannot smuggle in a
// mode or scope the identity no longer permits.
func WithInitialState(st filter.State) Option {
	return func(c *Controller) {
		c.state = normalize(c.identity, st)
	}
}

// WithCommitHook registers a write-through persistence hook invoked after
// every committed mutation.
func WithCommitHook(fn func(filter.State)) Option {
	return func(c *Controller) { c.onCommit = fn }
}

// NewController builds a controller for the given identity. Mode starts as
// individual for every role; only observers may switch it.
func NewController(id scope.Identity, loc *time.Location, opts ...Option) *Controller {
	if loc == nil {
		loc = time.UTC
	}
	c := &Controller{
		identity: id,
		loc:      loc,
		state:    filter.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// normalize drops fields the identity's capability no longer covers.
func normalize(id scope.Identity, st filter.State) filter.State {
	if !st.DateRange.Valid() {
		st.DateRange = filter.DefaultRange
	}
	if st.Mode != filter.ModeTeam && st.Mode != filter.ModeIndividual {
		st.Mode = filter.ModeIndividual
	}
	if st.Mode == filter.ModeTeam && id.Role != scope.RoleObserver {
		st.Mode = filter.ModeIndividual
	}
	if st.Mode != filter.ModeTeam {
		st.TeamID = ""
		st.ObservableMemberID = ""
	}
	if id.Role != scope.RoleAdmin {
		st.UserID = ""
	}
	return st
}

// Subscribe registers a synchronous change listener. Listeners run after the
// mutation commits, outside the controller lock, in registration order.
func (c *Controller) Subscribe(fn func(Change)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// Snapshot returns the current filter, its capability descriptor, and the
// generation counter the stale-fetch discipline keys on.
func (c *Controller) Snapshot() (filter.State, scope.Capability, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, scope.Resolve(c.identity, c.state), c.gen
}

// Generation returns the current mutation generation.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Identity returns the caller identity this controller scopes for.
func (c *Controller) Identity() scope.Identity { return c.identity }

// Location returns the reporting timezone used for date resolution.
func (c *Controller) Location() *time.Location { return c.loc }

// Effective resolves the current state into the scoped query filter.
func (c *Controller) Effective() (filter.Effective, error) {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	return scope.EffectiveFilter(c.identity, st, c.loc)
}

// Restore replaces the whole filter with a stored preset, normalized against
// the current identity so presets never widen scope. Subscribers see it as a
// single change with mode and team side effects applied.
func (c *Controller) Restore(st filter.State) error {
	next := normalize(c.identity, st)
	return c.commit(func(cur *filter.State) error {
		*cur = next
		return nil
	}, false)
}

// EffectiveTimeOnly resolves the current state with every user-chosen
// narrowing field cleared, keeping the time window and whatever scope the
// caller's capabilities force. Used by whole-dataset exports.
func (c *Controller) EffectiveTimeOnly() (filter.Effective, error) {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	st.UserID = ""
	st.ObservableMemberID = ""
	st.AgentID = ""
	st.Model = ""
	st.Search = ""
	return scope.EffectiveFilter(c.identity, st, c.loc)
}

// SetDateRange selects a preset day-count or the unbounded range, clearing
// any specific-date drill-down. Custom ranges go through SetCustomDateRange
// so the bounds are validated together.
func (c *Controller) SetDateRange(r filter.DateRange) error {
	if r == filter.RangeCustom || !r.Valid() {
		return filter.ErrInvalidRange
	}
	return c.mutate(func(st *filter.State) error {
		st.DateRange = r
		st.StartDate, st.EndDate = "", ""
		st.StartTime, st.EndTime = "", ""
		st.SpecificDate = ""
		return nil
	})
}

// SetCustomDateRange selects explicit bounds. Times may be empty; they
// default to the start and end of day. The range is validated before commit,
// so an incomplete range never becomes visible to views.
func (c *Controller) SetCustomDateRange(startDate, endDate, startTime, endTime string) error {
	return c.mutate(func(st *filter.State) error {
		st.DateRange = filter.RangeCustom
		st.StartDate, st.EndDate = startDate, endDate
		st.StartTime, st.EndTime = startTime, endTime
		st.SpecificDate = ""
		_, err := filter.ResolveTimeScope(*st, c.loc)
		return err
	})
}

// SetUser sets the user filter. Only admins filter by arbitrary user;
// observers select consenting members through SetObservableMember.
func (c *Controller) SetUser(userID string) error {
	if c.identity.Role != scope.RoleAdmin {
		return scope.ErrScopeViolation
	}
	return c.mutate(func(st *filter.State) error {
		st.UserID = userID
		return nil
	})
}

// SetAgent sets the agent breakdown filter.
func (c *Controller) SetAgent(agentID string) error {
	return c.mutate(func(st *filter.State) error {
		st.AgentID = agentID
		return nil
	})
}

// SetModel sets the model breakdown filter.
func (c *Controller) SetModel(model string) error {
	return c.mutate(func(st *filter.State) error {
		st.Model = model
		return nil
	})
}

// SetSearchQuery sets the free-text search filter.
func (c *Controller) SetSearchQuery(q string) error {
	return c.mutate(func(st *filter.State) error {
		st.Search = q
		return nil
	})
}

// SetTeam selects a managed team (or the "all" sentinel) in team mode.
// Changing teams clears the selected observable member, whose consent is
// scoped per team.
func (c *Controller) SetTeam(teamID string) error {
	return c.mutateTeam(func(st *filter.State) error {
		cap := scope.Resolve(c.identity, *st)
		if !cap.CanFilterByTeam {
			return scope.ErrScopeViolation
		}
		if teamID == "" {
			teamID = filter.TeamAll
		}
		if teamID != filter.TeamAll && !c.identity.ManagesTeam(teamID) {
			return scope.ErrScopeViolation
		}
		if st.TeamID != teamID {
			st.ObservableMemberID = ""
		}
		st.TeamID = teamID
		return nil
	})
}

// SetObservableMember narrows team mode to a single consenting member.
// Consent membership itself is checked against the reference list by the
// caller; the controller only enforces role and mode.
func (c *Controller) SetObservableMember(memberID string) error {
	return c.mutate(func(st *filter.State) error {
		cap := scope.Resolve(c.identity, *st)
		if !cap.CanFilterByTeam {
			return scope.ErrScopeViolation
		}
		st.ObservableMemberID = memberID
		return nil
	})
}

// SetMode toggles between individual and team scope. Only observers may
// switch. Each transition actively clears the fields that are meaningless in
// the new mode so no stale cross-mode value survives.
func (c *Controller) SetMode(m filter.Mode) error {
	cap := scope.Resolve(c.identity, c.currentState())
	if !cap.CanSwitchMode {
		return scope.ErrScopeViolation
	}
	return c.mutateTeam(func(st *filter.State) error {
		if st.Mode == m {
			return nil
		}
		st.Mode = m
		st.UserID = ""
		st.ObservableMemberID = ""
		if m == filter.ModeTeam {
			st.TeamID = filter.TeamAll
		} else {
			st.TeamID = ""
		}
		return nil
	})
}

// ClearAll resets every filter dimension to its default while preserving
// the current mode (and its team sentinel in team mode).
func (c *Controller) ClearAll() error {
	return c.mutateTeam(func(st *filter.State) error {
		mode := st.Mode
		*st = filter.Default()
		st.Mode = mode
		if mode == filter.ModeTeam {
			st.TeamID = filter.TeamAll
		}
		return nil
	})
}

func (c *Controller) currentState() filter.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) mutate(fn func(*filter.State) error) error {
	return c.commit(fn, false)
}

func (c *Controller) mutateTeam(fn func(*filter.State) error) error {
	return c.commit(fn, true)
}

// commit applies a mutation under the lock and, if the state actually
// changed, bumps the generation and notifies subscribers outside the lock.
// Applying the same value twice is a no-op: no generation bump, no page
// resets downstream.
func (c *Controller) commit(fn func(*filter.State) error, teamScope bool) error {
	c.mu.Lock()
	next := c.state
	if err := fn(&next); err != nil {
		c.mu.Unlock()
		return err
	}
	if next == c.state {
		c.mu.Unlock()
		return nil
	}
	modeChanged := next.Mode != c.state.Mode
	teamChanged := teamScope && (modeChanged || next.TeamID != c.state.TeamID)
	c.state = next
	c.gen++
	change := Change{
		Gen:         c.gen,
		State:       next,
		ModeChanged: modeChanged,
		TeamChanged: teamChanged,
	}
	subs := make([]func(Change), len(c.subs))
	copy(subs, c.subs)
	hook := c.onCommit
	c.mu.Unlock()

	if hook != nil {
		hook(next)
	}
	for _, fn := range subs {
		fn(change)
	}
	return nil
}
