package refdata

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/teamlens/teamlens/internal/cache"
	"github.com/teamlens/teamlens/internal/filter"
	"github.com/teamlens/teamlens/internal/scope"
	"github.com/teamlens/teamlens/internal/upstream"
)

// Source is the slice of the upstream client the loader needs.
type Source interface {
	Filters(ctx context.Context, teamID string) (*upstream.ReferenceLists, error)
	ObservableMembers(ctx context.Context, teamID string) ([]upstream.ObservableMember, error)
	AllObservableMembers(ctx context.Context) ([]upstream.ObservableMember, error)
}

// Loader fetches the reference lists that populate filter dropdowns, bounded
// by the caller's identity: upstream requests carry the shared service token,
// so the loader must never query a scope the caller could not reach. A failed
// or forbidden fetch degrades to empty lists so the dashboard stays usable
// with whatever options the caller is allowed to see.
type Loader struct {
	source Source
	cache  *cache.RefCache
	logger *slog.Logger
}

func NewLoader(source Source, refCache *cache.RefCache, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{source: source, cache: refCache, logger: logger}
}

// Lists returns the user, agent, and team options the caller's capability
// permits. Admins get the unrestricted lists; observers get lists for their
// managed teams only; pickers the capability disables come back empty.
func (l *Loader) Lists(ctx context.Context, id scope.Identity, cap scope.Capability, teamID string) upstream.ReferenceLists {
	var lists upstream.ReferenceLists
	switch id.Role {
	case scope.RoleAdmin:
		if teamID == filter.TeamAll {
			teamID = ""
		}
		lists = l.fetchLists(ctx, teamID)
	case scope.RoleObserver:
		if teamID != "" && teamID != filter.TeamAll {
			if !id.ManagesTeam(teamID) {
				return upstream.ReferenceLists{}
			}
			lists = l.fetchLists(ctx, teamID)
		} else {
			for _, team := range id.ManagedTeamIDs {
				lists = mergeLists(lists, l.fetchLists(ctx, team))
			}
		}
		lists.Teams = managedOptions(lists.Teams, id)
	default:
		// Members only ever see the agent/model pickers; the unscoped
		// fetch below is stripped of user and team options.
		lists = l.fetchLists(ctx, "")
	}
	if !cap.CanFilterByUser {
		lists.Users = nil
	}
	if !cap.CanFilterByTeam && id.Role != scope.RoleAdmin {
		lists.Teams = nil
	}
	return lists
}

// Members returns the observable members the caller may scope to: one
// managed team, or the union across all managed teams for the "all"
// sentinel. Members get nothing; forbidden and failed fetches yield an empty
// slice.
func (l *Loader) Members(ctx context.Context, id scope.Identity, teamID string) []upstream.ObservableMember {
	switch id.Role {
	case scope.RoleAdmin:
		if teamID == "" || teamID == filter.TeamAll {
			return l.fetchAllMembers(ctx)
		}
		return l.fetchTeamMembers(ctx, teamID)
	case scope.RoleObserver:
		if teamID == "" || teamID == filter.TeamAll {
			var union []upstream.ObservableMember
			seen := map[string]struct{}{}
			for _, team := range id.ManagedTeamIDs {
				for _, m := range l.fetchTeamMembers(ctx, team) {
					if _, dup := seen[m.ID]; dup {
						continue
					}
					seen[m.ID] = struct{}{}
					union = append(union, m)
				}
			}
			return union
		}
		if !id.ManagesTeam(teamID) {
			return nil
		}
		return l.fetchTeamMembers(ctx, teamID)
	default:
		return nil
	}
}

// IsObservable reports whether memberID appears in the observable member list
// reachable by the caller for teamID. Used to reject member selections that
// consent changes have invalidated since the list was rendered.
func (l *Loader) IsObservable(ctx context.Context, id scope.Identity, teamID, memberID string) bool {
	if memberID == "" {
		return false
	}
	for _, m := range l.Members(ctx, id, teamID) {
		if m.ID == memberID {
			return true
		}
	}
	return false
}

// fetchLists resolves one concrete upstream scope through the cache. Keys
// name the upstream scope, never the caller, so entries are shareable only
// between callers entitled to the same scope.
func (l *Loader) fetchLists(ctx context.Context, teamID string) upstream.ReferenceLists {
	key := "lists:" + listScope(teamID)
	if data, ok := l.cache.Get(ctx, key); ok {
		var lists upstream.ReferenceLists
		if err := json.Unmarshal(data, &lists); err == nil {
			return lists
		}
	}
	lists, err := l.source.Filters(ctx, teamID)
	if err != nil {
		l.warn(ctx, "reference lists fetch failed", listScope(teamID), err)
		return upstream.ReferenceLists{}
	}
	if data, err := json.Marshal(lists); err == nil {
		l.cache.Set(ctx, key, data)
	}
	return *lists
}

func (l *Loader) fetchTeamMembers(ctx context.Context, teamID string) []upstream.ObservableMember {
	return l.fetchMembers(ctx, "members:team:"+teamID, func(ctx context.Context) ([]upstream.ObservableMember, error) {
		return l.source.ObservableMembers(ctx, teamID)
	})
}

func (l *Loader) fetchAllMembers(ctx context.Context) []upstream.ObservableMember {
	return l.fetchMembers(ctx, "members:global", l.source.AllObservableMembers)
}

func (l *Loader) fetchMembers(ctx context.Context, key string, fetch func(context.Context) ([]upstream.ObservableMember, error)) []upstream.ObservableMember {
	if data, ok := l.cache.Get(ctx, key); ok {
		var members []upstream.ObservableMember
		if err := json.Unmarshal(data, &members); err == nil {
			return members
		}
	}
	members, err := fetch(ctx)
	if err != nil {
		l.warn(ctx, "observable members fetch failed", key, err)
		return nil
	}
	if data, err := json.Marshal(members); err == nil {
		l.cache.Set(ctx, key, data)
	}
	return members
}

func (l *Loader) warn(ctx context.Context, msg, scopeLabel string, err error) {
	level := slog.LevelWarn
	if upstream.IsForbidden(err) {
		level = slog.LevelDebug
	}
	l.logger.Log(ctx, level, msg, "scope", scopeLabel, "error", err)
}

func mergeLists(into, from upstream.ReferenceLists) upstream.ReferenceLists {
	into.Users = mergeOptions(into.Users, from.Users)
	into.Agents = mergeOptions(into.Agents, from.Agents)
	into.Teams = mergeOptions(into.Teams, from.Teams)
	return into
}

func mergeOptions(into, from []upstream.Option) []upstream.Option {
	seen := make(map[string]struct{}, len(into))
	for _, o := range into {
		seen[o.ID] = struct{}{}
	}
	for _, o := range from {
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		into = append(into, o)
	}
	return into
}

func managedOptions(teams []upstream.Option, id scope.Identity) []upstream.Option {
	kept := teams[:0]
	for _, o := range teams {
		if id.ManagesTeam(o.ID) {
			kept = append(kept, o)
		}
	}
	return kept
}

func listScope(teamID string) string {
	if teamID == "" {
		return "global"
	}
	return "team:" + teamID
}
