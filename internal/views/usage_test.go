package views

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teamlens/teamlens/internal/dashboard"
	"github.com/teamlens/teamlens/internal/filter"
	"github.com/teamlens/teamlens/internal/scope"
	"github.com/teamlens/teamlens/internal/upstream"
)

type stubUsageSource struct {
	report *upstream.UsageReport
	err    error
	// onFetch runs before the report is returned, letting tests mutate the
	// filter mid-flight.
	onFetch func()
	calls   []filter.Effective
}

func (s *stubUsageSource) Usage(_ context.Context, eff filter.Effective) (*upstream.UsageReport, error) {
	s.calls = append(s.calls, eff)
	if s.onFetch != nil {
		s.onFetch()
	}
	return s.report, s.err
}

func memberController() *dashboard.Controller {
	return dashboard.NewController(scope.Identity{UserID: "member-1", Role: scope.RoleMember}, time.UTC)
}

func usageReport() *upstream.UsageReport {
	return &upstream.UsageReport{
		Overview: upstream.UsageOverview{Conversations: 12, CostCents: 4250},
		TimeSeries: []upstream.UsagePoint{
			{Date: "2025-05-01", CostCents: 2000},
			{Date: "2025-05-02", CostCents: 2250},
		},
	}
}

func TestUsageViewRefreshCommits(t *testing.T) {
	ctrl := memberController()
	source := &stubUsageSource{report: usageReport()}
	view := NewUsageView(ctrl, source)

	summary, err := view.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "42.5", summary.TotalCost.String())
	require.Equal(t, "21.25", summary.AvgDaily.String())
	require.Same(t, summary, view.Current())

	// The fetch must carry the member's forced scope.
	require.Len(t, source.calls, 1)
	require.Equal(t, "member-1", source.calls[0].UserID)
}

func TestUsageViewStaleFetchDiscarded(t *testing.T) {
	ctrl := memberController()
	source := &stubUsageSource{report: usageReport()}
	view := NewUsageView(ctrl, source)

	// The filter moves on while the fetch is in flight.
	source.onFetch = func() {
		require.NoError(t, ctrl.SetModel("gpt-4o"))
	}

	_, err := view.Refresh(context.Background())
	require.ErrorIs(t, err, ErrStale)
	require.Nil(t, view.Current())

	// A retry against the settled filter succeeds.
	source.onFetch = nil
	summary, err := view.Refresh(context.Background())
	require.NoError(t, err)
	require.Same(t, summary, view.Current())
}

func TestUsageViewOlderCommitNeverOverwritesNewer(t *testing.T) {
	ctrl := memberController()
	source := &stubUsageSource{report: usageReport()}
	view := NewUsageView(ctrl, source)

	require.NoError(t, ctrl.SetModel("gpt-4o"))
	fresh, err := view.Refresh(context.Background())
	require.NoError(t, err)

	// A commit keyed to an older generation must be refused even when the
	// generation has not moved again since.
	stale := summarize(usageReport())
	require.False(t, view.commit(stale, 0))
	require.Same(t, fresh, view.Current())
}

func TestUsageViewFetchErrorKeepsCurrent(t *testing.T) {
	ctrl := memberController()
	source := &stubUsageSource{report: usageReport()}
	view := NewUsageView(ctrl, source)

	committed, err := view.Refresh(context.Background())
	require.NoError(t, err)

	source.report = nil
	source.err = errors.New("upstream down")
	_, err = view.Refresh(context.Background())
	require.Error(t, err)
	require.Same(t, committed, view.Current())
}

func TestUsageViewScopeViolationSurfacesBeforeFetch(t *testing.T) {
	ctrl := dashboard.NewController(scope.Identity{UserID: "obs-1", Role: scope.RoleObserver, ManagedTeamIDs: []string{"t1"}}, time.UTC)
	source := &stubUsageSource{report: usageReport()}
	view := NewUsageView(ctrl, source)

	// A persisted team selection the shrunken identity no longer manages
	// survives restore; resolving it must fail closed without a fetch.
	require.NoError(t, ctrl.Restore(filter.State{Mode: filter.ModeTeam, TeamID: "gone-team", DateRange: "7"}))
	_, err := view.Refresh(context.Background())
	require.ErrorIs(t, err, scope.ErrScopeViolation)
	require.Empty(t, source.calls)
}

func TestCostFromCents(t *testing.T) {
	require.Equal(t, "0.01", CostFromCents(1).String())
	require.Equal(t, "10", CostFromCents(1000).String())
	require.Equal(t, "-2.5", CostFromCents(-250).String())
}

func TestSummarizeEmptySeries(t *testing.T) {
	summary := summarize(&upstream.UsageReport{Overview: upstream.UsageOverview{CostCents: 500}})
	require.Equal(t, "5", summary.TotalCost.String())
	require.True(t, summary.AvgDaily.IsZero())
}
