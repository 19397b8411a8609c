package views

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teamlens/teamlens/internal/filter"
	"github.com/teamlens/teamlens/internal/upstream"
)

type stubConversationSource struct {
	list    *upstream.ConversationList
	detail  *upstream.ConversationDetail
	err     error
	onFetch func()
	pages   []upstream.PageQuery
}

func (s *stubConversationSource) Conversations(_ context.Context, _ filter.Effective, page upstream.PageQuery) (*upstream.ConversationList, error) {
	s.pages = append(s.pages, page)
	if s.onFetch != nil {
		s.onFetch()
	}
	return s.list, s.err
}

func (s *stubConversationSource) Conversation(_ context.Context, _ string) (*upstream.ConversationDetail, error) {
	return s.detail, s.err
}

func conversationList() *upstream.ConversationList {
	return &upstream.ConversationList{
		Items: []upstream.ConversationSummary{{ID: "c1", Title: "deploy help"}},
		Total: 41,
	}
}

func TestConversationsViewDefaults(t *testing.T) {
	view := NewConversationsView(memberController(), &stubConversationSource{})
	page := view.Page()
	require.Equal(t, 0, page.Page)
	require.Equal(t, defaultPageSize, page.PageSize)
	require.Equal(t, "updated_at", page.SortField)
	require.Equal(t, "desc", page.SortDirection)
}

func TestConversationsViewFilterChangeResetsPage(t *testing.T) {
	ctrl := memberController()
	view := NewConversationsView(ctrl, &stubConversationSource{list: conversationList()})

	view.SetPage(3)
	require.Equal(t, 3, view.Page().Page)

	require.NoError(t, ctrl.SetModel("gpt-4o"))
	require.Equal(t, 0, view.Page().Page)
}

func TestConversationsViewSortChangeKeepsPage(t *testing.T) {
	ctrl := memberController()
	view := NewConversationsView(ctrl, &stubConversationSource{list: conversationList()})

	view.SetPage(3)
	view.SetSort("started_at", "asc")

	page := view.Page()
	require.Equal(t, 3, page.Page)
	require.Equal(t, "started_at", page.SortField)
	require.Equal(t, "asc", page.SortDirection)
}

func TestConversationsViewSortDirectionNormalized(t *testing.T) {
	view := NewConversationsView(memberController(), &stubConversationSource{})
	view.SetSort("tokens", "sideways")
	require.Equal(t, "desc", view.Page().SortDirection)
}

func TestConversationsViewPageSizeClamped(t *testing.T) {
	view := NewConversationsView(memberController(), &stubConversationSource{})

	view.SetPage(4)
	view.SetPageSize(500)
	page := view.Page()
	require.Equal(t, maxPageSize, page.PageSize)
	require.Equal(t, 0, page.Page, "page-size change must return to the first page")

	view.SetPageSize(-1)
	require.Equal(t, defaultPageSize, view.Page().PageSize)

	view.SetPage(-10)
	require.Equal(t, 0, view.Page().Page)
}

func TestConversationsViewRefreshAddressesPage(t *testing.T) {
	source := &stubConversationSource{list: conversationList()}
	view := NewConversationsView(memberController(), source)

	view.SetPageSize(25)
	view.SetPage(2)
	view.SetSort("tokens", "asc")

	list, page, err := view.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(41), list.Total)
	require.Equal(t, 2, page.Page)

	require.Len(t, source.pages, 1)
	query := source.pages[0]
	require.Equal(t, 25, query.Limit)
	require.Equal(t, 50, query.Skip)
	require.Equal(t, "tokens", query.OrderBy)
	require.Equal(t, "asc", query.OrderDirection)
}

func TestConversationsViewStaleFetchDiscarded(t *testing.T) {
	ctrl := memberController()
	source := &stubConversationSource{list: conversationList()}
	view := NewConversationsView(ctrl, source)

	source.onFetch = func() {
		require.NoError(t, ctrl.SetSearchQuery("deploy"))
	}

	_, _, err := view.Refresh(context.Background())
	require.ErrorIs(t, err, ErrStale)
	require.Nil(t, view.Current())
}

func TestConversationsViewDetailIgnoresFilterGeneration(t *testing.T) {
	ctrl := memberController()
	source := &stubConversationSource{
		detail: &upstream.ConversationDetail{
			ConversationSummary: upstream.ConversationSummary{ID: "c1"},
		},
	}
	view := NewConversationsView(ctrl, source)

	// The detail pane is addressed by id, so a concurrent filter change
	// must not suppress it.
	require.NoError(t, ctrl.SetModel("gpt-4o"))
	detail, err := view.Detail(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, "c1", detail.ID)
}
