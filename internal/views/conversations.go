package views

import (
	"context"
	"fmt"
	"sync"

	"github.com/teamlens/teamlens/internal/dashboard"
	"github.com/teamlens/teamlens/internal/filter"
	"github.com/teamlens/teamlens/internal/upstream"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageState is the conversation browser's pagination and sort substate. It is
// owned here, not by the filter: filter mutations reset the page, sort
// changes never do.
type PageState struct {
	Page          int    `json:"page"`
	PageSize      int    `json:"page_size"`
	SortField     string `json:"sort_field"`
	SortDirection string `json:"sort_direction"`
}

// ConversationSource is the slice of the upstream client the browser needs.
type ConversationSource interface {
	Conversations(ctx context.Context, eff filter.Effective, page upstream.PageQuery) (*upstream.ConversationList, error)
	Conversation(ctx context.Context, id string) (*upstream.ConversationDetail, error)
}

// ConversationsView is the paginated conversation browser.
type ConversationsView struct {
	ctrl   *dashboard.Controller
	source ConversationSource

	mu      sync.Mutex
	page    PageState
	current *upstream.ConversationList
	gen     uint64
}

func NewConversationsView(ctrl *dashboard.Controller, source ConversationSource) *ConversationsView {
	v := &ConversationsView{
		ctrl:   ctrl,
		source: source,
		page:   PageState{PageSize: defaultPageSize, SortField: "updated_at", SortDirection: "desc"},
	}
	ctrl.Subscribe(func(dashboard.Change) { v.resetPage() })
	return v
}

// Page returns the current pagination substate.
func (v *ConversationsView) Page() PageState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.page
}

// SetPage moves to a 0-based page without touching sort order.
func (v *ConversationsView) SetPage(page int) {
	if page < 0 {
		page = 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.page.Page = page
}

// SetPageSize clamps the size and returns to the first page.
func (v *ConversationsView) SetPageSize(size int) {
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.page.PageSize = size
	v.page.Page = 0
}

// SetSort changes the sort order. The current page is preserved.
func (v *ConversationsView) SetSort(field, direction string) {
	if direction != "asc" {
		direction = "desc"
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.page.SortField = field
	v.page.SortDirection = direction
}

func (v *ConversationsView) resetPage() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.page.Page = 0
}

// Refresh fetches the page addressed by the current filter and page state,
// discarding the result if the filter changed while it was in flight.
func (v *ConversationsView) Refresh(ctx context.Context) (*upstream.ConversationList, PageState, error) {
	gen := v.ctrl.Generation()
	eff, err := v.ctrl.Effective()
	if err != nil {
		return nil, PageState{}, err
	}
	page := v.Page()
	list, err := v.source.Conversations(ctx, eff, upstream.PageQuery{
		Limit:          page.PageSize,
		Skip:           page.Page * page.PageSize,
		OrderBy:        page.SortField,
		OrderDirection: page.SortDirection,
	})
	if err != nil {
		return nil, page, fmt.Errorf("conversations fetch: %w", err)
	}
	if !v.commit(list, gen) {
		return nil, page, ErrStale
	}
	return list, page, nil
}

// Current returns the last committed page of results.
func (v *ConversationsView) Current() *upstream.ConversationList {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Detail fetches a single transcript. No suppression applies: the detail pane
// is addressed by id, not by the shared filter.
func (v *ConversationsView) Detail(ctx context.Context, id string) (*upstream.ConversationDetail, error) {
	detail, err := v.source.Conversation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("conversation %s: %w", id, err)
	}
	return detail, nil
}

func (v *ConversationsView) commit(list *upstream.ConversationList, gen uint64) bool {
	if v.ctrl.Generation() != gen {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen < v.gen {
		return false
	}
	v.current = list
	v.gen = gen
	return true
}
