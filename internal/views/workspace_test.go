package views

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teamlens/teamlens/internal/dashboard"
	"github.com/teamlens/teamlens/internal/filter"
	"github.com/teamlens/teamlens/internal/scope"
	"github.com/teamlens/teamlens/internal/upstream"
)

type stubWorkspaceSource struct {
	detailStatus map[string]string
}

func (s *stubWorkspaceSource) Usage(context.Context, filter.Effective) (*upstream.UsageReport, error) {
	return &upstream.UsageReport{}, nil
}

func (s *stubWorkspaceSource) Conversations(context.Context, filter.Effective, upstream.PageQuery) (*upstream.ConversationList, error) {
	return &upstream.ConversationList{}, nil
}

func (s *stubWorkspaceSource) Conversation(_ context.Context, id string) (*upstream.ConversationDetail, error) {
	status := s.detailStatus[id]
	if status == "" {
		status = "completed"
	}
	detail := &upstream.ConversationDetail{}
	detail.ID = id
	detail.Status = status
	return detail, nil
}

func (s *stubWorkspaceSource) Storage(context.Context, filter.Effective, string, string) (*upstream.StorageReport, error) {
	return &upstream.StorageReport{}, nil
}

func (s *stubWorkspaceSource) Export(context.Context, url.Values) (*upstream.ExportResult, error) {
	return &upstream.ExportResult{Filename: "export.csv"}, nil
}

func TestWorkspaceTracksOnlyNonTerminalConversations(t *testing.T) {
	ctrl := dashboard.NewController(scope.Identity{UserID: "u1", Role: scope.RoleMember}, time.UTC)
	ws := NewWorkspace(ctrl, &stubWorkspaceSource{}, nil, nil, nil)
	defer ws.Close()

	ws.TrackProcessing(
		upstream.ConversationSummary{ID: "c1", Status: "processing"},
		upstream.ConversationSummary{ID: "c2", Status: "completed"},
		upstream.ConversationSummary{ID: "c3", Status: "failed"},
	)

	statuses := ws.Processing.Statuses()
	require.Equal(t, map[string]string{"c1": "processing"}, statuses)
	require.True(t, ws.Processing.Tracking())
}

func TestWorkspaceCloseStopsPolling(t *testing.T) {
	ctrl := dashboard.NewController(scope.Identity{UserID: "u1", Role: scope.RoleMember}, time.UTC)
	ws := NewWorkspace(ctrl, &stubWorkspaceSource{}, nil, nil, nil)

	ws.TrackProcessing(upstream.ConversationSummary{ID: "c1", Status: "processing"})
	require.True(t, ws.Processing.Tracking())

	ws.Close()
	require.False(t, ws.Processing.Tracking())
}
