package views

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teamlens/teamlens/internal/dashboard"
	"github.com/teamlens/teamlens/internal/scope"
	"github.com/teamlens/teamlens/internal/upstream"
)

type stubExportSource struct {
	result *upstream.ExportResult
	err    error
	values url.Values
}

func (s *stubExportSource) Export(_ context.Context, values url.Values) (*upstream.ExportResult, error) {
	s.values = values
	return s.result, s.err
}

type stubArchiver struct {
	key   string
	err   error
	calls int
	owner string
}

func (s *stubArchiver) ArchiveExport(_ context.Context, ownerID string, _ *upstream.ExportResult) (string, error) {
	s.calls++
	s.owner = ownerID
	return s.key, s.err
}

type stubHistory struct {
	err        error
	calls      int
	archiveKey string
	filename   string
	size       int64
}

func (s *stubHistory) RecordExport(_ context.Context, _ string, _ ExportRequest, filename, archiveKey string, size int64) error {
	s.calls++
	s.filename = filename
	s.archiveKey = archiveKey
	s.size = size
	return s.err
}

func exportResult() *upstream.ExportResult {
	return &upstream.ExportResult{Filename: "export.csv", ContentType: "text/csv", Data: []byte("a,b\n1,2\n")}
}

func adminController() *dashboard.Controller {
	return dashboard.NewController(scope.Identity{UserID: "admin-1", Role: scope.RoleAdmin}, time.UTC)
}

func TestExportSingleCarriesOnlyConversationID(t *testing.T) {
	ctrl := adminController()
	require.NoError(t, ctrl.SetModel("gpt-4o"))
	source := &stubExportSource{result: exportResult()}
	pipeline := NewExportPipeline(ctrl, source, nil, nil, nil)

	_, err := pipeline.Run(context.Background(), ExportRequest{Mode: ExportSingle, ConversationID: "c1"})
	require.NoError(t, err)

	require.Equal(t, "c1", source.values.Get("conversation_id"))
	require.Equal(t, "csv", source.values.Get("format"))
	require.Empty(t, source.values.Get("model"), "single export must ignore the filter")
	require.Empty(t, source.values.Get("days"))
}

func TestExportSingleRequiresConversationID(t *testing.T) {
	pipeline := NewExportPipeline(adminController(), &stubExportSource{}, nil, nil, nil)
	_, err := pipeline.Run(context.Background(), ExportRequest{Mode: ExportSingle})
	require.ErrorIs(t, err, ErrBadExportRequest)
}

func TestExportFilteredMatchesOnScreenQuery(t *testing.T) {
	ctrl := adminController()
	require.NoError(t, ctrl.SetUser("u7"))
	require.NoError(t, ctrl.SetModel("gpt-4o"))
	require.NoError(t, ctrl.SetDateRange("7"))
	source := &stubExportSource{result: exportResult()}
	pipeline := NewExportPipeline(ctrl, source, nil, nil, nil)

	_, err := pipeline.Run(context.Background(), ExportRequest{Mode: ExportFiltered, Format: "json", IncludeContent: true})
	require.NoError(t, err)

	require.Equal(t, "u7", source.values.Get("user_id"))
	require.Equal(t, "gpt-4o", source.values.Get("model"))
	require.Equal(t, "7", source.values.Get("days"))
	require.Equal(t, "json", source.values.Get("format"))
	require.Equal(t, "true", source.values.Get("include_content"))
}

func TestExportAllKeepsWindowDropsNarrowing(t *testing.T) {
	ctrl := adminController()
	require.NoError(t, ctrl.SetUser("u7"))
	require.NoError(t, ctrl.SetModel("gpt-4o"))
	require.NoError(t, ctrl.SetDateRange("30"))
	source := &stubExportSource{result: exportResult()}
	pipeline := NewExportPipeline(ctrl, source, nil, nil, nil)

	_, err := pipeline.Run(context.Background(), ExportRequest{Mode: ExportAll})
	require.NoError(t, err)

	require.Equal(t, "30", source.values.Get("days"), "the time window must survive")
	require.Empty(t, source.values.Get("user_id"))
	require.Empty(t, source.values.Get("model"))
}

func TestExportAllPreservesForcedScope(t *testing.T) {
	// A member's self scope is capability-forced, not user-chosen: the
	// whole-dataset export must still carry it.
	ctrl := dashboard.NewController(scope.Identity{UserID: "member-1", Role: scope.RoleMember}, time.UTC)
	require.NoError(t, ctrl.SetModel("gpt-4o"))
	source := &stubExportSource{result: exportResult()}
	pipeline := NewExportPipeline(ctrl, source, nil, nil, nil)

	_, err := pipeline.Run(context.Background(), ExportRequest{Mode: ExportAll})
	require.NoError(t, err)

	require.Equal(t, "member-1", source.values.Get("user_id"))
	require.Empty(t, source.values.Get("model"))
}

func TestExportRejectsUnknownFormatAndMode(t *testing.T) {
	pipeline := NewExportPipeline(adminController(), &stubExportSource{}, nil, nil, nil)

	_, err := pipeline.Run(context.Background(), ExportRequest{Mode: ExportFiltered, Format: "xlsx"})
	require.ErrorIs(t, err, ErrBadExportRequest)

	_, err = pipeline.Run(context.Background(), ExportRequest{Mode: "everything"})
	require.ErrorIs(t, err, ErrBadExportRequest)
}

func TestExportArchivesAndRecordsHistory(t *testing.T) {
	ctrl := adminController()
	source := &stubExportSource{result: exportResult()}
	archive := &stubArchiver{key: "admin-1/123-export.csv"}
	history := &stubHistory{}
	pipeline := NewExportPipeline(ctrl, source, archive, history, nil)

	result, err := pipeline.Run(context.Background(), ExportRequest{Mode: ExportFiltered})
	require.NoError(t, err)
	require.Equal(t, "export.csv", result.Filename)

	require.Equal(t, 1, archive.calls)
	require.Equal(t, "admin-1", archive.owner)
	require.Equal(t, 1, history.calls)
	require.Equal(t, "admin-1/123-export.csv", history.archiveKey)
	require.Equal(t, int64(len(result.Data)), history.size)
}

func TestExportArchiveFailureDoesNotFailTheExport(t *testing.T) {
	ctrl := adminController()
	source := &stubExportSource{result: exportResult()}
	archive := &stubArchiver{err: errors.New("bucket gone")}
	history := &stubHistory{}
	pipeline := NewExportPipeline(ctrl, source, archive, history, nil)

	result, err := pipeline.Run(context.Background(), ExportRequest{Mode: ExportFiltered})
	require.NoError(t, err)
	require.NotNil(t, result)

	// History is still recorded, with no archive key.
	require.Equal(t, 1, history.calls)
	require.Empty(t, history.archiveKey)
}

func TestExportUpstreamFailureSurfaces(t *testing.T) {
	source := &stubExportSource{err: errors.New("timeout")}
	archive := &stubArchiver{}
	pipeline := NewExportPipeline(adminController(), source, archive, nil, nil)

	_, err := pipeline.Run(context.Background(), ExportRequest{Mode: ExportFiltered})
	require.Error(t, err)
	require.Zero(t, archive.calls)
}

var _ EffectiveSource = (*dashboard.Controller)(nil)
