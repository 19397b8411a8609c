package views

import (
	"context"
	"log/slog"

	"github.com/teamlens/teamlens/internal/dashboard"
	"github.com/teamlens/teamlens/internal/upstream"
)

// Source is the full upstream surface a workspace consumes.
type Source interface {
	UsageSource
	ConversationSource
	StorageSource
	ExportSource
}

// Workspace bundles one session's views around its controller. Views are
// constructed once per session so their pagination substate and committed
// results survive across requests.
type Workspace struct {
	Ctrl          *dashboard.Controller
	Usage         *UsageView
	Conversations *ConversationsView
	Storage       *StorageView
	Exports       *ExportPipeline
	Processing    *StatusPoller
}

func NewWorkspace(ctrl *dashboard.Controller, source Source, archive Archiver, history HistoryRecorder, logger *slog.Logger) *Workspace {
	fetch := func(ctx context.Context, id string) (string, error) {
		detail, err := source.Conversation(ctx, id)
		if err != nil {
			return "", err
		}
		return detail.Status, nil
	}
	return &Workspace{
		Ctrl:          ctrl,
		Usage:         NewUsageView(ctrl, source),
		Conversations: NewConversationsView(ctrl, source),
		Storage:       NewStorageView(ctrl, source),
		Exports:       NewExportPipeline(ctrl, source, archive, history, logger),
		Processing:    NewStatusPoller(fetch, 0, nil, logger),
	}
}

// TrackProcessing registers every non-terminal conversation with the status
// poller. The poller runs on its own context: it outlives the request that
// surfaced the items and stops itself once all of them settle.
func (w *Workspace) TrackProcessing(items ...upstream.ConversationSummary) {
	for _, item := range items {
		w.Processing.Track(context.Background(), item.ID, item.Status)
	}
}

// Close stops the background poller when the session is dropped.
func (w *Workspace) Close() {
	w.Processing.Stop()
}
