package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teamlens/teamlens/internal/dashboard"
	"github.com/teamlens/teamlens/internal/scope"
	"github.com/teamlens/teamlens/internal/storage/blob"
	"github.com/teamlens/teamlens/internal/store"
	"github.com/teamlens/teamlens/internal/upstream"
	"github.com/teamlens/teamlens/internal/views"
)

type workspaceEntry struct {
	ctrl *dashboard.Controller
	ws   *views.Workspace
}

var workspaceMu sync.Mutex

// Workspace returns the caller's view bundle, building it on first touch and
// rebuilding whenever the session manager hands back a fresh controller.
func (c *Container) Workspace(ctx context.Context, id scope.Identity) *views.Workspace {
	ctrl := c.Sessions.Acquire(ctx, id)

	workspaceMu.Lock()
	defer workspaceMu.Unlock()
	if c.workspaces == nil {
		c.workspaces = make(map[string]workspaceEntry)
	}
	if entry, ok := c.workspaces[id.UserID]; ok {
		if entry.ctrl == ctrl {
			return entry.ws
		}
		entry.ws.Close()
	}

	ws := views.NewWorkspace(ctrl, c.Upstream, c.archiver(), c.historyRecorder(), slog.Default())
	c.workspaces[id.UserID] = workspaceEntry{ctrl: ctrl, ws: ws}
	return ws
}

// DropWorkspace forgets a user's cached views alongside their session.
func (c *Container) DropWorkspace(userID string) {
	c.Sessions.Drop(userID)
	workspaceMu.Lock()
	entry, ok := c.workspaces[userID]
	delete(c.workspaces, userID)
	workspaceMu.Unlock()
	if ok {
		entry.ws.Close()
	}
}

func (c *Container) archiver() views.Archiver {
	if c.ExportArchive == nil {
		return nil
	}
	return &exportArchiver{store: c.ExportArchive}
}

func (c *Container) historyRecorder() views.HistoryRecorder {
	if c.Store == nil {
		return nil
	}
	return &exportHistory{store: c.Store, keep: c.Config.Exports.HistoryLimit}
}

type exportArchiver struct {
	store blob.Store
}

func (a *exportArchiver) ArchiveExport(ctx context.Context, ownerID string, result *upstream.ExportResult) (string, error) {
	key := archiveKey(ownerID, result.Filename)
	_, err := a.store.Put(ctx, key, bytes.NewReader(result.Data), blob.PutOptions{
		ContentType: result.ContentType,
		Metadata:    map[string]string{"owner": ownerID},
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func archiveKey(ownerID, filename string) string {
	return fmt.Sprintf("%s/%d-%s", ownerID, time.Now().UnixNano(), filename)
}

type exportHistory struct {
	store *store.Store
	keep  int
}

func (h *exportHistory) RecordExport(ctx context.Context, ownerID string, req views.ExportRequest, filename, archiveKey string, size int64) error {
	_, err := h.store.InsertExport(ctx, store.ExportRecord{
		UserID:     ownerID,
		Mode:       string(req.Mode),
		Format:     req.Format,
		Filename:   filename,
		ArchiveKey: archiveKey,
		SizeBytes:  size,
	}, h.keep)
	return err
}
