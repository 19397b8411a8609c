package views

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/teamlens/teamlens/internal/filter"
	"github.com/teamlens/teamlens/internal/scope"
	"github.com/teamlens/teamlens/internal/upstream"
)

// ExportMode selects how much of the active filter an export carries.
type ExportMode string

const (
	// ExportSingle exports one conversation by id and ignores the filter.
	ExportSingle ExportMode = "single"
	// ExportFiltered exports exactly what the on-screen views show.
	ExportFiltered ExportMode = "filtered"
	// ExportAll keeps the time window but drops user/agent/model narrowing.
	ExportAll ExportMode = "all"
)

var ErrBadExportRequest = errors.New("views: invalid export request")

// ExportRequest describes one export invocation.
type ExportRequest struct {
	Mode           ExportMode `json:"mode"`
	Format         string     `json:"format"`
	IncludeContent bool       `json:"include_content"`
	ConversationID string     `json:"conversation_id,omitempty"`
}

// ExportSource is the slice of the upstream client the pipeline needs.
type ExportSource interface {
	Export(ctx context.Context, values url.Values) (*upstream.ExportResult, error)
}

// Archiver keeps a copy of generated exports in blob storage.
type Archiver interface {
	ArchiveExport(ctx context.Context, ownerID string, result *upstream.ExportResult) (string, error)
}

// HistoryRecorder persists a row per export for the history listing.
type HistoryRecorder interface {
	RecordExport(ctx context.Context, ownerID string, req ExportRequest, filename, archiveKey string, size int64) error
}

// EffectiveSource yields the post-scope filter the pipeline serializes.
// Exports must carry the same effective window and scope the views render,
// never the raw filter state.
type EffectiveSource interface {
	Effective() (filter.Effective, error)
	EffectiveTimeOnly() (filter.Effective, error)
	Identity() scope.Identity
}

// ExportPipeline turns the effective filter into a file-producing request,
// optionally archiving the result and recording it in history.
type ExportPipeline struct {
	ctrl    EffectiveSource
	source  ExportSource
	archive Archiver
	history HistoryRecorder
	logger  *slog.Logger
}

func NewExportPipeline(ctrl EffectiveSource, source ExportSource, archive Archiver, history HistoryRecorder, logger *slog.Logger) *ExportPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportPipeline{ctrl: ctrl, source: source, archive: archive, history: history, logger: logger}
}

// Run executes one export. Archive and history failures are logged, not
// surfaced: the caller still gets their file.
func (p *ExportPipeline) Run(ctx context.Context, req ExportRequest) (*upstream.ExportResult, error) {
	values, err := p.buildQuery(req)
	if err != nil {
		return nil, err
	}
	result, err := p.source.Export(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	ownerID := p.ctrl.Identity().UserID
	archiveKey := ""
	if p.archive != nil {
		key, err := p.archive.ArchiveExport(ctx, ownerID, result)
		if err != nil {
			p.logger.Warn("export archive failed", "filename", result.Filename, "error", err)
		} else {
			archiveKey = key
		}
	}
	if p.history != nil {
		if err := p.history.RecordExport(ctx, ownerID, req, result.Filename, archiveKey, int64(len(result.Data))); err != nil {
			p.logger.Warn("export history record failed", "filename", result.Filename, "error", err)
		}
	}
	return result, nil
}

func (p *ExportPipeline) buildQuery(req ExportRequest) (url.Values, error) {
	format := req.Format
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		return nil, fmt.Errorf("%w: unknown format %q", ErrBadExportRequest, req.Format)
	}

	values := url.Values{}
	switch req.Mode {
	case ExportSingle:
		if req.ConversationID == "" {
			return nil, fmt.Errorf("%w: single export needs a conversation id", ErrBadExportRequest)
		}
		values.Set("conversation_id", req.ConversationID)
	case ExportFiltered:
		eff, err := p.ctrl.Effective()
		if err != nil {
			return nil, err
		}
		values = eff.Query()
	case ExportAll:
		eff, err := p.ctrl.EffectiveTimeOnly()
		if err != nil {
			return nil, err
		}
		values = eff.Query()
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrBadExportRequest, req.Mode)
	}
	values.Set("format", format)
	if req.IncludeContent {
		values.Set("include_content", "true")
	}
	return values, nil
}
