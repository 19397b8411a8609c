package views

import (
	"context"
	"fmt"
	"sync"

	"github.com/teamlens/teamlens/internal/dashboard"
	"github.com/teamlens/teamlens/internal/filter"
	"github.com/teamlens/teamlens/internal/upstream"
)

// StorageSource is the slice of the upstream client the storage view needs.
type StorageSource interface {
	Storage(ctx context.Context, eff filter.Effective, datasetID, view string) (*upstream.StorageReport, error)
}

// StorageView renders the storage breakdown. Dataset and breakdown selection
// are view-local; only user and team scope come from the shared filter.
type StorageView struct {
	ctrl   *dashboard.Controller
	source StorageSource

	mu        sync.Mutex
	datasetID string
	breakdown string
	current   *upstream.StorageReport
	gen       uint64
}

func NewStorageView(ctrl *dashboard.Controller, source StorageSource) *StorageView {
	v := &StorageView{ctrl: ctrl, source: source, breakdown: "datasets"}
	ctrl.Subscribe(func(dashboard.Change) { v.clearDataset() })
	return v
}

// SetDataset drills into one dataset. Empty returns to the overview.
func (v *StorageView) SetDataset(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.datasetID = id
}

// SetBreakdown switches between the dataset and per-user groupings.
func (v *StorageView) SetBreakdown(b string) {
	if b != "users" {
		b = "datasets"
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.breakdown = b
}

func (v *StorageView) clearDataset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.datasetID = ""
}

// Refresh fetches the storage report for the current scope, discarding the
// result if the filter changed while it was in flight.
func (v *StorageView) Refresh(ctx context.Context) (*upstream.StorageReport, error) {
	gen := v.ctrl.Generation()
	eff, err := v.ctrl.Effective()
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	datasetID, breakdown := v.datasetID, v.breakdown
	v.mu.Unlock()
	report, err := v.source.Storage(ctx, eff, datasetID, breakdown)
	if err != nil {
		return nil, fmt.Errorf("storage fetch: %w", err)
	}
	if !v.commit(report, gen) {
		return nil, ErrStale
	}
	return report, nil
}

// Current returns the last committed report.
func (v *StorageView) Current() *upstream.StorageReport {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

func (v *StorageView) commit(report *upstream.StorageReport, gen uint64) bool {
	if v.ctrl.Generation() != gen {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen < v.gen {
		return false
	}
	v.current = report
	v.gen = gen
	return true
}
