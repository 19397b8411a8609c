package views

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/teamlens/teamlens/internal/dashboard"
	"github.com/teamlens/teamlens/internal/filter"
	"github.com/teamlens/teamlens/internal/upstream"
)

// ErrStale marks a fetch whose result was discarded because the filter moved
// on while it was in flight. Callers should retry from the fresh snapshot.
var ErrStale = errors.New("views: fetch superseded by a newer filter state")

// UsageSource is the slice of the upstream client the usage view consumes.
type UsageSource interface {
	Usage(ctx context.Context, eff filter.Effective) (*upstream.UsageReport, error)
}

// UsageSummary is a usage report with cent fields resolved to dollar amounts.
type UsageSummary struct {
	Report    upstream.UsageReport
	TotalCost decimal.Decimal
	AvgDaily  decimal.Decimal
}

// UsageView renders the usage overview. It keeps exactly one committed
// summary and only replaces it with results fetched for the current filter
// generation.
type UsageView struct {
	ctrl   *dashboard.Controller
	source UsageSource

	mu      sync.Mutex
	current *UsageSummary
	gen     uint64
}

func NewUsageView(ctrl *dashboard.Controller, source UsageSource) *UsageView {
	return &UsageView{ctrl: ctrl, source: source}
}

// Refresh fetches a usage report for the filter state as of the call and
// commits it unless the filter changed underneath the fetch.
func (v *UsageView) Refresh(ctx context.Context) (*UsageSummary, error) {
	gen := v.ctrl.Generation()
	eff, err := v.ctrl.Effective()
	if err != nil {
		return nil, err
	}
	report, err := v.source.Usage(ctx, eff)
	if err != nil {
		return nil, fmt.Errorf("usage fetch: %w", err)
	}
	summary := summarize(report)
	if !v.commit(summary, gen) {
		return nil, ErrStale
	}
	return summary, nil
}

// Current returns the last committed summary, or nil before the first
// successful refresh.
func (v *UsageView) Current() *UsageSummary {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

func (v *UsageView) commit(summary *UsageSummary, gen uint64) bool {
	if v.ctrl.Generation() != gen {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen < v.gen {
		return false
	}
	v.current = summary
	v.gen = gen
	return true
}

func summarize(report *upstream.UsageReport) *UsageSummary {
	total := CostFromCents(report.Overview.CostCents)
	avg := decimal.Zero
	if days := len(report.TimeSeries); days > 0 {
		avg = total.Div(decimal.NewFromInt(int64(days))).Round(2)
	}
	return &UsageSummary{Report: *report, TotalCost: total, AvgDaily: avg}
}

// CostFromCents converts an integer cent amount to a two-place dollar value.
func CostFromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}
