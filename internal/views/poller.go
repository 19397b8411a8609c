package views

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// terminal statuses stop tracking for an item.
var terminalStatuses = map[string]struct{}{
	"completed": {},
	"failed":    {},
	"cancelled": {},
	"deleted":   {},
}

// StatusFetch resolves the current processing status of one tracked item.
type StatusFetch func(ctx context.Context, id string) (string, error)

// StatusPoller watches processing-status items on a fixed interval. The loop
// runs only while at least one tracked item is non-terminal and stops itself
// the moment none remain.
type StatusPoller struct {
	fetch    StatusFetch
	interval time.Duration
	onUpdate func(id, status string)
	logger   *slog.Logger

	mu      sync.Mutex
	tracked map[string]string
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewStatusPoller(fetch StatusFetch, interval time.Duration, onUpdate func(id, status string), logger *slog.Logger) *StatusPoller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusPoller{
		fetch:    fetch,
		interval: interval,
		onUpdate: onUpdate,
		logger:   logger,
		tracked:  make(map[string]string),
	}
}

// Track begins watching an item. Items already in a terminal state are
// ignored. Starts the polling loop if it is not running.
func (p *StatusPoller) Track(ctx context.Context, id, status string) {
	if id == "" || isTerminal(status) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracked[id] = status
	if p.cancel == nil {
		loopCtx, cancel := context.WithCancel(ctx)
		p.cancel = cancel
		p.done = make(chan struct{})
		go p.loop(loopCtx, p.done)
	}
}

// Statuses returns a snapshot of the tracked items and their last known
// statuses.
func (p *StatusPoller) Statuses() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	snapshot := make(map[string]string, len(p.tracked))
	for id, status := range p.tracked {
		snapshot[id] = status
	}
	return snapshot
}

// Tracking reports whether any non-terminal item is still being watched.
func (p *StatusPoller) Tracking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tracked) > 0
}

// Stop halts the loop and forgets every tracked item.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.tracked = make(map[string]string)
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (p *StatusPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !p.sweep(ctx) {
			p.mu.Lock()
			var cancel context.CancelFunc
			if p.done == done {
				cancel = p.cancel
				p.cancel = nil
				p.done = nil
			}
			p.mu.Unlock()
			if cancel != nil {
				cancel()
			}
			return
		}
	}
}

// sweep polls every tracked item once and drops the terminal ones. Returns
// false when nothing is left to watch.
func (p *StatusPoller) sweep(ctx context.Context) bool {
	p.mu.Lock()
	ids := make([]string, 0, len(p.tracked))
	for id := range p.tracked {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		status, err := p.fetch(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			p.logger.Warn("status poll failed", "item_id", id, "error", err)
			continue
		}
		p.mu.Lock()
		prev, ok := p.tracked[id]
		if ok && status != prev {
			if isTerminal(status) {
				delete(p.tracked, id)
			} else {
				p.tracked[id] = status
			}
		} else if ok && isTerminal(status) {
			delete(p.tracked, id)
		}
		p.mu.Unlock()
		if ok && status != prev && p.onUpdate != nil {
			p.onUpdate(id, status)
		}
	}

	p.mu.Lock()
	remaining := len(p.tracked)
	p.mu.Unlock()
	return remaining > 0
}

func isTerminal(status string) bool {
	_, ok := terminalStatuses[status]
	return ok
}
