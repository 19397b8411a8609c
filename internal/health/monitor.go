package health

import (
	"context"
	"sync"
	"time"

	"github.com/teamlens/teamlens/internal/config"
)

// Status is the most recent probe result for the upstream analytics API.
type Status struct {
	Healthy   bool          `json:"healthy"`
	CheckedAt time.Time     `json:"checked_at"`
	Latency   time.Duration `json:"-"`
	Error     string        `json:"error,omitempty"`
}

// Monitor periodically probes the upstream analytics API and keeps the last
// observed status for the health endpoint.
type Monitor struct {
	ping      func(context.Context) error
	interval  time.Duration
	timeout   time.Duration
	startOnce sync.Once

	mu   sync.RWMutex
	last Status
}

// NewMonitor constructs a monitor using the upstream health configuration.
func NewMonitor(ping func(context.Context) error, cfg config.HealthConfig) *Monitor {
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 || timeout > interval {
		timeout = 5 * time.Second
	}

	return &Monitor{
		ping:     ping,
		interval: interval,
		timeout:  timeout,
	}
}

// Start begins the probe loop until ctx is canceled. Safe to call more than once.
func (m *Monitor) Start(ctx context.Context) {
	if m == nil || m.ping == nil {
		return
	}
	m.startOnce.Do(func() {
		go m.run(ctx)
	})
}

// Status returns the last probe result. Before the first probe completes the
// upstream is reported healthy so startup is not flagged as an outage.
func (m *Monitor) Status() Status {
	if m == nil {
		return Status{Healthy: true}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last.CheckedAt.IsZero() {
		return Status{Healthy: true}
	}
	return m.last
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Initial probe
	m.check(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := m.ping(probeCtx)
	status := Status{
		Healthy:   err == nil,
		CheckedAt: time.Now(),
		Latency:   time.Since(start),
	}
	if err != nil {
		status.Error = err.Error()
	}

	m.mu.Lock()
	m.last = status
	m.mu.Unlock()
}
