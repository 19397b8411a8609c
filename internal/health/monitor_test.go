package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teamlens/teamlens/internal/config"
)

func TestMonitorReportsHealthyBeforeFirstProbe(t *testing.T) {
	monitor := NewMonitor(func(context.Context) error { return nil }, config.HealthConfig{})
	if status := monitor.Status(); !status.Healthy {
		t.Fatalf("unprobed monitor reported unhealthy: %+v", status)
	}
	var nilMonitor *Monitor
	if !nilMonitor.Status().Healthy {
		t.Fatal("nil monitor must report healthy")
	}
}

func TestMonitorRecordsProbeResults(t *testing.T) {
	var failing atomic.Bool
	monitor := NewMonitor(func(context.Context) error {
		if failing.Load() {
			return errors.New("connection refused")
		}
		return nil
	}, config.HealthConfig{CheckInterval: time.Minute})

	ctx := context.Background()
	monitor.check(ctx)
	status := monitor.Status()
	if !status.Healthy || status.CheckedAt.IsZero() {
		t.Fatalf("healthy probe not recorded: %+v", status)
	}

	failing.Store(true)
	monitor.check(ctx)
	status = monitor.Status()
	if status.Healthy || status.Error != "connection refused" {
		t.Fatalf("failed probe not recorded: %+v", status)
	}

	failing.Store(false)
	monitor.check(ctx)
	if status := monitor.Status(); !status.Healthy || status.Error != "" {
		t.Fatalf("recovery not recorded: %+v", status)
	}
}

func TestMonitorStartProbesOnInterval(t *testing.T) {
	var probes atomic.Int32
	monitor := NewMonitor(func(context.Context) error {
		probes.Add(1)
		return nil
	}, config.HealthConfig{CheckInterval: 5 * time.Millisecond, Timeout: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for probes.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if probes.Load() < 2 {
		t.Fatalf("expected repeated probes, got %d", probes.Load())
	}
}
