package optimizer

import (
	"math"
	"testing"
	"time"

	"github.com/obinexus/polycall-sub002/protocol/common"
)

// TestLatencyStats tests the window estimator math
func TestLatencyStats(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   latencyStats
	}{
		{
			name:   "empty window",
			values: nil,
			want:   latencyStats{},
		},
		{
			name:   "single sample",
			values: []float64{5},
			want:   latencyStats{Min: 5, Max: 5, Mean: 5},
		},
		{
			name:   "uniform samples",
			values: []float64{3, 3, 3, 3},
			want:   latencyStats{Min: 3, Max: 3, Mean: 3},
		},
		{
			name:   "spread samples",
			values: []float64{2, 4, 4, 4, 5, 5, 7, 9},
			want:   latencyStats{StdDeviation: 2, Min: 2, Max: 9, Mean: 5},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := newLatencyStats(tc.values)
			if math.Abs(got.StdDeviation-tc.want.StdDeviation) > 1e-9 ||
				got.Min != tc.want.Min || got.Max != tc.want.Max ||
				math.Abs(got.Mean-tc.want.Mean) > 1e-9 {
				t.Errorf("newLatencyStats(%v) = %+v, want %+v", tc.values, got, tc.want)
			}
		})
	}
}

// TestAdaptiveSampling tests that the controller re-samples once per
// interval and falls back to time-triggered flushes on low throughput
func TestAdaptiveSampling(t *testing.T) {
	cfg := common.DefaultConfig().Optimizer
	cfg.BatchStrategy = common.BatchAdaptive
	cfg.BatchSize = 16
	cfg.BatchTimeout = 50 * time.Millisecond
	cfg.AdaptiveInterval = time.Hour

	a := newAdaptiveController(cfg)
	now := time.Now()

	// First call samples: an idle meter cannot sustain the needed rate
	if got := a.strategy(now); got != common.BatchByTime {
		t.Errorf("Strategy on idle traffic = %s, want time", got)
	}

	// Inside the interval the decision is sticky even if traffic appears
	for i := 0; i < 1000; i++ {
		a.observeAdd()
	}
	if got := a.strategy(now.Add(time.Minute)); got != common.BatchByTime {
		t.Errorf("Strategy inside the sample interval = %s, want time", got)
	}
}

// TestAdaptiveFlushWindow tests that the latency window stays bounded
func TestAdaptiveFlushWindow(t *testing.T) {
	a := newAdaptiveController(common.DefaultConfig().Optimizer)

	for i := 0; i < 3*flushLatencyWindow; i++ {
		a.observeFlush(time.Duration(i) * time.Millisecond)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) != flushLatencyWindow {
		t.Errorf("Latency window holds %d samples, want %d", len(a.latencies), flushLatencyWindow)
	}
}
