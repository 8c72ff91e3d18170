package optimizer

import (
	"math"
	"sync"
	"time"

	"github.com/obinexus/polycall-sub002/protocol/common"
	gometrics "github.com/rcrowley/go-metrics"
)

// --------------------------------------------------------------------------
// Adaptive batching controller
// --------------------------------------------------------------------------

// flushLatencyWindow bounds how many recent flush latencies are kept
// for the latency estimator.
const flushLatencyWindow = 32

// adaptiveController decides which concrete strategy the adaptive mode
// delegates to. It samples enqueue throughput with a moving-average
// meter and flush latency with a bounded window, and re-evaluates the
// decision once per configured interval. High sustained throughput
// favors size-triggered flushes; low or bursty traffic falls back to
// time-triggered flushes so queued messages never go stale. Priority
// and type grouping are chosen explicitly, never by the controller.
type adaptiveController struct {
	mu sync.Mutex

	cfg    common.OptimizerConfig
	meter  gometrics.Meter
	timer  gometrics.Timer
	active common.BatchStrategy

	latencies  []float64 // recent flush latencies in milliseconds
	lastSample time.Time
}

func newAdaptiveController(cfg common.OptimizerConfig) *adaptiveController {
	return &adaptiveController{
		cfg:    cfg,
		meter:  gometrics.NewMeter(),
		timer:  gometrics.NewTimer(),
		active: common.BatchBySize,
	}
}

// observeAdd records one enqueued message.
func (a *adaptiveController) observeAdd() {
	a.meter.Mark(1)
}

// observeFlush records the age of the oldest entry at flush time.
func (a *adaptiveController) observeFlush(age time.Duration) {
	a.timer.Update(age)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.latencies = append(a.latencies, float64(age.Milliseconds()))
	if len(a.latencies) > flushLatencyWindow {
		a.latencies = a.latencies[len(a.latencies)-flushLatencyWindow:]
	}
}

// strategy returns the currently delegated strategy, re-sampling once
// per interval.
func (a *adaptiveController) strategy(now time.Time) common.BatchStrategy {
	a.mu.Lock()
	defer a.mu.Unlock()

	if now.Sub(a.lastSample) < a.cfg.AdaptiveInterval {
		return a.active
	}
	a.lastSample = now

	// Throughput needed to fill a batch within one timeout period
	needed := float64(a.cfg.BatchSize) / math.Max(a.cfg.BatchTimeout.Seconds(), 1e-3)
	rate := a.meter.Rate1()

	lat := newLatencyStats(a.latencies)

	switch {
	case rate >= needed && lat.Mean <= float64(a.cfg.BatchTimeout.Milliseconds()):
		a.active = common.BatchBySize
	default:
		a.active = common.BatchByTime
	}

	Logger.Debugf("adaptive batch sample: rate=%.1f/s needed=%.1f/s latency(mean=%.1fms stddev=%.1fms) -> %s",
		rate, needed, lat.Mean, lat.StdDeviation, a.active)

	return a.active
}

// --------------------------------------------------------------------------
// Latency estimator
// --------------------------------------------------------------------------

// latencyStats summarizes a window of flush latency samples.
type latencyStats struct {
	StdDeviation float64
	Min          float64
	Max          float64
	Mean         float64
}

// newLatencyStats computes the standard deviation, minimum, maximum and
// mean from a window of samples.
func newLatencyStats(values []float64) latencyStats {
	if len(values) == 0 {
		return latencyStats{}
	}

	// initialize min and max with the first value
	min := values[0]
	max := values[0]

	// calculate sum for mean
	var sum float64
	for _, v := range values {
		sum += v

		// update min and max while iterating
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	// calculate mean
	mean := sum / float64(len(values))

	// calculate variance
	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))

	return latencyStats{
		StdDeviation: math.Sqrt(variance),
		Min:          min,
		Max:          max,
		Mean:         mean,
	}
}
