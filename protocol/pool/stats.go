package pool

import (
	vm "github.com/VictoriaMetrics/metrics"
)

// Process-wide telemetry counters mirroring the per-pool stats for
// external scraping.
var (
	telemetryCreated   = vm.GetOrCreateCounter("polycall_pool_connections_created_total")
	telemetryDiscarded = vm.GetOrCreateCounter("polycall_pool_connections_discarded_total")
)
