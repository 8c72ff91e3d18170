package optimizer

import (
	"sync/atomic"

	vm "github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Telemetry counters (process-wide, scrape-side)
// --------------------------------------------------------------------------

// The VictoriaMetrics counters mirror the per-optimizer stats for
// external scraping. They accumulate for the process lifetime and are
// not affected by ResetStats.
var (
	telemetryCompressed = vm.GetOrCreateCounter("polycall_optimizer_messages_compressed_total")
	telemetryBatches    = vm.GetOrCreateCounter("polycall_optimizer_batches_flushed_total")
)

// --------------------------------------------------------------------------
// Per-optimizer statistics
// --------------------------------------------------------------------------

// Stats accumulates the counters of one optimizer. All counters are
// monotonically increasing; only reset zeroes them.
type Stats struct {
	messagesOptimized  atomic.Uint64
	messagesCompressed atomic.Uint64
	messagesRestored   atomic.Uint64
	messagesBatched    atomic.Uint64
	batchesFlushed     atomic.Uint64
	bytesIn            atomic.Uint64
	bytesOut           atomic.Uint64
	bytesSaved         atomic.Uint64
	batchedBytes       atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of the optimizer counters.
type StatsSnapshot struct {
	MessagesOptimized  uint64
	MessagesCompressed uint64
	MessagesRestored   uint64
	MessagesBatched    uint64
	BatchesFlushed     uint64
	BytesIn            uint64
	BytesOut           uint64
	BytesSaved         uint64
	BatchedBytes       uint64
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		MessagesOptimized:  s.messagesOptimized.Load(),
		MessagesCompressed: s.messagesCompressed.Load(),
		MessagesRestored:   s.messagesRestored.Load(),
		MessagesBatched:    s.messagesBatched.Load(),
		BatchesFlushed:     s.batchesFlushed.Load(),
		BytesIn:            s.bytesIn.Load(),
		BytesOut:           s.bytesOut.Load(),
		BytesSaved:         s.bytesSaved.Load(),
		BatchedBytes:       s.batchedBytes.Load(),
	}
}

func (s *Stats) reset() {
	s.messagesOptimized.Store(0)
	s.messagesCompressed.Store(0)
	s.messagesRestored.Store(0)
	s.messagesBatched.Store(0)
	s.batchesFlushed.Store(0)
	s.bytesIn.Store(0)
	s.bytesOut.Store(0)
	s.bytesSaved.Store(0)
	s.batchedBytes.Store(0)
}
