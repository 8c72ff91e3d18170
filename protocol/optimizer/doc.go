// Package optimizer applies transmission-level optimizations to
// protocol messages: payload compression, message batching under a
// selectable strategy, and per-message priority handling.
//
// Compression is skipped for payloads below the configured minimum size
// and for urgent-priority messages, so small and latency-critical data
// always passes through unchanged. Compressed buffers carry a short
// envelope naming the algorithm (snappy for the fast level, zstd for
// balanced and best) so that Restore is the exact inverse of Optimize.
//
// Batching queues messages into internally locked lanes and flushes
// them as one count-prefixed buffer of framed messages. The flush
// trigger depends on the configured strategy: queued-count (size), age
// of the oldest entry (time), per-priority lanes drained highest first
// (priority), homogeneous groups per message type (type), or an
// adaptive mode that switches between size and time based on recent
// throughput and flush-latency samples.
//
// All counters accumulate monotonically and are only zeroed by
// ResetStats.
package optimizer
