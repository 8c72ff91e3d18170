package optimizer

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/obinexus/polycall-sub002/protocol/codec"
	"github.com/obinexus/polycall-sub002/protocol/common"
)

var Logger = logger.GetLogger("optimizer")

// --------------------------------------------------------------------------
// Priority
// --------------------------------------------------------------------------

// Priority ranks messages for batching and compression decisions.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent // never compressed, drained first
)

// String returns the string representation of a Priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Optimizer Interface
// --------------------------------------------------------------------------

// IOptimizer is the interface for the message optimizer.
type IOptimizer interface {
	// Optimize compresses data according to the configured level. Input
	// below the minimum compression size, urgent priority input, and
	// level CompressionNone all pass through unchanged. Fails with
	// common.ErrInvalidParameter on zero-length input.
	Optimize(data []byte, prio Priority) ([]byte, error)

	// Restore is the exact inverse of Optimize. It fails with
	// common.ErrCorruptData if a compression envelope is present but
	// inconsistent.
	Restore(data []byte) ([]byte, error)

	// BatchAdd queues a message for combined transmission.
	BatchAdd(msg *codec.Message, prio Priority) error

	// BatchProcess serializes the queued messages into one buffer and
	// empties the queue. Without forceFlush, it only flushes when the
	// active strategy's threshold is met and otherwise returns nil with
	// no error.
	BatchProcess(forceFlush bool) ([]byte, error)

	// Unbatch invokes fn once per message contained in a batch buffer,
	// in original enqueue order per lane.
	Unbatch(data []byte, fn func(*codec.Message) error) error

	// Stats returns a snapshot of the accumulated counters.
	Stats() StatsSnapshot

	// ResetStats atomically zeroes all counters.
	ResetStats()
}

// New creates an optimizer for the given configuration.
func New(cfg common.OptimizerConfig) (IOptimizer, error) {
	o := &optimizerImpl{
		cfg:   cfg,
		lanes: newBatchLanes(cfg),
	}

	if cfg.CompressionLevel == common.CompressionBalanced || cfg.CompressionLevel == common.CompressionBest {
		level := zstd.SpeedDefault
		if cfg.CompressionLevel == common.CompressionBest {
			level = zstd.SpeedBestCompression
		}
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %v", err)
		}
		o.zstdEnc = enc
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %v", err)
	}
	o.zstdDec = dec

	return o, nil
}

// optimizerImpl implements IOptimizer. Compression is stateless per
// call; the batch lanes and stats are internally locked so that
// multiple producers may add while one consumer flushes.
type optimizerImpl struct {
	cfg     common.OptimizerConfig
	lanes   *batchLanes
	stats   Stats
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
}

// --------------------------------------------------------------------------
// Compression envelope
// --------------------------------------------------------------------------

// Compressed buffers are prefixed with a 5 byte envelope: a magic tag
// and the algorithm identifier. Buffers without the envelope are
// treated as uncompressed by Restore.
const (
	compMagic       uint32 = 0x504C5A43 // "PLZC"
	compEnvelopeLen        = 5

	algoSnappy byte = 1
	algoZstd   byte = 2
)

// --------------------------------------------------------------------------
// Interface Methods (docu see optimizer.IOptimizer)
// --------------------------------------------------------------------------

func (o *optimizerImpl) Optimize(data []byte, prio Priority) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", common.ErrInvalidParameter)
	}

	o.stats.messagesOptimized.Add(1)
	o.stats.bytesIn.Add(uint64(len(data)))

	// Pass-through cases
	if o.cfg.CompressionLevel == common.CompressionNone ||
		prio == PriorityUrgent ||
		len(data) < o.cfg.MinCompressSize {
		o.stats.bytesOut.Add(uint64(len(data)))
		return data, nil
	}

	var compressed []byte
	var algo byte
	switch o.cfg.CompressionLevel {
	case common.CompressionFast:
		compressed = snappy.Encode(nil, data)
		algo = algoSnappy
	default:
		compressed = o.zstdEnc.EncodeAll(data, nil)
		algo = algoZstd
	}

	// Compression that does not pay for its envelope is discarded
	if len(compressed)+compEnvelopeLen >= len(data) {
		o.stats.bytesOut.Add(uint64(len(data)))
		return data, nil
	}

	out := make([]byte, compEnvelopeLen+len(compressed))
	binary.BigEndian.PutUint32(out, compMagic)
	out[4] = algo
	copy(out[compEnvelopeLen:], compressed)

	o.stats.messagesCompressed.Add(1)
	o.stats.bytesOut.Add(uint64(len(out)))
	o.stats.bytesSaved.Add(uint64(len(data) - len(out)))
	telemetryCompressed.Inc()

	return out, nil
}

func (o *optimizerImpl) Restore(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", common.ErrInvalidParameter)
	}

	o.stats.messagesRestored.Add(1)

	// No envelope: the buffer passed through Optimize unchanged
	if len(data) < compEnvelopeLen || binary.BigEndian.Uint32(data) != compMagic {
		return data, nil
	}

	body := data[compEnvelopeLen:]
	var out []byte
	var err error
	switch data[4] {
	case algoSnappy:
		out, err = snappy.Decode(nil, body)
	case algoZstd:
		out, err = o.zstdDec.DecodeAll(body, nil)
	default:
		return nil, fmt.Errorf("%w: unknown compression algorithm %d", common.ErrCorruptData, data[4])
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decompression failed: %v", common.ErrCorruptData, err)
	}

	return out, nil
}

func (o *optimizerImpl) Stats() StatsSnapshot {
	return o.stats.snapshot()
}

func (o *optimizerImpl) ResetStats() {
	o.stats.reset()
}
