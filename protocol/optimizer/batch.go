package optimizer

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/obinexus/polycall-sub002/protocol/codec"
	"github.com/obinexus/polycall-sub002/protocol/common"
)

// --------------------------------------------------------------------------
// Batch wire format
// --------------------------------------------------------------------------

// A batch buffer is a count-prefixed sequence of independently framed
// messages:
//
//	batchMagic(4) count(4) { frameLen(4) frame(frameLen) }*
const (
	batchMagic      uint32 = 0x504C4254 // "PLBT"
	batchHeaderSize        = 8
)

// --------------------------------------------------------------------------
// Batch lanes
// --------------------------------------------------------------------------

// batchEntry is one queued message, already framed for transmission.
type batchEntry struct {
	frame    []byte
	msgType  codec.MessageType
	prio     Priority
	enqueued time.Time
}

// batchLanes holds the queued messages of one optimizer. All access is
// guarded by mu since multiple producers may add while one consumer
// flushes.
type batchLanes struct {
	mu        sync.Mutex
	cfg       common.OptimizerConfig
	framer    codec.ICodec
	fifo      []batchEntry              // all strategies except priority
	prioLanes [4][]batchEntry           // indexed by Priority, priority strategy only
	count     int
	adaptive  *adaptiveController
}

func newBatchLanes(cfg common.OptimizerConfig) *batchLanes {
	l := &batchLanes{
		cfg:    cfg,
		framer: codec.NewBinaryCodec(0),
	}
	if cfg.BatchStrategy == common.BatchAdaptive {
		l.adaptive = newAdaptiveController(cfg)
	}
	return l
}

// --------------------------------------------------------------------------
// Interface Methods (docu see optimizer.IOptimizer)
// --------------------------------------------------------------------------

func (o *optimizerImpl) BatchAdd(msg *codec.Message, prio Priority) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", common.ErrInvalidParameter)
	}

	frame, err := o.lanes.framer.Encode(msg)
	if err != nil {
		return err
	}

	l := o.lanes
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.MaxQueued > 0 && l.count >= l.cfg.MaxQueued {
		return fmt.Errorf("%w: batch queue full (%d messages)", common.ErrResourceExhausted, l.count)
	}

	entry := batchEntry{
		frame:    frame,
		msgType:  msg.Type,
		prio:     prio,
		enqueued: time.Now(),
	}

	if l.cfg.BatchStrategy == common.BatchByPriority {
		l.prioLanes[prio] = append(l.prioLanes[prio], entry)
	} else {
		l.fifo = append(l.fifo, entry)
	}
	l.count++

	if l.adaptive != nil {
		l.adaptive.observeAdd()
	}
	o.stats.messagesBatched.Add(1)

	return nil
}

func (o *optimizerImpl) BatchProcess(forceFlush bool) ([]byte, error) {
	l := o.lanes
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		return nil, nil
	}

	strategy := l.cfg.BatchStrategy
	if l.adaptive != nil {
		strategy = l.adaptive.strategy(time.Now())
	}

	if !forceFlush && !l.thresholdMet(strategy) {
		return nil, nil
	}

	entries := l.drain(strategy)
	oldest := entries[0].enqueued

	buf := encodeBatch(entries)

	o.stats.batchesFlushed.Add(1)
	o.stats.batchedBytes.Add(uint64(len(buf)))
	telemetryBatches.Inc()

	if l.adaptive != nil {
		l.adaptive.observeFlush(time.Since(oldest))
	}

	return buf, nil
}

func (o *optimizerImpl) Unbatch(data []byte, fn func(*codec.Message) error) error {
	if fn == nil {
		return fmt.Errorf("%w: nil callback", common.ErrInvalidParameter)
	}
	if len(data) < batchHeaderSize {
		return fmt.Errorf("%w: buffer too small for batch header", common.ErrCorruptData)
	}
	if magic := binary.BigEndian.Uint32(data); magic != batchMagic {
		return fmt.Errorf("%w: bad batch magic 0x%08x", common.ErrCorruptData, magic)
	}

	count := binary.BigEndian.Uint32(data[4:])
	pos := batchHeaderSize

	for i := uint32(0); i < count; i++ {
		if pos+4 > len(data) {
			return fmt.Errorf("%w: batch truncated at message %d", common.ErrCorruptData, i)
		}
		frameLen := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		if pos+frameLen > len(data) {
			return fmt.Errorf("%w: batch frame %d exceeds buffer", common.ErrCorruptData, i)
		}

		var msg codec.Message
		if err := o.lanes.framer.Decode(data[pos:pos+frameLen], &msg); err != nil {
			return err
		}
		pos += frameLen

		if err := fn(&msg); err != nil {
			return err
		}
	}

	if pos != len(data) {
		return fmt.Errorf("%w: %d trailing bytes after batch", common.ErrCorruptData, len(data)-pos)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// thresholdMet reports whether the active strategy wants a flush now.
// Caller must hold l.mu.
func (l *batchLanes) thresholdMet(strategy common.BatchStrategy) bool {
	switch strategy {
	case common.BatchBySize:
		return l.count >= l.cfg.BatchSize
	case common.BatchByTime:
		oldest := l.oldest()
		return !oldest.IsZero() && time.Since(oldest) >= l.cfg.BatchTimeout
	case common.BatchByPriority:
		// Any urgent traffic flushes immediately, otherwise fill up
		if len(l.prioLanes[PriorityUrgent]) > 0 {
			return true
		}
		return l.count >= l.cfg.BatchSize
	case common.BatchByType:
		counts := make(map[codec.MessageType]int)
		for _, e := range l.fifo {
			counts[e.msgType]++
			if counts[e.msgType] >= l.cfg.BatchSize {
				return true
			}
		}
		return false
	default:
		return l.count >= l.cfg.BatchSize
	}
}

// oldest returns the enqueue time of the oldest queued entry.
// Caller must hold l.mu.
func (l *batchLanes) oldest() time.Time {
	var oldest time.Time
	consider := func(entries []batchEntry) {
		if len(entries) > 0 && (oldest.IsZero() || entries[0].enqueued.Before(oldest)) {
			oldest = entries[0].enqueued
		}
	}
	consider(l.fifo)
	for i := range l.prioLanes {
		consider(l.prioLanes[i])
	}
	return oldest
}

// drain empties all lanes and returns the entries in flush order:
// enqueue order for size/time/adaptive, highest priority first for the
// priority strategy, grouped by first-seen type for the type strategy.
// Caller must hold l.mu.
func (l *batchLanes) drain(strategy common.BatchStrategy) []batchEntry {
	var entries []batchEntry

	switch strategy {
	case common.BatchByPriority:
		for p := int(PriorityUrgent); p >= int(PriorityLow); p-- {
			entries = append(entries, l.prioLanes[p]...)
			l.prioLanes[p] = nil
		}
		// Entries queued before a strategy switch live in the fifo
		entries = append(entries, l.fifo...)
	case common.BatchByType:
		var order []codec.MessageType
		groups := make(map[codec.MessageType][]batchEntry)
		for _, e := range l.fifo {
			if _, ok := groups[e.msgType]; !ok {
				order = append(order, e.msgType)
			}
			groups[e.msgType] = append(groups[e.msgType], e)
		}
		for _, t := range order {
			entries = append(entries, groups[t]...)
		}
	default:
		entries = append(entries, l.fifo...)
		for p := int(PriorityUrgent); p >= int(PriorityLow); p-- {
			entries = append(entries, l.prioLanes[p]...)
			l.prioLanes[p] = nil
		}
	}

	l.fifo = nil
	l.count = 0
	return entries
}

// encodeBatch serializes drained entries into one batch buffer.
func encodeBatch(entries []batchEntry) []byte {
	size := batchHeaderSize
	for _, e := range entries {
		size += 4 + len(e.frame)
	}

	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf, batchMagic)
	binary.BigEndian.PutUint32(buf[4:], uint32(len(entries)))

	pos := batchHeaderSize
	for _, e := range entries {
		binary.BigEndian.PutUint32(buf[pos:], uint32(len(e.frame)))
		pos += 4
		copy(buf[pos:], e.frame)
		pos += len(e.frame)
	}

	return buf
}
