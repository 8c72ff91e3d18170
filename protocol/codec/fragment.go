package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/obinexus/polycall-sub002/protocol/common"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Fragmentation
// --------------------------------------------------------------------------

// fragIndexSize is the size of the fragment index carried at the start
// of every fragment's metadata buffer.
const fragIndexSize = 4

// Fragment splits a message whose payload exceeds unit bytes into
// fragments sharing the parent sequence number. Each fragment carries a
// monotonically increasing big-endian index in its metadata buffer; the
// parent metadata (if any) travels after the index of fragment 0. The
// terminal fragment is marked with FlagLastFragment, every fragment
// after the first with FlagContinuation.
//
// A message that fits into one unit is returned unchanged as a single
// element slice.
func Fragment(msg *Message, unit uint32) ([]*Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", common.ErrInvalidParameter)
	}
	if unit == 0 {
		return nil, fmt.Errorf("%w: zero fragment unit", common.ErrInvalidParameter)
	}
	if uint32(len(msg.Payload)) <= unit {
		return []*Message{msg}, nil
	}

	count := (len(msg.Payload) + int(unit) - 1) / int(unit)
	frags := make([]*Message, 0, count)

	for i := 0; i < count; i++ {
		start := i * int(unit)
		end := start + int(unit)
		if end > len(msg.Payload) {
			end = len(msg.Payload)
		}

		md := make([]byte, fragIndexSize)
		binary.BigEndian.PutUint32(md, uint32(i))
		if i == 0 && len(msg.Metadata) > 0 {
			md = append(md, msg.Metadata...)
		}

		frag := &Message{
			Type:     msg.Type,
			Flags:    msg.Flags | FlagFragmented,
			Sequence: msg.Sequence,
			Payload:  msg.Payload[start:end],
			Metadata: md,
		}
		if i > 0 {
			frag.SetFlag(FlagContinuation)
		}
		if i == count-1 {
			frag.SetFlag(FlagLastFragment)
		}
		frags = append(frags, frag)
	}

	return frags, nil
}

// --------------------------------------------------------------------------
// Reassembly
// --------------------------------------------------------------------------

// pendingAssembly accumulates the fragments of one oversized message.
type pendingAssembly struct {
	msgType   MessageType
	flags     uint32
	nextIndex uint32
	payload   []byte
	metadata  []byte
}

// maxPendingAssemblies bounds how many incomplete assemblies one peer
// may hold open at a time. Sequences abandoned mid-transfer would
// otherwise stay resident forever.
const maxPendingAssemblies = 64

// Reassembler reconstructs oversized messages from their fragments.
// Arrival must be in index order per sequence number; duplicates and
// gaps are rejected as protocol violations. At most
// maxPendingAssemblies sequences may be incomplete at once. Safe for
// concurrent use.
type Reassembler struct {
	pending    *xsync.MapOf[uint32, *pendingAssembly]
	maxPayload uint32
}

// NewReassembler creates a reassembler. maxPayload caps the total
// reassembled payload size (0 = unlimited).
func NewReassembler(maxPayload uint32) *Reassembler {
	return &Reassembler{
		pending:    xsync.NewMapOf[uint32, *pendingAssembly](),
		maxPayload: maxPayload,
	}
}

// Add feeds one fragment into the reassembler. It returns the completed
// message once the terminal fragment arrived, or nil while the sequence
// is still incomplete. Out-of-order or duplicate fragments abort the
// whole assembly with common.ErrProtocol.
func (r *Reassembler) Add(frag *Message) (*Message, error) {
	if frag == nil || !frag.HasFlag(FlagFragmented) {
		return nil, fmt.Errorf("%w: not a fragment", common.ErrInvalidParameter)
	}
	if len(frag.Metadata) < fragIndexSize {
		return nil, fmt.Errorf("%w: fragment without index", common.ErrCorruptData)
	}
	index := binary.BigEndian.Uint32(frag.Metadata[:fragIndexSize])

	pa, ok := r.pending.Load(frag.Sequence)
	if !ok {
		if index != 0 {
			return nil, fmt.Errorf("%w: fragment sequence %d starts at index %d",
				common.ErrProtocol, frag.Sequence, index)
		}
		if r.pending.Size() >= maxPendingAssemblies {
			return nil, fmt.Errorf("%w: too many incomplete fragment sequences",
				common.ErrResourceExhausted)
		}
		pa = &pendingAssembly{
			msgType:  frag.Type,
			flags:    frag.Flags &^ (FlagFragmented | FlagContinuation | FlagLastFragment),
			metadata: append([]byte(nil), frag.Metadata[fragIndexSize:]...),
		}
		r.pending.Store(frag.Sequence, pa)
	} else if index != pa.nextIndex {
		// Duplicate or gap: drop the partial assembly
		r.pending.Delete(frag.Sequence)
		return nil, fmt.Errorf("%w: fragment %d of sequence %d arrived out of order (expected %d)",
			common.ErrProtocol, index, frag.Sequence, pa.nextIndex)
	}

	pa.payload = append(pa.payload, frag.Payload...)
	pa.nextIndex++

	if r.maxPayload > 0 && uint32(len(pa.payload)) > r.maxPayload {
		r.pending.Delete(frag.Sequence)
		return nil, fmt.Errorf("%w: reassembled payload exceeds %d bytes",
			common.ErrResourceExhausted, r.maxPayload)
	}

	if !frag.HasFlag(FlagLastFragment) {
		return nil, nil
	}

	r.pending.Delete(frag.Sequence)
	return &Message{
		Type:     pa.msgType,
		Flags:    pa.flags,
		Sequence: frag.Sequence,
		Payload:  pa.payload,
		Metadata: pa.metadata,
	}, nil
}

// Pending returns the number of incomplete assemblies.
func (r *Reassembler) Pending() int {
	return r.pending.Size()
}
