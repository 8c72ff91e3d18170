package codec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/obinexus/polycall-sub002/protocol/common"
)

// --------------------------------------------------------------------------
// Wire Format Constants
// --------------------------------------------------------------------------

const (
	// Magic identifies a serialized protocol message ("POLY").
	Magic uint32 = 0x504F4C59

	// Version is the wire format version emitted by this codec.
	Version uint16 = 1

	// HeaderSize is the fixed size of the serialized header in bytes.
	HeaderSize = 28
)

// Header field offsets within the serialized buffer.
const (
	offMagic    = 0
	offVersion  = 4
	offType     = 6
	offFlags    = 8
	offSequence = 12
	offPayload  = 16
	offMetadata = 20
	offChecksum = 24
)

// --------------------------------------------------------------------------
// Codec Interface
// --------------------------------------------------------------------------

// ICodec serializes messages to and from the binary wire format.
type ICodec interface {
	// Encode serializes a message. The checksum field is computed over
	// the complete buffer with the checksum bytes zeroed.
	Encode(msg *Message) ([]byte, error)

	// Decode deserializes a buffer into msg. It fails with
	// common.ErrCorruptData if the buffer is truncated, the magic does
	// not match, the declared sizes disagree with the actual length, or
	// the recomputed checksum mismatches.
	Decode(data []byte, msg *Message) error
}

// NewBinaryCodec creates a codec enforcing the given maximum total
// message size (0 = unlimited).
func NewBinaryCodec(maxMessageSize uint32) ICodec {
	return &binaryCodec{maxMessageSize: maxMessageSize}
}

type binaryCodec struct {
	maxMessageSize uint32
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (c *binaryCodec) Encode(msg *Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", common.ErrInvalidParameter)
	}

	total := HeaderSize + len(msg.Metadata) + len(msg.Payload)
	if c.maxMessageSize > 0 && uint32(total) > c.maxMessageSize {
		return nil, fmt.Errorf("%w: message size %d exceeds maximum %d",
			common.ErrResourceExhausted, total, c.maxMessageSize)
	}

	buf := make([]byte, total)

	// Fixed header
	binary.BigEndian.PutUint32(buf[offMagic:], Magic)
	binary.BigEndian.PutUint16(buf[offVersion:], Version)
	binary.BigEndian.PutUint16(buf[offType:], uint16(msg.Type))
	binary.BigEndian.PutUint32(buf[offFlags:], msg.Flags)
	binary.BigEndian.PutUint32(buf[offSequence:], msg.Sequence)
	binary.BigEndian.PutUint32(buf[offPayload:], uint32(len(msg.Payload)))
	binary.BigEndian.PutUint32(buf[offMetadata:], uint32(len(msg.Metadata)))
	// checksum stays zero until the end

	// Metadata first, then payload
	copy(buf[HeaderSize:], msg.Metadata)
	copy(buf[HeaderSize+len(msg.Metadata):], msg.Payload)

	binary.BigEndian.PutUint32(buf[offChecksum:], checksum(buf))

	return buf, nil
}

func (c *binaryCodec) Decode(data []byte, msg *Message) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", common.ErrInvalidParameter)
	}
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: buffer too small for header (%d bytes)",
			common.ErrCorruptData, len(data))
	}

	if magic := binary.BigEndian.Uint32(data[offMagic:]); magic != Magic {
		return fmt.Errorf("%w: bad magic 0x%08x", common.ErrCorruptData, magic)
	}
	if version := binary.BigEndian.Uint16(data[offVersion:]); version != Version {
		return fmt.Errorf("%w: unsupported wire version %d", common.ErrProtocol, version)
	}

	payloadSize := binary.BigEndian.Uint32(data[offPayload:])
	metadataSize := binary.BigEndian.Uint32(data[offMetadata:])

	want := uint64(HeaderSize) + uint64(payloadSize) + uint64(metadataSize)
	if uint64(len(data)) != want {
		return fmt.Errorf("%w: declared size %d does not match buffer size %d",
			common.ErrCorruptData, want, len(data))
	}
	if c.maxMessageSize > 0 && want > uint64(c.maxMessageSize) {
		return fmt.Errorf("%w: message size %d exceeds maximum %d",
			common.ErrResourceExhausted, want, c.maxMessageSize)
	}

	if got, declared := checksum(data), binary.BigEndian.Uint32(data[offChecksum:]); got != declared {
		return fmt.Errorf("%w: checksum mismatch (declared 0x%08x, computed 0x%08x)",
			common.ErrCorruptData, declared, got)
	}

	msg.Type = MessageType(binary.BigEndian.Uint16(data[offType:]))
	msg.Flags = binary.BigEndian.Uint32(data[offFlags:])
	msg.Sequence = binary.BigEndian.Uint32(data[offSequence:])

	// Copy out the owned buffers, reusing capacity where possible
	msg.Metadata = copyInto(msg.Metadata, data[HeaderSize:HeaderSize+metadataSize])
	msg.Payload = copyInto(msg.Payload, data[HeaderSize+metadataSize:])

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

var zeroChecksum [4]byte

// checksum computes the CRC-32 over buf with the checksum field zeroed.
// The buffer itself is not modified.
func checksum(buf []byte) uint32 {
	sum := crc32.ChecksumIEEE(buf[:offChecksum])
	sum = crc32.Update(sum, crc32.IEEETable, zeroChecksum[:])
	sum = crc32.Update(sum, crc32.IEEETable, buf[offChecksum+4:])
	return sum
}

// copyInto copies src into dst, allocating only if dst lacks capacity.
// A zero-length source yields nil so empty buffers stay empty.
func copyInto(dst, src []byte) []byte {
	if len(src) == 0 {
		return nil
	}
	if cap(dst) < len(src) {
		dst = make([]byte, len(src))
	} else {
		dst = dst[:len(src)]
	}
	copy(dst, src)
	return dst
}
