package codec

import (
	"fmt"

	"github.com/obinexus/polycall-sub002/protocol/common"
)

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType identifies the semantic class of a message.
type MessageType uint16

const (
	TypeUnknown   MessageType = 0x0000
	TypeHandshake MessageType = 0x0001 // Connection establishment
	TypeCommand   MessageType = 0x0002 // Application command (Ready state only)
	TypeResponse  MessageType = 0x0003 // Response to a command
	TypeError     MessageType = 0x0004 // Error report
	TypePing      MessageType = 0x0005 // Keepalive probe
	TypePong      MessageType = 0x0006 // Keepalive reply
	TypeAuth      MessageType = 0x0007 // Credential exchange

	// TypeUserBase is the first message type available for application
	// defined messages.
	TypeUserBase MessageType = 0x1000
)

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case TypeHandshake:
		return "handshake"
	case TypeCommand:
		return "command"
	case TypeResponse:
		return "response"
	case TypeError:
		return "error"
	case TypePing:
		return "ping"
	case TypePong:
		return "pong"
	case TypeAuth:
		return "auth"
	default:
		if t >= TypeUserBase {
			return fmt.Sprintf("user(0x%04x)", uint16(t))
		}
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Message Flags
// --------------------------------------------------------------------------

// Bit flags carried in the message header.
const (
	FlagEncrypted    uint32 = 1 << 0 // Payload was transformed by an external crypto context
	FlagCompressed   uint32 = 1 << 1 // Payload is compressed
	FlagFragmented   uint32 = 1 << 2 // Message is one fragment of a larger payload
	FlagContinuation uint32 = 1 << 3 // Fragment other than the first
	FlagLastFragment uint32 = 1 << 4 // Terminal fragment
	FlagRequiresAck  uint32 = 1 << 5 // Sender expects an acknowledgement
	FlagAck          uint32 = 1 << 6 // Message acknowledges a previous one

	// FlagUserBase is the first flag bit available for application use.
	FlagUserBase uint32 = 1 << 16
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message is a single protocol message. The Payload and Metadata buffers
// are owned by the message; the size fields of the wire header are
// derived from their lengths at serialization time, so they can never
// disagree with the actual buffers.
type Message struct {
	Type     MessageType
	Flags    uint32
	Sequence uint32
	Payload  []byte
	Metadata []byte
}

// NewMessage creates an empty message of the given type with zeroed
// payload and metadata buffers.
func NewMessage(t MessageType) *Message {
	return &Message{Type: t}
}

// SetPayload replaces the owned payload buffer. A nil buffer with a
// non-zero length report is impossible by construction in Go, so the
// only rejected input is a nil message receiver.
func (m *Message) SetPayload(p []byte) error {
	if m == nil {
		return fmt.Errorf("%w: nil message", common.ErrInvalidParameter)
	}
	m.Payload = p
	return nil
}

// SetMetadata replaces the owned metadata buffer.
func (m *Message) SetMetadata(md []byte) error {
	if m == nil {
		return fmt.Errorf("%w: nil message", common.ErrInvalidParameter)
	}
	m.Metadata = md
	return nil
}

// HasFlag reports whether all bits of flag are set.
func (m *Message) HasFlag(flag uint32) bool {
	return m.Flags&flag == flag
}

// SetFlag sets the given flag bits.
func (m *Message) SetFlag(flag uint32) {
	m.Flags |= flag
}

// ClearFlag clears the given flag bits.
func (m *Message) ClearFlag(flag uint32) {
	m.Flags &^= flag
}

// Reset clears the message for reuse, releasing both buffers.
func (m *Message) Reset() {
	m.Type = TypeUnknown
	m.Flags = 0
	m.Sequence = 0
	m.Payload = nil
	m.Metadata = nil
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewCommand creates a new Command message with the given payload.
func NewCommand(payload []byte) *Message {
	return &Message{Type: TypeCommand, Payload: payload}
}

// NewResponse creates a new Response message answering the given sequence.
func NewResponse(seq uint32, payload []byte) *Message {
	return &Message{Type: TypeResponse, Sequence: seq, Flags: FlagAck, Payload: payload}
}

// NewError creates a new Error message carrying a diagnostic string.
func NewError(diag string) *Message {
	return &Message{Type: TypeError, Payload: []byte(diag)}
}

// NewPing creates a new Ping message.
func NewPing() *Message {
	return &Message{Type: TypePing, Flags: FlagRequiresAck}
}

// NewPong creates a new Pong message answering the given sequence.
func NewPong(seq uint32) *Message {
	return &Message{Type: TypePong, Sequence: seq, Flags: FlagAck}
}
