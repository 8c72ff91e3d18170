package codec

import (
	"errors"
	"reflect"
	"testing"

	"github.com/obinexus/polycall-sub002/protocol/common"
)

// testMessages creates a set of test messages with different fields filled
func testMessages() []*Message {
	return []*Message{
		// Basic message with just a type
		{Type: TypeHandshake},

		// Command with payload
		{
			Type:     TypeCommand,
			Sequence: 42,
			Payload:  []byte("do-something"),
		},

		// Response with payload and metadata
		{
			Type:     TypeResponse,
			Flags:    FlagAck,
			Sequence: 42,
			Payload:  []byte("result"),
			Metadata: []byte("trace-id=7"),
		},

		// Ping without payload
		{Type: TypePing, Flags: FlagRequiresAck, Sequence: 1},

		// User type with every header field populated
		{
			Type:     TypeUserBase + 7,
			Flags:    FlagCompressed | FlagRequiresAck | FlagUserBase,
			Sequence: 0xFFFFFFFF,
			Payload:  []byte{0x00, 0x01, 0x02, 0xFF},
			Metadata: []byte{0xAA},
		},
	}
}

// TestCodecRoundTrip tests that messages survive serialization unchanged
func TestCodecRoundTrip(t *testing.T) {
	c := NewBinaryCodec(0)

	for i, msg := range testMessages() {
		data, err := c.Encode(msg)
		if err != nil {
			t.Errorf("Failed to encode message %d: %v", i, err)
			continue
		}

		var result Message
		if err := c.Decode(data, &result); err != nil {
			t.Errorf("Failed to decode message %d: %v", i, err)
			continue
		}

		if !reflect.DeepEqual(*msg, result) {
			t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
				i, *msg, result)
		}
	}
}

// TestCodecChecksum tests that flipping any payload byte is detected
func TestCodecChecksum(t *testing.T) {
	c := NewBinaryCodec(0)

	msg := NewCommand([]byte("integrity matters"))
	msg.Sequence = 9

	data, err := c.Encode(msg)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	// Flip every single payload byte in turn
	for i := HeaderSize; i < len(data); i++ {
		corrupted := append([]byte(nil), data...)
		corrupted[i] ^= 0xFF

		var result Message
		err := c.Decode(corrupted, &result)
		if !errors.Is(err, common.ErrCorruptData) {
			t.Errorf("Flipped byte %d: expected ErrCorruptData, got %v", i, err)
		}
	}
}

// TestCodecDecodeFailures tests the malformed-buffer error cases
func TestCodecDecodeFailures(t *testing.T) {
	c := NewBinaryCodec(0)

	valid, err := c.Encode(NewCommand([]byte("payload")))
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantErr error
	}{
		{
			name:    "truncated header",
			mutate:  func(b []byte) []byte { return b[:HeaderSize-1] },
			wantErr: common.ErrCorruptData,
		},
		{
			name: "bad magic",
			mutate: func(b []byte) []byte {
				b[0] = 0xDE
				return b
			},
			wantErr: common.ErrCorruptData,
		},
		{
			name: "unsupported version",
			mutate: func(b []byte) []byte {
				b[offVersion] = 0xFF
				return b
			},
			wantErr: common.ErrProtocol,
		},
		{
			name: "declared size disagrees with buffer",
			mutate: func(b []byte) []byte {
				return b[:len(b)-2]
			},
			wantErr: common.ErrCorruptData,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := tc.mutate(append([]byte(nil), valid...))

			var result Message
			err := c.Decode(buf, &result)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

// TestCodecMaxMessageSize tests the configured size cap on both paths
func TestCodecMaxMessageSize(t *testing.T) {
	c := NewBinaryCodec(HeaderSize + 8)

	big := NewCommand(make([]byte, 64))
	if _, err := c.Encode(big); !errors.Is(err, common.ErrResourceExhausted) {
		t.Errorf("Expected ErrResourceExhausted for oversized encode, got %v", err)
	}

	small := NewCommand([]byte("tiny"))
	if _, err := c.Encode(small); err != nil {
		t.Errorf("Encode of small message failed: %v", err)
	}
}

// TestCommandPingScenario runs the documented command round trip:
// create a command with payload "PING", serialize, deserialize and
// verify type, payload and checksum validity.
func TestCommandPingScenario(t *testing.T) {
	c := NewBinaryCodec(0)

	msg := NewMessage(TypeCommand)
	if err := msg.SetPayload([]byte("PING")); err != nil {
		t.Fatalf("SetPayload failed: %v", err)
	}
	msg.Sequence = 1

	data, err := c.Encode(msg)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	var result Message
	if err := c.Decode(data, &result); err != nil {
		t.Fatalf("Failed to decode (checksum invalid?): %v", err)
	}

	if result.Type != TypeCommand {
		t.Errorf("Expected type command, got %s", result.Type)
	}
	if string(result.Payload) != "PING" {
		t.Errorf("Expected payload PING, got %q", result.Payload)
	}
}

// TestMessageFlags tests the flag helpers
func TestMessageFlags(t *testing.T) {
	msg := NewMessage(TypeCommand)

	msg.SetFlag(FlagCompressed | FlagRequiresAck)
	if !msg.HasFlag(FlagCompressed) || !msg.HasFlag(FlagRequiresAck) {
		t.Error("Flags not set")
	}
	if msg.HasFlag(FlagEncrypted) {
		t.Error("Unexpected flag set")
	}

	msg.ClearFlag(FlagCompressed)
	if msg.HasFlag(FlagCompressed) {
		t.Error("Flag not cleared")
	}
	if !msg.HasFlag(FlagRequiresAck) {
		t.Error("Clearing one flag removed another")
	}
}
