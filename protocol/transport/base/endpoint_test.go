package base

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"github.com/obinexus/polycall-sub002/protocol/common"
)

// newEndpointPair wraps both ends of a net.Pipe into frame endpoints.
func newEndpointPair(t *testing.T) (local, remote *connEndpoint) {
	t.Helper()
	c1, c2 := net.Pipe()
	t.Cleanup(func() {
		c1.Close()
		c2.Close()
	})

	cfg := common.EndpointConfig{TimeoutSecond: 5}
	return NewConnEndpoint(c1, cfg).(*connEndpoint), NewConnEndpoint(c2, cfg).(*connEndpoint)
}

// TestFraming tests that frames cross the wire intact and in order
func TestFraming(t *testing.T) {
	local, remote := newEndpointPair(t)

	frames := [][]byte{
		[]byte("first"),
		{},
		bytes.Repeat([]byte{0xAB}, 100_000),
		[]byte("last"),
	}

	go func() {
		for _, f := range frames {
			if err := local.Send(f); err != nil {
				return
			}
		}
	}()

	for i, want := range frames {
		got, err := remote.Receive()
		if err != nil {
			t.Fatalf("Receive of frame %d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Frame %d: got %d bytes, want %d", i, len(got), len(want))
		}
	}
}

// TestReceiveClosedPeer tests the error on a torn-down connection
func TestReceiveClosedPeer(t *testing.T) {
	local, remote := newEndpointPair(t)

	if err := local.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := remote.Receive(); !errors.Is(err, common.ErrReceiveFailed) {
		t.Errorf("Expected ErrReceiveFailed, got %v", err)
	}
	if err := local.Send([]byte("x")); !errors.Is(err, common.ErrSendFailed) {
		t.Errorf("Expected ErrSendFailed, got %v", err)
	}
}

// TestOversizedFrame tests that an absurd length prefix is rejected
// before any allocation happens
func TestOversizedFrame(t *testing.T) {
	c1, c2 := net.Pipe()
	t.Cleanup(func() {
		c1.Close()
		c2.Close()
	})
	remote := NewConnEndpoint(c2, common.EndpointConfig{TimeoutSecond: 5})

	go c1.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	if _, err := remote.Receive(); !errors.Is(err, common.ErrReceiveFailed) {
		t.Errorf("Expected ErrReceiveFailed, got %v", err)
	}
}
