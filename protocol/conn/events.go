package conn

import (
	"github.com/obinexus/polycall-sub002/protocol/codec"
	"github.com/obinexus/polycall-sub002/protocol/state"
)

// --------------------------------------------------------------------------
// Protocol Events
// --------------------------------------------------------------------------

// IProtocolEvents receives the callbacks of one protocol context. All
// callbacks run synchronously on the goroutine that triggered them,
// before the triggering call returns.
type IProtocolEvents interface {
	// OnHandshake is invoked when the handshake phase completes.
	OnHandshake(remote string)

	// OnAuthRequest delegates credential verification to the host
	// application. Returning false counts as a failed attempt.
	OnAuthRequest(credentials []byte) bool

	// OnCommand is invoked for every command message that has no
	// registered type handler.
	OnCommand(msg *codec.Message)

	// OnError is invoked with diagnostics whenever the connection is
	// forced into the error state.
	OnError(err error)

	// OnStateChange is invoked exactly once per completed transition.
	OnStateChange(old, new state.State)
}

// NopEvents is an IProtocolEvents implementation that ignores
// everything and accepts every credential. Embed it to override only
// the callbacks of interest.
type NopEvents struct{}

func (NopEvents) OnHandshake(string) {}

func (NopEvents) OnAuthRequest([]byte) bool { return true }

func (NopEvents) OnCommand(*codec.Message) {}

func (NopEvents) OnError(error) {}

func (NopEvents) OnStateChange(old, new state.State) {}

// --------------------------------------------------------------------------
// Crypto Context
// --------------------------------------------------------------------------

// ICryptoContext is the externally supplied payload transform applied
// to encrypted messages. The engine invokes it; the algorithms live
// outside this module.
type ICryptoContext interface {
	Encrypt(plain []byte) ([]byte, error)
	Decrypt(cipher []byte) ([]byte, error)
}
