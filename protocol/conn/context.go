package conn

import (
	"fmt"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/obinexus/polycall-sub002/protocol/codec"
	"github.com/obinexus/polycall-sub002/protocol/common"
	"github.com/obinexus/polycall-sub002/protocol/optimizer"
	"github.com/obinexus/polycall-sub002/protocol/state"
	"github.com/obinexus/polycall-sub002/protocol/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("conn")

// HandlerFunc processes one dispatched message.
type HandlerFunc func(ctx *ProtocolContext, msg *codec.Message) error

// --------------------------------------------------------------------------
// Protocol Context
// --------------------------------------------------------------------------

// ProtocolContext owns one state machine and drives one endpoint.
type ProtocolContext struct {
	cfg      common.Config
	machine  *state.Machine
	endpoint transport.IEndpoint
	codec    codec.ICodec
	opt      optimizer.IOptimizer
	reasm    *codec.Reassembler
	handlers *xsync.MapOf[uint16, HandlerFunc]
	events   IProtocolEvents
	crypto   ICryptoContext

	seq          atomic.Uint32
	authAttempts atomic.Int32
	msgCache     chan *codec.Message
	userData     any
}

// New creates a protocol context over an established endpoint.
// A nil events implementation is replaced by NopEvents.
func New(endpoint transport.IEndpoint, cfg common.Config, events IProtocolEvents) (*ProtocolContext, error) {
	if endpoint == nil {
		return nil, fmt.Errorf("%w: nil endpoint", common.ErrInvalidParameter)
	}
	if events == nil {
		events = NopEvents{}
	}

	opt, err := optimizer.New(cfg.Optimizer)
	if err != nil {
		return nil, err
	}

	ctx := &ProtocolContext{
		cfg:      cfg,
		machine:  state.NewMachine(),
		endpoint: endpoint,
		codec:    codec.NewBinaryCodec(cfg.Protocol.MaxMessageSize),
		opt:      opt,
		reasm:    codec.NewReassembler(cfg.Protocol.MaxMessageSize),
		handlers: xsync.NewMapOf[uint16, HandlerFunc](),
		events:   events,
		msgCache: make(chan *codec.Message, max(cfg.Protocol.MessageCacheSize, 1)),
	}

	ctx.machine.OnChange(events.OnStateChange)

	return ctx, nil
}

// State returns the current lifecycle state.
func (c *ProtocolContext) State() state.State {
	return c.machine.Current()
}

// Endpoint returns the borrowed network endpoint.
func (c *ProtocolContext) Endpoint() transport.IEndpoint {
	return c.endpoint
}

// Optimizer returns the message optimizer of this connection.
func (c *ProtocolContext) Optimizer() optimizer.IOptimizer {
	return c.opt
}

// SetCrypto installs an externally supplied crypto context. Messages
// flagged FlagEncrypted are transformed with it before checksumming.
func (c *ProtocolContext) SetCrypto(crypto ICryptoContext) {
	c.crypto = crypto
}

// SetUserData attaches borrowed host application data to the context.
func (c *ProtocolContext) SetUserData(data any) {
	c.userData = data
}

// UserData returns the attached host application data.
func (c *ProtocolContext) UserData() any {
	return c.userData
}

// RegisterHandler installs a handler for one message type. Registering
// nil removes the handler.
func (c *ProtocolContext) RegisterHandler(t codec.MessageType, fn HandlerFunc) {
	if fn == nil {
		c.handlers.Delete(uint16(t))
		return
	}
	c.handlers.Store(uint16(t), fn)
}

// Healthy reports whether the connection is in a usable state.
func (c *ProtocolContext) Healthy() bool {
	s := c.machine.Current()
	return s != state.StateError && s != state.StateClosed
}

// NextSequence returns the next send sequence number. The counter wraps
// at 32 bits.
func (c *ProtocolContext) NextSequence() uint32 {
	return c.seq.Add(1)
}

// --------------------------------------------------------------------------
// Lifecycle Operations
// --------------------------------------------------------------------------

// StartHandshake begins connection establishment. Valid only from the
// Init state.
func (c *ProtocolContext) StartHandshake() error {
	if cur := c.machine.Current(); cur != state.StateInit {
		return fmt.Errorf("%w: cannot start handshake from %s", common.ErrInvalidState, cur)
	}

	if err := c.Send(codec.TypeHandshake, nil, codec.FlagRequiresAck); err != nil {
		return err
	}

	return c.machine.TransitionTo(state.StateHandshake)
}

// CompleteHandshake finishes connection establishment. Valid only from
// the Handshake state; moves to Auth when authentication is required,
// otherwise directly to Ready.
func (c *ProtocolContext) CompleteHandshake() error {
	if cur := c.machine.Current(); cur != state.StateHandshake {
		return fmt.Errorf("%w: cannot complete handshake from %s", common.ErrInvalidState, cur)
	}

	target := state.StateReady
	if c.cfg.Protocol.RequireAuth {
		target = state.StateAuth
	}
	if err := c.machine.TransitionTo(target); err != nil {
		return err
	}

	c.events.OnHandshake(c.endpoint.RemoteAddr())
	return nil
}

// Authenticate verifies credentials through the external auth delegate
// and, on success, notifies the peer and moves to Ready. Valid only
// from the Auth state. Exceeding the configured attempt limit forces
// the error state.
func (c *ProtocolContext) Authenticate(credentials []byte) error {
	if cur := c.machine.Current(); cur != state.StateAuth {
		return fmt.Errorf("%w: cannot authenticate from %s", common.ErrInvalidState, cur)
	}

	if !c.events.OnAuthRequest(credentials) {
		attempts := c.authAttempts.Add(1)
		if int(attempts) >= c.cfg.Protocol.MaxAuthAttempts {
			err := fmt.Errorf("%w: authentication failed %d times", common.ErrProtocol, attempts)
			c.forceError(err)
			return err
		}
		return fmt.Errorf("%w: authentication rejected (attempt %d/%d)",
			common.ErrInvalidParameter, attempts, c.cfg.Protocol.MaxAuthAttempts)
	}

	if err := c.Send(codec.TypeAuth, credentials, 0); err != nil {
		return err
	}

	return c.machine.TransitionTo(state.StateReady)
}

// Close forces the terminal state and tears down the endpoint.
func (c *ProtocolContext) Close() error {
	// The edge to Closed is legal from everywhere except Closed itself
	_ = c.machine.TransitionTo(state.StateClosed)
	return c.endpoint.Close()
}

// --------------------------------------------------------------------------
// Send Path
// --------------------------------------------------------------------------

// Send assigns the next sequence number, runs the payload through the
// optimizer, fragments oversized payloads and serializes each frame to
// the endpoint. The optional crypto transform is applied per outgoing
// frame, after fragmentation, so the receive side can undo it on each
// arriving frame before reassembly. A write failure is returned as
// common.ErrSendFailed without changing state; the caller may retry.
func (c *ProtocolContext) Send(t codec.MessageType, payload []byte, flags uint32) error {
	if cur := c.machine.Current(); cur == state.StateClosed {
		return fmt.Errorf("%w: connection closed", common.ErrInvalidState)
	}

	msg := c.getMessage()
	defer c.putMessage(msg)

	msg.Type = t
	msg.Flags = flags
	msg.Sequence = c.NextSequence()

	if len(payload) > 0 {
		optimized, err := c.opt.Optimize(payload, optimizer.PriorityNormal)
		if err != nil {
			return err
		}
		if len(optimized) != len(payload) {
			msg.SetFlag(codec.FlagCompressed)
		}
		payload = optimized
	}

	if msg.HasFlag(codec.FlagEncrypted) && c.crypto == nil {
		return fmt.Errorf("%w: no crypto context installed", common.ErrInvalidParameter)
	}

	msg.Payload = payload

	frags, err := codec.Fragment(msg, c.fragmentUnit())
	if err != nil {
		return err
	}

	for _, frag := range frags {
		if frag.HasFlag(codec.FlagEncrypted) {
			encrypted, err := c.crypto.Encrypt(frag.Payload)
			if err != nil {
				return fmt.Errorf("%w: %v", common.ErrInvalidParameter, err)
			}
			frag.Payload = encrypted
		}
		data, err := c.codec.Encode(frag)
		if err != nil {
			return err
		}
		if err := c.endpoint.Send(data); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Inbound Pipeline
// --------------------------------------------------------------------------

// Process is the sole inbound entry point: decode, verify, check state
// legality, decrypt, reassemble, restore and dispatch one received
// buffer. Decryption runs per arriving frame, mirroring the per-frame
// encryption on the send side, so fragments are decrypted before
// reassembly. Any failing step forces the error state and fires
// OnError; malformed input never panics.
func (c *ProtocolContext) Process(data []byte) error {
	msg := c.getMessage()
	defer c.putMessage(msg)

	if err := c.codec.Decode(data, msg); err != nil {
		c.forceError(err)
		return err
	}

	if !typeLegal(c.machine.Current(), msg.Type) {
		err := fmt.Errorf("%w: message type %s not allowed in state %s",
			common.ErrInvalidState, msg.Type, c.machine.Current())
		c.forceError(err)
		return err
	}

	if msg.HasFlag(codec.FlagEncrypted) {
		if c.crypto == nil {
			err := fmt.Errorf("%w: encrypted message without crypto context", common.ErrProtocol)
			c.forceError(err)
			return err
		}
		plain, err := c.crypto.Decrypt(msg.Payload)
		if err != nil {
			err = fmt.Errorf("%w: decryption failed: %v", common.ErrCorruptData, err)
			c.forceError(err)
			return err
		}
		msg.Payload = plain
		msg.ClearFlag(codec.FlagEncrypted)
	}

	dispatch := msg
	if msg.HasFlag(codec.FlagFragmented) {
		complete, err := c.reasm.Add(msg)
		if err != nil {
			c.forceError(err)
			return err
		}
		if complete == nil {
			return nil // awaiting further fragments
		}
		dispatch = complete
	}

	if dispatch.HasFlag(codec.FlagCompressed) {
		restored, err := c.opt.Restore(dispatch.Payload)
		if err != nil {
			c.forceError(err)
			return err
		}
		dispatch.Payload = restored
		dispatch.ClearFlag(codec.FlagCompressed)
	}

	if err := c.dispatch(dispatch); err != nil {
		c.forceError(err)
		return err
	}

	return nil
}

// ProcessNext receives one buffer from the endpoint and processes it.
func (c *ProtocolContext) ProcessNext() error {
	data, err := c.endpoint.Receive()
	if err != nil {
		return err
	}
	return c.Process(data)
}

// --------------------------------------------------------------------------
// Dispatch
// --------------------------------------------------------------------------

// typeLegal gates inbound message types per lifecycle state.
func typeLegal(s state.State, t codec.MessageType) bool {
	switch s {
	case state.StateInit, state.StateHandshake:
		return t == codec.TypeHandshake || t == codec.TypeError
	case state.StateAuth:
		return t == codec.TypeAuth || t == codec.TypeResponse || t == codec.TypeError
	case state.StateReady:
		switch t {
		case codec.TypeCommand, codec.TypeResponse, codec.TypePing, codec.TypePong, codec.TypeError:
			return true
		}
		return t >= codec.TypeUserBase
	default:
		return false
	}
}

// dispatch routes one fully restored message. Registered handlers win
// over the built-in behavior for their type.
func (c *ProtocolContext) dispatch(msg *codec.Message) error {
	if fn, ok := c.handlers.Load(uint16(msg.Type)); ok {
		return fn(c, msg)
	}

	switch msg.Type {
	case codec.TypeHandshake:
		return c.handleHandshake(msg)
	case codec.TypeAuth:
		return c.handleAuth(msg)
	case codec.TypePing:
		return c.Send(codec.TypePong, nil, codec.FlagAck)
	case codec.TypePong:
		return nil
	case codec.TypeError:
		return fmt.Errorf("%w: peer reported: %s", common.ErrProtocol, string(msg.Payload))
	case codec.TypeCommand:
		c.events.OnCommand(msg)
		return nil
	case codec.TypeResponse:
		return nil
	default:
		return fmt.Errorf("%w: no handler for message type %s", common.ErrProtocol, msg.Type)
	}
}

// handleHandshake implements both sides of connection establishment.
func (c *ProtocolContext) handleHandshake(msg *codec.Message) error {
	switch c.machine.Current() {
	case state.StateInit:
		// Responder: acknowledge and advance
		if err := c.machine.TransitionTo(state.StateHandshake); err != nil {
			return err
		}
		if err := c.Send(codec.TypeHandshake, nil, codec.FlagAck); err != nil {
			return err
		}
		return c.CompleteHandshake()
	case state.StateHandshake:
		// Initiator: the peer acknowledged our handshake
		if !msg.HasFlag(codec.FlagAck) {
			return fmt.Errorf("%w: unexpected handshake message", common.ErrProtocol)
		}
		return c.CompleteHandshake()
	default:
		return fmt.Errorf("%w: handshake in state %s", common.ErrInvalidState, c.machine.Current())
	}
}

// handleAuth implements the responder side of credential verification.
func (c *ProtocolContext) handleAuth(msg *codec.Message) error {
	if c.machine.Current() != state.StateAuth {
		return fmt.Errorf("%w: auth in state %s", common.ErrInvalidState, c.machine.Current())
	}

	if !c.events.OnAuthRequest(msg.Payload) {
		attempts := c.authAttempts.Add(1)
		if int(attempts) >= c.cfg.Protocol.MaxAuthAttempts {
			return fmt.Errorf("%w: authentication failed %d times", common.ErrProtocol, attempts)
		}
		return c.Send(codec.TypeError, []byte("authentication rejected"), 0)
	}

	if err := c.machine.TransitionTo(state.StateReady); err != nil {
		return err
	}
	return c.Send(codec.TypeResponse, []byte("ok"), codec.FlagAck)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// forceError drives the machine into the error state and notifies the
// host. Transitions that are already terminal are left alone.
func (c *ProtocolContext) forceError(err error) {
	c.events.OnError(err)
	if c.machine.CanTransition(state.StateError) {
		if terr := c.machine.TransitionTo(state.StateError); terr != nil {
			Logger.Warningf("failed to enter error state: %v", terr)
		}
	}
}

// fragmentUnit returns the negotiated fragment size, falling back to
// "no fragmentation" when unset.
func (c *ProtocolContext) fragmentUnit() uint32 {
	if c.cfg.Protocol.FragmentSize == 0 {
		return ^uint32(0)
	}
	return c.cfg.Protocol.FragmentSize
}

// getMessage takes a message from the bounded per-connection cache.
func (c *ProtocolContext) getMessage() *codec.Message {
	select {
	case m := <-c.msgCache:
		return m
	default:
		return &codec.Message{}
	}
}

// putMessage returns a message to the cache, dropping it when full.
func (c *ProtocolContext) putMessage(m *codec.Message) {
	m.Reset()
	select {
	case c.msgCache <- m:
	default:
	}
}
