// Package server accepts inbound connections and drives one responder
// protocol context per connection.
package server

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/obinexus/polycall-sub002/protocol/codec"
	"github.com/obinexus/polycall-sub002/protocol/common"
	"github.com/obinexus/polycall-sub002/protocol/conn"
	"github.com/obinexus/polycall-sub002/protocol/state"
	"github.com/obinexus/polycall-sub002/protocol/transport"
)

var Logger = logger.GetLogger("server")

// ProtocolServer runs responder protocol contexts for every accepted
// connection of one listener.
type ProtocolServer struct {
	cfg       common.Config
	connector transport.IListenerConnector
	events    conn.IProtocolEvents

	mu       sync.Mutex
	handlers map[codec.MessageType]conn.HandlerFunc
	listener net.Listener
	closed   bool
}

// New creates a server. The events implementation provides the
// server-side auth delegate and error observer for every connection;
// nil means accept-everything defaults.
func New(cfg common.Config, connector transport.IListenerConnector, events conn.IProtocolEvents) *ProtocolServer {
	return &ProtocolServer{
		cfg:       cfg,
		connector: connector,
		events:    events,
		handlers:  make(map[codec.MessageType]conn.HandlerFunc),
	}
}

// RegisterHandler installs a message handler applied to every future
// connection. Must be called before Serve.
func (s *ProtocolServer) RegisterHandler(t codec.MessageType, fn conn.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[t] = fn
}

// Serve listens on the configured endpoint and blocks, accepting
// connections until Close is called.
func (s *ProtocolServer) Serve() error {
	listener, err := s.connector.Listen(s.cfg.Transport)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return fmt.Errorf("%w: server is closed", common.ErrClosed)
	}
	s.listener = listener
	s.mu.Unlock()

	Logger.Infof("Starting %s protocol server on %s", s.connector.GetName(), s.cfg.Transport.Endpoint)

	for {
		netConn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		go s.handleConnection(netConn)
	}
}

// Addr returns the bound listener address, or "" before Serve bound it.
// Useful when listening on an ephemeral port.
func (s *ProtocolServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops accepting; running connections finish on their own.
func (s *ProtocolServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// handleConnection drives the responder context of one connection.
func (s *ProtocolServer) handleConnection(netConn net.Conn) {
	endpoint, err := s.connector.Accept(netConn, s.cfg.Transport)
	if err != nil {
		Logger.Errorf("Failed to upgrade connection from %s: %v", netConn.RemoteAddr(), err)
		return
	}

	ctx, err := conn.New(endpoint, s.cfg, s.events)
	if err != nil {
		Logger.Errorf("Failed to create protocol context: %v", err)
		endpoint.Close()
		return
	}
	defer ctx.Close()

	s.mu.Lock()
	for t, fn := range s.handlers {
		ctx.RegisterHandler(t, fn)
	}
	s.mu.Unlock()

	Logger.Infof("Connection from %s", endpoint.RemoteAddr())

	for {
		if err := ctx.ProcessNext(); err != nil {
			if errors.Is(err, common.ErrReceiveFailed) {
				Logger.Infof("Connection from %s closed: %v", endpoint.RemoteAddr(), err)
				return
			}
			Logger.Warningf("Processing failure on %s: %v", endpoint.RemoteAddr(), err)
			if ctx.State() == state.StateError || ctx.State() == state.StateClosed {
				return
			}
		}
	}
}
