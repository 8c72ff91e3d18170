package transport

import (
	"net"

	"github.com/obinexus/polycall-sub002/protocol/common"
)

// --------------------------------------------------------------------------
// Endpoint
// --------------------------------------------------------------------------

// IEndpoint is one established transport-level connection. An endpoint
// is not safe for concurrent sends or concurrent receives; the protocol
// context is its mutual-exclusion boundary.
type IEndpoint interface {
	// Send writes one frame. Failures are reported as
	// common.ErrSendFailed and may be retried.
	Send(data []byte) error

	// Receive blocks for the next frame. Failures are reported as
	// common.ErrReceiveFailed.
	Receive() ([]byte, error)

	// Close tears the connection down.
	Close() error

	// RemoteAddr describes the peer for diagnostics.
	RemoteAddr() string
}

// --------------------------------------------------------------------------
// Client Connector
// --------------------------------------------------------------------------

// IConnector establishes outbound endpoints for one transport medium.
type IConnector interface {
	// Dial establishes a connection to the configured endpoint.
	Dial(config common.EndpointConfig) (IEndpoint, error)

	// GetName returns the name of the transport type (e.g. "unix", "tcp")
	GetName() string
}

// --------------------------------------------------------------------------
// Server Listener
// --------------------------------------------------------------------------

// IListenerConnector creates listeners for one transport medium.
type IListenerConnector interface {
	// Listen creates a listener on the configured endpoint.
	Listen(config common.EndpointConfig) (net.Listener, error)

	// Accept wraps one accepted connection into an endpoint, applying
	// transport-specific socket settings.
	Accept(conn net.Conn, config common.EndpointConfig) (IEndpoint, error)

	// GetName returns the name of the transport type (e.g. "unix", "tcp")
	GetName() string
}
