// Package unix provides the unix domain socket transport connector.
package unix

import (
	"fmt"
	"net"
	"os"

	"github.com/obinexus/polycall-sub002/protocol/common"
	"github.com/obinexus/polycall-sub002/protocol/transport"
	"github.com/obinexus/polycall-sub002/protocol/transport/base"
)

// connector implements IConnector and IListenerConnector for unix sockets
type connector struct{}

// NewConnector creates a new unix socket client connector.
func NewConnector() transport.IConnector {
	return &connector{}
}

// NewListenerConnector creates a new unix socket listener connector.
func NewListenerConnector() transport.IListenerConnector {
	return &connector{}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConnector / IListenerConnector)
// --------------------------------------------------------------------------

func (c *connector) GetName() string {
	return "unix"
}

func (c *connector) Dial(config common.EndpointConfig) (transport.IEndpoint, error) {
	conn, err := net.Dial("unix", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %v", config.Endpoint, err)
	}

	if uc, ok := conn.(*net.UnixConn); ok {
		applyBuffers(uc, config)
	}

	return base.NewConnEndpoint(conn, config), nil
}

func (c *connector) Listen(config common.EndpointConfig) (net.Listener, error) {
	// Remove a stale socket file from a previous run
	if _, err := os.Stat(config.Endpoint); err == nil {
		if err := os.Remove(config.Endpoint); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket %s: %v", config.Endpoint, err)
		}
	}

	listener, err := net.Listen("unix", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create unix socket listener: %v", err)
	}
	return listener, nil
}

func (c *connector) Accept(conn net.Conn, config common.EndpointConfig) (transport.IEndpoint, error) {
	if uc, ok := conn.(*net.UnixConn); ok {
		applyBuffers(uc, config)
	}
	return base.NewConnEndpoint(conn, config), nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func applyBuffers(conn *net.UnixConn, config common.EndpointConfig) {
	if config.SocketConf.ReadBufferSize > 0 {
		conn.SetReadBuffer(config.SocketConf.ReadBufferSize)
	}
	if config.SocketConf.WriteBufferSize > 0 {
		conn.SetWriteBuffer(config.SocketConf.WriteBufferSize)
	}
}
