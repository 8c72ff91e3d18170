// Package tcp provides the TCP transport connector.
package tcp

import (
	"fmt"
	"net"
	"time"

	"github.com/obinexus/polycall-sub002/protocol/common"
	"github.com/obinexus/polycall-sub002/protocol/transport"
	"github.com/obinexus/polycall-sub002/protocol/transport/base"
)

// connector implements IConnector and IListenerConnector for TCP sockets
type connector struct{}

// NewConnector creates a new TCP client connector.
func NewConnector() transport.IConnector {
	return &connector{}
}

// NewListenerConnector creates a new TCP listener connector.
func NewListenerConnector() transport.IListenerConnector {
	return &connector{}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConnector / IListenerConnector)
// --------------------------------------------------------------------------

func (c *connector) GetName() string {
	return "tcp"
}

func (c *connector) Dial(config common.EndpointConfig) (transport.IEndpoint, error) {
	conn, err := net.Dial("tcp", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %v", config.Endpoint, err)
	}

	if err := upgradeConnection(conn, config); err != nil {
		conn.Close()
		return nil, err
	}

	return base.NewConnEndpoint(conn, config), nil
}

func (c *connector) Listen(config common.EndpointConfig) (net.Listener, error) {
	listener, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP listener: %v", err)
	}
	return listener, nil
}

func (c *connector) Accept(conn net.Conn, config common.EndpointConfig) (transport.IEndpoint, error) {
	if err := upgradeConnection(conn, config); err != nil {
		conn.Close()
		return nil, err
	}
	return base.NewConnEndpoint(conn, config), nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// upgradeConnection applies performance settings to a TCP connection
// using configuration values from TCPConf and SocketConf
func upgradeConnection(conn net.Conn, config common.EndpointConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // Not a TCP connection, nothing to upgrade
	}

	// Disable Nagle's algorithm (TCPNoDelay) if configured
	if err := tcpConn.SetNoDelay(config.TCPConf.TCPNoDelay); err != nil {
		return err
	}

	if config.TCPConf.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(config.TCPConf.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	if config.TCPConf.TCPLingerSec > 0 {
		if err := tcpConn.SetLinger(config.TCPConf.TCPLingerSec); err != nil {
			return err
		}
	}

	if config.SocketConf.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(config.SocketConf.ReadBufferSize); err != nil {
			return err
		}
	}
	if config.SocketConf.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(config.SocketConf.WriteBufferSize); err != nil {
			return err
		}
	}

	return nil
}
