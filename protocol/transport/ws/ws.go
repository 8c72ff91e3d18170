// Package ws provides the websocket transport connector. One protocol
// frame maps to one binary websocket message, so no additional length
// prefix is required.
package ws

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/obinexus/polycall-sub002/protocol/common"
	"github.com/obinexus/polycall-sub002/protocol/transport"
)

// connector implements IConnector for websocket endpoints
type connector struct{}

// NewConnector creates a new websocket client connector. The configured
// endpoint must be a ws:// or wss:// URL.
func NewConnector() transport.IConnector {
	return &connector{}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConnector)
// --------------------------------------------------------------------------

func (c *connector) GetName() string {
	return "ws"
}

func (c *connector) Dial(config common.EndpointConfig) (transport.IEndpoint, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: time.Duration(config.TimeoutSecond) * time.Second,
		ReadBufferSize:   config.SocketConf.ReadBufferSize,
		WriteBufferSize:  config.SocketConf.WriteBufferSize,
	}

	conn, _, err := dialer.Dial(config.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %v", config.Endpoint, err)
	}

	return &wsEndpoint{
		conn:    conn,
		timeout: time.Duration(config.TimeoutSecond) * time.Second,
	}, nil
}

// --------------------------------------------------------------------------
// Endpoint
// --------------------------------------------------------------------------

type wsEndpoint struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (e *wsEndpoint) Send(data []byte) error {
	if e.timeout > 0 {
		e.conn.SetWriteDeadline(time.Now().Add(e.timeout))
	}
	if err := e.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("%w: %v", common.ErrSendFailed, err)
	}
	return nil
}

func (e *wsEndpoint) Receive() ([]byte, error) {
	if e.timeout > 0 {
		e.conn.SetReadDeadline(time.Now().Add(e.timeout))
	}
	for {
		msgType, data, err := e.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrReceiveFailed, err)
		}
		if msgType == websocket.BinaryMessage {
			return data, nil
		}
		// control and text frames are not part of the protocol
	}
}

func (e *wsEndpoint) Close() error {
	return e.conn.Close()
}

func (e *wsEndpoint) RemoteAddr() string {
	if addr := e.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
