package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/obinexus/polycall-sub002/protocol/common"
	"github.com/obinexus/polycall-sub002/protocol/transport"
)

// maxFrameSize caps a single frame read off the wire. Anything larger
// is treated as corruption rather than a legitimate message.
const maxFrameSize = 64 * 1024 * 1024

// NewConnEndpoint wraps a net.Conn into a frame-oriented endpoint.
// Every frame is preceded by a 4 byte big-endian length prefix.
func NewConnEndpoint(conn net.Conn, config common.EndpointConfig) transport.IEndpoint {
	return &connEndpoint{
		conn:    conn,
		timeout: time.Duration(config.TimeoutSecond) * time.Second,
	}
}

type connEndpoint struct {
	conn    net.Conn
	timeout time.Duration
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IEndpoint)
// --------------------------------------------------------------------------

func (e *connEndpoint) Send(data []byte) error {
	if e.timeout > 0 {
		e.conn.SetWriteDeadline(time.Now().Add(e.timeout))
	}

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(data)))

	b := net.Buffers{header, data}
	if _, err := b.WriteTo(e.conn); err != nil {
		return fmt.Errorf("%w: %v", common.ErrSendFailed, err)
	}
	return nil
}

func (e *connEndpoint) Receive() ([]byte, error) {
	if e.timeout > 0 {
		e.conn.SetReadDeadline(time.Now().Add(e.timeout))
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(e.conn, header); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrReceiveFailed, err)
	}

	length := binary.BigEndian.Uint32(header)
	if length > maxFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit", common.ErrReceiveFailed, length)
	}
	if length == 0 {
		return []byte{}, nil
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(e.conn, data); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrReceiveFailed, err)
	}
	return data, nil
}

func (e *connEndpoint) Close() error {
	return e.conn.Close()
}

func (e *connEndpoint) RemoteAddr() string {
	if addr := e.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
