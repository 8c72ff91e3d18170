// Package base provides the stream endpoint implementation shared by
// the tcp and unix transports: length-prefixed framing over a net.Conn
// with configurable deadlines.
package base
