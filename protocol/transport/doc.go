// Package transport abstracts the network endpoints the protocol
// engine reads from and writes to. The engine itself never touches
// sockets: it sends and receives opaque frames through the IEndpoint
// interface, and obtains endpoints through pluggable connectors
// (tcp, unix, websocket).
//
// Stream transports frame every buffer with a 4 byte big-endian length
// prefix; the websocket transport maps one frame to one binary message.
package transport
