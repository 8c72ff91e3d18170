// Package protocol provides a connection-oriented application-protocol
// engine: it manages the lifecycle of logical connections, frames and
// validates the messages exchanged over them, applies transmission
// optimizations and pools reusable connections.
//
// The package is organized into several subpackages:
//
//   - common: Shared configuration structures, the error taxonomy and
//     the logging factory used by every other subpackage.
//
//   - codec: The binary wire format - message types and flags,
//     serialization with CRC-32 integrity checks, and fragmentation
//     with ordered reassembly.
//
//   - optimizer: Transmission optimizations - payload compression
//     (snappy/zstd), batching under selectable strategies and
//     per-message priorities, with monotonic statistics.
//
//   - state: The per-connection lifecycle state machine with a strict
//     transition table and synchronous change notifications.
//
//   - conn: The protocol context tying one state machine to one
//     network endpoint: the decode -> validate -> dispatch pipeline,
//     the ordered send path and the handler registry.
//
//   - pool: A bounded pool of reusable protocol connections with
//     acquire timeouts, health validation and warm-up.
//
//   - transport: Pluggable network endpoints (TCP, unix sockets,
//     websocket) behind a frame-oriented interface.
//
//   - server: The accept loop running responder contexts for inbound
//     connections.
package protocol
