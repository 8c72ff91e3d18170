// Package conn implements the protocol context: the facade owning one
// lifecycle state machine, one network endpoint, the per-connection
// message cache and sequence counter, and the inbound
// decode -> validate -> dispatch pipeline.
//
// A context is either an initiator (it calls StartHandshake and
// Authenticate) or a responder (the built-in handlers answer handshake,
// auth and ping messages as they arrive); both roles share the same
// type. A context must not be used by two goroutines without external
// synchronization - the connection pool is that boundary.
package conn
