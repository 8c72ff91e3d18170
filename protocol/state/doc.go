// Package state implements the lifecycle state machine of one protocol
// connection.
//
// The legal transitions are:
//
//	Init -> Handshake -> Auth -> Ready
//	Handshake -> Ready (when no authentication is required)
//	Init/Handshake/Auth/Ready -> Error (forced on protocol failures)
//	any state except Closed -> Closed (administrative shutdown)
//
// Closed is terminal. Illegal transitions fail without changing the
// current state, and every successful transition notifies the
// registered observers synchronously before the triggering call
// returns.
package state
