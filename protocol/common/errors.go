package common

import (
	"errors"
)

// --------------------------------------------------------------------------
// Error Taxonomy
// --------------------------------------------------------------------------

// The engine reports every failure as (or wrapped around) one of the
// sentinel errors below. Callers classify failures with errors.Is, e.g.:
//
//	if errors.Is(err, common.ErrTimeout) { ... }
//
// Components wrap the sentinels with context via fmt.Errorf("...: %w", ...).
var (
	// ErrInvalidParameter indicates bad input. No state was changed.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidState indicates an operation that is illegal for the
	// current protocol state. The state is left unchanged.
	ErrInvalidState = errors.New("invalid state")

	// ErrCorruptData indicates a checksum or format failure. The offending
	// message is discarded.
	ErrCorruptData = errors.New("corrupt data")

	// ErrTimeout indicates a bounded wait that was exceeded. No resource
	// is leaked.
	ErrTimeout = errors.New("timeout")

	// ErrResourceExhausted indicates that a pool, queue or size cap is
	// full. This also covers configured allocation limits (e.g. a message
	// larger than the maximum message size).
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrSendFailed indicates a transport-level write failure. The
	// protocol state is unchanged and the operation may be retried.
	ErrSendFailed = errors.New("send failed")

	// ErrReceiveFailed indicates a transport-level read failure. The
	// protocol state is unchanged and the operation may be retried.
	ErrReceiveFailed = errors.New("receive failed")

	// ErrProtocol indicates a semantic protocol violation (e.g. a
	// fragment arriving out of order). The connection is forced into the
	// error state.
	ErrProtocol = errors.New("protocol violation")

	// ErrClosed indicates an operation on a closed pool or connection.
	ErrClosed = errors.New("closed")
)
