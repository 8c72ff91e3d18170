// Package common contains the core data structures shared across the
// protocol engine: configuration structures for the codec, optimizer,
// pool and transport layers, the error taxonomy used by every component,
// and the logging factory.
//
// The package is intentionally free of any networking or serialization
// logic so that every other protocol package can depend on it without
// introducing import cycles.
package common
