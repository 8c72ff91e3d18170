// Package pool maintains a bounded set of reusable protocol
// connections to amortize connection setup cost.
//
// Entries are established explicitly through WarmUp or Resize and
// handed out by Acquire under a configurable replacement strategy
// (LRU, MRU, round-robin). Every entry has at most one holder at a
// time; the pool is the mutual-exclusion boundary for the protocol
// contexts it owns.
//
// The pool mutex guards bookkeeping only. Connection establishment
// happens outside the lock, bounded by a weighted semaphore, so a slow
// dial never serializes acquirers.
package pool
