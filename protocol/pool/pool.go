package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/obinexus/polycall-sub002/protocol/common"
	"github.com/obinexus/polycall-sub002/protocol/conn"
	"golang.org/x/sync/semaphore"
)

var Logger = logger.GetLogger("pool")

// Factory establishes one new protocol connection. It is invoked
// without the pool lock held.
type Factory func() (*conn.ProtocolContext, error)

// --------------------------------------------------------------------------
// Pool Entry
// --------------------------------------------------------------------------

// entry wraps one pooled protocol context with its bookkeeping.
type entry struct {
	id            uuid.UUID
	ctx           *conn.ProtocolContext
	inUse         bool
	healthy       bool
	lastValidated time.Time
	lastUsed      time.Time
}

// Pooled is the handle returned by Acquire. It must be given back via
// Release and must not be shared between goroutines.
type Pooled struct {
	ent *entry
}

// ID returns the unique id of the underlying pool entry.
func (p *Pooled) ID() uuid.UUID {
	return p.ent.id
}

// Context returns the protocol context held by this handle.
func (p *Pooled) Context() *conn.ProtocolContext {
	return p.ent.ctx
}

// --------------------------------------------------------------------------
// Pool
// --------------------------------------------------------------------------

// Pool is a bounded set of reusable protocol connections.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	cfg      common.PoolConfig
	factory  Factory
	entries  []*entry
	strategy common.PoolStrategy
	rrIndex  int
	closed   bool

	// dialSem bounds concurrent connection establishment
	dialSem *semaphore.Weighted

	stats poolStats
}

type poolStats struct {
	acquires           atomic.Uint64
	timeouts           atomic.Uint64
	created            atomic.Uint64
	discarded          atomic.Uint64
	validationFailures atomic.Uint64
}

// StatsSnapshot is a point-in-time view of the pool.
type StatsSnapshot struct {
	Size               int
	Idle               int
	InUse              int
	Acquires           uint64
	Timeouts           uint64
	Created            uint64
	Discarded          uint64
	ValidationFailures uint64
}

// New creates an empty pool. Connections are established through
// WarmUp or Resize, never implicitly.
func New(cfg common.PoolConfig, factory Factory) (*Pool, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: nil factory", common.ErrInvalidParameter)
	}

	parallelism := cfg.DialParallelism
	if parallelism < 1 {
		parallelism = 1
	}

	p := &Pool{
		cfg:      cfg,
		factory:  factory,
		strategy: cfg.Strategy,
		dialSem:  semaphore.NewWeighted(int64(parallelism)),
	}
	p.cond = sync.NewCond(&p.mu)
	return p, nil
}

// --------------------------------------------------------------------------
// Acquire / Release
// --------------------------------------------------------------------------

// Acquire returns an idle connection, marking it in use. With no idle
// entry available it blocks up to timeout (0 = non-blocking) and then
// fails with common.ErrTimeout. At most one holder per entry is
// enforced.
func (p *Pool) Acquire(timeout time.Duration) (*Pooled, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.closed {
			return nil, fmt.Errorf("%w: pool is closed", common.ErrClosed)
		}

		if e := p.pickIdleLocked(); e != nil {
			e.inUse = true
			e.lastUsed = time.Now()
			p.stats.acquires.Add(1)
			return &Pooled{ent: e}, nil
		}

		if timeout == 0 || (!deadline.IsZero() && !time.Now().Before(deadline)) {
			p.stats.timeouts.Add(1)
			return nil, fmt.Errorf("%w: no idle connection within %s", common.ErrTimeout, timeout)
		}

		p.waitLocked(deadline)
	}
}

// Release marks a connection idle again. With validate-on-release
// configured, an unhealthy connection is discarded and replaced in the
// background instead of returning to the idle set.
func (p *Pool) Release(pc *Pooled) error {
	if pc == nil || pc.ent == nil {
		return fmt.Errorf("%w: nil connection", common.ErrInvalidParameter)
	}

	p.mu.Lock()

	e := pc.ent
	if !e.inUse {
		p.mu.Unlock()
		return fmt.Errorf("%w: connection is not acquired", common.ErrInvalidParameter)
	}
	e.inUse = false
	e.lastUsed = time.Now()

	if p.cfg.ValidateOnRelease {
		e.healthy = e.ctx.Healthy()
		e.lastValidated = time.Now()
		if !e.healthy {
			p.removeLocked(e)
			p.stats.validationFailures.Add(1)
			p.mu.Unlock()

			e.ctx.Close()
			p.stats.discarded.Add(1)
			telemetryDiscarded.Inc()

			// Replace in the background so Release never dials
			go func() {
				if err := p.addConnections(1); err != nil {
					Logger.Warningf("failed to replace discarded connection: %v", err)
				}
			}()
			return nil
		}
	}

	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}

// --------------------------------------------------------------------------
// Maintenance Operations
// --------------------------------------------------------------------------

// WarmUp proactively establishes n additional connections so later
// acquires do not pay cold-start latency.
func (p *Pool) WarmUp(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative warm-up count", common.ErrInvalidParameter)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("%w: pool is closed", common.ErrClosed)
	}
	if p.cfg.MaxSize > 0 && len(p.entries)+n > p.cfg.MaxSize {
		p.mu.Unlock()
		return fmt.Errorf("%w: warm-up to %d exceeds maximum pool size %d",
			common.ErrInvalidParameter, len(p.entries)+n, p.cfg.MaxSize)
	}
	p.mu.Unlock()

	return p.addConnections(n)
}

// Resize grows the pool by establishing idle entries or shrinks it by
// removing idle ones. In-use entries are never evicted; shrinking stops
// early when only in-use entries remain.
func (p *Pool) Resize(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative pool size", common.ErrInvalidParameter)
	}
	if p.cfg.MaxSize > 0 && n > p.cfg.MaxSize {
		return fmt.Errorf("%w: size %d exceeds maximum pool size %d",
			common.ErrInvalidParameter, n, p.cfg.MaxSize)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("%w: pool is closed", common.ErrClosed)
	}

	current := len(p.entries)
	if n > current {
		p.mu.Unlock()
		return p.addConnections(n - current)
	}

	// Shrink: collect idle victims under the lock, close them outside
	var victims []*entry
	for _, e := range p.entries {
		if len(p.entries)-len(victims) <= n {
			break
		}
		if !e.inUse {
			victims = append(victims, e)
		}
	}
	for _, e := range victims {
		p.removeLocked(e)
	}
	p.mu.Unlock()

	for _, e := range victims {
		e.ctx.Close()
		p.stats.discarded.Add(1)
		telemetryDiscarded.Inc()
	}

	return nil
}

// Validate health-checks every idle entry. With closeInvalid set,
// failing entries are closed and removed. It returns the number of
// entries that failed the check.
func (p *Pool) Validate(closeInvalid bool) int {
	p.mu.Lock()

	var failed []*entry
	now := time.Now()
	for _, e := range p.entries {
		if e.inUse {
			continue
		}
		e.healthy = e.ctx.Healthy()
		e.lastValidated = now
		if !e.healthy {
			p.stats.validationFailures.Add(1)
			failed = append(failed, e)
		}
	}

	if closeInvalid {
		for _, e := range failed {
			p.removeLocked(e)
		}
	}
	p.mu.Unlock()

	if closeInvalid {
		for _, e := range failed {
			e.ctx.Close()
			p.stats.discarded.Add(1)
			telemetryDiscarded.Inc()
		}
	}

	return len(failed)
}

// SetStrategy changes which idle entry Acquire prefers.
func (p *Pool) SetStrategy(s common.PoolStrategy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strategy = s
}

// Stats returns a snapshot of the pool bookkeeping.
func (p *Pool) Stats() StatsSnapshot {
	p.mu.Lock()
	idle := 0
	for _, e := range p.entries {
		if !e.inUse {
			idle++
		}
	}
	size := len(p.entries)
	p.mu.Unlock()

	return StatsSnapshot{
		Size:               size,
		Idle:               idle,
		InUse:              size - idle,
		Acquires:           p.stats.acquires.Load(),
		Timeouts:           p.stats.timeouts.Load(),
		Created:            p.stats.created.Load(),
		Discarded:          p.stats.discarded.Load(),
		ValidationFailures: p.stats.validationFailures.Load(),
	}
}

// Close shuts the pool down and closes every entry, in use or not.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	entries := p.entries
	p.entries = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, e := range entries {
		e.ctx.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// pickIdleLocked selects an idle healthy entry per the configured
// strategy. Caller must hold p.mu.
func (p *Pool) pickIdleLocked() *entry {
	var pick *entry

	switch p.strategy {
	case common.PoolMRU:
		for _, e := range p.entries {
			if e.inUse || !e.healthy {
				continue
			}
			if pick == nil || e.lastUsed.After(pick.lastUsed) {
				pick = e
			}
		}
	case common.PoolRoundRobin:
		n := len(p.entries)
		for i := 0; i < n; i++ {
			e := p.entries[(p.rrIndex+i)%n]
			if !e.inUse && e.healthy {
				p.rrIndex = (p.rrIndex + i + 1) % n
				pick = e
				break
			}
		}
	default: // PoolLRU
		for _, e := range p.entries {
			if e.inUse || !e.healthy {
				continue
			}
			if pick == nil || e.lastUsed.Before(pick.lastUsed) {
				pick = e
			}
		}
	}

	return pick
}

// waitLocked blocks until Release signals or the deadline passes.
// Caller must hold p.mu; the lock is released while waiting.
func (p *Pool) waitLocked(deadline time.Time) {
	if deadline.IsZero() {
		p.cond.Wait()
		return
	}
	t := time.AfterFunc(time.Until(deadline), func() {
		// Wake every waiter so deadline checks re-run
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	p.cond.Wait()
	t.Stop()
}

// removeLocked drops e from the entry list. Caller must hold p.mu.
func (p *Pool) removeLocked(victim *entry) {
	for i, e := range p.entries {
		if e == victim {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return
		}
	}
}

// addConnections dials n connections concurrently, bounded by the dial
// semaphore, and adds them as idle entries. The pool lock is never held
// across a dial; a dialed connection that no longer fits under MaxSize
// is closed and reported as common.ErrResourceExhausted.
func (p *Pool) addConnections(n int) error {
	var wg sync.WaitGroup
	errCh := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := p.dialSem.Acquire(context.Background(), 1); err != nil {
				errCh <- err
				return
			}
			defer p.dialSem.Release(1)

			ctx, err := p.factory()
			if err != nil {
				errCh <- err
				return
			}

			e := &entry{
				id:            uuid.New(),
				ctx:           ctx,
				healthy:       true,
				lastValidated: time.Now(),
			}

			p.mu.Lock()
			if p.closed {
				p.mu.Unlock()
				ctx.Close()
				errCh <- fmt.Errorf("%w: pool is closed", common.ErrClosed)
				return
			}
			// Re-check the cap at append time: the lock was dropped
			// while dialing, so a concurrent grow may have filled the
			// pool in the meantime.
			if p.cfg.MaxSize > 0 && len(p.entries) >= p.cfg.MaxSize {
				p.mu.Unlock()
				ctx.Close()
				errCh <- fmt.Errorf("%w: pool is at maximum size %d",
					common.ErrResourceExhausted, p.cfg.MaxSize)
				return
			}
			p.entries = append(p.entries, e)
			p.stats.created.Add(1)
			telemetryCreated.Inc()
			p.cond.Broadcast()
			p.mu.Unlock()
		}()
	}

	wg.Wait()
	close(errCh)

	// Report the first establishment failure
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}
