package pool

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/obinexus/polycall-sub002/protocol/common"
	"github.com/obinexus/polycall-sub002/protocol/conn"
)

// --------------------------------------------------------------------------
// Test fixtures
// --------------------------------------------------------------------------

// stubEndpoint is an endpoint that swallows sends and never receives.
// The pool only exercises lifecycle and health, not traffic.
type stubEndpoint struct {
	closed chan struct{}
	once   sync.Once
}

func newStubEndpoint() *stubEndpoint {
	return &stubEndpoint{closed: make(chan struct{})}
}

func (s *stubEndpoint) Send(data []byte) error { return nil }

func (s *stubEndpoint) Receive() ([]byte, error) {
	<-s.closed
	return nil, fmt.Errorf("%w: endpoint closed", common.ErrReceiveFailed)
}

func (s *stubEndpoint) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *stubEndpoint) RemoteAddr() string { return "stub" }

// stubFactory creates healthy protocol contexts over stub endpoints.
func stubFactory() (*conn.ProtocolContext, error) {
	return conn.New(newStubEndpoint(), common.DefaultConfig(), nil)
}

// newTestPool creates a pool with the given limits over the stub factory.
func newTestPool(t *testing.T, maxSize int) *Pool {
	t.Helper()
	cfg := common.DefaultConfig().Pool
	cfg.MaxSize = maxSize

	p, err := New(cfg, stubFactory)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestPoolAcquireRelease runs the documented scenario: a pool warmed to
// two connections serves two acquires, fails the third without waiting,
// and serves a fourth once a connection is given back.
func TestPoolAcquireRelease(t *testing.T) {
	p := newTestPool(t, 8)
	if err := p.WarmUp(2); err != nil {
		t.Fatalf("WarmUp failed: %v", err)
	}

	c1, err := p.Acquire(0)
	if err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}
	c2, err := p.Acquire(0)
	if err != nil {
		t.Fatalf("Second acquire failed: %v", err)
	}
	if c1.ID() == c2.ID() {
		t.Error("Both acquires returned the same connection")
	}

	if _, err := p.Acquire(0); !errors.Is(err, common.ErrTimeout) {
		t.Errorf("Expected ErrTimeout on exhausted pool, got %v", err)
	}

	if err := p.Release(c1); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	c3, err := p.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	if c3.ID() != c1.ID() {
		t.Error("Expected the released connection back")
	}

	s := p.Stats()
	if s.Size != 2 || s.InUse != 2 || s.Idle != 0 {
		t.Errorf("Stats = %+v, want size 2, in use 2, idle 0", s)
	}
	if s.Timeouts != 1 {
		t.Errorf("Timeouts = %d, want 1", s.Timeouts)
	}
}

// TestPoolBlockingAcquire tests that a waiter is woken by a release
func TestPoolBlockingAcquire(t *testing.T) {
	p := newTestPool(t, 8)
	if err := p.WarmUp(1); err != nil {
		t.Fatalf("WarmUp failed: %v", err)
	}

	held, err := p.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Release(held)
	}()

	start := time.Now()
	got, err := p.Acquire(time.Second)
	if err != nil {
		t.Fatalf("Blocking acquire failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Acquire returned after %s, expected to block for the release", elapsed)
	}
	if got.ID() != held.ID() {
		t.Error("Woken acquire returned a different connection")
	}
}

// TestPoolAcquireTimeout tests that a waiter gives up at its deadline
func TestPoolAcquireTimeout(t *testing.T) {
	p := newTestPool(t, 8)
	if err := p.WarmUp(1); err != nil {
		t.Fatalf("WarmUp failed: %v", err)
	}
	if _, err := p.Acquire(0); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	start := time.Now()
	_, err := p.Acquire(30 * time.Millisecond)
	if !errors.Is(err, common.ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Timed out after %s, before the deadline", elapsed)
	}
}

// TestPoolReleaseTwice tests the double-release guard
func TestPoolReleaseTwice(t *testing.T) {
	p := newTestPool(t, 8)
	if err := p.WarmUp(1); err != nil {
		t.Fatalf("WarmUp failed: %v", err)
	}

	c, err := p.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := p.Release(c); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := p.Release(c); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter on double release, got %v", err)
	}
	if err := p.Release(nil); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter on nil release, got %v", err)
	}
}

// TestPoolWarmUpLimit tests that warm-up respects the maximum size
func TestPoolWarmUpLimit(t *testing.T) {
	p := newTestPool(t, 2)

	if err := p.WarmUp(3); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter, got %v", err)
	}
	if err := p.WarmUp(-1); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter for negative count, got %v", err)
	}
	if err := p.WarmUp(2); err != nil {
		t.Fatalf("WarmUp failed: %v", err)
	}
	if s := p.Stats(); s.Size != 2 || s.Created != 2 {
		t.Errorf("Stats = %+v, want size 2, created 2", s)
	}
}

// TestPoolWarmUpConcurrentCap tests that MaxSize holds when warm-ups
// race. Both warm-ups pass the pre-check before either has dialed, so
// the cap must be enforced again when the dialed connections are
// appended.
func TestPoolWarmUpConcurrentCap(t *testing.T) {
	cfg := common.DefaultConfig().Pool
	cfg.MaxSize = 2
	cfg.DialParallelism = 4

	// Hold every dial until all four are in flight
	var gate sync.WaitGroup
	gate.Add(4)
	p, err := New(cfg, func() (*conn.ProtocolContext, error) {
		gate.Done()
		gate.Wait()
		return stubFactory()
	})
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	defer p.Close()

	errCh := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errCh <- p.WarmUp(2) }()
	}

	rejected := 0
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			if !errors.Is(err, common.ErrResourceExhausted) {
				t.Errorf("Expected ErrResourceExhausted, got %v", err)
			}
			rejected++
		}
	}
	if rejected == 0 {
		t.Error("Neither warm-up hit the size cap")
	}
	if s := p.Stats(); s.Size != 2 {
		t.Errorf("Size = %d after racing warm-ups, want 2", s.Size)
	}
}

// TestPoolResize tests growing and shrinking
func TestPoolResize(t *testing.T) {
	p := newTestPool(t, 8)

	if err := p.Resize(4); err != nil {
		t.Fatalf("Grow failed: %v", err)
	}
	if s := p.Stats(); s.Size != 4 {
		t.Fatalf("Size after grow = %d, want 4", s.Size)
	}

	// An in-use entry survives the shrink
	held, err := p.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := p.Resize(1); err != nil {
		t.Fatalf("Shrink failed: %v", err)
	}
	s := p.Stats()
	if s.Size != 1 || s.InUse != 1 {
		t.Errorf("Stats after shrink = %+v, want size 1 in use 1", s)
	}
	if !held.Context().Healthy() {
		t.Error("Held connection was closed by the shrink")
	}

	if err := p.Resize(9); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter above maximum size, got %v", err)
	}
	if err := p.Resize(-1); !errors.Is(err, common.ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter for negative size, got %v", err)
	}
}

// TestPoolValidate tests health checking of idle entries
func TestPoolValidate(t *testing.T) {
	p := newTestPool(t, 8)
	if err := p.WarmUp(2); err != nil {
		t.Fatalf("WarmUp failed: %v", err)
	}

	// Break one connection behind the pool's back
	c, err := p.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	c.Context().Close()
	if err := p.Release(c); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if failed := p.Validate(false); failed != 1 {
		t.Errorf("Validate(false) = %d, want 1", failed)
	}
	if s := p.Stats(); s.Size != 2 {
		t.Errorf("Validate(false) changed the pool size to %d", s.Size)
	}

	if failed := p.Validate(true); failed != 1 {
		t.Errorf("Validate(true) = %d, want 1", failed)
	}
	if s := p.Stats(); s.Size != 1 || s.Discarded != 1 {
		t.Errorf("Stats after eviction = %+v, want size 1, discarded 1", s)
	}
}

// TestPoolSkipsUnhealthyIdle tests that an idle entry flagged by a
// validation sweep is never handed out
func TestPoolSkipsUnhealthyIdle(t *testing.T) {
	p := newTestPool(t, 2)
	if err := p.WarmUp(2); err != nil {
		t.Fatalf("WarmUp failed: %v", err)
	}

	c1, err := p.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	c2, err := p.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	broken := c1.ID()
	c1.Context().Close()
	p.Release(c1)
	p.Release(c2)

	if failed := p.Validate(false); failed != 1 {
		t.Fatalf("Validate(false) = %d, want 1", failed)
	}

	good, err := p.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if good.ID() == broken {
		t.Error("Acquire returned the unhealthy entry")
	}
	if _, err := p.Acquire(0); !errors.Is(err, common.ErrTimeout) {
		t.Errorf("Expected ErrTimeout with only the unhealthy entry idle, got %v", err)
	}
}

// TestPoolValidateOnRelease tests discard-and-replace of broken
// connections at release time
func TestPoolValidateOnRelease(t *testing.T) {
	cfg := common.DefaultConfig().Pool
	cfg.MaxSize = 8
	cfg.ValidateOnRelease = true

	p, err := New(cfg, stubFactory)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	defer p.Close()

	if err := p.WarmUp(1); err != nil {
		t.Fatalf("WarmUp failed: %v", err)
	}

	c, err := p.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	broken := c.ID()
	c.Context().Close()
	if err := p.Release(c); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	// The replacement dial happens in the background
	deadline := time.Now().Add(2 * time.Second)
	for {
		if s := p.Stats(); s.Size == 1 && s.Idle == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Replacement never arrived: %+v", p.Stats())
		}
		time.Sleep(5 * time.Millisecond)
	}

	replacement, err := p.Acquire(time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if replacement.ID() == broken {
		t.Error("Broken connection was returned to the pool")
	}
	if s := p.Stats(); s.ValidationFailures != 1 || s.Discarded != 1 {
		t.Errorf("Stats = %+v, want 1 validation failure and 1 discard", s)
	}
}

// TestPoolStrategies tests which idle entry each strategy prefers
func TestPoolStrategies(t *testing.T) {
	p := newTestPool(t, 8)
	if err := p.WarmUp(2); err != nil {
		t.Fatalf("WarmUp failed: %v", err)
	}

	// Establish distinct last-used times
	first, err := p.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	second, err := p.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	p.Release(first)
	time.Sleep(2 * time.Millisecond)
	p.Release(second)

	t.Run("lru", func(t *testing.T) {
		p.SetStrategy(common.PoolLRU)
		c, err := p.Acquire(0)
		if err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		defer p.Release(c)
		if c.ID() != first.ID() {
			t.Error("LRU should return the least recently used entry")
		}
	})

	t.Run("mru", func(t *testing.T) {
		p.SetStrategy(common.PoolMRU)
		c, err := p.Acquire(0)
		if err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		defer p.Release(c)
		if c.ID() != second.ID() {
			t.Error("MRU should return the most recently used entry")
		}
	})

	t.Run("round robin", func(t *testing.T) {
		p.SetStrategy(common.PoolRoundRobin)
		seen := make(map[string]bool)
		for i := 0; i < 2; i++ {
			c, err := p.Acquire(0)
			if err != nil {
				t.Fatalf("Acquire failed: %v", err)
			}
			seen[c.ID().String()] = true
			p.Release(c)
		}
		if len(seen) != 2 {
			t.Errorf("Round robin visited %d distinct entries, want 2", len(seen))
		}
	})
}

// TestPoolClose tests that a closed pool rejects everything
func TestPoolClose(t *testing.T) {
	p := newTestPool(t, 8)
	if err := p.WarmUp(1); err != nil {
		t.Fatalf("WarmUp failed: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := p.Acquire(0); !errors.Is(err, common.ErrClosed) {
		t.Errorf("Expected ErrClosed on acquire, got %v", err)
	}
	if err := p.WarmUp(1); !errors.Is(err, common.ErrClosed) {
		t.Errorf("Expected ErrClosed on warm-up, got %v", err)
	}
	if err := p.Resize(2); !errors.Is(err, common.ErrClosed) {
		t.Errorf("Expected ErrClosed on resize, got %v", err)
	}

	// Closing twice is harmless
	if err := p.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

// TestPoolFactoryFailure tests that dial errors surface and leave no
// half-created entries behind
func TestPoolFactoryFailure(t *testing.T) {
	dialErr := errors.New("dial refused")
	p, err := New(common.DefaultConfig().Pool, func() (*conn.ProtocolContext, error) {
		return nil, dialErr
	})
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	defer p.Close()

	if err := p.WarmUp(2); !errors.Is(err, dialErr) {
		t.Errorf("Expected the dial error, got %v", err)
	}
	if s := p.Stats(); s.Size != 0 {
		t.Errorf("Size = %d after failed warm-up, want 0", s.Size)
	}
}
