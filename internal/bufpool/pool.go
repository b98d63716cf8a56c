// Package bufpool provides the allocators that back the flat buffers kernels
// materialize from tensor storage.
package bufpool

import (
	"errors"
	"fmt"
	"sync"
)

// ErrTooLarge is returned when a request exceeds MaxAllocSize.
var ErrTooLarge = errors.New("bufpool: allocation too large")

// MaxAllocSize bounds a single flat buffer (1 GiB).
const MaxAllocSize = 1 << 30

// Allocator hands out flat buffers. Every buffer obtained from Alloc must be
// passed to Free exactly once.
type Allocator interface {
	Alloc(n int) ([]byte, error)
	Free(buf []byte)
}

// Heap allocates every buffer with make and lets the garbage collector
// reclaim it on Free.
type Heap struct{}

// Alloc returns a zeroed buffer of n bytes.
func (Heap) Alloc(n int) ([]byte, error) {
	if err := checkSize(n); err != nil {
		return nil, err
	}
	return make([]byte, n), nil
}

// Free is a no-op.
func (Heap) Free([]byte) {}

// SizeClass represents the buffer size categories used for pooling.
type SizeClass int

const (
	// Small buffers are below 4KB.
	Small SizeClass = iota
	// Medium buffers are 4KB-1MB.
	Medium
	// Large buffers are 1MB and above.
	Large
	numClasses
)

const (
	smallThreshold  = 4 * 1024    // 4KB
	mediumThreshold = 1024 * 1024 // 1MB

	// DefaultMaxPerClass is the number of idle buffers kept per size class.
	DefaultMaxPerClass = 32
)

// Stats reports pool usage.
type Stats struct {
	Allocated uint64 // buffers handed out by Alloc
	Released  uint64 // buffers returned through Free
	Hits      uint64 // Alloc served from an idle buffer
	Misses    uint64 // Alloc that had to allocate
	Pooled    int    // idle buffers currently held
}

// Outstanding returns the number of buffers allocated but not yet freed.
func (s Stats) Outstanding() int64 {
	return int64(s.Allocated) - int64(s.Released) //nolint:gosec // counters stay far below 2^63
}

// Pool reuses flat buffers between invocations. It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	idle        [numClasses][][]byte
	maxPerClass int
	stats       Stats
}

// New creates a pool that keeps at most maxPerClass idle buffers per size class.
// A non-positive value selects DefaultMaxPerClass.
func New(maxPerClass int) *Pool {
	if maxPerClass <= 0 {
		maxPerClass = DefaultMaxPerClass
	}
	return &Pool{maxPerClass: maxPerClass}
}

// Alloc gets a zeroed buffer of n bytes from the pool or creates a new one.
func (p *Pool) Alloc(n int) ([]byte, error) {
	if err := checkSize(n); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Allocated++
	class := Classify(n)
	idle := p.idle[class]
	for i, buf := range idle {
		if cap(buf) >= n {
			p.idle[class] = append(idle[:i], idle[i+1:]...)
			p.stats.Hits++
			buf = buf[:n]
			clear(buf)
			return buf, nil
		}
	}

	p.stats.Misses++
	return make([]byte, n), nil
}

// Free returns a buffer to the pool. If the class is full the buffer is
// dropped for the garbage collector.
func (p *Pool) Free(buf []byte) {
	if buf == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Released++
	class := Classify(cap(buf))
	if len(p.idle[class]) >= p.maxPerClass {
		return
	}
	p.idle[class] = append(p.idle[class], buf[:0])
}

// Clear drops all idle buffers.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.idle {
		p.idle[i] = nil
	}
}

// Stats returns a snapshot of pool usage.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	for _, idle := range p.idle {
		s.Pooled += len(idle)
	}
	return s
}

// Classify determines the size class for a buffer of n bytes.
func Classify(n int) SizeClass {
	if n < smallThreshold {
		return Small
	}
	if n < mediumThreshold {
		return Medium
	}
	return Large
}

func checkSize(n int) error {
	if n < 0 {
		return fmt.Errorf("bufpool: negative size %d", n)
	}
	if n > MaxAllocSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}
	return nil
}
