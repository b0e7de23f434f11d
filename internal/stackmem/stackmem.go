// Package stackmem implements the pooled temporary-memory arena backing
// MemorySpaceTemporary allocations.
//
// The arena is one contiguous off-heap region managed as a stack: temporary
// buffers are short-lived and scoped, so allocation and return follow strict
// LIFO order. Requests that do not fit are rejected and the resource manager
// falls back to a direct device allocation (the overflow path).
//
// # Concurrency Model
//
// The stack itself is guarded by a mutex; the owning resource manager
// serializes per-device use on top of it. Alloc and Return are safe to call
// from multiple goroutines, but LIFO discipline across goroutines is the
// caller's responsibility.
package stackmem

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/hupe1980/gpucore/internal/mmap"
)

// Alignment is the byte alignment of every returned buffer. Matches the
// 16-byte transaction granularity the kernels assume.
const Alignment = 16

var (
	// ErrNotOwned is returned when returning a buffer that did not come
	// from this stack.
	ErrNotOwned = errors.New("stackmem: buffer not owned by this stack")
	// ErrNotTop is returned when a return violates LIFO order.
	ErrNotTop = errors.New("stackmem: buffer is not the top of the stack")
	// ErrClosed is returned when allocating from a closed stack.
	ErrClosed = errors.New("stackmem: stack closed")
)

// Stats tracks arena usage.
type Stats struct {
	Size        int64 // Total arena capacity
	Used        int64 // Bytes currently allocated
	HighWater   int64 // Maximum bytes ever allocated at once
	TotalAllocs uint64
}

// Stack is a LIFO allocator over one off-heap region.
type Stack struct {
	mu      sync.Mutex
	mapping *mmap.Mapping
	buf     []byte
	head    int // Next free offset
	stats   Stats
	closed  bool
}

// New creates a stack of the given capacity. A zero or negative size yields
// a valid stack that rejects every allocation, which disables the pooled
// temporary path without special-casing callers.
func New(size int64) (*Stack, error) {
	s := &Stack{}

	if size > 0 {
		size = alignUp(size)

		m, err := mmap.MapAnon(int(size))
		if err != nil {
			return nil, fmt.Errorf("stackmem: reserving %d bytes: %w", size, err)
		}

		s.mapping = m
		s.buf = m.Bytes()
		s.stats.Size = size
	}

	return s, nil
}

func alignUp(n int64) int64 {
	return (n + Alignment - 1) &^ (Alignment - 1)
}

// Alloc carves size bytes off the top of the stack. It reports false when
// the request does not fit (or the arena is empty); the caller then takes
// the overflow path.
func (s *Stack) Alloc(size int64) ([]byte, bool) {
	if size <= 0 {
		return nil, false
	}

	aligned := alignUp(size)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.buf == nil || int64(s.head)+aligned > int64(len(s.buf)) {
		return nil, false
	}

	start := s.head
	s.head += int(aligned)

	s.stats.Used = int64(s.head)
	if s.stats.Used > s.stats.HighWater {
		s.stats.HighWater = s.stats.Used
	}
	s.stats.TotalAllocs++

	return s.buf[start:s.head:s.head], true
}

// Owns reports whether data lies within the stack's region.
func (s *Stack) Owns(data []byte) bool {
	if len(data) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownsLocked(data)
}

func (s *Stack) ownsLocked(data []byte) bool {
	if s.buf == nil || len(data) == 0 {
		return false
	}
	base := uintptr(unsafe.Pointer(&s.buf[0]))
	p := uintptr(unsafe.Pointer(&data[0]))
	return p >= base && p+uintptr(len(data)) <= base+uintptr(len(s.buf))
}

// Return pops data off the top of the stack. The buffer must be the most
// recent live allocation; out-of-order returns indicate a lifetime bug in
// the caller.
func (s *Stack) Return(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ownsLocked(data) {
		return ErrNotOwned
	}

	base := uintptr(unsafe.Pointer(&s.buf[0]))
	p := uintptr(unsafe.Pointer(&data[0]))
	start := int(p - base)
	end := start + len(data)

	if end != s.head {
		return fmt.Errorf("%w: returned [%d:%d), head %d", ErrNotTop, start, end, s.head)
	}

	s.head = start
	s.stats.Used = int64(s.head)

	return nil
}

// Available returns the bytes still allocatable from the arena.
func (s *Stack) Available() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.buf == nil {
		return 0
	}
	return int64(len(s.buf) - s.head)
}

// Stats returns a snapshot of arena usage.
func (s *Stack) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close releases the arena region. All outstanding buffers become invalid.
func (s *Stack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.buf = nil

	if s.mapping != nil {
		return s.mapping.Close()
	}
	return nil
}
