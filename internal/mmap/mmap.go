// Package mmap provides anonymous memory mappings for off-heap allocation.
//
// Device memory is modeled as memory outside the Go heap: buffers obtained
// here are invisible to the garbage collector and must be released
// deterministically, which is exactly the lifetime discipline the resource
// manager enforces through reservations.
//
// # Thread Safety
//
// Close is idempotent and protected by an atomic flag. Callers must ensure
// no goroutine touches Bytes() after Close() returns.
package mmap

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrClosed is returned when accessing a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned for non-positive mapping sizes.
	ErrInvalidSize = errors.New("mmap: invalid size")
)

// Mapping represents one anonymous memory mapping.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	size   int
	closed atomic.Bool
	// unmap is the platform-specific function to unmap the memory.
	unmap func([]byte) error
}

// MapAnon creates a read-write anonymous mapping of the given size.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	data, unmapFunc, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}

	return &Mapping{
		data:  data,
		size:  size,
		unmap: unmapFunc,
	}, nil
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil // Already closed
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}

// Bytes returns the underlying byte slice.
// Warning: The slice is valid only until Close() is called.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}
