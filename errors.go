package gpucore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize is returned for allocation requests with a
	// non-positive size.
	ErrInvalidSize = errors.New("allocation size must be positive")

	// ErrOutOfMemory is returned when a request cannot be satisfied after
	// both the pooled and fallback paths are exhausted. The concrete error
	// is an *AllocError carrying the full request descriptor.
	ErrOutOfMemory = errors.New("out of device memory")

	// ErrUnknownAllocation is returned when deallocating a pointer this
	// resource instance does not own. Allocations must be freed through the
	// instance that made them.
	ErrUnknownAllocation = errors.New("unknown allocation")

	// ErrClosed is returned when using a resource instance after Close.
	ErrClosed = errors.New("resources closed")
)

// AllocError is the failure of one allocation request.
//
// It renders the request descriptor and the manager's outstanding
// allocations so an exhausted device can be diagnosed from the error text
// alone. The underlying cause (if any) is available via errors.Unwrap.
type AllocError struct {
	Req       AllocRequest
	Available int64  // Remaining temporary arena budget on the device
	State     string // Rendering of outstanding allocations
	cause     error
}

func (e *AllocError) Error() string {
	msg := fmt.Sprintf("failed to allocate %s (temp available %d bytes)", e.Req, e.Available)
	if e.State != "" {
		msg += "\noutstanding allocations:\n" + e.State
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *AllocError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrOutOfMemory, e.cause}
	}
	return []error{ErrOutOfMemory}
}
