package gpucore

import (
	"fmt"
	"unsafe"

	"github.com/hupe1980/gpucore/device"
)

// MemoryReservation is scoped, exclusive ownership of one device allocation.
//
// A reservation is returned to its owning Resources exactly once: either by
// an explicit Release (idempotent) or by the deferred Close. Ownership moves
// with TakeFrom; it is never duplicated, so reservations must not be copied
// by value once live.
//
// The zero value is an empty reservation; Release on it is a no-op.
type MemoryReservation struct {
	res    Resources
	dev    int
	stream *device.Stream
	data   []byte
}

// NewMemoryReservation binds an allocation to its owner. It is exported for
// Resources implementations; callers obtain reservations from
// AllocMemoryHandle.
func NewMemoryReservation(res Resources, dev int, stream *device.Stream, data []byte) *MemoryReservation {
	return &MemoryReservation{res: res, dev: dev, stream: stream, data: data}
}

// Valid reports whether the reservation currently owns an allocation.
func (r *MemoryReservation) Valid() bool {
	return r != nil && r.res != nil
}

// Data returns the owned buffer, or nil for an empty reservation.
func (r *MemoryReservation) Data() []byte {
	if r == nil {
		return nil
	}
	return r.data
}

// Size returns the owned buffer's size in bytes.
func (r *MemoryReservation) Size() int64 {
	if r == nil {
		return 0
	}
	return int64(len(r.data))
}

// Device returns the device the allocation lives on.
func (r *MemoryReservation) Device() int {
	if r == nil {
		return 0
	}
	return r.dev
}

// Stream returns the stream the allocation is ordered on.
func (r *MemoryReservation) Stream() *device.Stream {
	if r == nil {
		return nil
	}
	return r.stream
}

// Float32s views the buffer as float32 scores. The view aliases the
// reservation's memory and is valid only while the reservation is live.
func (r *MemoryReservation) Float32s() []float32 {
	if r == nil || len(r.data) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), len(r.data)/4)
}

// Uint32s views the buffer as uint32 indices. Same lifetime rules as
// Float32s.
func (r *MemoryReservation) Uint32s() []uint32 {
	if r == nil || len(r.data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&r.data[0])), len(r.data)/4)
}

// sameAllocation reports whether two reservations reference the identical
// live allocation: same owner, same device, same base pointer.
func sameAllocation(a, b *MemoryReservation) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	if a.res != b.res || a.dev != b.dev {
		return false
	}
	if len(a.data) == 0 || len(b.data) == 0 {
		return false
	}
	return &a.data[0] == &b.data[0]
}

// TakeFrom moves ownership from src into r, releasing whatever r held
// before. src is left empty.
//
// r and src referencing the identical live allocation means two owners
// exist for one allocation; that is an ownership-tracking bug in the caller
// and panics rather than double-freeing.
func (r *MemoryReservation) TakeFrom(src *MemoryReservation) {
	if r == src {
		return
	}

	if sameAllocation(r, src) {
		panic(fmt.Sprintf("gpucore: reservation double ownership: dev %d ptr %p", r.dev, &r.data[0]))
	}

	r.Release()

	r.res = src.res
	r.dev = src.dev
	r.stream = src.stream
	r.data = src.data

	src.res = nil
	src.dev = 0
	src.stream = nil
	src.data = nil
}

// Release returns the allocation to its owner and empties the reservation.
// Safe to call multiple times.
func (r *MemoryReservation) Release() {
	if !r.Valid() {
		return
	}

	// Dealloc failure here means the caller handed back memory the manager
	// does not know about; surface it loudly rather than leaking silently.
	if err := r.res.DeallocMemory(r.dev, r.data); err != nil {
		panic(fmt.Sprintf("gpucore: reservation release: %v", err))
	}

	r.res = nil
	r.dev = 0
	r.stream = nil
	r.data = nil
}

// Close releases the reservation. It exists so callers can defer the return
// path and never leak on early exits:
//
//	h, err := res.AllocMemoryHandle(req)
//	if err != nil { ... }
//	defer h.Close()
func (r *MemoryReservation) Close() error {
	r.Release()
	return nil
}
