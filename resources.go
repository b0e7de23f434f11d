package gpucore

import (
	"github.com/hupe1980/gpucore/device"
)

// Resources is the device-scoped resource manager every kernel draws memory
// and streams from. Concrete pooling policy lives behind this interface;
// StandardResources is the caching implementation, and alternative policies
// can be swapped in without touching callers.
//
// All allocations made through one instance must be freed through the same
// instance. Implementations must be safe for concurrent use from multiple
// goroutines driving different streams on the same device.
//
// Every operation except SyncDefaultStream is non-blocking with respect to
// device work.
type Resources interface {
	// Initialize prepares internal state for the given device (streams,
	// library handles, temporary arena). Allocation paths initialize
	// lazily; calling this up front moves the cost out of the first query.
	Initialize(deviceID int) error

	// AllocMemory satisfies the request and returns the buffer. A non-nil
	// error is the only failure signal; a nil error never carries a nil
	// buffer.
	AllocMemory(req AllocRequest) ([]byte, error)

	// DeallocMemory returns a buffer previously obtained from AllocMemory
	// on the given device. Each buffer is returned at most once; an unknown
	// buffer is an error.
	DeallocMemory(deviceID int, data []byte) error

	// AllocMemoryHandle composes AllocMemory into a scoped reservation.
	AllocMemoryHandle(req AllocRequest) (*MemoryReservation, error)

	// DefaultStream returns the device's default compute stream.
	DefaultStream(deviceID int) (*device.Stream, error)

	// AlternateStreams returns the device's bounded set of alternate
	// compute streams.
	AlternateStreams(deviceID int) ([]*device.Stream, error)

	// AsyncCopyStream returns the stream dedicated to asynchronous
	// host/device copies.
	AsyncCopyStream(deviceID int) (*device.Stream, error)

	// BlasHandle returns the device's linear-algebra handle.
	BlasHandle(deviceID int) (*device.BlasHandle, error)

	// SupportsBFloat16 reports whether the device can run bfloat16 kernels.
	SupportsBFloat16(deviceID int) (bool, error)

	// TempMemoryAvailable returns the remaining pooled temporary budget on
	// the device.
	TempMemoryAvailable(deviceID int) int64

	// SyncDefaultStream blocks until all work enqueued on the device's
	// default stream has completed. This is the interface's only blocking
	// primitive. A returned error is a device fault and is not retried.
	SyncDefaultStream(deviceID int) error
}

// Current-device conveniences. These mirror the explicit-device operations,
// resolving the active device implicitly.

// DefaultStreamCurrentDevice returns the current device's default stream.
func DefaultStreamCurrentDevice(r Resources) (*device.Stream, error) {
	return r.DefaultStream(device.Current())
}

// AlternateStreamsCurrentDevice returns the current device's alternate streams.
func AlternateStreamsCurrentDevice(r Resources) ([]*device.Stream, error) {
	return r.AlternateStreams(device.Current())
}

// AsyncCopyStreamCurrentDevice returns the current device's async copy stream.
func AsyncCopyStreamCurrentDevice(r Resources) (*device.Stream, error) {
	return r.AsyncCopyStream(device.Current())
}

// BlasHandleCurrentDevice returns the current device's linear-algebra handle.
func BlasHandleCurrentDevice(r Resources) (*device.BlasHandle, error) {
	return r.BlasHandle(device.Current())
}

// SupportsBFloat16CurrentDevice reports bfloat16 support on the current device.
func SupportsBFloat16CurrentDevice(r Resources) (bool, error) {
	return r.SupportsBFloat16(device.Current())
}

// TempMemoryAvailableCurrentDevice returns the current device's remaining
// temporary budget.
func TempMemoryAvailableCurrentDevice(r Resources) int64 {
	return r.TempMemoryAvailable(device.Current())
}

// SyncDefaultStreamCurrentDevice synchronizes the current device's default
// stream.
func SyncDefaultStreamCurrentDevice(r Resources) error {
	return r.SyncDefaultStream(device.Current())
}

// Provider hands out a shared Resources instance. Index logic never
// constructs a Resources directly; it goes through a Provider so several
// independent indexes on one device share one pool, one set of streams and
// one set of library handles.
//
// The returned instance must outlive every caller holding it.
type Provider interface {
	Resources() Resources
}

// ProviderFromInstance wraps a pre-constructed, shared Resources and returns
// it unchanged on every call.
type ProviderFromInstance struct {
	res Resources
}

// NewProviderFromInstance creates a Provider sharing the given instance.
func NewProviderFromInstance(res Resources) *ProviderFromInstance {
	return &ProviderFromInstance{res: res}
}

// Resources implements Provider.
func (p *ProviderFromInstance) Resources() Resources {
	return p.res
}
