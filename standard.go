package gpucore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/gpucore/device"
	"github.com/hupe1980/gpucore/internal/mmap"
	"github.com/hupe1980/gpucore/internal/resource"
	"github.com/hupe1980/gpucore/internal/stackmem"
)

const (
	// allocAlignment is the granularity every allocation is rounded to.
	allocAlignment = 16

	// numAlternateStreams is the per-device alternate stream count.
	numAlternateStreams = 2

	// maxDefaultTempMemory caps the default temporary arena at 1.5 GiB.
	maxDefaultTempMemory = 3 << 29
)

// Compile time check to ensure StandardResources satisfies Resources.
var _ Resources = (*StandardResources)(nil)

// allocation is one live allocation tracked by the manager.
type allocation struct {
	req   AllocRequest // Space/Type as actually placed (overflow retagged)
	data  []byte       // The buffer handed to the caller
	arena []byte       // Full aligned arena slice, nil for direct allocations
	mm    *mmap.Mapping
	size  int64 // Aligned size charged against the budget
}

// deviceState is everything StandardResources holds per device.
type deviceState struct {
	defaultStream     *device.Stream
	userDefaultStream *device.Stream
	altStreams        []*device.Stream
	asyncCopyStream   *device.Stream
	blas              *device.BlasHandle
	tempMem           *stackmem.Stack
	ctrl              *resource.Controller
	allocs            map[*byte]allocation
}

// StandardResources is the caching Resources implementation: per-device
// streams and library handles created once and shared, and a pooled
// temporary arena that serves scratch allocations without a round-trip
// through the system allocator.
//
// All methods are safe for concurrent use. Only SyncDefaultStream blocks on
// device work.
type StandardResources struct {
	mu      sync.Mutex
	cfg     Config
	log     *Logger
	metrics MetricsCollector
	devs    map[int]*deviceState
	closed  bool
}

// StandardOption configures StandardResources.
type StandardOption func(*StandardResources)

// WithConfig sets the full configuration.
func WithConfig(cfg Config) StandardOption {
	return func(s *StandardResources) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger. Nil selects the no-op logger.
func WithLogger(log *Logger) StandardOption {
	return func(s *StandardResources) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetricsCollector sets the metrics collector. Nil selects no-op.
func WithMetricsCollector(mc MetricsCollector) StandardOption {
	return func(s *StandardResources) {
		if mc != nil {
			s.metrics = mc
		}
	}
}

// WithTempMemory overrides the temporary arena size in bytes.
func WithTempMemory(bytes int64) StandardOption {
	return func(s *StandardResources) {
		s.cfg.TempMemoryBytes = bytes
	}
}

// NewStandardResources creates a resource manager with default settings:
// temporary arena sized to min(1.5 GiB, 1/4 of device memory), no hard
// memory limit beyond device capacity, no copy throttle.
func NewStandardResources(opts ...StandardOption) *StandardResources {
	s := &StandardResources{
		cfg:     Config{TempMemoryBytes: -1},
		log:     NoopLogger(),
		metrics: NoopMetricsCollector{},
		devs:    make(map[int]*deviceState),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func alignUp(n int64) int64 {
	return (n + allocAlignment - 1) &^ (allocAlignment - 1)
}

// defaultTempMemory returns the arena size for a device given its capacity.
func defaultTempMemory(totalMemory int64) int64 {
	size := totalMemory / 4
	if size > maxDefaultTempMemory {
		size = maxDefaultTempMemory
	}
	return size
}

// state returns (building if needed) the per-device state. Caller holds s.mu.
func (s *StandardResources) state(deviceID int) (*deviceState, error) {
	if s.closed {
		return nil, ErrClosed
	}

	if st, ok := s.devs[deviceID]; ok {
		return st, nil
	}

	dev, err := device.Get(deviceID)
	if err != nil {
		return nil, err
	}
	props := dev.Properties()

	limit := s.cfg.MemoryLimitBytes
	if limit <= 0 || limit > props.TotalMemory {
		limit = props.TotalMemory
	}

	ctrl := resource.NewController(resource.Config{
		MemoryLimitBytes:     limit,
		CopyLimitBytesPerSec: s.cfg.AsyncCopyBytesPerSec,
	})

	tempSize := s.cfg.TempMemoryBytes
	if tempSize < 0 {
		tempSize = defaultTempMemory(props.TotalMemory)
	}

	// The arena itself is device memory; charge it against the budget.
	if err := ctrl.AcquireMemory(tempSize); err != nil {
		return nil, fmt.Errorf("reserving %d bytes of temporary memory on dev %d: %w", tempSize, deviceID, err)
	}

	tempMem, err := stackmem.New(tempSize)
	if err != nil {
		ctrl.ReleaseMemory(tempSize)
		return nil, err
	}

	st := &deviceState{
		tempMem: tempMem,
		ctrl:    ctrl,
		allocs:  make(map[*byte]allocation),
	}

	cleanup := func() {
		for _, alt := range st.altStreams {
			_ = alt.Close()
		}
		if st.asyncCopyStream != nil {
			_ = st.asyncCopyStream.Close()
		}
		if st.defaultStream != nil {
			_ = st.defaultStream.Close()
		}
		_ = tempMem.Close()
		ctrl.ReleaseMemory(tempSize)
	}

	if st.defaultStream, err = device.NewStream(deviceID, "default"); err != nil {
		cleanup()
		return nil, err
	}
	for i := 0; i < numAlternateStreams; i++ {
		alt, err := device.NewStream(deviceID, fmt.Sprintf("alt%d", i))
		if err != nil {
			cleanup()
			return nil, err
		}
		st.altStreams = append(st.altStreams, alt)
	}
	if st.asyncCopyStream, err = device.NewStream(deviceID, "copy"); err != nil {
		cleanup()
		return nil, err
	}
	if st.blas, err = device.NewBlasHandle(deviceID); err != nil {
		cleanup()
		return nil, err
	}
	st.blas.SetStream(st.defaultStream)

	s.devs[deviceID] = st

	s.log.DebugContext(context.Background(), "device initialized",
		"device", deviceID,
		"name", props.Name,
		"temp_memory", tempSize,
		"memory_limit", limit,
	)

	return st, nil
}

// Initialize implements Resources.
func (s *StandardResources) Initialize(deviceID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.state(deviceID)
	return err
}

// AllocMemory implements Resources.
func (s *StandardResources) AllocMemory(req AllocRequest) ([]byte, error) {
	start := time.Now()

	data, placed, err := s.allocMemory(req)

	s.metrics.RecordAlloc(placed.Space, placed.Type, placed.Size, time.Since(start), err)
	if err != nil || s.cfg.LogAllocations {
		s.log.LogAlloc(context.Background(), placed, err)
	}

	return data, err
}

// allocMemory returns the buffer plus the request as actually placed, which
// differs from req when a temporary request overflows the arena.
func (s *StandardResources) allocMemory(req AllocRequest) ([]byte, AllocRequest, error) {
	if req.Size <= 0 {
		return nil, req, fmt.Errorf("%w: %s", ErrInvalidSize, req)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(req.Device)
	if err != nil {
		return nil, req, err
	}

	if req.Space == MemorySpaceTemporary {
		if arena, ok := st.tempMem.Alloc(req.Size); ok {
			data := arena[:req.Size:req.Size]
			st.allocs[&data[0]] = allocation{req: req, data: data, arena: arena}
			return data, req, nil
		}

		// Arena exhausted (or the request alone exceeds it): fall back to a
		// direct device allocation, retagged so accounting shows the
		// overflow.
		req.Space = MemorySpaceDevice
		req.Type = AllocTypeTemporaryMemoryOverflow
	}

	data, a, err := s.allocDirect(st, req)
	if err != nil {
		return nil, req, err
	}
	st.allocs[&data[0]] = a

	return data, req, nil
}

func (s *StandardResources) allocDirect(st *deviceState, req AllocRequest) ([]byte, allocation, error) {
	aligned := alignUp(req.Size)

	if err := st.ctrl.AcquireMemory(aligned); err != nil {
		return nil, allocation{}, s.allocError(st, req, err)
	}

	m, err := mmap.MapAnon(int(aligned))
	if err != nil {
		st.ctrl.ReleaseMemory(aligned)
		return nil, allocation{}, s.allocError(st, req, err)
	}

	data := m.Bytes()[:req.Size:req.Size]

	return data, allocation{req: req, data: data, mm: m, size: aligned}, nil
}

// allocError builds the diagnostic OOM error. Caller holds s.mu.
func (s *StandardResources) allocError(st *deviceState, req AllocRequest, cause error) error {
	return &AllocError{
		Req:       req,
		Available: st.tempMem.Available(),
		State:     s.memoryStateLocked(),
		cause:     cause,
	}
}

// memoryStateLocked renders all outstanding allocations. Caller holds s.mu.
func (s *StandardResources) memoryStateLocked() string {
	var b strings.Builder

	devIDs := make([]int, 0, len(s.devs))
	for id := range s.devs {
		devIDs = append(devIDs, id)
	}
	sort.Ints(devIDs)

	for _, id := range devIDs {
		st := s.devs[id]

		reqs := make([]AllocRequest, 0, len(st.allocs))
		var total int64
		for _, a := range st.allocs {
			reqs = append(reqs, a.req)
			total += a.req.Size
		}
		sort.Slice(reqs, func(i, j int) bool { return reqs[i].Size > reqs[j].Size })

		fmt.Fprintf(&b, "  dev %d: %d allocations, %d bytes outstanding, %d bytes budget used\n",
			id, len(reqs), total, st.ctrl.MemoryUsage())
		for _, r := range reqs {
			fmt.Fprintf(&b, "    %s\n", r)
		}
	}

	return b.String()
}

// DeallocMemory implements Resources.
func (s *StandardResources) DeallocMemory(deviceID int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	st, ok := s.devs[deviceID]
	if !ok || len(data) == 0 {
		return fmt.Errorf("%w: dev %d", ErrUnknownAllocation, deviceID)
	}

	key := &data[0]
	a, ok := st.allocs[key]
	if !ok {
		return fmt.Errorf("%w: dev %d ptr %p", ErrUnknownAllocation, deviceID, key)
	}

	if a.arena != nil {
		if err := st.tempMem.Return(a.arena); err != nil {
			return fmt.Errorf("returning temporary allocation %s: %w", a.req, err)
		}
	} else {
		if err := a.mm.Close(); err != nil {
			return fmt.Errorf("freeing allocation %s: %w", a.req, err)
		}
		st.ctrl.ReleaseMemory(a.size)
	}

	delete(st.allocs, key)

	s.metrics.RecordDealloc(a.req.Space, a.req.Size)
	if s.cfg.LogAllocations {
		s.log.LogDealloc(context.Background(), deviceID, a.req.Size, nil)
	}

	return nil
}

// AllocMemoryHandle implements Resources.
func (s *StandardResources) AllocMemoryHandle(req AllocRequest) (*MemoryReservation, error) {
	data, err := s.AllocMemory(req)
	if err != nil {
		return nil, err
	}
	return NewMemoryReservation(s, req.Device, req.Stream, data), nil
}

// DefaultStream implements Resources. A user-set stream (SetDefaultStream)
// takes precedence over the manager's own.
func (s *StandardResources) DefaultStream(deviceID int) (*device.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(deviceID)
	if err != nil {
		return nil, err
	}
	if st.userDefaultStream != nil {
		return st.userDefaultStream, nil
	}
	return st.defaultStream, nil
}

// SetDefaultStream makes all subsequent default-stream work on the device
// use the caller's stream. The caller retains ownership of the stream.
func (s *StandardResources) SetDefaultStream(deviceID int, stream *device.Stream) error {
	if stream != nil && stream.Device() != deviceID {
		return fmt.Errorf("%w: stream belongs to dev %d, not dev %d",
			device.ErrInvalidDevice, stream.Device(), deviceID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(deviceID)
	if err != nil {
		return err
	}
	st.userDefaultStream = stream
	return nil
}

// RevertDefaultStream restores the manager's own default stream.
func (s *StandardResources) RevertDefaultStream(deviceID int) error {
	return s.SetDefaultStream(deviceID, nil)
}

// AlternateStreams implements Resources.
func (s *StandardResources) AlternateStreams(deviceID int) ([]*device.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(deviceID)
	if err != nil {
		return nil, err
	}

	out := make([]*device.Stream, len(st.altStreams))
	copy(out, st.altStreams)
	return out, nil
}

// AsyncCopyStream implements Resources.
func (s *StandardResources) AsyncCopyStream(deviceID int) (*device.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(deviceID)
	if err != nil {
		return nil, err
	}
	return st.asyncCopyStream, nil
}

// BlasHandle implements Resources.
func (s *StandardResources) BlasHandle(deviceID int) (*device.BlasHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(deviceID)
	if err != nil {
		return nil, err
	}
	return st.blas, nil
}

// SupportsBFloat16 implements Resources.
func (s *StandardResources) SupportsBFloat16(deviceID int) (bool, error) {
	dev, err := device.Get(deviceID)
	if err != nil {
		return false, err
	}
	return dev.Properties().BFloat16, nil
}

// TempMemoryAvailable implements Resources. Unknown devices report 0.
func (s *StandardResources) TempMemoryAvailable(deviceID int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(deviceID)
	if err != nil {
		return 0
	}
	return st.tempMem.Available()
}

// TempMemoryHighWater returns the arena's usage high-water mark, the basis
// for right-sizing SetTempMemory.
func (s *StandardResources) TempMemoryHighWater(deviceID int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.state(deviceID)
	if err != nil {
		return 0
	}
	return st.tempMem.Stats().HighWater
}

// SyncDefaultStream implements Resources.
func (s *StandardResources) SyncDefaultStream(deviceID int) error {
	stream, err := s.DefaultStream(deviceID)
	if err != nil {
		return err
	}

	start := time.Now()
	err = stream.Sync()
	s.metrics.RecordStreamSync(time.Since(start), err)
	s.log.LogStreamSync(context.Background(), deviceID, err)

	return err
}

// SetTempMemory resizes the temporary arena on all initialized devices and
// sets the size used for devices initialized later. Resizing fails while
// temporary allocations are outstanding.
func (s *StandardResources) SetTempMemory(bytes int64) error {
	if bytes < 0 {
		bytes = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	for id, st := range s.devs {
		if st.tempMem.Stats().Used > 0 {
			return fmt.Errorf("dev %d: temporary allocations outstanding, cannot resize arena", id)
		}
	}

	for id, st := range s.devs {
		oldSize := st.tempMem.Stats().Size

		newMem, err := stackmem.New(bytes)
		if err != nil {
			return fmt.Errorf("dev %d: %w", id, err)
		}

		st.ctrl.ReleaseMemory(oldSize)
		if err := st.ctrl.AcquireMemory(bytes); err != nil {
			_ = newMem.Close()
			// Restore the old reservation; the old arena is still intact.
			_ = st.ctrl.AcquireMemory(oldSize)
			return fmt.Errorf("dev %d: %w", id, err)
		}

		_ = st.tempMem.Close()
		st.tempMem = newMem
	}

	s.cfg.TempMemoryBytes = bytes
	return nil
}

// SetAsyncCopyRate replaces the async copy throttle on all initialized
// devices and on devices initialized later. 0 removes the throttle.
func (s *StandardResources) SetAsyncCopyRate(bytesPerSec int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.AsyncCopyBytesPerSec = bytesPerSec
	for _, st := range s.devs {
		st.ctrl.SetCopyRate(bytesPerSec)
	}
}

// SetLogMemoryAllocations toggles per-allocation logging.
func (s *StandardResources) SetLogMemoryAllocations(enable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.LogAllocations = enable
}

// CopyToDevice enqueues an asynchronous host-to-device copy of src into dst
// on the device's dedicated copy stream, honoring the configured copy
// throttle. Completion is observed by synchronizing the copy stream.
func (s *StandardResources) CopyToDevice(ctx context.Context, deviceID int, dst, src []byte) error {
	return s.asyncCopy(ctx, deviceID, dst, src)
}

// CopyFromDevice enqueues an asynchronous device-to-host copy.
func (s *StandardResources) CopyFromDevice(ctx context.Context, deviceID int, dst, src []byte) error {
	return s.asyncCopy(ctx, deviceID, dst, src)
}

func (s *StandardResources) asyncCopy(ctx context.Context, deviceID int, dst, src []byte) error {
	if len(dst) < len(src) {
		return fmt.Errorf("copy destination too small: %d < %d", len(dst), len(src))
	}

	s.mu.Lock()
	st, err := s.state(deviceID)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	// Throttle before enqueueing so stream order reflects admitted order.
	if err := st.ctrl.AcquireCopy(ctx, len(src)); err != nil {
		return err
	}

	return st.asyncCopyStream.Enqueue(func() error {
		copy(dst, src)
		return nil
	})
}

// MemoryInfo returns the outstanding allocations per device, largest first.
func (s *StandardResources) MemoryInfo() map[int][]AllocRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int][]AllocRequest, len(s.devs))
	for id, st := range s.devs {
		reqs := make([]AllocRequest, 0, len(st.allocs))
		for _, a := range st.allocs {
			reqs = append(reqs, a.req)
		}
		sort.Slice(reqs, func(i, j int) bool { return reqs[i].Size > reqs[j].Size })
		out[id] = reqs
	}
	return out
}

// Close synchronizes and shuts down all streams, frees any allocations the
// caller leaked, and releases the temporary arenas. The instance is unusable
// afterwards.
func (s *StandardResources) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error

	for id, st := range s.devs {
		if n := len(st.allocs); n > 0 {
			s.log.Warn("closing with outstanding allocations", "device", id, "count", n)
		}

		for key, a := range st.allocs {
			if a.mm != nil {
				_ = a.mm.Close()
				st.ctrl.ReleaseMemory(a.size)
			}
			delete(st.allocs, key)
		}

		streams := append([]*device.Stream{st.defaultStream, st.asyncCopyStream}, st.altStreams...)
		for _, stream := range streams {
			if err := stream.Close(); err != nil {
				errs = append(errs, fmt.Errorf("dev %d: %w", id, err))
			}
		}

		if err := st.tempMem.Close(); err != nil {
			errs = append(errs, fmt.Errorf("dev %d: %w", id, err))
		}
	}

	return errors.Join(errs...)
}
