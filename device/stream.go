package device

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrStreamClosed is returned when enqueueing on a closed stream.
	ErrStreamClosed = errors.New("device: stream closed")

	// ErrStreamFailed is returned when a stream has observed a work item
	// failure. A failed stream's execution state is no longer trustworthy;
	// the failure is terminal and never retried.
	ErrStreamFailed = errors.New("device: stream failed")
)

// Stream is an ordered queue of device work. Work items enqueued on the same
// stream execute in submission order; no ordering exists across streams
// unless the caller synchronizes explicitly.
//
// Enqueue never waits for the work to run. Sync blocks the calling goroutine
// until everything enqueued before it has completed.
//
// The first work item that returns an error poisons the stream: subsequent
// items are discarded and Sync reports the original failure.
type Stream struct {
	device int
	label  string

	mu     sync.Mutex
	work   chan streamItem
	closed bool

	failure atomic.Pointer[error]
	done    chan struct{}
}

type streamItem struct {
	fn      func() error
	barrier chan struct{}
}

// streamQueueDepth bounds enqueued-but-unexecuted work per stream.
const streamQueueDepth = 256

// NewStream creates a stream bound to the given device and starts its
// executor. The label is used only for diagnostics.
func NewStream(deviceID int, label string) (*Stream, error) {
	if !Valid(deviceID) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDevice, deviceID)
	}

	s := &Stream{
		device: deviceID,
		label:  label,
		work:   make(chan streamItem, streamQueueDepth),
		done:   make(chan struct{}),
	}

	go s.run()

	return s, nil
}

func (s *Stream) run() {
	defer close(s.done)

	for item := range s.work {
		// Barriers must always fire, even on a poisoned stream, or Sync
		// would deadlock.
		if item.barrier != nil {
			close(item.barrier)
			continue
		}

		if s.failure.Load() != nil {
			continue
		}

		if err := s.fn(item); err != nil {
			werr := fmt.Errorf("%w: %s: %w", ErrStreamFailed, s, err)
			s.failure.CompareAndSwap(nil, &werr)
		}
	}
}

func (s *Stream) fn(item streamItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in stream work: %v", r)
		}
	}()
	return item.fn()
}

// Device returns the ID of the device this stream belongs to.
func (s *Stream) Device() int { return s.device }

// Label returns the stream's diagnostic label.
func (s *Stream) Label() string { return s.label }

func (s *Stream) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s[dev %d %p]", s.label, s.device, s)
}

// Enqueue submits a work item for in-order execution. It returns after
// enqueueing without waiting for the work to run; fn's result is observed
// via Sync.
//
// The queue is bounded. When it is full, Enqueue blocks until the executor
// frees a slot, and it blocks holding the stream's lock, which stalls Sync
// and Close on the same stream until a slot frees. A work item must never
// enqueue onto its own stream: with a full queue that deadlocks.
func (s *Stream) Enqueue(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %s", ErrStreamClosed, s)
	}
	if err := s.Err(); err != nil {
		return err
	}

	s.work <- streamItem{fn: fn}

	return nil
}

// Sync blocks until all previously enqueued work has completed, then returns
// the stream's failure state (nil if healthy).
func (s *Stream) Sync() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		// Closed streams are already drained.
		return s.Err()
	}

	barrier := make(chan struct{})
	s.work <- streamItem{barrier: barrier}
	s.mu.Unlock()

	<-barrier

	return s.Err()
}

// Err returns the stream's terminal failure, or nil if the stream is healthy.
func (s *Stream) Err() error {
	if p := s.failure.Load(); p != nil {
		return *p
	}
	return nil
}

// Close drains the stream and stops its executor. It is idempotent and
// returns the stream's failure state.
func (s *Stream) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.work)
	}
	s.mu.Unlock()

	<-s.done

	return s.Err()
}
