package device

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when GEMM operand shapes disagree.
var ErrShapeMismatch = errors.New("device: operand shape mismatch")

// BlasHandle is a per-device linear-algebra handle. Operations are enqueued
// on the handle's stream and execute asynchronously in stream order, so a
// handle follows whichever stream it is bound to at call time.
//
// A handle is not safe for concurrent use; share it the way the owning
// resource manager shares it, one handle per device behind the manager's
// lock.
type BlasHandle struct {
	device int
	stream *Stream
}

// NewBlasHandle creates a handle for the given device. The handle has no
// stream bound; bind one with SetStream before issuing operations.
func NewBlasHandle(deviceID int) (*BlasHandle, error) {
	if !Valid(deviceID) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDevice, deviceID)
	}
	return &BlasHandle{device: deviceID}, nil
}

// Device returns the device this handle belongs to.
func (h *BlasHandle) Device() int { return h.device }

// SetStream binds the stream subsequent operations execute on.
func (h *BlasHandle) SetStream(s *Stream) { h.stream = s }

// Stream returns the currently bound stream.
func (h *BlasHandle) Stream() *Stream { return h.stream }

// Sgemm enqueues C = alpha*A*B + beta*C for row-major float32 matrices,
// where A is m x k, B is k x n and C is m x n. The multiply runs on the
// bound stream; results are visible after the stream is synchronized.
func (h *BlasHandle) Sgemm(m, n, k int, alpha float32, a, b []float32, beta float32, c []float32) error {
	if h.stream == nil {
		return fmt.Errorf("device: blas handle for dev %d has no stream bound", h.device)
	}
	if len(a) < m*k || len(b) < k*n || len(c) < m*n {
		return fmt.Errorf("%w: a=%d (need %d) b=%d (need %d) c=%d (need %d)",
			ErrShapeMismatch, len(a), m*k, len(b), k*n, len(c), m*n)
	}

	return h.stream.Enqueue(func() error {
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				var sum float32
				for l := 0; l < k; l++ {
					sum += a[i*k+l] * b[l*n+j]
				}
				c[i*n+j] = alpha*sum + beta*c[i*n+j]
			}
		}
		return nil
	})
}
