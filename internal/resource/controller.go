// Package resource enforces per-device limits: a hard budget on outstanding
// device memory and an optional throughput cap on the async copy path.
package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the
// device memory budget.
var ErrMemoryLimitExceeded = errors.New("resource: device memory limit exceeded")

// Config holds per-device resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for outstanding device memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// CopyLimitBytesPerSec caps async copy throughput.
	// If 0, unlimited.
	CopyLimitBytesPerSec int64
}

// Controller tracks and limits one device's memory and copy bandwidth.
type Controller struct {
	cfg Config

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// Copy bandwidth. Swappable at runtime, nil if unlimited.
	copyLimiter atomic.Pointer[rate.Limiter]
}

// NewController creates a controller for one device.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	c.SetCopyRate(cfg.CopyLimitBytesPerSec)

	return c
}

// SetCopyRate replaces the copy throughput cap. 0 removes the cap. Copies
// already admitted are unaffected.
func (c *Controller) SetCopyRate(bytesPerSec int64) {
	if c == nil {
		return
	}

	if bytesPerSec > 0 {
		c.copyLimiter.Store(rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec)))
	} else {
		c.copyLimiter.Store(nil)
	}
}

// AcquireMemory attempts to reserve device memory.
// Returns ErrMemoryLimitExceeded if the budget would be exceeded.
// Non-blocking - the allocation path never waits on device work.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory returns reserved device memory to the budget.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the outstanding device memory in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured budget in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireCopy waits until the copy throughput cap admits the given
// transfer size. Transfers larger than the limiter's burst are admitted in
// burst-sized chunks, so a large copy is throttled rather than rejected.
func (c *Controller) AcquireCopy(ctx context.Context, bytes int) error {
	if c == nil {
		return nil
	}
	lim := c.copyLimiter.Load()
	if lim == nil {
		return nil
	}

	burst := lim.Burst()
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := lim.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// TryAcquireCopy attempts to admit a transfer without blocking.
func (c *Controller) TryAcquireCopy(bytes int) bool {
	if c == nil {
		return true
	}
	lim := c.copyLimiter.Load()
	if lim == nil {
		return true
	}
	return lim.AllowN(time.Now(), bytes)
}
