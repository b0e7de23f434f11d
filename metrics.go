package gpucore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; a
// Prometheus implementation ships in this package.
type MetricsCollector interface {
	// RecordAlloc is called after each allocation attempt.
	// size is the requested size in bytes, err is nil if successful.
	RecordAlloc(space MemorySpace, typ AllocType, size int64, duration time.Duration, err error)

	// RecordDealloc is called after each deallocation.
	RecordDealloc(space MemorySpace, size int64)

	// RecordStreamSync is called after each default-stream synchronization.
	RecordStreamSync(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAlloc(MemorySpace, AllocType, int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordDealloc(MemorySpace, int64)                                {}
func (NoopMetricsCollector) RecordStreamSync(time.Duration, error)                           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AllocCount      atomic.Int64
	AllocErrors     atomic.Int64
	AllocBytes      atomic.Int64
	AllocTotalNanos atomic.Int64
	TempOverflows   atomic.Int64
	DeallocCount    atomic.Int64
	DeallocBytes    atomic.Int64
	SyncCount       atomic.Int64
	SyncErrors      atomic.Int64
}

// RecordAlloc implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAlloc(space MemorySpace, typ AllocType, size int64, duration time.Duration, err error) {
	b.AllocCount.Add(1)
	b.AllocTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AllocErrors.Add(1)
		return
	}
	b.AllocBytes.Add(size)
	if typ == AllocTypeTemporaryMemoryOverflow {
		b.TempOverflows.Add(1)
	}
}

// RecordDealloc implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDealloc(space MemorySpace, size int64) {
	b.DeallocCount.Add(1)
	b.DeallocBytes.Add(size)
}

// RecordStreamSync implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStreamSync(duration time.Duration, err error) {
	b.SyncCount.Add(1)
	if err != nil {
		b.SyncErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AllocCount:    b.AllocCount.Load(),
		AllocErrors:   b.AllocErrors.Load(),
		AllocBytes:    b.AllocBytes.Load(),
		AllocAvgNanos: b.getAvgAllocNanos(),
		TempOverflows: b.TempOverflows.Load(),
		DeallocCount:  b.DeallocCount.Load(),
		DeallocBytes:  b.DeallocBytes.Load(),
		SyncCount:     b.SyncCount.Load(),
		SyncErrors:    b.SyncErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgAllocNanos() int64 {
	count := b.AllocCount.Load()
	if count == 0 {
		return 0
	}
	return b.AllocTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AllocCount    int64
	AllocErrors   int64
	AllocBytes    int64
	AllocAvgNanos int64
	TempOverflows int64
	DeallocCount  int64
	DeallocBytes  int64
	SyncCount     int64
	SyncErrors    int64
}
