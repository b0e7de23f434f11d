package gpucore

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBasicMetricsCollector(t *testing.T) {
	c := &BasicMetricsCollector{}

	c.RecordAlloc(MemorySpaceTemporary, AllocTypeTemporaryMemoryBuffer, 1024, time.Millisecond, nil)
	c.RecordAlloc(MemorySpaceDevice, AllocTypeTemporaryMemoryOverflow, 2048, time.Millisecond, nil)
	c.RecordAlloc(MemorySpaceDevice, AllocTypeFlatData, 512, time.Millisecond, errors.New("boom"))
	c.RecordDealloc(MemorySpaceTemporary, 1024)
	c.RecordStreamSync(time.Millisecond, nil)
	c.RecordStreamSync(time.Millisecond, errors.New("fault"))

	stats := c.GetStats()
	assert.Equal(t, int64(3), stats.AllocCount)
	assert.Equal(t, int64(1), stats.AllocErrors)
	assert.Equal(t, int64(3072), stats.AllocBytes)
	assert.Equal(t, int64(1), stats.TempOverflows)
	assert.Equal(t, int64(1), stats.DeallocCount)
	assert.Equal(t, int64(1024), stats.DeallocBytes)
	assert.Equal(t, int64(2), stats.SyncCount)
	assert.Equal(t, int64(1), stats.SyncErrors)
	assert.NotZero(t, stats.AllocAvgNanos)
}

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.RecordAlloc(MemorySpaceTemporary, AllocTypeTemporaryMemoryBuffer, 1024, time.Millisecond, nil)
	c.RecordAlloc(MemorySpaceTemporary, AllocTypeTemporaryMemoryBuffer, 512, time.Millisecond, errors.New("boom"))
	c.RecordDealloc(MemorySpaceTemporary, 1024)
	c.RecordStreamSync(time.Millisecond, nil)

	labels := prometheus.Labels{"space": "Temporary", "type": "TemporaryMemoryBuffer"}
	assert.Equal(t, float64(2), testutil.ToFloat64(c.allocTotal.With(labels)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.allocErrors.With(labels)))
	assert.Equal(t, float64(1024), testutil.ToFloat64(c.allocBytes.With(labels)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.deallocTotal.With(prometheus.Labels{"space": "Temporary"})))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.syncTotal))
}
