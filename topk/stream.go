package topk

import (
	"github.com/hupe1980/gpucore/device"
)

// SelectRowsOnStream enqueues the selection on a stream instead of running
// it inline. The selection executes after all previously submitted work on
// the stream, so a distance kernel writing scores on the same stream is
// ordered before it without explicit synchronization.
//
// The returned error covers enqueueing only; the selection's outcome is
// observed by synchronizing the stream. Callers typically pass buffers
// viewed from reservations owned by the same stream:
//
//	scores := scratch.Float32s()
//	vals := valBuf.Float32s()
//	idx := idxBuf.Uint32s()
//	err := topk.SelectRowsOnStream(stream, topk.Smallest, scores, rows, cols, k, vals, idx)
func SelectRowsOnStream[T Value](st *device.Stream, dir Direction, scores []T, rows, cols, k int, outVals []T, outIdx []uint32, opts ...Option) error {
	return st.Enqueue(func() error {
		return SelectRows(dir, scores, rows, cols, k, outVals, outIdx, opts...)
	})
}
