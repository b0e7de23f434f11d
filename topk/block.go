package topk

import "sync"

// laneParallelMinCols is the row length below which lane goroutines cost
// more than they save and the block runs a single lane.
const laneParallelMinCols = 4096

// laneQueue is one lane's selection state: a fan-out insertion buffer in
// front of a bounded heap of capacity k. The buffer batches heap pushes and
// the heap's threshold rejects hopeless candidates in O(1).
type laneQueue[T Value] struct {
	dir  Direction
	buf  []candidate[T]
	heap *boundedHeap[T]
}

func newLaneQueue[T Value](dir Direction, k, fanOut int) *laneQueue[T] {
	return &laneQueue[T]{
		dir:  dir,
		buf:  make([]candidate[T], 0, fanOut),
		heap: newBoundedHeap[T](dir, k),
	}
}

func (q *laneQueue[T]) offer(c candidate[T]) {
	// Threshold reject: once the heap holds k candidates, anything not
	// beating the k-th best cannot appear in the final result.
	if q.heap.Full() && !better(q.dir, c, q.heap.Threshold()) {
		return
	}

	q.buf = append(q.buf, c)
	if len(q.buf) == cap(q.buf) {
		q.flush()
	}
}

func (q *laneQueue[T]) flush() {
	for _, c := range q.buf {
		q.heap.Push(c)
	}
	q.buf = q.buf[:0]
}

// scan runs the lane over its slice of the row. base is the slice's offset
// within the row, preserving original indices.
func (q *laneQueue[T]) scan(row []T, base int) {
	for i, v := range row {
		q.offer(candidate[T]{Val: v, Index: uint32(base + i)})
	}
	q.flush()
}

// selectRow reduces one row to its k extremes. outVals and outIdx are
// exactly k long; slots past min(k, len(row)) are padded with the
// direction's worst value and NoIndex.
func selectRow[T Value](dir Direction, row []T, k int, t tier, outVals []T, outIdx []uint32, finalize bool) {
	lanes := t.lanes
	if len(row) < laneParallelMinCols {
		lanes = 1
	}

	queues := make([]*laneQueue[T], lanes)

	if lanes == 1 {
		queues[0] = newLaneQueue[T](dir, k, t.fanOut)
		queues[0].scan(row, 0)
	} else {
		// Contiguous stripes keep per-lane index order deterministic.
		stripe := (len(row) + lanes - 1) / lanes

		var wg sync.WaitGroup
		for l := 0; l < lanes; l++ {
			start := l * stripe
			end := start + stripe
			if end > len(row) {
				end = len(row)
			}

			queues[l] = newLaneQueue[T](dir, k, t.fanOut)

			wg.Add(1)
			go func(q *laneQueue[T], start, end int) {
				defer wg.Done()
				q.scan(row[start:end], start)
			}(queues[l], start, end)
		}
		wg.Wait()
	}

	// Block-wide merge of the per-lane structures. Lane order is fixed and
	// the comparator is a total order, so the surviving k candidates are
	// uniquely determined by the input.
	merged := queues[0].heap
	for _, q := range queues[1:] {
		for _, c := range q.heap.Items() {
			merged.Push(c)
		}
	}

	emit(dir, merged, k, outVals, outIdx, finalize)
}

func emit[T Value](dir Direction, h *boundedHeap[T], k int, outVals []T, outIdx []uint32, finalize bool) {
	n := h.Len()

	if finalize {
		// Pop worst-first, fill back-to-front: best ends up first.
		for i := n - 1; i >= 0; i-- {
			c := h.Pop()
			outVals[i] = c.Val
			outIdx[i] = c.Index
		}
	} else {
		for i, c := range h.Items() {
			outVals[i] = c.Val
			outIdx[i] = c.Index
		}
	}

	for i := n; i < k; i++ {
		outVals[i] = worstValue[T](dir)
		outIdx[i] = NoIndex
	}
}
