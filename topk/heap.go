package topk

// candidate is one (value, original index) pair moving through selection.
type candidate[T Value] struct {
	Val   T
	Index uint32
}

// better reports whether a beats b under the direction.
// Tie-breaker is ascending original index for determinism.
func better[T Value](dir Direction, a, b candidate[T]) bool {
	if a.Val != b.Val {
		if dir == Smallest {
			return a.Val < b.Val
		}
		return a.Val > b.Val
	}
	return a.Index < b.Index
}

// worse reports whether a loses to b under the direction.
// Tie-breaker is descending original index, so among equal values the
// largest index is evicted first.
func worse[T Value](dir Direction, a, b candidate[T]) bool {
	if a.Val != b.Val {
		if dir == Smallest {
			return a.Val > b.Val
		}
		return a.Val < b.Val
	}
	return a.Index > b.Index
}

// boundedHeap keeps the best capacity candidates seen so far. It is ordered
// worst-first so the top element is both the eviction candidate and the
// selection threshold.
type boundedHeap[T Value] struct {
	dir      Direction
	capacity int
	items    []candidate[T]
}

func newBoundedHeap[T Value](dir Direction, capacity int) *boundedHeap[T] {
	return &boundedHeap[T]{
		dir:      dir,
		capacity: capacity,
		items:    make([]candidate[T], 0, capacity),
	}
}

func (h *boundedHeap[T]) Len() int { return len(h.items) }

func (h *boundedHeap[T]) Full() bool { return len(h.items) >= h.capacity }

// Threshold returns the current k-th best candidate. Only meaningful once
// the heap is full - callers check Full() first.
func (h *boundedHeap[T]) Threshold() candidate[T] {
	return h.items[0]
}

// Push inserts a candidate, evicting the worst kept one when at capacity.
func (h *boundedHeap[T]) Push(c candidate[T]) {
	if len(h.items) < h.capacity {
		h.items = append(h.items, c)
		h.up(len(h.items) - 1)
		return
	}

	// Full: the new candidate must beat the threshold to displace it.
	if worse(h.dir, h.items[0], c) {
		h.items[0] = c
		h.down(0)
	}
}

// Pop removes and returns the worst kept candidate.
func (h *boundedHeap[T]) Pop() candidate[T] {
	n := len(h.items)
	c := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.down(0)
	}
	return c
}

// Items exposes the heap's internal order for non-finalized output.
func (h *boundedHeap[T]) Items() []candidate[T] { return h.items }

func (h *boundedHeap[T]) less(i, j int) bool {
	return worse(h.dir, h.items[i], h.items[j])
}

func (h *boundedHeap[T]) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *boundedHeap[T]) down(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && h.less(right, left) {
			child = right
		}
		if !h.less(child, i) {
			break
		}
		h.items[i], h.items[child] = h.items[child], h.items[i]
		i = child
	}
}
