package topk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBetterTieBreak(t *testing.T) {
	a := candidate[float32]{Val: 5, Index: 1}
	b := candidate[float32]{Val: 5, Index: 2}

	// Equal values: lower index wins in both directions.
	assert.True(t, better(Smallest, a, b))
	assert.False(t, better(Smallest, b, a))
	assert.True(t, better(Largest, a, b))
	assert.False(t, better(Largest, b, a))

	c := candidate[float32]{Val: 3, Index: 9}
	assert.True(t, better(Smallest, c, a))
	assert.False(t, better(Largest, c, a))
}

func TestWorseTieBreak(t *testing.T) {
	a := candidate[float32]{Val: 5, Index: 1}
	b := candidate[float32]{Val: 5, Index: 2}

	// Equal values: higher index is evicted first.
	assert.True(t, worse(Smallest, b, a))
	assert.False(t, worse(Smallest, a, b))
	assert.True(t, worse(Largest, b, a))
}

func TestBoundedHeapEviction(t *testing.T) {
	h := newBoundedHeap[float32](Smallest, 3)

	for i, v := range []float32{9, 4, 7, 1, 8, 2} {
		h.Push(candidate[float32]{Val: v, Index: uint32(i)})
	}

	require.Equal(t, 3, h.Len())
	require.True(t, h.Full())

	// Threshold is the worst kept, here the 3rd smallest.
	assert.Equal(t, float32(4), h.Threshold().Val)

	// Pop returns worst-first.
	assert.Equal(t, float32(4), h.Pop().Val)
	assert.Equal(t, float32(2), h.Pop().Val)
	assert.Equal(t, float32(1), h.Pop().Val)
	assert.Zero(t, h.Len())
}

func TestBoundedHeapEqualValueEviction(t *testing.T) {
	h := newBoundedHeap[float32](Largest, 2)

	h.Push(candidate[float32]{Val: 5, Index: 3})
	h.Push(candidate[float32]{Val: 5, Index: 1})

	// Same value, smaller index: must displace the larger index.
	h.Push(candidate[float32]{Val: 5, Index: 0})

	first := h.Pop()
	second := h.Pop()
	assert.Equal(t, uint32(1), first.Index)
	assert.Equal(t, uint32(0), second.Index)
}

func TestBoundedHeapRejectsWorse(t *testing.T) {
	h := newBoundedHeap[float64](Largest, 2)

	h.Push(candidate[float64]{Val: 10, Index: 0})
	h.Push(candidate[float64]{Val: 20, Index: 1})
	h.Push(candidate[float64]{Val: 5, Index: 2})

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, float64(10), h.Threshold().Val)
}
