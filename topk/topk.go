// Package topk implements parallel top-k selection over per-query score
// rows: reducing a row of N scores to its k smallest or largest values and
// their original positions without sorting the row.
//
// # Execution model
//
// Each row is processed by one block. A block is split into lanes; every
// lane strides across its slice of the row keeping a small fixed-depth
// insertion buffer in front of a bounded, direction-aware heap of capacity
// k. A running threshold (the k-th best seen) rejects hopeless candidates in
// O(1) before they touch the heap. Lane structures are then merged into one
// block-wide result of exactly k candidates. The only traffic outside the
// block is reading the input row and writing the k outputs.
//
// # Specializations
//
// Selection is tiered by maximum k: a request uses the smallest compiled
// tier covering its k, which fixes the lane fan-out and lane count for that
// tier. k beyond the largest tier is rejected, not handled generically.
//
// # Determinism
//
// Equal values are ordered by ascending original index. Repeated runs over
// identical input produce identical values and indices.
package topk

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Value is the set of score element types selection is compiled for.
type Value interface {
	~float32 | ~float64
}

// Direction chooses which extreme of the row survives.
type Direction int

const (
	// Smallest keeps the k smallest scores (distance-like metrics).
	Smallest Direction = iota
	// Largest keeps the k largest scores (similarity-like metrics).
	Largest
)

func (d Direction) String() string {
	switch d {
	case Smallest:
		return "Smallest"
	case Largest:
		return "Largest"
	default:
		return "Unknown"
	}
}

// NoIndex fills output index slots past the end of a short row (k > N).
const NoIndex = ^uint32(0)

var (
	// ErrKTooLarge is returned when k exceeds the largest compiled tier.
	ErrKTooLarge = errors.New("topk: k exceeds largest supported selection size")

	// ErrBadShape is returned when input or output buffer sizes disagree
	// with rows, cols and k.
	ErrBadShape = errors.New("topk: buffer size mismatch")
)

// Options control row-level behavior.
type Options struct {
	// Finalize sorts each row's output best-first. Without it only the
	// multiset of the k results is guaranteed, in the merge structure's
	// internal order.
	Finalize bool

	// Parallelism bounds concurrently processed rows. 0 means GOMAXPROCS.
	Parallelism int
}

// Option configures a selection call.
type Option func(*Options)

// WithFinalize controls best-first ordering of each row's output.
func WithFinalize(v bool) Option {
	return func(o *Options) {
		o.Finalize = v
	}
}

// WithParallelism bounds the number of rows processed concurrently.
func WithParallelism(n int) Option {
	return func(o *Options) {
		o.Parallelism = n
	}
}

func applyOptions(opts []Option) Options {
	o := Options{Finalize: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Parallelism <= 0 {
		o.Parallelism = runtime.GOMAXPROCS(0)
	}
	return o
}

// SelectRows reduces each of rows score rows of length cols to its k extreme
// values and their original positions. Row r's results land in
// outVals[r*k:(r+1)*k] and outIdx[r*k:(r+1)*k]. When k > cols, the first
// cols slots hold the whole row and the rest are padded with the direction's
// worst value and NoIndex.
//
// k == 0 and rows == 0 are no-ops. Rows execute in parallel; each row's
// selection is independent and shares no state with other rows.
func SelectRows[T Value](dir Direction, scores []T, rows, cols, k int, outVals []T, outIdx []uint32, opts ...Option) error {
	if rows < 0 || cols < 0 || k < 0 {
		return fmt.Errorf("%w: rows %d cols %d k %d", ErrBadShape, rows, cols, k)
	}
	if k > MaxK {
		return fmt.Errorf("%w: k %d > %d", ErrKTooLarge, k, MaxK)
	}
	if len(scores) < rows*cols {
		return fmt.Errorf("%w: scores %d < rows*cols %d", ErrBadShape, len(scores), rows*cols)
	}
	if k == 0 || rows == 0 {
		return nil
	}
	if len(outVals) < rows*k || len(outIdx) < rows*k {
		return fmt.Errorf("%w: outputs %d/%d < rows*k %d", ErrBadShape, len(outVals), len(outIdx), rows*k)
	}

	t, err := tierFor(k)
	if err != nil {
		return err
	}

	o := applyOptions(opts)

	if rows == 1 {
		selectRow(dir, scores[:cols], k, t, outVals[:k], outIdx[:k], o.Finalize)
		return nil
	}

	g := new(errgroup.Group)
	g.SetLimit(o.Parallelism)

	for r := 0; r < rows; r++ {
		r := r
		g.Go(func() error {
			row := scores[r*cols : (r+1)*cols]
			selectRow(dir, row, k, t, outVals[r*k:(r+1)*k], outIdx[r*k:(r+1)*k], o.Finalize)
			return nil
		})
	}

	return g.Wait()
}

// SelectMin returns the k smallest values of row and their positions,
// best-first. For k >= len(row) the whole row is returned in ascending
// order.
func SelectMin[T Value](row []T, k int, opts ...Option) ([]T, []uint32, error) {
	return selectOne(Smallest, row, k, opts)
}

// SelectMax returns the k largest values of row and their positions,
// best-first. For k >= len(row) the whole row is returned in descending
// order.
func SelectMax[T Value](row []T, k int, opts ...Option) ([]T, []uint32, error) {
	return selectOne(Largest, row, k, opts)
}

func selectOne[T Value](dir Direction, row []T, k int, opts []Option) ([]T, []uint32, error) {
	if k < 0 {
		return nil, nil, fmt.Errorf("%w: k %d", ErrBadShape, k)
	}
	if k > MaxK {
		return nil, nil, fmt.Errorf("%w: k %d > %d", ErrKTooLarge, k, MaxK)
	}

	effK := k
	if effK > len(row) {
		effK = len(row)
	}
	if effK == 0 {
		return nil, nil, nil
	}

	outVals := make([]T, k)
	outIdx := make([]uint32, k)
	if err := SelectRows(dir, row, 1, len(row), k, outVals, outIdx, opts...); err != nil {
		return nil, nil, err
	}

	return outVals[:effK], outIdx[:effK], nil
}

// worstValue is the padding for output slots past the end of a short row:
// the value no real candidate can be worse than.
func worstValue[T Value](dir Direction) T {
	if dir == Smallest {
		return T(math.Inf(1))
	}
	return T(math.Inf(-1))
}
