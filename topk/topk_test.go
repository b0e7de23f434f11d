package topk

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referenceSelect is the oracle: full sort by (value, ascending index), take k.
func referenceSelect[T Value](dir Direction, row []T, k int) ([]T, []uint32) {
	cands := make([]candidate[T], len(row))
	for i, v := range row {
		cands[i] = candidate[T]{Val: v, Index: uint32(i)}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return better(dir, cands[i], cands[j])
	})

	if k > len(cands) {
		k = len(cands)
	}

	vals := make([]T, k)
	idx := make([]uint32, k)
	for i := 0; i < k; i++ {
		vals[i] = cands[i].Val
		idx[i] = cands[i].Index
	}
	return vals, idx
}

func TestSelectMaxKnownRow(t *testing.T) {
	row := []float32{5, 1, 9, 9, 3, 7}

	vals, idx, err := SelectMax(row, 3)
	require.NoError(t, err)

	assert.Equal(t, []float32{9, 9, 7}, vals)
	assert.Equal(t, []uint32{2, 3, 5}, idx)
}

func TestSelectMinKnownRow(t *testing.T) {
	row := []float64{5, 1, 9, 9, 3, 7}

	vals, idx, err := SelectMin(row, 3)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 3, 5}, vals)
	assert.Equal(t, []uint32{1, 4, 0}, idx)
}

func TestSelectAgainstReference(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, n := range []int{1, 7, 100, 1000, 5000} {
		for _, k := range []int{1, 3, 10, 32, 100} {
			row := make([]float32, n)
			for i := range row {
				// Coarse quantization forces plenty of value ties.
				row[i] = float32(rng.Intn(64))
			}

			for _, dir := range []Direction{Smallest, Largest} {
				wantVals, wantIdx := referenceSelect(dir, row, k)

				var vals []float32
				var idx []uint32
				var err error
				if dir == Smallest {
					vals, idx, err = SelectMin(row, k)
				} else {
					vals, idx, err = SelectMax(row, k)
				}
				require.NoError(t, err)

				assert.Equal(t, wantVals, vals, "dir %s n %d k %d", dir, n, k)
				assert.Equal(t, wantIdx, idx, "dir %s n %d k %d", dir, n, k)
			}
		}
	}
}

func TestSelectDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	row := make([]float32, 10000)
	for i := range row {
		row[i] = float32(rng.Intn(16))
	}

	firstVals, firstIdx, err := SelectMax(row, 64)
	require.NoError(t, err)

	for run := 0; run < 10; run++ {
		vals, idx, err := SelectMax(row, 64)
		require.NoError(t, err)
		require.Equal(t, firstVals, vals)
		require.Equal(t, firstIdx, idx)
	}
}

func TestSelectRowsMulti(t *testing.T) {
	const (
		rows = 8
		cols = 500
		k    = 10
	)

	rng := rand.New(rand.NewSource(1))
	scores := make([]float64, rows*cols)
	for i := range scores {
		scores[i] = rng.Float64()
	}

	outVals := make([]float64, rows*k)
	outIdx := make([]uint32, rows*k)
	require.NoError(t, SelectRows(Smallest, scores, rows, cols, k, outVals, outIdx))

	for r := 0; r < rows; r++ {
		wantVals, wantIdx := referenceSelect(Smallest, scores[r*cols:(r+1)*cols], k)
		assert.Equal(t, wantVals, outVals[r*k:(r+1)*k], "row %d", r)
		assert.Equal(t, wantIdx, outIdx[r*k:(r+1)*k], "row %d", r)
	}
}

func TestSelectRowsPadding(t *testing.T) {
	scores := []float32{3, 1, 2}
	k := 5

	outVals := make([]float32, k)
	outIdx := make([]uint32, k)
	require.NoError(t, SelectRows(Smallest, scores, 1, 3, k, outVals, outIdx))

	assert.Equal(t, []float32{1, 2, 3}, outVals[:3])
	assert.Equal(t, []uint32{1, 2, 0}, outIdx[:3])
	for i := 3; i < k; i++ {
		assert.True(t, math.IsInf(float64(outVals[i]), 1))
		assert.Equal(t, NoIndex, outIdx[i])
	}

	// Largest pads with -Inf.
	require.NoError(t, SelectRows(Largest, scores, 1, 3, k, outVals, outIdx))
	assert.Equal(t, []float32{3, 2, 1}, outVals[:3])
	for i := 3; i < k; i++ {
		assert.True(t, math.IsInf(float64(outVals[i]), -1))
		assert.Equal(t, NoIndex, outIdx[i])
	}
}

func TestSelectKLargerThanRow(t *testing.T) {
	vals, idx, err := SelectMax([]float32{2, 8}, 4)
	require.NoError(t, err)

	// Trimmed to the row length, best-first.
	assert.Equal(t, []float32{8, 2}, vals)
	assert.Equal(t, []uint32{1, 0}, idx)
}

func TestSelectEdgeCases(t *testing.T) {
	vals, idx, err := SelectMin([]float32{}, 3)
	require.NoError(t, err)
	assert.Nil(t, vals)
	assert.Nil(t, idx)

	vals, idx, err = SelectMin([]float32{1, 2}, 0)
	require.NoError(t, err)
	assert.Nil(t, vals)
	assert.Nil(t, idx)

	// rows == 0 and k == 0 are no-ops on SelectRows too.
	require.NoError(t, SelectRows[float32](Smallest, nil, 0, 10, 5, nil, nil))
	require.NoError(t, SelectRows(Smallest, []float32{1}, 1, 1, 0, nil, nil))
}

func TestSelectKTooLarge(t *testing.T) {
	_, _, err := SelectMin(make([]float32, 10), MaxK+1)
	assert.ErrorIs(t, err, ErrKTooLarge)

	err = SelectRows(Smallest, make([]float32, 10), 1, 10, MaxK+1, make([]float32, MaxK+1), make([]uint32, MaxK+1))
	assert.ErrorIs(t, err, ErrKTooLarge)
}

func TestSelectRowsBadShape(t *testing.T) {
	scores := make([]float32, 10)

	err := SelectRows(Smallest, scores, 2, 10, 3, make([]float32, 6), make([]uint32, 6))
	assert.ErrorIs(t, err, ErrBadShape, "scores shorter than rows*cols")

	err = SelectRows(Smallest, scores, 1, 10, 3, make([]float32, 2), make([]uint32, 3))
	assert.ErrorIs(t, err, ErrBadShape, "outVals shorter than rows*k")

	err = SelectRows(Smallest, scores, -1, 10, 3, nil, nil)
	assert.ErrorIs(t, err, ErrBadShape)

	_, _, err = SelectMin(scores, -2)
	assert.ErrorIs(t, err, ErrBadShape)
}

func TestSelectWithoutFinalize(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	row := make([]float32, 1000)
	for i := range row {
		row[i] = rng.Float32()
	}

	const k = 16
	outVals := make([]float32, k)
	outIdx := make([]uint32, k)
	require.NoError(t, SelectRows(Largest, row, 1, len(row), k, outVals, outIdx, WithFinalize(false)))

	// Same multiset as the finalized result, order unspecified.
	wantVals, wantIdx := referenceSelect(Largest, row, k)

	gotPairs := make([]candidate[float32], k)
	for i := range gotPairs {
		gotPairs[i] = candidate[float32]{Val: outVals[i], Index: outIdx[i]}
	}
	sort.Slice(gotPairs, func(i, j int) bool { return better(Largest, gotPairs[i], gotPairs[j]) })

	for i := range gotPairs {
		assert.Equal(t, wantVals[i], gotPairs[i].Val)
		assert.Equal(t, wantIdx[i], gotPairs[i].Index)
	}
}

func TestSelectParallelismOption(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	const (
		rows = 16
		cols = 200
		k    = 5
	)
	scores := make([]float32, rows*cols)
	for i := range scores {
		scores[i] = rng.Float32()
	}

	seq := make([]float32, rows*k)
	seqIdx := make([]uint32, rows*k)
	require.NoError(t, SelectRows(Smallest, scores, rows, cols, k, seq, seqIdx, WithParallelism(1)))

	par := make([]float32, rows*k)
	parIdx := make([]uint32, rows*k)
	require.NoError(t, SelectRows(Smallest, scores, rows, cols, k, par, parIdx, WithParallelism(8)))

	assert.Equal(t, seq, par)
	assert.Equal(t, seqIdx, parIdx)
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "Smallest", Smallest.String())
	assert.Equal(t, "Largest", Largest.String())
	assert.Equal(t, "Unknown", Direction(3).String())
}
