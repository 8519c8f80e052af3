package segments

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/segments/types/shapes"
	"github.com/gomlx/segments/types/tensors"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Operations(t *testing.T) {
	data := tensors.FromValue([][]float32{{1, 2, 3}, {3, 2, 1}, {4, 5, 6}})
	ids := tensors.FromValue([]int32{0, 0, 1})

	tests := []struct {
		poolType PoolType
		fn       func(data, ids *tensors.Tensor) (*tensors.Tensor, error)
		want     [][]float32
	}{
		{PoolSum, Sum, [][]float32{{4, 4, 4}, {4, 5, 6}}},
		{PoolMean, Mean, [][]float32{{2, 2, 2}, {4, 5, 6}}},
		{PoolMin, Min, [][]float32{{1, 2, 1}, {4, 5, 6}}},
		{PoolMax, Max, [][]float32{{3, 2, 3}, {4, 5, 6}}},
	}
	for _, test := range tests {
		t.Run(test.poolType.String(), func(t *testing.T) {
			got, err := Pool(data, ids, test.poolType)
			require.NoError(t, err)
			require.True(t, got.Shape().Equal(shapes.Make(dtypes.Float32, 2, 3)), "got shape %s", got.Shape())
			assert.Equal(t, test.want, got.Value())

			// The named convenience wrapper must do the same.
			got2, err := test.fn(data, ids)
			require.NoError(t, err)
			assert.Equal(t, test.want, got2.Value())
		})
	}
}

func TestPool_SkippedSegments(t *testing.T) {
	// Segments 0 and 2 have no rows: they must come out as zero rows for every
	// operation. In particular MEAN must not divide by zero and MIN/MAX must not
	// leak their +/-Inf initialization.
	data := tensors.FromValue([][]float64{{2, -1}, {4, 7}, {10, 20}})
	ids := tensors.FromValue([]int64{1, 1, 3})

	tests := []struct {
		poolType PoolType
		want     [][]float64
	}{
		{PoolSum, [][]float64{{0, 0}, {6, 6}, {0, 0}, {10, 20}}},
		{PoolMean, [][]float64{{0, 0}, {3, 3}, {0, 0}, {10, 20}}},
		{PoolMin, [][]float64{{0, 0}, {2, -1}, {0, 0}, {10, 20}}},
		{PoolMax, [][]float64{{0, 0}, {4, 7}, {0, 0}, {10, 20}}},
	}
	for _, test := range tests {
		t.Run(test.poolType.String(), func(t *testing.T) {
			got, err := Pool(data, ids, test.poolType)
			require.NoError(t, err)
			require.True(t, got.Shape().Equal(shapes.Make(dtypes.Float64, 4, 2)), "got shape %s", got.Shape())
			assert.Equal(t, test.want, got.Value())
		})
	}
}

func TestPool_SingleRowSegments(t *testing.T) {
	// With one row per segment every operation is the identity.
	data := tensors.FromValue([][]float32{{1.5, -2}, {0, 3}, {7, 8}})
	ids := tensors.FromValue([]int32{0, 1, 2})
	for _, poolType := range []PoolType{PoolSum, PoolMean, PoolMin, PoolMax} {
		got, err := Pool(data, ids, poolType)
		require.NoError(t, err)
		assert.True(t, data.Equal(got), "%s: got %s", poolType, got)
	}
}

func TestPool_EmptyInput(t *testing.T) {
	data := tensors.FromShape(shapes.Make(dtypes.Float32, 0, 5))
	ids := tensors.FromShape(shapes.Make(dtypes.Int32, 0))
	for _, poolType := range []PoolType{PoolSum, PoolMean, PoolMin, PoolMax} {
		got, err := Pool(data, ids, poolType)
		require.NoError(t, err)
		assert.True(t, got.Shape().Equal(shapes.Make(dtypes.Float32, 0, 5)), "%s: got shape %s", poolType, got.Shape())
	}
}

func TestPool_IDsDTypes(t *testing.T) {
	// Int32 and Int64 segment ids must give the same result.
	data := tensors.FromValue([][]float32{{1, 2}, {3, 4}, {5, 6}})
	ids32 := tensors.FromValue([]int32{0, 2, 2})
	ids64 := tensors.FromValue([]int64{0, 2, 2})
	for _, poolType := range []PoolType{PoolSum, PoolMean, PoolMin, PoolMax} {
		from32, err := Pool(data, ids32, poolType)
		require.NoError(t, err)
		from64, err := Pool(data, ids64, poolType)
		require.NoError(t, err)
		assert.True(t, from32.Equal(from64), "%s", poolType)
	}
}

func TestPool_DoesNotMutateInputs(t *testing.T) {
	data := tensors.FromValue([][]float32{{1, 2}, {3, 4}})
	ids := tensors.FromValue([]int32{0, 0})
	dataCopy := data.Clone()
	idsCopy := ids.Clone()
	for _, poolType := range []PoolType{PoolSum, PoolMean, PoolMin, PoolMax} {
		_, err := Pool(data, ids, poolType)
		require.NoError(t, err)
	}
	assert.True(t, data.Equal(dataCopy))
	assert.True(t, ids.Equal(idsCopy))
}

func TestSumWithCounts(t *testing.T) {
	data := tensors.FromValue([][]float32{{1, 2, 3}, {3, 2, 1}, {4, 5, 6}})
	ids := tensors.FromValue([]int32{0, 0, 2})
	out, counts, err := SumWithCounts(data, ids)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{4, 4, 4}, {0, 0, 0}, {4, 5, 6}}, out.Value())
	require.True(t, counts.Shape().Equal(shapes.Make(dtypes.Int64, 3)), "counts shape %s", counts.Shape())
	assert.Equal(t, []int64{2, 0, 1}, counts.Value())
}

func TestCounts(t *testing.T) {
	ids := tensors.FromValue([]int32{0, 0, 0, 2, 5, 5})
	counts, err := Counts(ids)
	require.NoError(t, err)
	require.True(t, counts.Shape().Equal(shapes.Make(dtypes.Int64, 6)), "counts shape %s", counts.Shape())
	assert.Equal(t, []int64{3, 0, 1, 0, 0, 2}, counts.Value())

	// Empty ids vector means zero segments.
	counts, err = Counts(tensors.FromShape(shapes.Make(dtypes.Int64, 0)))
	require.NoError(t, err)
	assert.True(t, counts.Shape().Equal(shapes.Make(dtypes.Int64, 0)))
}

func TestCounts_Errors(t *testing.T) {
	_, err := Counts(tensors.FromValue([][]int32{{0}, {1}}))
	assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)

	_, err = Counts(tensors.FromValue([]float32{0, 1}))
	assert.True(t, errors.Is(err, ErrUnsupportedDType), "got %v", err)

	_, err = Counts(tensors.FromValue([]int32{0, -1}))
	assert.True(t, errors.Is(err, ErrNegativeSegmentID), "got %v", err)

	_, err = Counts(tensors.FromValue([]int32{3, 1}))
	assert.True(t, errors.Is(err, ErrNonMonotonicSegmentIDs), "got %v", err)
}

func TestPool_Errors(t *testing.T) {
	d23 := tensors.FromValue([][]float32{{1, 2, 3}, {4, 5, 6}})
	tests := []struct {
		name    string
		data    *tensors.Tensor
		ids     *tensors.Tensor
		wantErr error
	}{
		{"nil data", nil, tensors.FromValue([]int32{0}), ErrShapeMismatch},
		{"nil ids", d23, nil, ErrShapeMismatch},
		{"data rank-1", tensors.FromValue([]float32{1, 2}), tensors.FromValue([]int32{0, 0}), ErrShapeMismatch},
		{"ids rank-2", d23, tensors.FromValue([][]int32{{0}, {0}}), ErrShapeMismatch},
		{"row count mismatch", d23, tensors.FromValue([]int32{0, 0, 1}), ErrShapeMismatch},
		{"data dtype", tensors.FromValue([][]int32{{1}, {2}}), tensors.FromValue([]int32{0, 0}), ErrUnsupportedDType},
		{"ids dtype", d23, tensors.FromValue([]float32{0, 0}), ErrUnsupportedDType},
		{"negative id", d23, tensors.FromValue([]int32{-1, 0}), ErrNegativeSegmentID},
		{"unsorted ids", d23, tensors.FromValue([]int32{1, 0}), ErrNonMonotonicSegmentIDs},
		// Shape errors win over ids content: the ids are never scanned here.
		{"shape before ids content", tensors.FromValue([]float32{1, 2}), tensors.FromValue([]int32{-1, 0}), ErrShapeMismatch},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := Pool(test.data, test.ids, PoolSum)
			require.Error(t, err)
			assert.True(t, errors.Is(err, test.wantErr), "got error %q, want to wrap %q", err, test.wantErr)
			assert.Nil(t, out)
		})
	}
}

func TestPool_InvalidPoolType(t *testing.T) {
	data := tensors.FromValue([][]float32{{1}})
	ids := tensors.FromValue([]int32{0})
	require.Panics(t, func() { _, _ = Pool(data, ids, PoolUndefined) })
	require.Panics(t, func() { _, _ = Pool(data, ids, PoolType(99)) })
}

func TestPoolType_Enumer(t *testing.T) {
	assert.Equal(t, "Sum", PoolSum.String())
	assert.Equal(t, "Max", PoolMax.String())
	for _, poolType := range []PoolType{PoolSum, PoolMean, PoolMin, PoolMax} {
		got, err := PoolTypeString(poolType.String())
		require.NoError(t, err)
		assert.Equal(t, poolType, got)
	}
	got, err := PoolTypeString("mean") // Lower case is accepted.
	require.NoError(t, err)
	assert.Equal(t, PoolMean, got)
	_, err = PoolTypeString("median")
	require.Error(t, err)
}
