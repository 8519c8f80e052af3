// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package segments

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolFlat(t *testing.T) {
	dataFlat := []float32{
		1, 2, 3,
		3, 2, 1,
		4, 5, 6,
	}
	ids := []int32{0, 0, 1}

	tests := []struct {
		poolType PoolType
		want     []float32
	}{
		{PoolSum, []float32{4, 4, 4, 4, 5, 6}},
		{PoolMean, []float32{2, 2, 2, 4, 5, 6}},
		{PoolMin, []float32{1, 2, 1, 4, 5, 6}},
		{PoolMax, []float32{3, 2, 3, 4, 5, 6}},
	}
	for _, test := range tests {
		t.Run(test.poolType.String(), func(t *testing.T) {
			got, numSegments, err := PoolFlat(dataFlat, 3, ids, test.poolType)
			require.NoError(t, err)
			assert.Equal(t, 2, numSegments)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestPoolFlat_SkippedSegments(t *testing.T) {
	dataFlat := []float64{
		2, -1,
		4, 7,
		10, 20,
	}
	ids := []int64{1, 1, 3}
	got, numSegments, err := PoolFlat(dataFlat, 2, ids, PoolMin)
	require.NoError(t, err)
	assert.Equal(t, 4, numSegments)
	assert.Equal(t, []float64{0, 0, 2, -1, 0, 0, 10, 20}, got)
}

func TestPoolFlat_SingleSegment(t *testing.T) {
	// All rows in one segment: SUM gives the column sums.
	dataFlat := []float32{1, 10, 2, 20, 3, 30, 4, 40}
	ids := []int32{0, 0, 0, 0}
	got, numSegments, err := PoolFlat(dataFlat, 2, ids, PoolSum)
	require.NoError(t, err)
	assert.Equal(t, 1, numSegments)
	assert.Equal(t, []float32{10, 100}, got)
}

func TestPoolFlat_ZeroCols(t *testing.T) {
	// Zero columns is a valid degenerate shape: the segment structure is still
	// resolved, the output just holds no values.
	got, numSegments, err := PoolFlat([]float32{}, 0, []int32{0, 0, 4}, PoolSum)
	require.NoError(t, err)
	assert.Equal(t, 5, numSegments)
	assert.Empty(t, got)
}

func TestPoolFlat_EmptyInput(t *testing.T) {
	got, numSegments, err := PoolFlat[float32, int32](nil, 4, nil, PoolMean)
	require.NoError(t, err)
	assert.Equal(t, 0, numSegments)
	assert.Empty(t, got)
}

func TestPoolFlat_Errors(t *testing.T) {
	dataFlat := []float32{1, 2, 3, 4}

	_, _, err := PoolFlat(dataFlat, -1, []int32{0, 0}, PoolSum)
	assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)

	_, _, err = PoolFlat(dataFlat, 3, []int32{0, 0}, PoolSum)
	assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)

	got, _, err := PoolFlat(dataFlat, 2, []int32{0, -1}, PoolSum)
	assert.True(t, errors.Is(err, ErrNegativeSegmentID), "got %v", err)
	assert.Nil(t, got)

	_, _, err = PoolFlat(dataFlat, 2, []int32{1, 0}, PoolSum)
	assert.True(t, errors.Is(err, ErrNonMonotonicSegmentIDs), "got %v", err)

	require.Panics(t, func() { _, _, _ = PoolFlat(dataFlat, 2, []int32{0, 1}, PoolUndefined) })
}
