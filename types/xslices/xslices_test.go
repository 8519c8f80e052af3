package xslices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	count := 17
	in := make([]int, count)
	for ii := 0; ii < count; ii++ {
		in[ii] = ii
	}
	out := Map(in, func(v int) int32 { return int32(v + 1) })
	for ii := 0; ii < count; ii++ {
		assert.Equalf(t, int32(ii+1), out[ii], "element %d doesn't match", ii)
	}
}

func TestAtAndLast(t *testing.T) {
	slice := []int{0, 1, 2, 3, 4, 5}
	assert.Equal(t, 5, At(slice, -1))
	assert.Equal(t, 4, At(slice, -2))
	assert.Equal(t, 5, Last(slice))
}

func TestFillSlice(t *testing.T) {
	s := make([]float32, 1025)
	FillSlice(s, float32(3))
	for _, v := range s {
		require.Equal(t, float32(3), v)
	}
	FillSlice([]int{}, 0) // Empty slice must not panic.

	assert.Equal(t, []int64{7, 7, 7}, SliceWithValue(3, int64(7)))
}

func TestIota(t *testing.T) {
	assert.Equal(t, []float64{3, 4}, Iota(3.0, 2))
	assert.Equal(t, []int32{0, 1, 2, 3}, Iota(int32(0), 4))
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"b": 1, "a": 2, "c": 3}
	require.Equal(t, []string{"a", "b", "c"}, SortedKeys(m))
}

func TestMinMax(t *testing.T) {
	s := []float64{3, -1, 7, 2}
	assert.Equal(t, float64(7), Max(s))
	assert.Equal(t, float64(-1), Min(s))
	require.Panics(t, func() { Max([]int{}) })
}

func TestSlicesInDelta(t *testing.T) {
	assert.True(t, SlicesInDelta([][]float32{{1, 2}, {3, 4}}, [][]float32{{1, 2}, {3, 4.00001}}, 1e-3))
	assert.False(t, SlicesInDelta([][]float32{{1, 2}, {3, 4}}, [][]float32{{1, 2}, {3, 5}}, 1e-3))
	assert.False(t, SlicesInDelta([]float32{1, 2}, []float32{1, 2, 3}, 1e-3))
	assert.False(t, SlicesInDelta([]float32{1}, []float64{1}, 1e-3))
}
