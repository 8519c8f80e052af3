package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/segments"
	"github.com/gomlx/segments/types/tensors"
	"github.com/gomlx/segments/types/tensors/numpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePoolTypes(t *testing.T) {
	ops, err := parsePoolTypes("all")
	require.NoError(t, err)
	assert.Equal(t, []segments.PoolType{segments.PoolSum, segments.PoolMean, segments.PoolMin, segments.PoolMax}, ops)

	ops, err = parsePoolTypes("max, sum")
	require.NoError(t, err)
	assert.Equal(t, []segments.PoolType{segments.PoolMax, segments.PoolSum}, ops)

	ops, err = parsePoolTypes("Mean,mean")
	require.NoError(t, err)
	assert.Equal(t, []segments.PoolType{segments.PoolMean}, ops)

	_, err = parsePoolTypes("median")
	require.ErrorContains(t, err, "median")
	_, err = parsePoolTypes("")
	require.Error(t, err)
}

func writeTestCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeTestCSV(t, `segment_id,alpha,beta,label
0,1,10.5,a
0,2,20.5,b
2,3,30.5,c
`)
	item, err := loadCSV(path, "segment_id")
	require.NoError(t, err)
	assert.Equal(t, "input", item.name)

	// The string column "label" is dropped, the numeric ones kept in order.
	assert.Equal(t, []string{"alpha", "beta"}, item.columns)
	assert.Equal(t, [][]float64{{1, 10.5}, {2, 20.5}, {3, 30.5}}, item.data.Value())
	assert.Equal(t, []int64{0, 0, 2}, tensors.CopyFlatData[int64](item.ids))
}

func TestLoadCSV_Errors(t *testing.T) {
	path := writeTestCSV(t, "segment_id,alpha\n0,1\n")
	_, err := loadCSV(path, "group")
	assert.ErrorContains(t, err, `"group"`)

	path = writeTestCSV(t, "segment_id,alpha\n0.5,1\n")
	_, err = loadCSV(path, "segment_id")
	assert.ErrorContains(t, err, "not an integer")

	path = writeTestCSV(t, "segment_id,label\n0,a\n1,b\n")
	_, err = loadCSV(path, "segment_id")
	assert.ErrorContains(t, err, "no numeric feature columns")
}

func TestLoadNpyPair(t *testing.T) {
	tmpDir := t.TempDir()
	data := tensors.FromValue([][]float32{{1, 2}, {3, 4}, {5, 6}})
	ids := tensors.FromValue([]int32{0, 1, 1})
	dataPath := filepath.Join(tmpDir, "data.npy")
	require.NoError(t, numpy.ToNpyFile(data, dataPath))
	require.NoError(t, numpy.ToNpyFile(ids, filepath.Join(tmpDir, "data_ids.npy")))

	// The ids file next to the input is picked up by default.
	item, err := loadInput(dataPath, "segment_id", "")
	require.NoError(t, err)
	require.True(t, data.Equal(item.data))
	require.True(t, ids.Equal(item.ids))

	// An explicit ids file overrides it.
	otherIDs := tensors.FromValue([]int32{0, 0, 0})
	otherPath := filepath.Join(tmpDir, "other_ids.npy")
	require.NoError(t, numpy.ToNpyFile(otherIDs, otherPath))
	item, err = loadInput(dataPath, "segment_id", otherPath)
	require.NoError(t, err)
	require.True(t, otherIDs.Equal(item.ids))

	_, err = loadInput(filepath.Join(tmpDir, "lonely.npy"), "segment_id", "")
	require.Error(t, err)
}

func TestLoadNpz(t *testing.T) {
	tmpDir := t.TempDir()
	data := tensors.FromValue([][]float64{{1, 2}, {3, 4}})
	ids := tensors.FromValue([]int64{0, 3})
	path := filepath.Join(tmpDir, "input.npz")
	require.NoError(t, numpy.ToNpzFile(map[string]*tensors.Tensor{"data": data, "ids": ids}, path))

	item, err := loadInput(path, "segment_id", "")
	require.NoError(t, err)
	require.True(t, data.Equal(item.data))
	require.True(t, ids.Equal(item.ids))

	badPath := filepath.Join(tmpDir, "bad.npz")
	require.NoError(t, numpy.ToNpzFile(map[string]*tensors.Tensor{"data": data}, badPath))
	_, err = loadInput(badPath, "segment_id", "")
	assert.ErrorContains(t, err, `"ids"`)
}

func TestAggregateOne(t *testing.T) {
	path := writeTestCSV(t, `segment_id,alpha,beta
0,1,10.5
0,2,20.5
2,3,30.5
`)
	ops := []segments.PoolType{segments.PoolSum, segments.PoolMean, segments.PoolMin, segments.PoolMax}
	result := aggregateOne(path, ops)
	require.NoError(t, result.err)
	assert.Equal(t, 3, result.numSegments)
	assert.Equal(t, []int64{2, 0, 1}, tensors.CopyFlatData[int64](result.counts))
	assert.Equal(t, [][]float64{{3, 31}, {0, 0}, {3, 30.5}}, result.pooled[segments.PoolSum].Value())
	assert.Equal(t, [][]float64{{1.5, 15.5}, {0, 0}, {3, 30.5}}, result.pooled[segments.PoolMean].Value())
	assert.Equal(t, [][]float64{{1, 10.5}, {0, 0}, {3, 30.5}}, result.pooled[segments.PoolMin].Value())
	assert.Equal(t, [][]float64{{2, 20.5}, {0, 0}, {3, 30.5}}, result.pooled[segments.PoolMax].Value())
}

func TestAggregateOne_UnsortedIDs(t *testing.T) {
	path := writeTestCSV(t, "segment_id,alpha\n1,1\n0,2\n")
	result := aggregateOne(path, []segments.PoolType{segments.PoolSum})
	require.ErrorIs(t, result.err, segments.ErrNonMonotonicSegmentIDs)
}

func TestAggregateAll(t *testing.T) {
	*flagProgress = false
	defer func() { *flagProgress = true }()

	var inputs []string
	for _, contents := range []string{
		"segment_id,alpha\n0,1\n0,2\n",
		"segment_id,alpha\n0,5\n1,7\n",
		"segment_id,alpha\n3,11\n",
	} {
		inputs = append(inputs, writeTestCSV(t, contents))
	}
	results := aggregateAll(inputs, []segments.PoolType{segments.PoolSum})
	require.Len(t, results, len(inputs))
	for _, result := range results {
		require.NotNil(t, result)
		require.NoError(t, result.err)
	}
	assert.Equal(t, [][]float64{{3}}, results[0].pooled[segments.PoolSum].Value())
	assert.Equal(t, [][]float64{{5}, {7}}, results[1].pooled[segments.PoolSum].Value())
	assert.Equal(t, 4, results[2].numSegments)
}

func TestAggregateAll_Failure(t *testing.T) {
	*flagProgress = false
	defer func() { *flagProgress = true }()

	inputs := []string{writeTestCSV(t, "segment_id,alpha\n-1,1\n")}
	results := aggregateAll(inputs, []segments.PoolType{segments.PoolSum})
	require.Len(t, results, 1)
	require.ErrorIs(t, results[0].err, segments.ErrNegativeSegmentID)
}

func TestWriteResult(t *testing.T) {
	path := writeTestCSV(t, "segment_id,alpha\n0,1\n0,3\n1,5\n")
	result := aggregateOne(path, []segments.PoolType{segments.PoolSum, segments.PoolMean})
	require.NoError(t, result.err)

	outputDir := t.TempDir()
	require.NoError(t, writeResult(result, outputDir))
	entries, err := numpy.FromNpzFile(filepath.Join(outputDir, "input_pooled.npz"))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.True(t, result.counts.Equal(entries["counts"]))
	require.True(t, result.pooled[segments.PoolSum].Equal(entries["sum"]))
	require.True(t, result.pooled[segments.PoolMean].Equal(entries["mean"]))
}

func TestResultRows(t *testing.T) {
	numSegments := 20
	counts := make([]int64, numSegments)
	values := make([]float64, numSegments)
	for seg := range counts {
		counts[seg] = 1
		values[seg] = float64(seg)
	}
	result := &fileResult{
		item:        &workItem{name: "test"},
		numSegments: numSegments,
		counts:      tensors.FromFlatDataAndDimensions(counts, numSegments),
	}
	pooled := tensors.FromFlatDataAndDimensions(values, numSegments, 1)

	rows := resultRows(result, pooled, 6)
	require.Len(t, rows, 7)
	assert.Equal(t, []string{"0", "1", "0"}, rows[0])
	assert.Equal(t, "…", rows[3][0])
	assert.Equal(t, []string{"19", "1", "19"}, rows[6])

	// Non-positive maxRows displays every segment.
	rows = resultRows(result, pooled, 0)
	require.Len(t, rows, numSegments)
}

func TestBuildFigure(t *testing.T) {
	path := writeTestCSV(t, "segment_id,alpha,beta\n0,1,3\n1,5,7\n")
	result := aggregateOne(path, []segments.PoolType{segments.PoolSum, segments.PoolMax})
	require.NoError(t, result.err)

	fig := buildFigure(result)
	require.Len(t, fig.Data, 3) // One bar per operation plus the counts line.
	figAsJSON, err := json.Marshal(fig)
	require.NoError(t, err)
	assert.Contains(t, string(figAsJSON), "Sum")
	assert.Contains(t, string(figAsJSON), "Max")
	assert.Contains(t, string(figAsJSON), "rows per segment")
}

func TestWriteReport(t *testing.T) {
	path := writeTestCSV(t, "segment_id,alpha\n0,1\n1,2\n")
	result := aggregateOne(path, []segments.PoolType{segments.PoolSum})
	require.NoError(t, result.err)

	outputDir := t.TempDir()
	reportPath, err := writeReport([]*fileResult{result}, outputDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outputDir, "segments_report.html"), reportPath)
	contents, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "Plotly.newPlot")
}
