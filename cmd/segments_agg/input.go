package main

import (
	"fmt"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/gomlx/segments/types/tensors"
	"github.com/gomlx/segments/types/tensors/numpy"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// workItem is one input ready to aggregate: a rank-2 data matrix and its
// rank-1 segment ids.
type workItem struct {
	path string

	// name is the base file name without extension, used for display and to
	// derive output file names.
	name string

	// columns holds the feature column names for CSV inputs. Empty for .npy
	// and .npz inputs.
	columns []string

	data *tensors.Tensor
	ids  *tensors.Tensor
}

func displayName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// loadInput reads one input file into a workItem, dispatching on the extension.
//
// CSV files must have a header, one column named idsColumn with the segment ids
// and at least one numeric feature column. A .npy file holds the data matrix,
// with the ids read from idsFile or, when empty, from "<input>_ids.npy" next to
// it. A .npz archive must have a "data" and an "ids" entry.
func loadInput(path, idsColumn, idsFile string) (*workItem, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path, idsColumn)
	case ".npy":
		return loadNpyPair(path, idsFile)
	case ".npz":
		return loadNpz(path)
	}
	return nil, errors.Errorf("unsupported input %q: it must be a .csv, .npy or .npz file", path)
}

func loadCSV(path, idsColumn string) (*workItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", path)
	}
	defer func() { _ = file.Close() }()
	df := dataframe.ReadCSV(file)
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "failed to parse CSV %q", path)
	}
	names := df.Names()
	if !slices.Contains(names, idsColumn) {
		return nil, errors.Errorf("CSV %q has no %q column (see -ids_column), columns found: %v",
			path, idsColumn, names)
	}
	ids, err := idsFromSeries(df.Col(idsColumn))
	if err != nil {
		return nil, errors.WithMessagef(err, "bad segment ids in column %q of %q", idsColumn, path)
	}

	// The remaining numeric columns become the data matrix, in CSV order.
	var columns []string
	var columnValues [][]float64
	for _, name := range names {
		if name == idsColumn {
			continue
		}
		col := df.Col(name)
		if colType := col.Type(); colType != series.Float && colType != series.Int {
			klog.Warningf("Ignoring non-numeric column %q (%s) of %q", name, colType, path)
			continue
		}
		columns = append(columns, name)
		columnValues = append(columnValues, col.Float())
	}
	if len(columns) == 0 {
		return nil, errors.Errorf("CSV %q has no numeric feature columns", path)
	}

	numRows, numCols := df.Nrow(), len(columns)
	flat := make([]float64, numRows*numCols)
	for colIdx, values := range columnValues {
		for rowIdx, value := range values {
			flat[rowIdx*numCols+colIdx] = value
		}
	}
	return &workItem{
		path:    path,
		name:    displayName(path),
		columns: columns,
		data:    tensors.FromFlatDataAndDimensions(flat, numRows, numCols),
		ids:     tensors.FromFlatDataAndDimensions(ids, numRows),
	}, nil
}

// idsFromSeries converts the segment-id column to int64, rejecting fractional
// or non-numeric values. Gota parses the column for us but only hands back
// floats, so integrality is checked here.
func idsFromSeries(col series.Series) ([]int64, error) {
	values := col.Float()
	ids := make([]int64, len(values))
	for row, value := range values {
		if math.IsNaN(value) || value != math.Trunc(value) {
			return nil, errors.Errorf("segment id %v at row %d is not an integer", value, row)
		}
		ids[row] = int64(value)
	}
	return ids, nil
}

func loadNpyPair(path, idsFile string) (*workItem, error) {
	data, err := numpy.FromNpyFile(path)
	if err != nil {
		return nil, err
	}
	idsPath := idsFile
	if idsPath == "" {
		idsPath = strings.TrimSuffix(path, filepath.Ext(path)) + "_ids.npy"
	}
	ids, err := numpy.FromNpyFile(idsPath)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to read the segment ids paired with %q (see -ids_file)", path)
	}
	return &workItem{path: path, name: displayName(path), data: data, ids: ids}, nil
}

func loadNpz(path string) (*workItem, error) {
	entries, err := numpy.FromNpzFile(path)
	if err != nil {
		return nil, err
	}
	data, found := entries["data"]
	if !found {
		return nil, errors.Errorf("npz archive %q has no \"data\" entry, entries found: %v",
			path, slices.Sorted(maps.Keys(entries)))
	}
	ids, found := entries["ids"]
	if !found {
		return nil, errors.Errorf("npz archive %q has no \"ids\" entry, entries found: %v",
			path, slices.Sorted(maps.Keys(entries)))
	}
	return &workItem{path: path, name: displayName(path), data: data, ids: ids}, nil
}

// writeResult writes one "<input>_pooled.npz" archive under outputDir, with one
// entry per pooling operation plus the per-segment row counts.
func writeResult(result *fileResult, outputDir string) error {
	entries := make(map[string]*tensors.Tensor, len(result.pooled)+1)
	entries["counts"] = result.counts
	for op, pooled := range result.pooled {
		entries[strings.ToLower(op.String())] = pooled
	}
	outputPath := filepath.Join(outputDir, result.item.name+"_pooled.npz")
	if err := numpy.ToNpzFile(entries, outputPath); err != nil {
		return err
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		return errors.Wrapf(err, "failed to stat %q after writing it", outputPath)
	}
	fmt.Printf("Wrote %s (%s)\n", outputPath, humanize.Bytes(uint64(info.Size())))
	return nil
}
