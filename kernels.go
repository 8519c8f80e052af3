// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package segments

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/segments/types/xslices"
	"github.com/pkg/errors"
)

// DataConstraints are used for generics over the data matrix: the Go types matching
// the supported data dtypes (Float32 and Float64).
type DataConstraints interface {
	float32 | float64
}

// IDsConstraints are used for generics over the segment ids vector: the Go types
// matching the supported ids dtypes (Int32 and Int64).
type IDsConstraints interface {
	int32 | int64
}

// PoolFlat is the flat-slice version of Pool, for callers that already hold raw
// buffers instead of tensors.
//
// dataFlat is the row-major flat contents of a (numRows, numCols) matrix, with
// numRows == len(ids); ids must be non-negative and sorted in non-decreasing order.
// It returns the freshly allocated flat contents of the (numSegments, numCols)
// pooled matrix.
//
// The dtype checks of the tensor API become compile-time constraints here; the rest
// of the contract is validated the same way, reported with the same sentinel errors.
// Like Pool, it panics on an invalid poolType.
func PoolFlat[T DataConstraints, I IDsConstraints](dataFlat []T, numCols int, ids []I, poolType PoolType) (outFlat []T, numSegments int, err error) {
	checkPoolType(poolType)
	if numCols < 0 {
		return nil, 0, errors.Wrapf(ErrShapeMismatch, "numCols=%d must be non-negative", numCols)
	}
	if len(dataFlat) != len(ids)*numCols {
		return nil, 0, errors.Wrapf(ErrShapeMismatch, "len(dataFlat)=%d, but %d segment ids with numCols=%d require %d values",
			len(dataFlat), len(ids), numCols, len(ids)*numCols)
	}
	numSegments, err = validateSegmentIDs(ids)
	if err != nil {
		return nil, 0, err
	}
	outFlat = make([]T, numSegments*numCols)
	counts := make([]int64, numSegments)
	poolFlatInto(dataFlat, numCols, ids, numSegments, counts, outFlat, poolType)
	return outFlat, numSegments, nil
}

// poolChunk pools the rows [chunk.rowStart, chunk.rowEnd) and post-processes the
// segments [chunk.segStart, chunk.segEnd). Both ranges are owned exclusively by
// this chunk, so no synchronization is needed on outFlat or counts.
//
// outFlat's owned segment rows must arrive zero-initialized.
func poolChunk[T DataConstraints, I IDsConstraints](dataFlat []T, numCols int, ids []I, chunk rowChunk, counts []int64, outFlat []T, poolType PoolType) {
	switch poolType {
	case PoolSum:
		segmentSumChunk(dataFlat, numCols, ids, chunk.rowStart, chunk.rowEnd, counts, outFlat)
	case PoolMean:
		segmentSumChunk(dataFlat, numCols, ids, chunk.rowStart, chunk.rowEnd, counts, outFlat)
		meanDivideSegments(outFlat, numCols, counts, chunk.segStart, chunk.segEnd)
	case PoolMin:
		// Initialize with the highest value; segments left untouched are zeroed after.
		dtype := dtypes.FromGenericsType[T]()
		xslices.FillSlice(outFlat[chunk.segStart*numCols:chunk.segEnd*numCols], dtype.HighestValue().(T))
		segmentMinChunk(dataFlat, numCols, ids, chunk.rowStart, chunk.rowEnd, counts, outFlat)
		zeroEmptySegments(outFlat, numCols, counts, chunk.segStart, chunk.segEnd)
	case PoolMax:
		// Initialize with the lowest value; segments left untouched are zeroed after.
		dtype := dtypes.FromGenericsType[T]()
		xslices.FillSlice(outFlat[chunk.segStart*numCols:chunk.segEnd*numCols], dtype.LowestValue().(T))
		segmentMaxChunk(dataFlat, numCols, ids, chunk.rowStart, chunk.rowEnd, counts, outFlat)
		zeroEmptySegments(outFlat, numCols, counts, chunk.segStart, chunk.segEnd)
	default:
		exceptions.Panicf("segments: unreachable pooling operation %s", poolType)
	}
}

func segmentSumChunk[T DataConstraints, I IDsConstraints](dataFlat []T, numCols int, ids []I, rowStart, rowEnd int, counts []int64, outFlat []T) {
	for row := rowStart; row < rowEnd; row++ {
		seg := int(ids[row])
		rowBase := row * numCols
		segBase := seg * numCols
		for col, value := range dataFlat[rowBase : rowBase+numCols] {
			outFlat[segBase+col] += value
		}
		counts[seg]++
	}
}

func segmentMinChunk[T DataConstraints, I IDsConstraints](dataFlat []T, numCols int, ids []I, rowStart, rowEnd int, counts []int64, outFlat []T) {
	for row := rowStart; row < rowEnd; row++ {
		seg := int(ids[row])
		rowBase := row * numCols
		segBase := seg * numCols
		for col, value := range dataFlat[rowBase : rowBase+numCols] {
			outFlat[segBase+col] = min(outFlat[segBase+col], value)
		}
		counts[seg]++
	}
}

func segmentMaxChunk[T DataConstraints, I IDsConstraints](dataFlat []T, numCols int, ids []I, rowStart, rowEnd int, counts []int64, outFlat []T) {
	for row := rowStart; row < rowEnd; row++ {
		seg := int(ids[row])
		rowBase := row * numCols
		segBase := seg * numCols
		for col, value := range dataFlat[rowBase : rowBase+numCols] {
			outFlat[segBase+col] = max(outFlat[segBase+col], value)
		}
		counts[seg]++
	}
}

// meanDivideSegments divides each pooled segment row by its row count. Segments that
// pooled no rows keep their zero-initialized row, never NaN.
func meanDivideSegments[T DataConstraints](outFlat []T, numCols int, counts []int64, segStart, segEnd int) {
	for seg := segStart; seg < segEnd; seg++ {
		count := counts[seg]
		if count == 0 {
			continue
		}
		segBase := seg * numCols
		for col := range numCols {
			outFlat[segBase+col] /= T(count)
		}
	}
}

// zeroEmptySegments zeroes the rows of segments that pooled no rows, so the +/-Inf
// initialization of MIN/MAX never escapes to callers.
func zeroEmptySegments[T DataConstraints](outFlat []T, numCols int, counts []int64, segStart, segEnd int) {
	for seg := segStart; seg < segEnd; seg++ {
		if counts[seg] != 0 {
			continue
		}
		clear(outFlat[seg*numCols : (seg+1)*numCols])
	}
}
