// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package segments implements sorted-segment reduction kernels over dense matrices.
//
// Given a rank-2 data matrix of shape (numRows, numCols) and a rank-1 vector of
// segment ids of length numRows -- non-negative and sorted in non-decreasing order --
// it reduces all rows assigned to the same segment id into one output row, using
// SUM, MEAN, MIN or MAX. The output has shape (numSegments, numCols), where
// numSegments is the last segment id plus one (zero for empty inputs).
//
// Segment ids may skip values: segments with no rows come out as zero rows, for
// every pooling operation (MEAN never produces NaN for them).
//
// The tensor API (Pool, Sum, Mean, Min, Max, SumWithCounts, Counts) works on
// tensors.Tensor values with data dtype Float32 or Float64 and ids dtype Int32 or
// Int64. PoolFlat is the equivalent flat-slice API for callers that already hold
// raw buffers.
//
// Results are deterministic: rows are accumulated in index order, and repeated
// calls on the same input produce bit-identical outputs. Large inputs are
// parallelized internally across row ranges aligned to segment boundaries, which
// preserves that guarantee; see SetMaxParallelism.
package segments

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/segments/types/shapes"
	"github.com/gomlx/segments/types/tensors"
)

// PoolType selects among the supported segment pooling (reduction) operations.
type PoolType int

const (
	// PoolUndefined is an undefined value.
	PoolUndefined PoolType = iota

	// PoolSum pools by summing all rows assigned to the same segment.
	PoolSum

	// PoolMean pools by averaging all rows assigned to the same segment.
	// Segments with no rows yield zero rows.
	PoolMean

	// PoolMin pools by taking the componentwise minimum over the rows of a segment.
	PoolMin

	// PoolMax pools by taking the componentwise maximum over the rows of a segment.
	PoolMax
)

//go:generate go tool enumer -type PoolType -trimprefix=Pool -output=gen_pooltype_enumer.go segments.go

// Pool reduces the rows of data into one row per segment, using the given pooling
// operation.
//
// data must be rank-2 with dtype Float32 or Float64; ids must be rank-1 with dtype
// Int32 or Int64, one id per data row, non-negative and sorted in non-decreasing
// order. The returned tensor is freshly allocated with shape
// (numSegments, data.Shape().Dimensions[1]) and data's dtype.
//
// It returns an error (wrapping ErrShapeMismatch, ErrUnsupportedDType,
// ErrNegativeSegmentID or ErrNonMonotonicSegmentIDs) if the inputs break the
// contract; nothing is allocated in that case. It panics if poolType is not one of
// PoolSum, PoolMean, PoolMin or PoolMax.
func Pool(data, ids *tensors.Tensor, poolType PoolType) (*tensors.Tensor, error) {
	out, _, err := pool(data, ids, poolType, false)
	return out, err
}

// Sum reduces each segment's rows by summing them. See Pool for the contract.
func Sum(data, ids *tensors.Tensor) (*tensors.Tensor, error) {
	return Pool(data, ids, PoolSum)
}

// Mean reduces each segment's rows by averaging them. Segments with no rows yield
// zero rows, never NaN. See Pool for the contract.
func Mean(data, ids *tensors.Tensor) (*tensors.Tensor, error) {
	return Pool(data, ids, PoolMean)
}

// Min reduces each segment's rows by taking componentwise minimums. Segments with
// no rows yield zero rows. See Pool for the contract.
func Min(data, ids *tensors.Tensor) (*tensors.Tensor, error) {
	return Pool(data, ids, PoolMin)
}

// Max reduces each segment's rows by taking componentwise maximums. Segments with
// no rows yield zero rows. See Pool for the contract.
func Max(data, ids *tensors.Tensor) (*tensors.Tensor, error) {
	return Pool(data, ids, PoolMax)
}

// SumWithCounts is like Sum but additionally returns the number of rows that
// contributed to each segment, as an Int64 tensor of shape (numSegments,).
func SumWithCounts(data, ids *tensors.Tensor) (out, counts *tensors.Tensor, err error) {
	return pool(data, ids, PoolSum, true)
}

// Counts returns the number of rows assigned to each segment, as an Int64 tensor of
// shape (numSegments,). It validates ids the same way Pool does: the id vector alone
// fully determines the result.
func Counts(ids *tensors.Tensor) (*tensors.Tensor, error) {
	if err := checkIDsTensor(ids); err != nil {
		return nil, err
	}
	switch ids.DType() {
	case dtypes.Int32:
		return countsImpl[int32](ids)
	case dtypes.Int64:
		return countsImpl[int64](ids)
	}
	exceptions.Panicf("segments.Counts: unreachable ids dtype %s", ids.DType())
	return nil, nil
}

// pool validates the tensor arguments and dispatches to the typed kernels.
func pool(data, ids *tensors.Tensor, poolType PoolType, wantCounts bool) (out, counts *tensors.Tensor, err error) {
	checkPoolType(poolType)
	if err = checkPoolArgs(data, ids); err != nil {
		return nil, nil, err
	}
	switch data.DType() {
	case dtypes.Float32:
		return poolTyped[float32](data, ids, poolType, wantCounts)
	case dtypes.Float64:
		return poolTyped[float64](data, ids, poolType, wantCounts)
	}
	exceptions.Panicf("segments.Pool: unreachable data dtype %s", data.DType())
	return nil, nil, nil
}

func poolTyped[T DataConstraints](data, ids *tensors.Tensor, poolType PoolType, wantCounts bool) (out, counts *tensors.Tensor, err error) {
	switch ids.DType() {
	case dtypes.Int32:
		return poolImpl[T, int32](data, ids, poolType, wantCounts)
	case dtypes.Int64:
		return poolImpl[T, int64](data, ids, poolType, wantCounts)
	}
	exceptions.Panicf("segments.Pool: unreachable ids dtype %s", ids.DType())
	return nil, nil, nil
}

// poolImpl runs the pooling kernel over the tensors' flat data. The output tensor is
// only allocated after the segment ids pass validation.
func poolImpl[T DataConstraints, I IDsConstraints](data, ids *tensors.Tensor, poolType PoolType, wantCounts bool) (out, countsT *tensors.Tensor, err error) {
	numCols := data.Shape().Dimensions[1]
	tensors.ConstFlatData(ids, func(idsFlat []I) {
		var numSegments int
		numSegments, err = validateSegmentIDs(idsFlat)
		if err != nil {
			return
		}
		rowCounts := make([]int64, numSegments)
		out = tensors.FromShape(shapes.Make(data.DType(), numSegments, numCols))
		tensors.ConstFlatData(data, func(dataFlat []T) {
			tensors.MutableFlatData(out, func(outFlat []T) {
				poolFlatInto(dataFlat, numCols, idsFlat, numSegments, rowCounts, outFlat, poolType)
			})
		})
		if wantCounts {
			countsT = tensors.FromFlatDataAndDimensions(rowCounts, numSegments)
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return out, countsT, nil
}

func countsImpl[I IDsConstraints](ids *tensors.Tensor) (out *tensors.Tensor, err error) {
	tensors.ConstFlatData(ids, func(idsFlat []I) {
		var numSegments int
		numSegments, err = validateSegmentIDs(idsFlat)
		if err != nil {
			return
		}
		rowCounts := make([]int64, numSegments)
		for _, id := range idsFlat {
			rowCounts[id]++
		}
		out = tensors.FromFlatDataAndDimensions(rowCounts, numSegments)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkPoolType panics on pool types that are not actual pooling operations.
// Validation errors are for data; a bad PoolType is a bug in the caller.
func checkPoolType(poolType PoolType) {
	if poolType == PoolUndefined || !poolType.IsAPoolType() {
		exceptions.Panicf("invalid pooling operation PoolType(%d), must be one of %v",
			int(poolType), []PoolType{PoolSum, PoolMean, PoolMin, PoolMax})
	}
}
