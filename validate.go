// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package segments

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/segments/types/tensors"
	"github.com/pkg/errors"
)

// checkPoolArgs validates the shapes and dtypes of the tensor arguments.
// Shape checks run before dtype checks; the segment ids' contents are validated
// separately by validateSegmentIDs, once the flat data is accessible.
func checkPoolArgs(data, ids *tensors.Tensor) error {
	if data == nil || !data.Ok() {
		return errors.Wrapf(ErrShapeMismatch, "data tensor is nil or invalid")
	}
	if ids == nil || !ids.Ok() {
		return errors.Wrapf(ErrShapeMismatch, "segment ids tensor is nil or invalid")
	}
	dataShape := data.Shape()
	idsShape := ids.Shape()
	if dataShape.Rank() != 2 {
		return errors.Wrapf(ErrShapeMismatch, "data must be rank-2 (rows, cols), got shape %s", dataShape)
	}
	if idsShape.Rank() != 1 {
		return errors.Wrapf(ErrShapeMismatch, "segment ids must be rank-1, got shape %s", idsShape)
	}
	if idsShape.Dimensions[0] != dataShape.Dimensions[0] {
		return errors.Wrapf(ErrShapeMismatch, "data has %d rows but there are %d segment ids",
			dataShape.Dimensions[0], idsShape.Dimensions[0])
	}
	switch dataShape.DType {
	case dtypes.Float32, dtypes.Float64:
	default:
		return errors.Wrapf(ErrUnsupportedDType, "data dtype %s, must be Float32 or Float64", dataShape.DType)
	}
	return checkIDsDType(idsShape.DType)
}

// checkIDsTensor validates the segment ids tensor alone, for operations that take no
// data tensor.
func checkIDsTensor(ids *tensors.Tensor) error {
	if ids == nil || !ids.Ok() {
		return errors.Wrapf(ErrShapeMismatch, "segment ids tensor is nil or invalid")
	}
	if ids.Rank() != 1 {
		return errors.Wrapf(ErrShapeMismatch, "segment ids must be rank-1, got shape %s", ids.Shape())
	}
	return checkIDsDType(ids.DType())
}

func checkIDsDType(dtype dtypes.DType) error {
	switch dtype {
	case dtypes.Int32, dtypes.Int64:
		return nil
	}
	return errors.Wrapf(ErrUnsupportedDType, "segment ids dtype %s, must be Int32 or Int64", dtype)
}

// validateSegmentIDs scans the ids once, checking they are non-negative and sorted in
// non-decreasing order, and returns the number of segments: since the ids are sorted,
// that is the last id plus one (zero for empty inputs).
//
// It runs before any output allocation, so a rejected input costs no memory.
func validateSegmentIDs[I IDsConstraints](ids []I) (numSegments int, err error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if ids[0] < 0 {
		return 0, errors.Wrapf(ErrNegativeSegmentID, "ids[0]=%d", ids[0])
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] < 0 {
			return 0, errors.Wrapf(ErrNegativeSegmentID, "ids[%d]=%d", i, ids[i])
		}
		if ids[i] < ids[i-1] {
			return 0, errors.Wrapf(ErrNonMonotonicSegmentIDs, "ids[%d]=%d is smaller than ids[%d]=%d",
				i, ids[i], i-1, ids[i-1])
		}
	}
	return int(ids[len(ids)-1]) + 1, nil
}
