// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package segments

import "github.com/pkg/errors"

// Errors returned by the pooling operations. They are detected before any output is
// allocated, and call sites wrap them with context, so use errors.Is to test for them.
var (
	// ErrShapeMismatch indicates the data and segment ids tensors (or flat slices) have
	// incompatible shapes: data not rank-2, ids not rank-1, or differing row counts.
	ErrShapeMismatch = errors.New("data and segment ids have incompatible shapes")

	// ErrUnsupportedDType indicates a dtype outside the supported set: data must be
	// Float32 or Float64, segment ids must be Int32 or Int64.
	ErrUnsupportedDType = errors.New("dtype not supported for segment pooling")

	// ErrNegativeSegmentID indicates at least one segment id is negative.
	ErrNegativeSegmentID = errors.New("negative segment id")

	// ErrNonMonotonicSegmentIDs indicates the segment ids are not sorted in
	// non-decreasing order.
	ErrNonMonotonicSegmentIDs = errors.New("segment ids not sorted in non-decreasing order")
)
