// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package segments

import (
	"github.com/gomlx/segments/internal/workerspool"
)

// workers is the pool shared by all pooling calls in the process.
var workers = workerspool.New()

// SetMaxParallelism caps how many goroutines the pooling kernels use.
//
// The default is runtime.NumCPU(). Zero disables parallelism, so kernels run on the
// calling goroutine; negative values remove the cap. Only change it while no pooling
// call is running, otherwise the behavior is undefined.
//
// Parallel and serial execution produce bit-identical outputs.
func SetMaxParallelism(maxParallelism int) {
	workers.SetMaxParallelism(maxParallelism)
}

// minParallelizeChunk is the minimum number of elements to parallelize over.
const minParallelizeChunk = 4096

// rowChunk is a contiguous range of data rows plus the segment range it owns.
//
// Chunk boundaries never split a segment, so each chunk writes its own output rows
// without synchronization. The segment ranges tile [0, numSegments): every segment,
// including empty ones, has exactly one owner running its post-pass.
type rowChunk struct {
	rowStart, rowEnd int
	segStart, segEnd int
}

// partitionRows splits the rows into segment-aligned chunks of roughly
// minParallelizeChunk elements each. It returns a single chunk covering everything
// when parallelism is disabled or the input is too small for it to pay off.
func partitionRows[I IDsConstraints](ids []I, numCols, numSegments int) []rowChunk {
	numRows := len(ids)
	if !workers.IsEnabled() || numRows*numCols <= minParallelizeChunk {
		return []rowChunk{{0, numRows, 0, numSegments}}
	}
	rowsPerChunk := minParallelizeChunk / max(numCols, 1)
	if maxWorkers := workers.MaxParallelism(); maxWorkers > 0 {
		// Make the chunks finer if there are enough workers to benefit.
		rowsPerChunk = min(rowsPerChunk, numRows/maxWorkers)
	}
	rowsPerChunk = max(rowsPerChunk, 1)

	chunks := make([]rowChunk, 0, numRows/rowsPerChunk+1)
	rowStart, segStart := 0, 0
	for rowStart < numRows {
		rowEnd := min(rowStart+rowsPerChunk, numRows)
		// Advance past the current run of equal ids, so no segment spans two chunks.
		for rowEnd < numRows && ids[rowEnd] == ids[rowEnd-1] {
			rowEnd++
		}
		segEnd := numSegments
		if rowEnd < numRows {
			segEnd = int(ids[rowEnd])
		}
		chunks = append(chunks, rowChunk{rowStart: rowStart, rowEnd: rowEnd, segStart: segStart, segEnd: segEnd})
		rowStart, segStart = rowEnd, segEnd
	}
	return chunks
}

// poolFlatInto pools dataFlat into outFlat, serially or across workers.
//
// outFlat must be zero-initialized (as fresh allocations are) and counts must hold
// numSegments zeros. Chunks are consumed from a queue, so uneven segment runs spread
// evenly over the workers.
func poolFlatInto[T DataConstraints, I IDsConstraints](dataFlat []T, numCols int, ids []I, numSegments int, counts []int64, outFlat []T, poolType PoolType) {
	chunks := partitionRows(ids, numCols, numSegments)
	if len(chunks) == 1 {
		poolChunk(dataFlat, numCols, ids, chunks[0], counts, outFlat, poolType)
		return
	}
	work := make(chan rowChunk, len(chunks))
	for _, chunk := range chunks {
		work <- chunk
	}
	close(work)
	workers.Saturate(func() {
		for chunk := range work {
			poolChunk(dataFlat, numCols, ids, chunk, counts, outFlat, poolType)
		}
	})
}
