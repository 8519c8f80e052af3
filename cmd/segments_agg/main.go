// segments_agg aggregates the rows of matrices by their segment ids, using the
// pooling operations of the github.com/gomlx/segments library.
//
// It reads .csv, .npy or .npz inputs, prints the pooled segments as tables and
// optionally writes the results back as .npz archives, or as an HTML report
// with one plot per input.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gomlx/segments"
	"github.com/gomlx/segments/internal/workerspool"
	"github.com/gomlx/segments/types/tensors"
	"github.com/gomlx/segments/types/xsync"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagOps = flag.String("ops", "all", "Comma-separated pooling operations to apply: "+
		"any of \"sum\", \"mean\", \"min\" and \"max\", or \"all\" for all four.")
	flagIDsColumn = flag.String("ids_column", "segment_id", "Name of the CSV column with the segment ids. "+
		"The remaining numeric columns become the data matrix. Ignored for .npy and .npz inputs.")
	flagIDsFile = flag.String("ids_file", "", "File with the segment ids for .npy inputs. "+
		"It defaults to \"<input>_ids.npy\" next to each input. Ignored for .csv and .npz inputs.")
	flagOutput = flag.String("output", "", "Directory where to write one \"<input>_pooled.npz\" archive per input, "+
		"with one entry per operation plus the per-segment row counts. Nothing is written if empty.")
	flagPlot = flag.Bool("plot", false, "Write an HTML report with one plot per input: one bar trace per "+
		"operation over the segments, plus the rows per segment. It goes under -output if set, else to a temporary file.")
	flagMaxRows = flag.Int("max_rows", 8, "Maximum number of segment rows displayed per result table. "+
		"Larger results are elided in the middle. Non-positive values display everything.")
	flagQuiet    = flag.Bool("quiet", false, "Do not display the per-operation result tables, only the summary.")
	flagProgress = flag.Bool("progress", true, "Display a progress bar with live stats when there are multiple inputs.")

	flagParallelism = flag.Int("parallelism", runtime.NumCPU(), "Maximum parallelism of the pooling kernels: "+
		"0 runs them serially, negative values remove the limit.")
)

func main() {
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		klog.Errorf("Missing input files to aggregate. See 'segments_agg -help'.")
		os.Exit(1)
	}
	ops, err := parsePoolTypes(*flagOps)
	if err != nil {
		klog.Errorf("Invalid -ops: %v", err)
		os.Exit(1)
	}
	segments.SetMaxParallelism(*flagParallelism)

	results := aggregateAll(inputs, ops)
	var failed int
	var succeeded, reported []*fileResult
	for inputIdx, result := range results {
		if result == nil {
			klog.Warningf("Skipped %q after an earlier failure.", inputs[inputIdx])
			continue
		}
		reported = append(reported, result)
		if result.err != nil {
			failed++
			klog.Errorf("Failed to aggregate %q: %+v", inputs[inputIdx], result.err)
			continue
		}
		succeeded = append(succeeded, result)
	}

	printSummary(reported)
	if !*flagQuiet {
		for _, result := range succeeded {
			printResultTables(result, *flagMaxRows)
		}
	}
	if *flagOutput != "" && len(succeeded) > 0 {
		must.M(os.MkdirAll(*flagOutput, 0o755))
		for _, result := range succeeded {
			if err = writeResult(result, *flagOutput); err != nil {
				failed++
				klog.Errorf("Failed to write the results for %q: %+v", result.item.path, err)
			}
		}
	}
	if *flagPlot && len(succeeded) > 0 {
		reportPath, err := writeReport(succeeded, *flagOutput)
		if err != nil {
			failed++
			klog.Errorf("Failed to write the HTML report: %+v", err)
		} else {
			fmt.Printf("\nPlots written to:\t%s\n\n", reportPath)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// fileResult is the outcome of aggregating one input file.
type fileResult struct {
	item        *workItem
	numSegments int

	// counts has the number of rows per segment, shaped (numSegments).
	counts *tensors.Tensor

	// pooled has one (numSegments, numCols) tensor per operation applied.
	pooled map[segments.PoolType]*tensors.Tensor

	elapsed time.Duration
	err     error
}

// parsePoolTypes parses the -ops flag: a comma-separated list of operation
// names, or "all". Duplicates are dropped and the given order is preserved.
func parsePoolTypes(commaSeparated string) ([]segments.PoolType, error) {
	if strings.TrimSpace(strings.ToLower(commaSeparated)) == "all" {
		return []segments.PoolType{segments.PoolSum, segments.PoolMean, segments.PoolMin, segments.PoolMax}, nil
	}
	var ops []segments.PoolType
	seen := make(map[segments.PoolType]bool)
	for _, name := range strings.Split(commaSeparated, ",") {
		op, err := segments.PoolTypeString(strings.TrimSpace(name))
		if err != nil || op == segments.PoolUndefined {
			return nil, errors.Errorf("unknown pooling operation %q, valid values are sum, mean, min and max", name)
		}
		if seen[op] {
			continue
		}
		seen[op] = true
		ops = append(ops, op)
	}
	return ops, nil
}

// aggregateAll processes the inputs concurrently. The returned slice is aligned
// with inputs; entries are nil for inputs skipped after the first failure.
func aggregateAll(inputs []string, ops []segments.PoolType) []*fileResult {
	results := make([]*fileResult, len(inputs))
	progress := newProgressTracker(len(inputs))
	abort := xsync.NewLatch()
	pool := workerspool.New()
	var wg sync.WaitGroup
	for inputIdx, input := range inputs {
		if abort.Test() {
			break
		}
		wg.Add(1)
		pool.WaitToStart(func() {
			defer wg.Done()
			result := aggregateOne(input, ops)
			results[inputIdx] = result
			if result.err != nil {
				// Stop scheduling further inputs. Those already running
				// complete normally.
				abort.Trigger()
				return
			}
			progress.fileDone(progressUpdate{
				name:        result.item.name,
				numRows:     result.item.data.Shape().Dimensions[0],
				numSegments: result.numSegments,
				memory:      result.item.data.Memory(),
			})
		})
	}
	wg.Wait()
	progress.finish()
	return results
}

// aggregateOne loads one input and applies each of the pooling operations to it.
func aggregateOne(path string, ops []segments.PoolType) *fileResult {
	start := time.Now()
	item, err := loadInput(path, *flagIDsColumn, *flagIDsFile)
	if err != nil {
		return &fileResult{item: &workItem{path: path, name: displayName(path)}, err: err}
	}
	result := &fileResult{
		item:   item,
		pooled: make(map[segments.PoolType]*tensors.Tensor, len(ops)),
	}
	result.counts, result.err = segments.Counts(item.ids)
	if result.err != nil {
		return result
	}
	result.numSegments = result.counts.Shape().Dimensions[0]
	for _, op := range ops {
		result.pooled[op], result.err = segments.Pool(item.data, item.ids, op)
		if result.err != nil {
			return result
		}
	}
	result.elapsed = time.Since(start)
	return result
}
