package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/segments"
	"github.com/gomlx/segments/types/tensors"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	failedRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
			Bold(true).
			PaddingLeft(1).PaddingRight(1)
)

func alignmentFor(col int, alignments []lipgloss.Position) lipgloss.Position {
	if col < len(alignments) {
		return alignments[col]
	}
	if len(alignments) > 0 {
		return alignments[len(alignments)-1]
	}
	return lipgloss.Left
}

// newPlainTable returns an empty bordered table with alternating row styles.
// Alignments are given per column, the last one repeating for any extra columns.
func newPlainTable(alignments ...lipgloss.Position) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			return s.Align(alignmentFor(col, alignments))
		})
}

// failuresTable is a plain table that additionally tracks which rows hold
// failed inputs, rendering those highlighted.
type failuresTable struct {
	Table    *lgtable.Table
	count    int
	failures map[int]bool
}

func (t *failuresTable) Row(failed bool, row ...string) {
	if failed {
		t.failures[t.count] = true
	}
	t.Table.Row(row...)
	t.count++
}

func newFailuresTable(alignments ...lipgloss.Position) *failuresTable {
	t := &failuresTable{failures: make(map[int]bool)}
	t.Table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				return headerRowStyle
			}
			if t.failures[row] {
				s = failedRowStyle
			} else if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			return s.Align(alignmentFor(col, alignments))
		})
	return t
}

// printSummary prints one row per input with its dimensions, data size and
// timing. Failed inputs are highlighted with their error in place of the stats.
func printSummary(results []*fileResult) {
	fmt.Println(titleStyle.Render("Summary"))
	table := newFailuresTable(lipgloss.Left, lipgloss.Right)
	table.Table.Headers("Input", "Rows", "Columns", "Segments", "Data", "Elapsed")
	for _, result := range results {
		if result.err != nil {
			table.Row(true, result.item.name, "-", "-", "-", "-", "failed")
			continue
		}
		dims := result.item.data.Shape().Dimensions
		table.Row(false,
			result.item.name,
			humanize.Comma(int64(dims[0])),
			humanize.Comma(int64(dims[1])),
			humanize.Comma(int64(result.numSegments)),
			humanize.Bytes(uint64(result.item.data.Memory())),
			result.elapsed.Round(time.Microsecond).String())
	}
	fmt.Println(table.Table.Render())
}

// printResultTables prints one table per pooling operation applied to the
// input, eliding the middle segments when there are more than maxRows of them.
func printResultTables(result *fileResult, maxRows int) {
	for _, op := range segments.PoolTypeValues() {
		pooled, found := result.pooled[op]
		if !found {
			continue
		}
		fmt.Println(titleStyle.Render(fmt.Sprintf("%s: %s", result.item.name, op)))
		table := newPlainTable(lipgloss.Right)
		table.Headers(resultHeaders(result.item, pooled)...)
		for _, row := range resultRows(result, pooled, maxRows) {
			table.Row(row...)
		}
		fmt.Println(table.Render())
	}
}

func resultHeaders(item *workItem, pooled *tensors.Tensor) []string {
	numCols := pooled.Shape().Dimensions[1]
	headers := make([]string, 0, numCols+2)
	headers = append(headers, "Segment", "Rows")
	for col := range numCols {
		if col < len(item.columns) {
			headers = append(headers, item.columns[col])
		} else {
			headers = append(headers, fmt.Sprintf("col%d", col))
		}
	}
	return headers
}

func resultRows(result *fileResult, pooled *tensors.Tensor, maxRows int) [][]string {
	numSegments := pooled.Shape().Dimensions[0]
	numCols := pooled.Shape().Dimensions[1]
	counts := tensors.CopyFlatData[int64](result.counts)
	values := formatPooled(pooled)
	rowFor := func(seg int) []string {
		row := make([]string, 0, numCols+2)
		row = append(row, strconv.Itoa(seg), humanize.Comma(counts[seg]))
		return append(row, values[seg]...)
	}
	if maxRows <= 0 || numSegments <= maxRows {
		rows := make([][]string, 0, numSegments)
		for seg := range numSegments {
			rows = append(rows, rowFor(seg))
		}
		return rows
	}
	head := (maxRows + 1) / 2
	tail := maxRows - head
	rows := make([][]string, 0, maxRows+1)
	for seg := range head {
		rows = append(rows, rowFor(seg))
	}
	ellipsis := make([]string, numCols+2)
	for col := range ellipsis {
		ellipsis[col] = "…"
	}
	rows = append(rows, ellipsis)
	for seg := numSegments - tail; seg < numSegments; seg++ {
		rows = append(rows, rowFor(seg))
	}
	return rows
}

// formatPooled renders each pooled value with %.5g, one slice of cells per segment.
func formatPooled(pooled *tensors.Tensor) [][]string {
	numSegments := pooled.Shape().Dimensions[0]
	numCols := pooled.Shape().Dimensions[1]
	formatted := make([][]string, numSegments)
	format := func(values []float64) {
		for seg := range formatted {
			cells := make([]string, numCols)
			for col := range cells {
				cells[col] = fmt.Sprintf("%.5g", values[seg*numCols+col])
			}
			formatted[seg] = cells
		}
	}
	pooled.ConstFlatData(func(flat any) {
		switch values := flat.(type) {
		case []float64:
			format(values)
		case []float32:
			asFloat64 := make([]float64, len(values))
			for idx, value := range values {
				asFloat64[idx] = float64(value)
			}
			format(asFloat64)
		}
	})
	return formatted
}
