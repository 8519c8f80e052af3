package main

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/segments/types/xsync"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// ProgressbarStyle is used by the progress bar. The default renders on any
// terminal; replace it with progressbar.ThemeUnicode for a prettier bar.
var ProgressbarStyle = progressbar.ThemeASCII

// maxUpdateFrequency is the maximum frequency the live stats are redrawn.
const maxUpdateFrequency = 200 * time.Millisecond

// numDrawLines is how many lines one draw emits: the stats rows, the table
// borders and the bar line. The next draw rewinds the cursor by this much.
const numDrawLines = 4 + 2 + 1

// progressUpdate describes one input just aggregated, for the live stats.
type progressUpdate struct {
	name        string
	numRows     int
	numSegments int
	memory      uintptr
}

// progressTracker draws a progress bar over the inputs plus a small table with
// the last finished one. The finished count is tracked exactly with atomics;
// the stats updates are advisory and may be dropped when the terminal is slow,
// the bar catches up from the counters on the next draw.
type progressTracker struct {
	enabled    bool
	bar        *progressbar.ProgressBar
	output     *termenv.Output
	statsStyle lipgloss.Style

	completed   atomic.Int64
	totalRows   atomic.Int64
	totalMemory atomic.Int64

	updates       chan progressUpdate
	drawsDone     sync.WaitGroup
	isFirstOutput bool
}

// newProgressTracker returns a tracker for numInputs inputs. It is disabled,
// and all its methods no-ops, when -progress=false or there is only one input.
func newProgressTracker(numInputs int) *progressTracker {
	t := &progressTracker{enabled: *flagProgress && numInputs > 1}
	if !t.enabled {
		return t
	}
	t.isFirstOutput = true
	t.output = termenv.NewOutput(os.Stdout)
	t.statsStyle = lipgloss.NewStyle().PaddingLeft(8)
	t.bar = progressbar.NewOptions(numInputs,
		progressbar.OptionSetDescription("aggregating"),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("inputs"),
		progressbar.OptionSetTheme(ProgressbarStyle),
	)
	t.updates = make(chan progressUpdate, 16)
	t.drawsDone.Add(1)
	go t.drawLoop()
	return t
}

// fileDone accounts for one finished input. Safe for concurrent use.
func (t *progressTracker) fileDone(update progressUpdate) {
	if !t.enabled {
		return
	}
	t.completed.Add(1)
	t.totalRows.Add(int64(update.numRows))
	t.totalMemory.Add(int64(update.memory))
	xsync.SendNoBlock(t.updates, update)
}

func (t *progressTracker) drawLoop() {
	defer t.drawsDone.Done()
	for update := range t.updates {
		// Collapse whatever accumulated in the buffer into the latest update.
	exhaust:
		for {
			select {
			case latest, ok := <-t.updates:
				if !ok {
					break exhaust
				}
				update = latest
			default:
				break exhaust
			}
		}
		t.draw(update)
		time.Sleep(maxUpdateFrequency)
	}
}

func (t *progressTracker) draw(update progressUpdate) {
	table := newPlainTable(lipgloss.Right, lipgloss.Left)
	table.Row("Last input", update.name)
	table.Row("Its rows/segments", fmt.Sprintf("%s / %s",
		humanize.Comma(int64(update.numRows)), humanize.Comma(int64(update.numSegments))))
	table.Row("Total rows", humanize.Comma(t.totalRows.Load()))
	table.Row("Total data", humanize.Bytes(uint64(t.totalMemory.Load())))

	t.output.HideCursor()
	if !t.isFirstOutput {
		t.output.CursorPrevLine(numDrawLines)
	}
	t.isFirstOutput = false
	fmt.Println(t.statsStyle.Render(table.Render()))
	_ = t.bar.Set(int(t.completed.Load()))
	fmt.Println()
	t.output.ShowCursor()
}

// finish stops the draw loop and leaves the cursor on a fresh line. It must be
// called after all fileDone calls returned.
func (t *progressTracker) finish() {
	if !t.enabled {
		return
	}
	close(t.updates)
	t.drawsDone.Wait()
	t.output.ShowCursor()
	fmt.Println()
}
