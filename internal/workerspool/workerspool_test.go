package workerspool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gomlx/segments/types/xsync"
	"github.com/stretchr/testify/assert"
)

func TestPool_Saturate(t *testing.T) {
	// Test saturation.
	pool := New()
	wantTasks := 5
	pool.SetMaxParallelism(wantTasks)

	var count atomic.Int32
	doneNewTasks := xsync.NewLatch()
	doneTest := xsync.NewLatch()

	go func() {
		pool.Saturate(func() {
			got := count.Add(1)
			runtime.Gosched()
			if int(got) == wantTasks {
				doneNewTasks.Trigger()
				return
			}
			doneNewTasks.Wait()
		})
		doneTest.Trigger()
	}()

	select {
	case <-doneTest.WaitChan():
		// Success
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout before all tasks were executed.")
	}
	if int(count.Load()) != wantTasks {
		t.Fatalf("Expected %d tasks, got %d", wantTasks, count.Load())
	}

	// Test No Parallelism
	pool.SetMaxParallelism(0)
	count.Store(0)
	pool.Saturate(func() { count.Add(1) })
	assert.Equal(t, int32(1), count.Load())

	// Test Unlimited
	pool.SetMaxParallelism(-1)
	count.Store(0)
	var started atomic.Int32
	pool.Saturate(func() {
		started.Add(1)
		runtime.Gosched()
		count.Add(1)
	})
	assert.Greater(t, int(started.Load()), 1)
	assert.Equal(t, count.Load(), started.Load())
}

func TestPool_WaitToStart(t *testing.T) {
	pool := New()
	pool.SetMaxParallelism(2)
	assert.True(t, pool.IsEnabled())
	assert.False(t, pool.IsUnlimited())
	assert.Equal(t, 2, pool.MaxParallelism())

	numTasks := 100
	var wg sync.WaitGroup
	var running, maxRunning atomic.Int32
	wg.Add(numTasks)
	for range numTasks {
		pool.WaitToStart(func() {
			defer wg.Done()
			now := running.Add(1)
			defer running.Add(-1)
			for {
				seen := maxRunning.Load()
				if now <= seen || maxRunning.CompareAndSwap(seen, now) {
					break
				}
			}
			runtime.Gosched()
		})
	}
	wg.Wait()
	assert.Equal(t, int32(0), running.Load())
	// At most goroutineToParallelismRatio*maxParallelism tasks may run at once.
	assert.LessOrEqual(t, int(maxRunning.Load()), goroutineToParallelismRatio*2)

	// Disabled parallelism runs the task inline.
	pool.SetMaxParallelism(0)
	assert.False(t, pool.IsEnabled())
	ran := false
	pool.WaitToStart(func() { ran = true })
	assert.True(t, ran)
}
