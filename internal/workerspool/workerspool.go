// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool provides the worker pool shared by the segment pooling kernels.
//
// Kernels split their work in row ranges and either start one goroutine per range
// (Pool.WaitToStart) or start a fixed set of goroutines consuming ranges from a
// channel (Pool.Saturate). The pool caps how much of that runs concurrently.
package workerspool

import (
	"runtime"
	"sync"
)

// Pool limits the number of concurrently running tasks.
//
// The parallelism is a soft target: the number of live goroutines can be higher,
// since tasks may block waiting on each other.
type Pool struct {
	// maxParallelism is a soft target on the limit of parallel work to do.
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // Should be signaled whenever numRunning is decreased.
	numRunning     int
}

// New returns a new Pool of workers with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	w := &Pool{}
	w.maxParallelism = runtime.NumCPU()
	w.cond = sync.Cond{L: &w.mu}
	return w
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0)
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0)
func (w *Pool) IsUnlimited() bool {
	return w.maxParallelism < 0
}

// MaxParallelism is a soft-target for parallelism (the limit of goroutines is higher than this).
// If set to 0 parallelism is disabled.
// If set to -1 parallelism is unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism.
//
// You should only change the parallelism before any workers start running. If changed during
// the execution the behavior is undefined.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	w.maxParallelism = maxParallelism
}

const goroutineToParallelismRatio = 2

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with workerPool.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism == 0 {
		return true
	} else if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= goroutineToParallelismRatio*w.maxParallelism
}

// WaitToStart waits until there is a worker available to run the task.
//
// If parallelism is disabled (maxParallelism is 0), it runs the task inline and returns when
// it is finished. This is risky if one is relying on concurrency, and it can lead to
// deadlocks. Avoid using this function if the parallelism is disabled.
func (w *Pool) WaitToStart(task func()) {
	if w.IsUnlimited() {
		go task()
		return

	} else if w.maxParallelism == 0 {
		// No parallelism, run inline -- better avoided.
		task()
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		w.cond.Wait()
	}
	w.lockedRunTaskInGoroutine(task)
}

// lockedRunTaskInGoroutine and keep tabs on w.numRunning.
//
// It must be called with workerPool.mu acquired.
func (w *Pool) lockedRunTaskInGoroutine(task func()) {
	w.numRunning++
	go func() {
		task()
		w.mu.Lock()
		w.numRunning--
		w.cond.Signal()
		w.mu.Unlock()
	}()
}

// Saturate runs copies of worker on as many goroutines as the pool's parallelism and waits
// for all of them to finish.
//
// It is meant for the "work queue" pattern: the caller fills a channel with chunks of work,
// closes it, and each worker copy consumes chunks until the channel is exhausted.
//
// If parallelism is disabled (maxParallelism is 0), it runs worker once, inline.
// If parallelism is unlimited, it starts runtime.NumCPU() copies.
func (w *Pool) Saturate(worker func()) {
	if w.maxParallelism == 0 {
		worker()
		return
	}
	numWorkers := w.maxParallelism
	if numWorkers < 0 {
		numWorkers = runtime.NumCPU()
	}
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	w.mu.Lock()
	for range numWorkers {
		w.lockedRunTaskInGoroutine(func() {
			defer wg.Done()
			worker()
		})
	}
	w.mu.Unlock()
	wg.Wait()
}
