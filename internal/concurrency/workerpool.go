// Package concurrency holds the worker pool behind the CSV port's row
// fan-out: a small fixed-size worker pool supervised by a
// gopkg.in/tomb.v2 Tomb, adapted from the teacher's internal/worker.go
// WorkerPool (there used to fan out TCP connection handling; here it fans
// out any bounded unit of work within the simulator).
package concurrency

import (
	"sync"

	tomb "gopkg.in/tomb.v2"
)

// WorkerPool runs a fixed number of supervised goroutines pulling jobs off
// a shared channel. Close stops accepting new jobs and waits for every
// worker to drain and exit.
type WorkerPool struct {
	jobs chan func()
	t    *tomb.Tomb
}

// NewWorkerPool starts n supervised workers. n <= 0 is treated as 1.
func NewWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = 1
	}
	wp := &WorkerPool{
		jobs: make(chan func()),
		t:    &tomb.Tomb{},
	}
	for i := 0; i < n; i++ {
		wp.t.Go(wp.runWorker)
	}
	return wp
}

func (wp *WorkerPool) runWorker() error {
	for {
		select {
		case <-wp.t.Dying():
			return nil
		case job, ok := <-wp.jobs:
			if !ok {
				return nil
			}
			job()
		}
	}
}

// Submit enqueues a single job, blocking if every worker is busy.
func (wp *WorkerPool) Submit(job func()) {
	wp.jobs <- job
}

// RunAll submits every job and blocks until all of them have completed,
// without shutting down the pool — useful for a single fan-out batch (the
// CSV port's per-chunk row validation) on a pool that may be reused.
func (wp *WorkerPool) RunAll(jobs []func()) {
	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for _, job := range jobs {
		job := job
		wp.Submit(func() {
			defer wg.Done()
			job()
		})
	}
	wg.Wait()
}

// Close stops accepting new jobs and waits for every worker to exit.
func (wp *WorkerPool) Close() {
	close(wp.jobs)
	_ = wp.t.Wait()
}
