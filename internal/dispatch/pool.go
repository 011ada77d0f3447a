// Package dispatch runs full-screen kernels across a fixed set of workers.
// Every call returns only after all rows finish, so consecutive calls never
// overlap.
package dispatch

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool splits row ranges across workers.
type Pool struct {
	workers int
	rows    atomic.Int64 // rows executed since creation
}

// New returns a pool with the given worker count (NumCPU when <= 0).
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers}
}

// Workers returns the worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// RowsExecuted returns the total number of rows run by the pool.
func (p *Pool) RowsExecuted() int64 {
	return p.rows.Load()
}

// Rows calls fn(y) for every y in [y0, y1). Each row is handled by exactly
// one worker.
func (p *Pool) Rows(y0, y1 int, fn func(y int)) {
	n := y1 - y0
	if n <= 0 {
		return
	}
	if p.workers == 1 || n == 1 {
		for y := y0; y < y1; y++ {
			fn(y)
		}
		p.rows.Add(int64(n))
		return
	}

	rowChan := make(chan int, p.workers*2)
	var wg sync.WaitGroup
	for w := 0; w < min(p.workers, n); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rowChan {
				fn(y)
				p.rows.Add(1)
			}
		}()
	}

	for y := y0; y < y1; y++ {
		rowChan <- y
	}
	close(rowChan)

	wg.Wait()
}
