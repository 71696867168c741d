// Package parallel provides the worker helpers used by ensemble training.
package parallel

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/diamondprice/pkg/errors"
)

// Workers resolves a requested worker count. Values <= 0 mean runtime.NumCPU().
func Workers(requested int) int {
	if requested <= 0 {
		return runtime.NumCPU()
	}
	return requested
}

// Parallelize splits [0, items) into contiguous ranges, one per worker, and
// runs fn on each range concurrently.
func Parallelize(items, workers int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := Workers(workers)
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := min(start+chunkSize, items)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially on the whole range when items
// does not exceed threshold, and falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items, threshold, workers int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, workers, fn)
}

// ForEach calls fn(i) for every i in [0, items) on at most workers goroutines
// and returns the first error. A panic inside fn is returned as a PanicError.
func ForEach(items, workers int, fn func(i int) error) error {
	if items <= 0 {
		return nil
	}
	var g errgroup.Group
	g.SetLimit(Workers(workers))
	for i := 0; i < items; i++ {
		g.Go(func() (err error) {
			defer errors.Recover(&err, "parallel.ForEach")
			return fn(i)
		})
	}
	return g.Wait()
}
