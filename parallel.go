package cryptomatte

import (
	"runtime"
	"sync"
)

// parallelForWithError runs fn(i) for i in [0, n) across c.workers
// goroutines, each handling one contiguous range of i. A worker whose fn
// call fails stops its own range; the other workers finish theirs, and the
// first error recorded is returned. Grounded on the teacher's exr.ParallelForWithError, but scoped to
// one Cryptomatte's own worker count rather than a package-level global —
// spec §9 rules out global state, and each Cryptomatte decodes with the
// concurrency its own LoadOptions requested.
func (c *Cryptomatte) parallelForWithError(n int, fn func(i int) error) error {
	workers := c.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if n <= workers || workers == 1 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	var wg sync.WaitGroup
	var errOnce sync.Once
	var firstErr error
	chunkSize := (n + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				if err := fn(i); err != nil {
					errOnce.Do(func() { firstErr = err })
					return
				}
			}
		}(start, end)
	}
	wg.Wait()
	return firstErr
}
