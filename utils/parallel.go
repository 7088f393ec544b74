// Package utils contains small helpers shared by the collision packages.
package utils

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// GroupWorkFunc processes the half-open range [from, to) of a larger job.
type GroupWorkFunc func(ctx context.Context, groupNum, from, to int) error

// GroupWorkParallel splits totalSize items into at most workers contiguous groups and runs each
// group on its own goroutine. A non-positive workers value uses ParallelFactor. Errors from every
// group are combined; a panic in a group is returned as an error.
func GroupWorkParallel(ctx context.Context, totalSize, workers int, work GroupWorkFunc) error {
	if totalSize <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = ParallelFactor
	}
	if workers > totalSize {
		workers = totalSize
	}
	groupSize := totalSize / workers
	extra := totalSize % workers

	var (
		errMu sync.Mutex
		errs  error
	)
	g, gctx := errgroup.WithContext(ctx)
	from := 0
	for groupNum := 0; groupNum < workers; groupNum++ {
		to := from + groupSize
		if groupNum < extra {
			to++
		}
		groupNum, start, end := groupNum, from, to
		g.Go(func() (err error) {
			defer func() {
				if thePanic := recover(); thePanic != nil {
					err = fmt.Errorf("got panic running group %d in parallel: %v", groupNum, thePanic)
				}
				if err != nil {
					errMu.Lock()
					errs = multierr.Append(errs, err)
					errMu.Unlock()
				}
			}()
			return work(gctx, groupNum, start, end)
		})
		from = to
	}
	//nolint:errcheck
	g.Wait()
	return errs
}

// SimpleFunc is for RunInParallel.
type SimpleFunc func(ctx context.Context) error

// RunInParallel runs all functions in parallel and returns every error they produced. The first
// failure cancels the context handed to the others.
func RunInParallel(ctx context.Context, fs []SimpleFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var bigError error
	var bigErrorMutex sync.Mutex
	storeError := func(err error) {
		bigErrorMutex.Lock()
		defer bigErrorMutex.Unlock()
		bigError = multierr.Combine(bigError, err)
	}

	helper := func(f SimpleFunc) {
		defer func() {
			if thePanic := recover(); thePanic != nil {
				storeError(fmt.Errorf("got panic running something in parallel: %v", thePanic))
				cancel()
			}
			wg.Done()
		}()
		if err := f(ctx); err != nil {
			storeError(err)
			cancel()
		}
	}

	for _, f := range fs {
		wg.Add(1)
		go helper(f)
	}
	wg.Wait()
	return bigError
}
