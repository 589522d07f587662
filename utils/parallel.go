package utils

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/multierr"
	"go.viam.com/utils"
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

// IndexWorkFunc does the work for a single item of a batch.
type IndexWorkFunc func(ctx context.Context, index int) error

// ParallelForEach runs work for every index in [0, total) using at most workers goroutines.
// A workers value <= 0 uses ParallelFactor. Items are independent; the first error cancels the
// remaining work and all errors (including recovered panics) are combined in the result. Items skipped
// because ctx was cancelled make the result carry ctx's error.
func ParallelForEach(ctx context.Context, total, workers int, work IndexWorkFunc) error {
	if total <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = ParallelFactor
	}
	if workers > total {
		workers = total
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		errMu  sync.Mutex
		bigErr error
	)
	storeError := func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		// once an item has failed, the items it cancelled add nothing
		if bigErr != nil && errors.Is(err, ctx.Err()) {
			return
		}
		bigErr = multierr.Combine(bigErr, err)
	}

	indices := make(chan int)
	var wait sync.WaitGroup
	wait.Add(workers)
	for w := 0; w < workers; w++ {
		utils.PanicCapturingGo(func() {
			defer wait.Done()
			for idx := range indices {
				if err := runIndex(ctx, idx, work); err != nil {
					storeError(err)
					cancel()
				}
			}
		})
	}

feed:
	for i := 0; i < total; i++ {
		select {
		case <-ctx.Done():
			storeError(ctx.Err())
			break feed
		case indices <- i:
		}
	}
	close(indices)
	wait.Wait()
	return bigErr
}

func runIndex(ctx context.Context, idx int, work IndexWorkFunc) (err error) {
	defer func() {
		if thePanic := recover(); thePanic != nil {
			err = fmt.Errorf("got panic processing item %d in parallel: %v", idx, thePanic)
		}
	}()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return work(ctx, idx)
}
