package utils

import (
	"context"
	"sync"
)

type CompletedTask[In any, Out any] struct {
	Input  In
	Result Out
	Error  error
}

// RunInPool applies worker to every item using at most maxWorkers goroutines
// and returns one result per item in input order. Items not yet started when
// ctx is done complete with ctx.Err().
func RunInPool[In any, Out any](ctx context.Context, items []In, maxWorkers int, worker func(context.Context, In) (Out, error)) []CompletedTask[In, Out] {
	results := make([]CompletedTask[In, Out], len(items))
	if len(items) == 0 {
		return results
	}

	workers := max(1, min(len(items), maxWorkers))
	queue := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range queue {
				results[i].Input = items[i]
				if err := ctx.Err(); err != nil {
					results[i].Error = err
					continue
				}
				results[i].Result, results[i].Error = worker(ctx, items[i])
			}
		}()
	}

	for i := range items {
		queue <- i
	}
	close(queue)
	wg.Wait()

	return results
}

// Failed returns the tasks that ended with an error.
func Failed[In any, Out any](tasks []CompletedTask[In, Out]) []CompletedTask[In, Out] {
	var failed []CompletedTask[In, Out]
	for _, t := range tasks {
		if t.Error != nil {
			failed = append(failed, t)
		}
	}
	return failed
}
