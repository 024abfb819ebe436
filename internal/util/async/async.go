package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Result is the outcome of one Task.
type Result struct {
	Name string
	Err  error
}

// RunPool executes tasks on a fixed pool of workers and waits for all of
// them. Results are returned in task order regardless of completion order.
// A failing task never stops its siblings.
//
// A workers value <= 0 or larger than len(tasks) sizes the pool to the
// number of tasks.
func RunPool(ctx context.Context, tasks []Task, workers int) []Result {
	if len(tasks) == 0 {
		return nil
	}
	if workers <= 0 || workers > len(tasks) {
		workers = len(tasks)
	}

	results := make([]Result, len(tasks))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = Result{Name: tasks[i].Name, Err: tasks[i].Func(ctx)}
			}
		}()
	}

	for i := range tasks {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return results
}

// RunParallel executes all tasks concurrently and returns every error
// encountered, joined, after all tasks finish.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "worker-1", Func: stopWorker1},
//	    {Name: "worker-2", Func: stopWorker2},
//	}
//	if err := RunParallel(ctx, tasks); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task) error {
	return Errors(RunPool(ctx, tasks, len(tasks)))
}

// Errors joins the errors of failed results, prefixed with the task name.
func Errors(results []Result) error {
	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Name, res.Err))
		}
	}
	return errors.Join(errs...)
}
