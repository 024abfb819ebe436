package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunParallel_Success(t *testing.T) {
	t.Parallel()
	var count atomic.Int32

	tasks := []Task{
		{Name: "task1", Func: func(_ context.Context) error { count.Add(1); return nil }},
		{Name: "task2", Func: func(_ context.Context) error { count.Add(1); return nil }},
		{Name: "task3", Func: func(_ context.Context) error { count.Add(1); return nil }},
	}

	require.NoError(t, RunParallel(context.Background(), tasks))
	assert.Equal(t, int32(3), count.Load())
}

func TestRunParallel_EmptyTasks(t *testing.T) {
	t.Parallel()
	assert.NoError(t, RunParallel(context.Background(), nil))
	assert.Nil(t, RunPool(context.Background(), []Task{}, 4))
}

func TestRunParallel_FailureDoesNotStopSiblings(t *testing.T) {
	t.Parallel()
	var completed atomic.Int32
	boom := errors.New("backend exploded")

	tasks := []Task{
		{Name: "ok-1", Func: func(_ context.Context) error {
			time.Sleep(10 * time.Millisecond)
			completed.Add(1)
			return nil
		}},
		{Name: "failing", Func: func(_ context.Context) error { return boom }},
		{Name: "ok-2", Func: func(_ context.Context) error {
			time.Sleep(10 * time.Millisecond)
			completed.Add(1)
			return nil
		}},
	}

	err := RunParallel(context.Background(), tasks)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, int32(2), completed.Load())
}

func TestRunPool_ResultsInTaskOrder(t *testing.T) {
	t.Parallel()
	tasks := []Task{
		{Name: "slow", Func: func(_ context.Context) error { time.Sleep(20 * time.Millisecond); return nil }},
		{Name: "fast", Func: func(_ context.Context) error { return errors.New("fast failure") }},
	}

	results := RunPool(context.Background(), tasks, 0)
	require.Len(t, results, 2)
	assert.Equal(t, "slow", results[0].Name)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "fast", results[1].Name)
	assert.Error(t, results[1].Err)
}

func TestRunPool_BoundedConcurrency(t *testing.T) {
	t.Parallel()
	var inFlight, peak atomic.Int32

	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = Task{Name: "t", Func: func(_ context.Context) error {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		}}
	}

	results := RunPool(context.Background(), tasks, 2)
	assert.Len(t, results, 8)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}
