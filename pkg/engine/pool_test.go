package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/errors"
)

func TestPoolRunsSubmittedWork(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	ran := false
	task, err := p.Submit(context.Background(), 0, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, task.Wait(context.Background()))
	require.True(t, ran)
}

func TestPoolPriorityOrder(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	// Occupy the single worker so subsequent submissions queue up.
	gate := make(chan struct{})
	blocker, err := p.Submit(context.Background(), 0, func(ctx context.Context) error {
		<-gate
		return nil
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	low, err := p.Submit(context.Background(), 1, record("low"))
	require.NoError(t, err)
	high, err := p.Submit(context.Background(), 10, record("high"))
	require.NoError(t, err)
	alsoLow, err := p.Submit(context.Background(), 1, record("low2"))
	require.NoError(t, err)

	close(gate)
	require.NoError(t, blocker.Wait(context.Background()))
	require.NoError(t, high.Wait(context.Background()))
	require.NoError(t, low.Wait(context.Background()))
	require.NoError(t, alsoLow.Wait(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"high", "low", "low2"}, order,
		"higher priority first, FIFO within equal priority")
}

func TestPoolSubmitAfterClose(t *testing.T) {
	p := NewPool(1)
	p.Close()

	_, err := p.Submit(context.Background(), 0, func(ctx context.Context) error { return nil })
	require.True(t, errors.Is(err, errors.ErrCodeConflict))
}

func TestPoolCloseDrainsQueue(t *testing.T) {
	p := NewPool(1)

	var count int
	var mu sync.Mutex
	var tasks []*Task
	for i := 0; i < 5; i++ {
		task, err := p.Submit(context.Background(), 0, func(ctx context.Context) error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	p.Close()
	for _, task := range tasks {
		require.NoError(t, task.Wait(context.Background()))
	}
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 5, count, "queued work survives Close")
}

func TestTaskWaitHonorsContext(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	gate := make(chan struct{})
	defer close(gate)
	task, err := p.Submit(context.Background(), 0, func(ctx context.Context) error {
		<-gate
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, task.Wait(ctx), context.DeadlineExceeded)
}
