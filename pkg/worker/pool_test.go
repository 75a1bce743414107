package worker

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Run(t *testing.T) {
	pool := NewPool(&Config{Workers: 2}, nil)
	defer pool.Drain()

	done := make(chan struct{})
	err := pool.Run(func() error {
		close(done)
		return nil
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestPool_RunFailureNotPropagated(t *testing.T) {
	pool := NewPool(&Config{Workers: 1}, nil)

	err := pool.Run(func() error {
		return fmt.Errorf("task exploded")
	})
	require.NoError(t, err)

	pool.Drain()
}

func TestPool_Supply(t *testing.T) {
	pool := NewPool(&Config{Workers: 2}, nil)
	defer pool.Drain()

	future := Supply(pool, func() (int, error) {
		return 42, nil
	})
	value, ok := future.Wait()
	assert.True(t, ok)
	assert.Equal(t, 42, value)
}

func TestPool_SupplyFailureResolvesZero(t *testing.T) {
	pool := NewPool(&Config{Workers: 1}, nil)
	defer pool.Drain()

	future := Supply(pool, func() (string, error) {
		return "partial", fmt.Errorf("task failed")
	})
	value, ok := future.Wait()
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestPool_PanicDoesNotKillWorker(t *testing.T) {
	pool := NewPool(&Config{Workers: 1}, nil)
	defer pool.Drain()

	require.NoError(t, pool.Run(func() error {
		panic("boom")
	}))

	// The single worker must survive to run the next task.
	future := Supply(pool, func() (bool, error) { return true, nil })
	value, ok := future.Wait()
	assert.True(t, ok)
	assert.True(t, value)
}

func TestPool_SupplyPanicResolvesFuture(t *testing.T) {
	pool := NewPool(&Config{Workers: 1}, nil)
	defer pool.Drain()

	future := Supply(pool, func() (int, error) {
		panic("boom")
	})

	type result struct {
		value int
		ok    bool
	}
	resolved := make(chan result, 1)
	go func() {
		value, ok := future.Wait()
		resolved <- result{value, ok}
	}()

	select {
	case res := <-resolved:
		assert.False(t, res.ok)
		assert.Zero(t, res.value)
	case <-time.After(2 * time.Second):
		t.Fatal("future not resolved after task panic")
	}

	// The worker survives the panic and keeps serving tasks.
	next := Supply(pool, func() (int, error) { return 7, nil })
	value, ok := next.Wait()
	assert.True(t, ok)
	assert.Equal(t, 7, value)
}

func TestPool_DrainWaitsForAllTasks(t *testing.T) {
	pool := NewPool(&Config{Workers: 4}, nil)

	const tasks = 32
	var completed atomic.Int32
	for i := 0; i < tasks; i++ {
		require.NoError(t, pool.Run(func() error {
			time.Sleep(10 * time.Millisecond)
			completed.Add(1)
			return nil
		}))
	}

	pool.Drain()
	assert.Equal(t, int32(tasks), completed.Load())
}

func TestPool_SubmitAfterDrainRejected(t *testing.T) {
	pool := NewPool(&Config{Workers: 1}, nil)
	pool.Drain()

	err := pool.Run(func() error { return nil })
	assert.ErrorIs(t, err, ErrPoolDraining)

	future := Supply(pool, func() (int, error) { return 1, nil })
	value, ok := future.Wait()
	assert.False(t, ok)
	assert.Zero(t, value)
}

func TestPool_DrainIdempotent(t *testing.T) {
	pool := NewPool(&Config{Workers: 2}, nil)
	pool.Drain()
	pool.Drain()
}

func TestDispatchTaskError(t *testing.T) {
	inner := fmt.Errorf("inner")
	err := &DispatchTaskError{Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "background task failed")
}
