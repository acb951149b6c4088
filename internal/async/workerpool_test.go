package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsAllJobs(t *testing.T) {
	pool := NewWorkerPool(4)
	var count int64

	err := pool.Run(context.Background(), 50, func(_ context.Context, _ int) error {
		atomic.AddInt64(&count, 1)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int64(50), count)
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(3)
	var current, max int64

	err := pool.Run(context.Background(), 30, func(_ context.Context, _ int) error {
		n := atomic.AddInt64(&current, 1)
		for {
			old := atomic.LoadInt64(&max)
			if n <= old || atomic.CompareAndSwapInt64(&max, old, n) {
				break
			}
		}
		atomic.AddInt64(&current, -1)
		return nil
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, max, int64(3))
}

func TestWorkerPoolReturnsFirstError(t *testing.T) {
	pool := NewWorkerPool(2)
	sentinel := errors.New("boom")

	err := pool.Run(context.Background(), 10, func(_ context.Context, i int) error {
		if i == 5 {
			return sentinel
		}
		return nil
	})

	require.Error(t, err)
}

func TestWorkerPoolTreatsNonPositiveLimitAsOne(t *testing.T) {
	pool := NewWorkerPool(0)
	assert.Equal(t, 1, pool.limit)
}
