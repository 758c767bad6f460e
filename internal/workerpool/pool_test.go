package workerpool_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/corpus-builder/internal/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBucket = errors.New("bucket failed")

func TestNew_InvalidSize(t *testing.T) {
	t.Parallel()

	_, err := workerpool.New(0)
	require.ErrorIs(t, err, workerpool.ErrInvalidSize)

	pool, err := workerpool.New(3)
	require.NoError(t, err)
	assert.Equal(t, 3, pool.Size())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	pool, err := workerpool.New(2)
	require.NoError(t, err)

	var (
		running    atomic.Int32
		maxRunning atomic.Int32
	)

	for range 10 {
		_, submitErr := pool.Submit(func() error {
			current := running.Add(1)
			defer running.Add(-1)

			for {
				seen := maxRunning.Load()
				if current <= seen || maxRunning.CompareAndSwap(seen, current) {
					break
				}
			}

			time.Sleep(5 * time.Millisecond)

			return nil
		})
		require.NoError(t, submitErr)
	}

	pool.Wait()
	pool.Close()

	assert.LessOrEqual(t, maxRunning.Load(), int32(2))
	assert.Positive(t, maxRunning.Load())
}

func TestPool_SubmitAfterClose(t *testing.T) {
	t.Parallel()

	pool, err := workerpool.New(1)
	require.NoError(t, err)

	pool.Close()

	_, err = pool.Submit(func() error { return nil })
	require.ErrorIs(t, err, workerpool.ErrPoolClosed)
}

func TestTask_RecoversPanic(t *testing.T) {
	t.Parallel()

	pool, err := workerpool.New(1)
	require.NoError(t, err)

	defer pool.Close()

	task, err := pool.Submit(func() error { panic("boom") })
	require.NoError(t, err)

	taskErr := task.Wait()
	require.ErrorIs(t, taskErr, workerpool.ErrTaskPanicked)
	assert.Contains(t, taskErr.Error(), "boom")
}

func TestMap_ResultsInBucketOrder(t *testing.T) {
	t.Parallel()

	pool, err := workerpool.New(3)
	require.NoError(t, err)

	defer pool.Close()

	buckets := [][]int{{1, 2}, {3}, {4, 5, 6}, {7}}

	results, err := workerpool.Map(pool, buckets, func(bucket []int) (int, error) {
		sum := 0
		for _, value := range bucket {
			sum += value
		}

		// Later buckets finish first.
		time.Sleep(time.Duration(10-sum) * time.Millisecond)

		return sum, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 15, 7}, results)
}

func TestMap_CollectsEveryFailure(t *testing.T) {
	t.Parallel()

	pool, err := workerpool.New(2)
	require.NoError(t, err)

	defer pool.Close()

	var (
		mutex sync.Mutex
		seen  []int
	)

	buckets := [][]int{{0}, {1}, {2}, {3}}

	results, err := workerpool.Map(pool, buckets, func(bucket []int) (string, error) {
		mutex.Lock()
		seen = append(seen, bucket[0])
		mutex.Unlock()

		switch bucket[0] {
		case 1:
			return "", errBucket
		case 2:
			panic("bad bucket")
		default:
			return "ok", nil
		}
	})

	require.ErrorIs(t, err, errBucket)
	require.ErrorIs(t, err, workerpool.ErrTaskPanicked)
	assert.Len(t, seen, 4)
	assert.Equal(t, "ok", results[0])
	assert.Equal(t, "ok", results[3])
}

func TestMap_ClosedPool(t *testing.T) {
	t.Parallel()

	pool, err := workerpool.New(1)
	require.NoError(t, err)

	pool.Close()

	_, err = workerpool.Map(pool, [][]int{{1}}, func(bucket []int) (int, error) {
		return bucket[0], nil
	})
	require.ErrorIs(t, err, workerpool.ErrPoolClosed)
}

func TestMap_NoBuckets(t *testing.T) {
	t.Parallel()

	pool, err := workerpool.New(1)
	require.NoError(t, err)

	defer pool.Close()

	results, err := workerpool.Map(pool, nil, func(bucket []int) (int, error) {
		return len(bucket), nil
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}
