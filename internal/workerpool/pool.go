// Package workerpool provides an explicitly constructed, bounded pool of
// goroutines that executes bucket tasks and hands back their results.
package workerpool

import (
	"errors"
	"fmt"
	"sync"
)

// Static errors.
var (
	ErrInvalidSize  = errors.New("pool size must be positive")
	ErrPoolClosed   = errors.New("pool is closed")
	ErrTaskPanicked = errors.New("task panicked")
)

// Pool bounds the number of concurrently running tasks with a semaphore channel.
// A pool is created at stage start and closed once every task has been awaited.
type Pool struct {
	slots     chan struct{}
	waitGroup sync.WaitGroup
	mutex     sync.Mutex
	closed    bool
}

// Task is the handle of one submitted unit of work.
type Task struct {
	done chan struct{}
	err  error
}

// New creates a pool running at most size tasks at once.
func New(size int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}

	return &Pool{
		slots:     make(chan struct{}, size),
		waitGroup: sync.WaitGroup{},
		mutex:     sync.Mutex{},
		closed:    false,
	}, nil
}

// Size returns the maximum number of concurrently running tasks.
func (p *Pool) Size() int {
	return cap(p.slots)
}

// Submit schedules task and returns immediately. A panic inside task is
// recovered and reported by the task handle as ErrTaskPanicked.
func (p *Pool) Submit(task func() error) (*Task, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	handle := &Task{done: make(chan struct{}), err: nil}

	p.waitGroup.Add(1)

	go func() {
		defer p.waitGroup.Done()
		defer close(handle.done)

		// Acquire a worker slot to bound concurrency.
		p.slots <- struct{}{}

		defer func() { <-p.slots }()

		handle.err = runRecovered(task)
	}()

	return handle, nil
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.waitGroup.Wait()
}

// Close rejects further submissions and waits for the running tasks.
func (p *Pool) Close() {
	p.mutex.Lock()
	p.closed = true
	p.mutex.Unlock()

	p.Wait()
}

// Wait blocks until the task has finished and returns its error.
func (t *Task) Wait() error {
	<-t.done

	return t.err
}

// Map runs fn once per bucket on the pool and returns the results in bucket
// order. Every bucket runs to completion; the returned error joins the
// failures of all buckets that returned an error or panicked.
func Map[T, R any](pool *Pool, buckets [][]T, fn func(bucket []T) (R, error)) ([]R, error) {
	results := make([]R, len(buckets))
	tasks := make([]*Task, 0, len(buckets))

	for index, bucket := range buckets {
		task, err := pool.Submit(func() error {
			result, err := fn(bucket)
			results[index] = result

			return err
		})
		if err != nil {
			_ = awaitAll(tasks)

			return nil, fmt.Errorf("failed to submit bucket %d: %w", index, err)
		}

		tasks = append(tasks, task)
	}

	err := awaitAll(tasks)
	if err != nil {
		return results, err
	}

	return results, nil
}

func awaitAll(tasks []*Task) error {
	var errs []error

	for index, task := range tasks {
		err := task.Wait()
		if err != nil {
			errs = append(errs, fmt.Errorf("bucket %d: %w", index, err))
		}
	}

	return errors.Join(errs...)
}

func runRecovered(task func() error) (err error) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, recovered)
		}
	}()

	return task()
}
