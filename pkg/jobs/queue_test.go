package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	var handled []string
	done := make(chan struct{})

	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		handled = append(handled, job.ID)
		if len(handled) == 2 {
			close(done)
		}
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 2})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a", Type: "compile_report"}))
	require.NoError(t, q.Enqueue(Job{ID: "b", Type: "compile_report"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs were not processed")
	}
	mu.Lock()
	assert.ElementsMatch(t, []string{"a", "b"}, handled)
	mu.Unlock()
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{ID: "a"}))
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var mu sync.Mutex
	attempts := []int{}
	done := make(chan struct{})

	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		attempts = append(attempts, job.Attempt)
		n := len(attempts)
		mu.Unlock()
		if n < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 5, RetryDelay: 10 * time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to completion")
	}
	mu.Lock()
	assert.Equal(t, []int{0, 1, 2}, attempts)
	mu.Unlock()
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	q := NewQueue("test", func(context.Context, Job) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("permanent")
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 5 * time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, 3, calls)
	mu.Unlock()
}
