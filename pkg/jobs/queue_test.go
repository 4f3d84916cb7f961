package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{}, 3)

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		seen[job.ID] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for _, id := range []string{"a", "b", "c"} {
		ok, err := q.Enqueue(Job{ID: id})
		require.NoError(t, err)
		assert.True(t, ok)
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 3)
}

func TestQueueCoalescesKeyedJobs(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var calls int32

	q := NewQueue("coalesce", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			started <- struct{}{}
			<-release
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{ID: "blocker"})
	require.NoError(t, err)
	<-started

	ok, err := q.Enqueue(Job{ID: "1", Key: "aula-1"})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = q.Enqueue(Job{ID: "2", Key: "aula-1"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, q.Pending())

	close(release)
	assert.Eventually(t, func() bool { return q.Pending() == 0 && atomic.LoadInt32(&calls) == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestQueueRetriesFailures(t *testing.T) {
	var calls int32
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("boom")
		}
		return nil
	}, QueueConfig{MaxRetries: 5, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{ID: "flaky"})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	_, err := q.Enqueue(Job{ID: "x"})
	assert.Error(t, err)
}
