package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFOOrder(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Stagger enqueues so arrival order is deterministic
			time.Sleep(time.Duration(i*20) * time.Millisecond)
			_, err := q.Enqueue(context.Background(), "t", func(context.Context) (interface{}, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				time.Sleep(10 * time.Millisecond)
				return nil, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestQueue_SingleFlight(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	var mu sync.Mutex
	running, maxRunning := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = q.Enqueue(context.Background(), "t", func(context.Context) (interface{}, error) {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				mu.Unlock()

				time.Sleep(20 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil, nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxRunning)
}

func TestQueue_AbandonedTaskStillRuns(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	ran := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Enqueue(ctx, "slow", func(context.Context) (interface{}, error) {
		time.Sleep(150 * time.Millisecond)
		close(ran)
		return "late", nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The worker finishes the task even though the caller left
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("abandoned task never finished")
	}
}

func TestQueue_ExpiredWhileQueuedIsSkipped(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	blocker := make(chan struct{})
	go func() {
		_, _ = q.Enqueue(context.Background(), "blocker", func(context.Context) (interface{}, error) {
			<-blocker
			return nil, nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	executed := false
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := q.Enqueue(ctx, "victim", func(context.Context) (interface{}, error) {
			executed = true
			return nil, nil
		})
		done <- err
	}()

	err := <-done
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(blocker)
	time.Sleep(50 * time.Millisecond)
	assert.False(t, executed, "task whose caller timed out while queued must not run")
}

func TestQueue_CloseWaitsForRunningTask(t *testing.T) {
	q := NewQueue()

	started := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		_, _ = q.Enqueue(context.Background(), "slow", func(context.Context) (interface{}, error) {
			close(started)
			time.Sleep(100 * time.Millisecond)
			close(finished)
			return nil, nil
		})
	}()
	<-started

	q.Close()

	// Close must not return while a task is still on the session
	select {
	case <-finished:
	default:
		t.Fatal("Close returned before the in-flight task finished")
	}
}

func TestQueue_CloseFailsQueued(t *testing.T) {
	q := NewQueue()

	blocker := make(chan struct{})
	go func() {
		_, _ = q.Enqueue(context.Background(), "blocker", func(context.Context) (interface{}, error) {
			<-blocker
			return nil, nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	close(blocker)
	q.Close()

	_, err := q.Enqueue(context.Background(), "after-close", func(context.Context) (interface{}, error) {
		return nil, nil
	})
	require.Error(t, err)
}
