package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Task is one unit of queued work
type Task func(ctx context.Context) (interface{}, error)

type taskRecord struct {
	id         string
	ctx        context.Context
	task       Task
	enqueuedAt time.Time
	result     chan taskResult
}

type taskResult struct {
	value interface{}
	err   error
}

// Queue runs tasks strictly one at a time in arrival order. The portal
// session cannot survive interleaved navigation, so there is exactly one
// lane with concurrency one.
type Queue struct {
	tasks chan *taskRecord

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// queueDepth bounds how many requests may wait; beyond it Enqueue blocks
const queueDepth = 64

// NewQueue creates the queue and starts its worker
func NewQueue() *Queue {
	q := &Queue{
		tasks:  make(chan *taskRecord, queueDepth),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue schedules the task and waits for its result or the context.
// When the context expires first the task is abandoned: a running task
// keeps the worker until it returns on its own, preserving FIFO order
// for everything behind it.
func (q *Queue) Enqueue(ctx context.Context, id string, task Task) (interface{}, error) {
	record := &taskRecord{
		id:         id,
		ctx:        ctx,
		task:       task,
		enqueuedAt: time.Now(),
		result:     make(chan taskResult, 1),
	}

	select {
	case <-q.closed:
		return nil, context.Canceled
	default:
	}

	select {
	case q.tasks <- record:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.closed:
		return nil, context.Canceled
	}

	select {
	case result := <-record.result:
		return result.value, result.err
	case <-ctx.Done():
		log.Warn().Str("taskId", id).Msg("Caller abandoned queued task")
		return nil, ctx.Err()
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.closed:
			q.drain()
			return
		case record := <-q.tasks:
			q.execute(record)
		}
	}
}

func (q *Queue) execute(record *taskRecord) {
	// Skip tasks whose caller already gave up while they were queued
	select {
	case <-record.ctx.Done():
		record.result <- taskResult{err: record.ctx.Err()}
		return
	default:
	}

	waited := time.Since(record.enqueuedAt)
	log.Debug().
		Str("taskId", record.id).
		Dur("waited", waited).
		Msg("Task started")

	start := time.Now()
	value, err := record.task(record.ctx)
	duration := time.Since(start)

	record.result <- taskResult{value: value, err: err}

	if err != nil {
		log.Debug().Str("taskId", record.id).Dur("duration", duration).Err(err).Msg("Task failed")
	} else {
		log.Debug().Str("taskId", record.id).Dur("duration", duration).Msg("Task completed")
	}
}

func (q *Queue) drain() {
	for {
		select {
		case record := <-q.tasks:
			record.result <- taskResult{err: context.Canceled}
		default:
			return
		}
	}
}

// Close stops the worker after the current task and fails anything still
// queued.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
	<-q.done
}
