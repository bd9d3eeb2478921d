// Package taskqueue provides a single-goroutine FIFO executor.
//
// The dictation controller owns one Queue. Recognizer callbacks, which arrive
// on arbitrary goroutines, are posted to it so that every state change happens
// on the goroutine running [Queue.Run], in posting order.
package taskqueue

import (
	"context"
	"sync"
)

// Queue runs posted tasks one at a time, in order, on the goroutine that
// calls Run. Post is safe for concurrent use.
//
// Panics raised by tasks are not recovered.
type Queue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool

	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

// New returns an empty, open Queue.
func New() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post appends task to the queue. It returns false, dropping task, once the
// queue is closed.
func (q *Queue) Post(task func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Run executes tasks until ctx is cancelled or Close is called. Tasks still
// queued when Close is called run before Run returns; tasks queued when ctx is
// cancelled are discarded. Run returns ctx.Err() on cancellation and nil after
// Close.
func (q *Queue) Run(ctx context.Context) error {
	for {
		for {
			task, ok := q.pop()
			if !ok {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			task()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			// Drain what was posted before Close.
			for {
				task, ok := q.pop()
				if !ok {
					return nil
				}
				task()
			}
		case <-q.notify:
		}
	}
}

// Close stops accepting tasks and lets Run return once the backlog is done.
// Safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.done)
	})
}

// Len returns the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *Queue) pop() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil, false
	}
	task := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	return task, true
}
