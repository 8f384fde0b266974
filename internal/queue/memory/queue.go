// Package memory provides the bounded in-memory stage task queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan pipeline.StageTask
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan pipeline.StageTask, capacity),
	}
}

// Enqueue pushes a stage task into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, task pipeline.StageTask) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next stage task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (pipeline.StageTask, error) {
	select {
	case <-ctx.Done():
		return pipeline.StageTask{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return pipeline.StageTask{}, errors.New("queue closed")
		}
		return task, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
