package memory

import (
	"context"
	"testing"
	"time"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

func TestQueueRoundTrip(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	ctx := context.Background()

	task := pipeline.StageTask{JobID: "job-1", Kind: pipeline.StageDiscovery}
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if got.JobID != "job-1" || got.Kind != pipeline.StageDiscovery {
		t.Fatalf("unexpected task: %+v", got)
	}
}

func TestQueueRespectsContext(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); err == nil {
		t.Fatal("expected dequeue to fail on context timeout")
	}

	// Fill the queue, then a second enqueue must respect cancellation.
	full := pipeline.StageTask{JobID: "job-1", Kind: pipeline.StageExtraction}
	if err := q.Enqueue(context.Background(), full); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	if err := q.Enqueue(ctx2, full); err == nil {
		t.Fatal("expected enqueue to fail when full and context expires")
	}
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	q.Close()
	q.Close() // second close must not panic

	if _, err := q.Dequeue(context.Background()); err == nil {
		t.Fatal("expected error after close")
	}
}
