package async

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	processor "github.com/joseph-ayodele/labreports/internal/pipeline"
)

type stubProcessor struct {
	mu      sync.Mutex
	seen    []string
	block   chan struct{}
	failFor map[string]bool
}

func (s *stubProcessor) ProcessFile(ctx context.Context, path string) (processor.Result, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return processor.Result{}, ctx.Err()
		}
	}
	s.mu.Lock()
	s.seen = append(s.seen, path)
	s.mu.Unlock()
	if s.failFor[path] {
		return processor.Result{}, errors.New("boom")
	}
	return processor.Result{}, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestProcessorQueue_ProcessesAll(t *testing.T) {
	sp := &stubProcessor{failFor: map[string]bool{"f3.pdf": true}}
	var (
		mu     sync.Mutex
		failed []string
	)
	q := NewProcessorQueue(sp, quietLogger(),
		WithWorkers(3),
		WithQueueSize(4),
		WithResultFunc(func(job Job, _ processor.Result, err error) {
			if err != nil {
				mu.Lock()
				failed = append(failed, job.Path)
				mu.Unlock()
			}
		}),
	)

	for i := 0; i < 10; i++ {
		if err := q.Enqueue(context.Background(), Job{Path: fmt.Sprintf("f%d.pdf", i)}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	if len(sp.seen) != 10 {
		t.Errorf("processed %d jobs, want 10", len(sp.seen))
	}
	if len(failed) != 1 || failed[0] != "f3.pdf" {
		t.Errorf("failed = %v", failed)
	}
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&stubProcessor{}, quietLogger(), WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background()) // idempotent

	if err := q.Enqueue(context.Background(), Job{Path: "late.pdf"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestProcessorQueue_BackpressureHonorsContext(t *testing.T) {
	sp := &stubProcessor{block: make(chan struct{})}
	q := NewProcessorQueue(sp, quietLogger(), WithWorkers(1), WithQueueSize(1))

	// One job held by the worker, one filling the buffer.
	_ = q.Enqueue(context.Background(), Job{Path: "a.pdf"})
	_ = q.Enqueue(context.Background(), Job{Path: "b.pdf"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	deadline := time.Now().Add(2 * time.Second)
	var err error
	for time.Now().Before(deadline) {
		if err = q.Enqueue(ctx, Job{Path: "c.pdf"}); err != nil {
			break
		}
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}

	close(sp.block)
	done, cancelDone := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelDone()
	q.Shutdown(done)
}
