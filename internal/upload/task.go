package upload

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Task is one in-flight submission. It completes exactly once.
type Task struct {
	ID string

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

func newTask(cancel context.CancelFunc) *Task {
	return &Task{
		ID:     uuid.New().String(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Done is closed once the task's outcome has been applied to the panel.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task completes or ctx ends. It returns the task's
// error, or ctx's error if ctx ended first.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the outcome of a completed task, nil while running.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Cancel aborts the outgoing request. Panels only cancel when they are closed.
func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) finish(err error) {
	t.once.Do(func() {
		t.err = err
		t.cancel()
		close(t.done)
	})
}
