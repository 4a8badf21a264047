package test

import (
	"context"
	"errors"
	"testing"
	"time"
)

// shutdownTimeout is how long a background task may take to return after its
// context is canceled.
const shutdownTimeout = 10 * time.Second

// errStopped is the cause used when a task is stopped explicitly.
var errStopped = errors.New("task stopped")

// TaskRunner starts a function in the background, for use with long-running
// components such as the discoverer, establisher and agent.
type TaskRunner struct {
	t  *testing.T
	fn func(ctx context.Context) error
}

// RunInBackground returns a [TaskRunner] for fn. The task does not start until
// one of the runner's methods is called.
func RunInBackground(
	t *testing.T,
	fn func(ctx context.Context) error,
) TaskRunner {
	t.Helper()
	return TaskRunner{t, fn}
}

// UntilStopped starts the task. It runs until it is stopped via
// [Task.Stop] or [Task.StopAndWait], or until the test ends.
func (r TaskRunner) UntilStopped() *Task {
	r.t.Helper()
	return r.start()
}

// UntilTestEnds starts the task. The test fails if the task returns before the
// test ends.
func (r TaskRunner) UntilTestEnds() *Task {
	r.t.Helper()

	task := r.start()

	r.t.Cleanup(func() {
		select {
		case <-task.done:
			if errors.Is(task.err, errStopped) {
				return
			}
			r.t.Errorf("background task returned before the test ended: %v", task.err)
		default:
		}
	})

	return task
}

func (r TaskRunner) start() *Task {
	ctx, cancel := context.WithCancelCause(context.Background())

	task := &Task{
		t:      r.t,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(task.done)

		err := r.fn(ctx)
		if errors.Is(err, context.Canceled) {
			err = context.Cause(ctx)
		}
		task.err = err
	}()

	r.t.Cleanup(func() {
		cancel(nil)

		select {
		case <-task.done:
		case <-time.After(shutdownTimeout):
			r.t.Errorf("background task did not return within %s of the test ending", shutdownTimeout)
		}
	})

	return task
}

// Task is a function running in the background.
type Task struct {
	t      *testing.T
	cancel context.CancelCauseFunc
	done   chan struct{}
	err    error
}

// Stop cancels the task's context without waiting for it to return.
func (t *Task) Stop() {
	t.cancel(errStopped)
}

// StopAndWait cancels the task's context and waits for it to return. The test
// fails if the task returns an error other than the cancellation.
func (t *Task) StopAndWait() {
	t.t.Helper()

	t.Stop()

	select {
	case <-t.done:
		if !errors.Is(t.err, errStopped) {
			t.t.Fatalf("background task returned an unexpected error: %v", t.err)
		}
	case <-time.After(shutdownTimeout):
		t.t.Fatalf("background task did not return within %s of being stopped", shutdownTimeout)
	}
}

// Done returns a channel that is closed when the task returns.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
