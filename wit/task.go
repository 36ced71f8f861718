package wit

import "context"

// Task is a handle to work started by Spawn. Dropping the handle does not
// cancel the work; the only way to stop a drain early is to drop the
// channel end it is feeding.
type Task struct {
	done chan struct{}
}

// Spawn runs fn on its own goroutine and returns immediately.
func Spawn(fn func()) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		fn()
	}()
	return t
}

// Done is closed when the spawned function returns.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the spawned function returns or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
