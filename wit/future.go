package wit

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	// ErrFutureClosed is returned when reading a future whose writer was
	// dropped without a value (and without a default), or whose value was
	// already read.
	ErrFutureClosed = errors.New("wit: future closed")

	// ErrFutureWritten is returned by any write after the first successful one.
	ErrFutureWritten = errors.New("wit: future already written")
)

// FutureClosedError is returned by FutureWriter.Write when the reader end
// was dropped. Value is the value that could not be delivered.
type FutureClosedError[T any] struct {
	Value T
}

func (*FutureClosedError[T]) Error() string {
	return "wit: future reader closed"
}

// FutureWriter is the writable end of a future<T>.
type FutureWriter[T any] interface {
	// Write delivers v to the reader, suspending until the reader takes it.
	Write(ctx context.Context, v T) error

	// Close drops the writable end. If nothing was written, the reader
	// observes the default value of the future.
	Close() error
}

// FutureReader is the readable end of a future<T>.
type FutureReader[T any] interface {
	// Read waits for the value.
	Read(ctx context.Context) (T, error)

	// Close drops the readable end.
	Close() error
}

type future[T any] struct {
	valueCh    chan T
	writerGone chan struct{}
	readerGone chan struct{}
	defaultFn  func() T

	delivered atomic.Bool
}

// NewFuture creates an in-memory future<T>. defaultFn, if not nil,
// produces the value observed by the reader when the writer is dropped
// without writing.
func NewFuture[T any](defaultFn func() T) (FutureWriter[T], FutureReader[T]) {
	f := &future[T]{
		valueCh:    make(chan T),
		writerGone: make(chan struct{}),
		readerGone: make(chan struct{}),
		defaultFn:  defaultFn,
	}
	return &futureWriter[T]{f: f}, &futureReader[T]{f: f}
}

type futureWriter[T any] struct {
	f *future[T]

	written atomic.Bool
	closed  atomic.Bool
}

func (w *futureWriter[T]) Write(ctx context.Context, v T) error {
	if w.closed.Load() {
		return ErrFutureClosed
	}
	if !w.written.CompareAndSwap(false, true) {
		return ErrFutureWritten
	}

	select {
	case <-w.f.readerGone:
		return &FutureClosedError[T]{Value: v}
	default:
	}

	select {
	case w.f.valueCh <- v:
		w.f.delivered.Store(true)
		return nil
	case <-w.f.readerGone:
		return &FutureClosedError[T]{Value: v}
	case <-ctx.Done():
		w.written.Store(false) // a cancelled write may be retried
		return ctx.Err()
	}
}

func (w *futureWriter[T]) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return ErrFutureClosed
	}
	close(w.f.writerGone)
	return nil
}

type futureReader[T any] struct {
	f *future[T]

	done   atomic.Bool
	closed atomic.Bool
}

func (r *futureReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if r.done.Load() || r.closed.Load() {
		return zero, ErrFutureClosed
	}

	select {
	case v := <-r.f.valueCh:
		r.done.Store(true)
		return v, nil
	case <-r.f.writerGone:
		r.done.Store(true)
		if r.f.defaultFn != nil && !r.f.delivered.Load() {
			return r.f.defaultFn(), nil
		}
		return zero, ErrFutureClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (r *futureReader[T]) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrFutureClosed
	}
	close(r.f.readerGone)
	return nil
}
