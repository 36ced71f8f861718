// Package pipe implements an in-process byte pipe with rendezvous
// semantics: a write suspends until a reader takes some of the bytes.
//
// The two ends are owned independently. Dropping (closing) the read end
// makes pending and future writes fail with [io.ErrClosedPipe]; dropping
// the write end makes reads return [io.EOF] once nothing is left in flight.
package pipe

import (
	"context"
	"io"
	"sync/atomic"
)

type pipe struct {
	offerCh chan []byte // writer -> reader, unbuffered
	takenCh chan int    // reader -> writer, how many bytes of the offer were consumed

	writerGone chan struct{}
	readerGone chan struct{}
}

// StreamPipe creates a connected pair of pipe ends. Bytes written to w
// become readable from r in the same order.
func StreamPipe() (w *Writer, r *Reader) {
	p := &pipe{
		offerCh:    make(chan []byte),
		takenCh:    make(chan int, 1),
		writerGone: make(chan struct{}),
		readerGone: make(chan struct{}),
	}
	return &Writer{p: p}, &Reader{p: p}
}

// Writer is the write end of a pipe created by [StreamPipe].
type Writer struct {
	p      *pipe
	closed atomic.Bool
}

// Write offers b to the reader and blocks until the reader takes a prefix
// of it, the reader end is dropped, or ctx is done. It returns the number
// of bytes the reader took, which may be less than len(b).
//
// io.ErrClosedPipe is returned if either end has been closed.
func (w *Writer) Write(ctx context.Context, b []byte) (n int, err error) {
	if w.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	if len(b) == 0 {
		return 0, nil
	}

	select {
	case <-w.p.readerGone:
		return 0, io.ErrClosedPipe
	default:
	}

	select {
	case w.p.offerCh <- b:
		return <-w.p.takenCh, nil
	case <-w.p.readerGone:
		return 0, io.ErrClosedPipe
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close drops the write end. A second call returns io.ErrClosedPipe.
func (w *Writer) Close() error {
	if w.closed.CompareAndSwap(false, true) {
		close(w.p.writerGone)
		return nil
	}
	return io.ErrClosedPipe
}

// Reader is the read end of a pipe created by [StreamPipe].
type Reader struct {
	p      *pipe
	closed atomic.Bool
}

// Read blocks until the writer offers data and returns a copy of at most
// maxLen bytes of it. io.EOF is returned once the write end has been
// dropped with nothing left in flight.
func (r *Reader) Read(ctx context.Context, maxLen int) ([]byte, error) {
	if r.closed.Load() {
		return nil, io.ErrClosedPipe
	}
	if maxLen <= 0 {
		return []byte{}, nil
	}

	select {
	case b := <-r.p.offerCh:
		return r.take(b, maxLen), nil
	case <-r.p.writerGone:
		// a write racing with Close may still be offering
		select {
		case b := <-r.p.offerCh:
			return r.take(b, maxLen), nil
		default:
			return nil, io.EOF
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Reader) take(offer []byte, maxLen int) []byte {
	n := len(offer)
	if n > maxLen {
		n = maxLen
	}
	chunk := make([]byte, n)
	copy(chunk, offer[:n])
	r.p.takenCh <- n
	return chunk
}

// Close drops the read end. A second call returns io.ErrClosedPipe.
func (r *Reader) Close() error {
	if r.closed.CompareAndSwap(false, true) {
		close(r.p.readerGone)
		return nil
	}
	return io.ErrClosedPipe
}
