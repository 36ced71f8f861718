package wit

import (
	"context"
	"errors"
	"io"

	"github.com/refraction-networking/wasip3/internal/io/pipe"
)

// StreamResult tells how a stream read or write ended.
type StreamResult uint8

const (
	// StreamComplete means some bytes (possibly all of them) were transferred.
	StreamComplete StreamResult = iota
	// StreamDropped means the other end of the stream is gone.
	StreamDropped
	// StreamCancelled means the operation was abandoned before any transfer.
	StreamCancelled
)

func (r StreamResult) String() string {
	switch r {
	case StreamComplete:
		return "complete"
	case StreamDropped:
		return "dropped"
	case StreamCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StreamWriter is the writable end of a stream<u8>.
type StreamWriter interface {
	// Write transfers a prefix of b and returns the suffix that was not
	// transferred.
	Write(ctx context.Context, b []byte) (unwritten []byte, result StreamResult)

	// WriteAll calls Write until b is exhausted, the reader is dropped or
	// ctx is done, and returns whatever was left.
	WriteAll(ctx context.Context, b []byte) (unwritten []byte)

	// Close drops the writable end.
	io.Closer
}

// StreamReader is the readable end of a stream<u8>.
type StreamReader interface {
	// Read returns at most maxLen bytes. The returned slice is only
	// meaningful when the result is StreamComplete.
	Read(ctx context.Context, maxLen int) (StreamResult, []byte)

	// Close drops the readable end.
	io.Closer
}

// NewStream creates an in-memory stream<u8>. Writes suspend until the
// reader takes the data.
func NewStream() (StreamWriter, StreamReader) {
	w, r := pipe.StreamPipe()
	return &streamWriter{w: w}, &streamReader{r: r}
}

type streamWriter struct {
	w *pipe.Writer
}

func (s *streamWriter) Write(ctx context.Context, b []byte) ([]byte, StreamResult) {
	n, err := s.w.Write(ctx, b)
	switch {
	case err == nil:
		return b[n:], StreamComplete
	case errors.Is(err, io.ErrClosedPipe):
		return b[n:], StreamDropped
	default:
		return b[n:], StreamCancelled
	}
}

func (s *streamWriter) WriteAll(ctx context.Context, b []byte) []byte {
	return WriteAll(ctx, s, b)
}

func (s *streamWriter) Close() error {
	return s.w.Close()
}

type streamReader struct {
	r *pipe.Reader
}

func (s *streamReader) Read(ctx context.Context, maxLen int) (StreamResult, []byte) {
	chunk, err := s.r.Read(ctx, maxLen)
	switch {
	case err == nil:
		return StreamComplete, chunk
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe):
		return StreamDropped, nil
	default:
		return StreamCancelled, nil
	}
}

func (s *streamReader) Close() error {
	return s.r.Close()
}

// WriteAll drives w until b is fully written or the write can make no
// more progress. It is the generic write_all for any StreamWriter.
func WriteAll(ctx context.Context, w StreamWriter, b []byte) []byte {
	for len(b) > 0 {
		var result StreamResult
		b, result = w.Write(ctx, b)
		if result != StreamComplete {
			break
		}
	}
	return b
}
