package httpcompat

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/refraction-networking/wasip3/types"
	"github.com/refraction-networking/wasip3/wit"
)

// ErrBodyWriterConsumed is returned by SendHTTPBody on every call but the first.
var ErrBodyWriterConsumed = errors.New("httpcompat: body writer already consumed")

// BodyError is returned when the source Body fails. The failure has
// already been reported on the result future when possible.
type BodyError struct {
	Err error
}

func (e *BodyError) Error() string { return "body error: " + e.Err.Error() }
func (e *BodyError) Unwrap() error { return e.Err }

// InvalidTrailersError is returned when the collected trailers cannot be
// converted to wire fields.
type InvalidTrailersError struct {
	Err error
}

func (e *InvalidTrailersError) Error() string { return "invalid trailers: " + e.Err.Error() }
func (e *InvalidTrailersError) Unwrap() error { return e.Err }

// ResultReaderClosedError is returned when the result future reader was
// dropped. Result is the outcome that could not be delivered.
type ResultReaderClosedError struct {
	Result types.BodyResult
}

func (*ResultReaderClosedError) Error() string { return "result future reader closed" }

// StreamReaderClosedError is returned when the stream reader was dropped
// in the middle of a data frame. Written counts the bytes of that frame
// the reader took; Unwritten holds the rest.
type StreamReaderClosedError struct {
	Written   int
	Unwritten []byte
}

func (*StreamReaderClosedError) Error() string { return "stream reader closed" }

// BodyWriter drives the write ends of a wasi:http message body: the data
// stream and the future carrying trailers or the error that ended the body.
type BodyWriter struct {
	StreamWriter wit.StreamWriter
	ResultWriter wit.FutureWriter[types.BodyResult]

	// Trailers collects trailer frames seen by SendFrame.
	Trailers http.Header

	consumed atomic.Bool
}

// NewBodyWriter returns a writer and the matching stream and result future
// readers, typically handed to types.NewRequest or types.NewResponse.
//
// If the writer goes away without writing a result, the reader observes an
// internal-error "body writer dropped".
func NewBodyWriter() (*BodyWriter, wit.StreamReader, wit.FutureReader[types.BodyResult]) {
	sw, sr := wit.NewStream()
	rw, rr := wit.NewFuture(func() types.BodyResult {
		return types.ErrBody(types.InternalError("body writer dropped"))
	})
	return &BodyWriter{
		StreamWriter: sw,
		ResultWriter: rw,
		Trailers:     make(http.Header),
	}, sr, rr
}

// SendHTTPBody copies every data frame of body to the stream, then writes
// the collected trailers (or none) to the result future. It returns the
// number of data bytes written.
//
// The stream is closed before the result is written, so a reader always
// sees the end of the data before the trailers. If body fails, the failure
// is written to the result future as an internal-error; a reader that is
// already gone at that point is ignored and only the BodyError is returned.
//
// The writer is consumed by the first call.
func (w *BodyWriter) SendHTTPBody(ctx context.Context, body Body) (uint64, error) {
	if !w.consumed.CompareAndSwap(false, true) {
		return 0, ErrBodyWriterConsumed
	}
	defer w.ResultWriter.Close()
	defer w.StreamWriter.Close()

	var total uint64
	for {
		frame, err := body.Frame(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			w.StreamWriter.Close()
			_ = w.ResultWriter.Write(ctx, types.ErrBody(bodyErrorCode(err)))
			return total, &BodyError{Err: err}
		}

		n, err := w.SendFrame(ctx, frame)
		total += uint64(n)
		if err != nil {
			return total, err
		}
	}
	w.StreamWriter.Close()

	var trailers *types.Fields
	if len(w.Trailers) > 0 {
		fields, err := HeaderToFields(w.Trailers)
		if err != nil {
			return total, &InvalidTrailersError{Err: err}
		}
		trailers = fields
	}

	result := types.OkBody(trailers)
	if err := w.ResultWriter.Write(ctx, result); err != nil {
		var closed *wit.FutureClosedError[types.BodyResult]
		if errors.As(err, &closed) {
			return total, &ResultReaderClosedError{Result: closed.Value}
		}
		return total, err
	}
	return total, nil
}

// SendFrame writes a data frame to the stream and returns its length, or
// merges a trailers frame into w.Trailers and returns 0. Trailer values
// replace earlier values of the same name.
func (w *BodyWriter) SendFrame(ctx context.Context, frame Frame) (int, error) {
	switch {
	case frame.IsData():
		data := frame.Data()
		unwritten := w.StreamWriter.WriteAll(ctx, data)
		if len(unwritten) > 0 {
			written := len(data) - len(unwritten)
			if err := ctx.Err(); err != nil {
				return written, err
			}
			return written, &StreamReaderClosedError{Written: written, Unwritten: unwritten}
		}
		return len(data), nil
	case frame.IsTrailers():
		if w.Trailers == nil {
			w.Trailers = make(http.Header)
		}
		for name, values := range frame.Trailers() {
			w.Trailers[name] = append([]string(nil), values...)
		}
		return 0, nil
	default:
		panic("httpcompat: frame is neither data nor trailers")
	}
}

// bodyErrorCode keeps a wasi error code produced by the body itself and
// reports anything else as an internal-error.
func bodyErrorCode(err error) types.ErrorCode {
	var code types.ErrorCode
	if errors.As(err, &code) {
		return code
	}
	return types.InternalError(err.Error())
}
