package httpcompat

import (
	"context"
	"io"
	"net/http"

	"github.com/refraction-networking/wasip3/types"
	"github.com/refraction-networking/wasip3/wit"
)

// IncomingMessage is a wire message whose body can be consumed once.
// *types.Request and *types.Response implement it.
type IncomingMessage interface {
	Headers() *types.Fields
	ConsumeBody(res wit.FutureReader[types.TransmitResult]) (wit.StreamReader, wit.FutureReader[types.BodyResult], error)
	Close() error
}

type (
	// IncomingRequestBody is the body of a request received from the wire.
	IncomingRequestBody = IncomingBody[*types.Request]
	// IncomingResponseBody is the body of a response received from the wire.
	IncomingResponseBody = IncomingBody[*types.Response]
)

type startState uint8

const (
	unstarted startState = iota
	started
	empty
)

type readState uint8

const (
	readReady readState = iota
	readReading
	readDone
)

// readResult is what the in-flight read hands back: a chunk, or the
// terminal outcome once the stream was dropped.
type readResult struct {
	chunk   []byte
	outcome *types.BodyResult
}

// IncomingBody reads the body of a wire message. The message is kept
// untouched until the first read, so it can still be forwarded whole with
// TakeUnstarted.
//
// IncomingBody implements Body and io.ReadCloser. It is not safe for
// concurrent use.
type IncomingBody[M IncomingMessage] struct {
	state startState
	msg   M

	// set once started
	result   wit.FutureWriter[types.TransmitResult]
	stream   wit.StreamReader
	trailers wit.FutureReader[types.BodyResult]
	readCtx  context.Context
	cancel   context.CancelFunc
	read     readState
	inflight chan readResult

	contentLength    uint64
	hasContentLength bool

	// io.Reader adapter
	buf      []byte
	trailer  http.Header
	replayed bool
	closed   bool
	err      error
}

// NewIncomingBody wraps msg after validating its content-length field.
func NewIncomingBody[M IncomingMessage](msg M) (*IncomingBody[M], error) {
	n, ok, err := contentLength(msg.Headers())
	if err != nil {
		return nil, err
	}
	return &IncomingBody[M]{
		state:            unstarted,
		msg:              msg,
		contentLength:    n,
		hasContentLength: ok,
		trailer:          make(http.Header),
	}, nil
}

// TakeUnstarted returns the wrapped message if no read has happened yet.
// Afterwards the body can no longer be read.
func (b *IncomingBody[M]) TakeUnstarted() (M, bool) {
	var zero M
	if b.state != unstarted {
		return zero, false
	}
	msg := b.msg
	b.msg = zero
	b.state = empty
	return msg, true
}

func errTakenUnstarted() error {
	return types.InternalError("cannot use IncomingBody after call to TakeUnstarted")
}

func (b *IncomingBody[M]) ensureStarted() error {
	switch b.state {
	case started:
		return nil
	case empty:
		return errTakenUnstarted()
	}

	msg, _ := b.TakeUnstarted()
	resultW, resultR := wit.NewFuture(types.OkTransmit)
	stream, trailers, err := msg.ConsumeBody(resultR)
	if err != nil {
		resultW.Close()
		return types.InternalError(err.Error())
	}

	b.readCtx, b.cancel = context.WithCancel(context.Background())
	b.state = started
	b.result = resultW
	b.stream = stream
	b.trailers = trailers
	b.read = readReady
	b.inflight = make(chan readResult, 1)
	return nil
}

// readNext performs one read against stream. When the stream has been
// dropped it waits for the trailers instead.
func readNext(ctx context.Context, stream wit.StreamReader, trailers wit.FutureReader[types.BodyResult], out chan<- readResult) {
	result, chunk := stream.Read(ctx, readFrameSize)
	switch result {
	case wit.StreamComplete:
		out <- readResult{chunk: chunk}
	case wit.StreamDropped:
		v, err := trailers.Read(ctx)
		if err != nil {
			v = types.ErrBody(types.InternalError("trailers unavailable: " + err.Error()))
		}
		out <- readResult{outcome: &v}
	default:
		// only reachable once the body was closed
		v := types.ErrBody(types.InternalError("body read cancelled"))
		out <- readResult{outcome: &v}
	}
}

// Frame returns the next data or trailers frame, or io.EOF once the body
// is done. Trailers already consumed through Read are returned once before
// io.EOF. A failure reported by the sender is returned as a
// types.ErrorCode. If ctx is done first, the pending read is kept and
// resumed by the next call.
func (b *IncomingBody[M]) Frame(ctx context.Context) (Frame, error) {
	if err := b.ensureStarted(); err != nil {
		return Frame{}, err
	}
	// data left over from a short Read comes first
	if len(b.buf) > 0 {
		chunk := b.buf
		b.buf = nil
		return DataFrame(chunk), nil
	}

	for {
		switch b.read {
		case readReady:
			b.read = readReading
			go readNext(b.readCtx, b.stream, b.trailers, b.inflight)
		case readReading:
			var res readResult
			select {
			case res = <-b.inflight:
			case <-ctx.Done():
				return Frame{}, ctx.Err()
			}

			if res.outcome == nil {
				b.read = readReady
				return DataFrame(res.chunk), nil
			}

			b.finish()
			outcome := *res.outcome
			if outcome.IsErr() {
				return Frame{}, outcome.Err()
			}
			if fields := outcome.OK(); fields != nil {
				h, err := FieldsToHeader(fields)
				if err != nil {
					return Frame{}, err
				}
				return TrailersFrame(h), nil
			}
		case readDone:
			// trailers collected by Read are handed out once more
			if !b.replayed && !b.closed && len(b.trailer) > 0 {
				b.replayed = true
				return TrailersFrame(b.trailer.Clone()), nil
			}
			return Frame{}, io.EOF
		}
	}
}

// finish drops the body channels once the outcome is known. The producer
// then learns the body was fully consumed.
func (b *IncomingBody[M]) finish() {
	b.read = readDone
	b.cancel()
	b.stream.Close()
	b.trailers.Close()
	b.result.Close()
}

// SizeHint reports [0, content-length] when the message declared a
// length, and an unbounded hint otherwise.
func (b *IncomingBody[M]) SizeHint() SizeHint {
	if !b.hasContentLength {
		return SizeHint{}
	}
	return SizeHint{Upper: b.contentLength, HasUpper: true}
}

// IsEndStream reports whether every frame has been returned.
func (b *IncomingBody[M]) IsEndStream() bool {
	return b.state == started && b.read == readDone
}

// Trailer holds the trailers read so far through Read. The map is filled
// in once Read returns io.EOF.
func (b *IncomingBody[M]) Trailer() http.Header {
	return b.trailer
}

// Read implements io.Reader over the data frames.
func (b *IncomingBody[M]) Read(p []byte) (int, error) {
	for len(b.buf) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		f, err := b.Frame(context.Background())
		switch {
		case err != nil:
			b.err = err
		case f.IsData():
			b.buf = f.Data()
		case f.IsTrailers():
			for name, values := range f.Trailers() {
				b.trailer[name] = append(b.trailer[name], values...)
			}
			b.err = io.EOF
		}
	}
	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

// Close drops the body. A message that was never read is closed whole.
func (b *IncomingBody[M]) Close() error {
	b.buf = nil
	b.closed = true
	if b.err == nil {
		b.err = http.ErrBodyReadAfterClose
	}

	switch b.state {
	case unstarted:
		msg, _ := b.TakeUnstarted()
		return msg.Close()
	case started:
		if b.read != readDone {
			b.finish()
		}
	}
	return nil
}
