// Package httpcompat bridges net/http messages and the wasi:http message
// types. Outbound bodies are drained into a stream<u8> and a trailers
// future by a BodyWriter; inbound bodies are read lazily through an
// IncomingBody, which only consumes the wire message on first demand.
package httpcompat

import (
	"context"
	"io"
	"net/http"
)

// readFrameSize is the most data a single frame carries.
const readFrameSize = 16 * 1024

type frameKind uint8

const (
	frameNone frameKind = iota
	frameData
	frameTrailers
)

// Frame is one unit produced by a Body: a data chunk or a trailer set.
// The zero Frame is neither.
type Frame struct {
	kind     frameKind
	data     []byte
	trailers http.Header
}

// DataFrame returns a frame carrying b.
func DataFrame(b []byte) Frame {
	return Frame{kind: frameData, data: b}
}

// TrailersFrame returns a frame carrying h.
func TrailersFrame(h http.Header) Frame {
	return Frame{kind: frameTrailers, trailers: h}
}

func (f Frame) IsData() bool     { return f.kind == frameData }
func (f Frame) IsTrailers() bool { return f.kind == frameTrailers }

// Data returns the chunk of a data frame, nil otherwise.
func (f Frame) Data() []byte { return f.data }

// Trailers returns the trailer set of a trailers frame, nil otherwise.
func (f Frame) Trailers() http.Header { return f.trailers }

// Body is a lazy sequence of frames. Frame returns io.EOF once the body
// is exhausted. A trailers frame, if any, is the last frame.
type Body interface {
	Frame(ctx context.Context) (Frame, error)
}

// SizeHint is an advisory bound on the number of data bytes a body will
// produce. Upper is only meaningful when HasUpper is set.
type SizeHint struct {
	Lower    uint64
	Upper    uint64
	HasUpper bool
}

// SizeHinter is implemented by bodies that know something about their size.
type SizeHinter interface {
	SizeHint() SizeHint
}

// NewBody adapts a net/http style body. trailer is read only after r
// reaches EOF, matching when net/http fills in Request.Trailer and
// Response.Trailer. r is closed once exhausted if it is an io.Closer.
func NewBody(r io.Reader, trailer http.Header) Body {
	if r == nil || r == http.NoBody {
		return Empty()
	}
	return &readerBody{r: r, trailer: trailer}
}

type readerBody struct {
	r       io.Reader
	trailer http.Header
	eof     bool
	done    bool
	closed  bool
}

func (b *readerBody) Frame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	for !b.eof {
		buf := make([]byte, readFrameSize)
		n, err := b.r.Read(buf)
		if err == io.EOF {
			b.eof = true
			b.Close()
		} else if err != nil {
			b.eof, b.done = true, true
			b.Close()
			return Frame{}, err
		}
		if n > 0 {
			return DataFrame(buf[:n]), nil
		}
	}

	if !b.done {
		b.done = true
		if len(b.trailer) > 0 {
			return TrailersFrame(b.trailer.Clone()), nil
		}
	}
	return Frame{}, io.EOF
}

// Close closes the underlying reader if it is an io.Closer.
func (b *readerBody) Close() error {
	if c, ok := b.r.(io.Closer); ok && !b.closed {
		b.closed = true
		return c.Close()
	}
	return nil
}

// FullBody returns a body producing b as a single data frame.
func FullBody(b []byte) Body {
	return &fullBody{data: b}
}

type fullBody struct {
	data []byte
	done bool
}

func (b *fullBody) Frame(context.Context) (Frame, error) {
	if b.done || len(b.data) == 0 {
		return Frame{}, io.EOF
	}
	b.done = true
	return DataFrame(b.data), nil
}

func (b *fullBody) SizeHint() SizeHint {
	n := uint64(len(b.data))
	return SizeHint{Lower: n, Upper: n, HasUpper: true}
}

// Empty returns a body with no frames.
func Empty() Body {
	return emptyBody{}
}

type emptyBody struct{}

func (emptyBody) Frame(context.Context) (Frame, error) { return Frame{}, io.EOF }
func (emptyBody) SizeHint() SizeHint                   { return SizeHint{HasUpper: true} }
