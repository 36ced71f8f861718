package httpcompat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/refraction-networking/wasip3/internal/log"
	"github.com/refraction-networking/wasip3/types"
	"github.com/refraction-networking/wasip3/wit"
)

// HandlerFunc has the shape of an exported wasi:http handler.
type HandlerFunc func(ctx context.Context, req *types.Request) (*types.Response, error)

var errResponseAbandoned = errors.New("httpcompat: response body abandoned")

// Serve runs h as a wasi:http handler. The response is returned as soon as
// h commits its status line; the body then streams from h's writes. A panic
// before the head is committed turns into a 500 response, a panic after it
// fails the body with an internal-error.
func Serve(h http.Handler) HandlerFunc {
	return func(ctx context.Context, req *types.Request) (*types.Response, error) {
		hr, err := RequestToHTTP(ctx, req)
		if err != nil {
			return nil, err
		}
		hr.RequestURI = hr.URL.RequestURI()

		rw := newResponseWriter()
		wit.Spawn(func() {
			defer rw.finish()
			defer hr.Body.Close()
			defer func() {
				if p := recover(); p != nil {
					if p != http.ErrAbortHandler {
						log.Errorf("httpcompat: handler panic serving %s %s: %v", hr.Method, hr.URL, p)
					}
					rw.fail(types.InternalError(fmt.Sprint(p)))
				}
			}()
			h.ServeHTTP(rw, hr)
		})

		select {
		case <-rw.committed:
		case <-ctx.Done():
			rw.abandon()
			return nil, ctx.Err()
		}

		header, err := HeaderToFields(forwardableHeader(rw.head))
		if err != nil {
			rw.abandon()
			return nil, err
		}
		bw, stream, result := NewBodyWriter()
		resp, transmit := types.NewResponse(header, stream, result)
		transmit.Close()
		if err := setStatus(resp, rw.status); err != nil {
			rw.abandon()
			resp.Close()
			return nil, err
		}

		wit.Spawn(func() {
			defer rw.abandon()
			drain(context.WithoutCancel(ctx), bw, &handlerBody{rw: rw}, "response")
		})
		return resp, nil
	}
}

// responseWriter hands the writes of a net/http handler to a BodyWriter
// one at a time.
type responseWriter struct {
	header http.Header
	status int
	head   http.Header // snapshot taken on commit

	chunks    chan []byte
	committed chan struct{}
	done      chan struct{}
	gone      chan struct{}

	commitOnce  sync.Once
	abandonOnce sync.Once
	wroteHeader bool
	failure     error
}

func newResponseWriter() *responseWriter {
	return &responseWriter{
		header:    make(http.Header),
		chunks:    make(chan []byte),
		committed: make(chan struct{}),
		done:      make(chan struct{}),
		gone:      make(chan struct{}),
	}
}

func (w *responseWriter) Header() http.Header { return w.header }

func (w *responseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	if code < 100 || code > 999 {
		panic(fmt.Sprintf("invalid WriteHeader code %v", code))
	}
	// informational responses are not forwarded
	if code < 200 {
		return
	}
	w.wroteHeader = true
	w.commit(code)
}

func (w *responseWriter) commit(code int) {
	w.commitOnce.Do(func() {
		w.status = code
		w.head = w.header.Clone()
		close(w.committed)
	})
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if len(p) == 0 {
		return 0, nil
	}
	chunk := append([]byte(nil), p...)
	select {
	case w.chunks <- chunk:
		return len(p), nil
	case <-w.gone:
		return 0, errResponseAbandoned
	}
}

// Flush is a no-op: every Write is handed over before it returns.
func (w *responseWriter) Flush() {}

// fail ends the response with code. Before the head is committed the
// response becomes a bare 500 instead.
func (w *responseWriter) fail(code types.ErrorCode) {
	if w.wroteHeader {
		w.failure = code
		return
	}
	w.wroteHeader = true
	w.header = make(http.Header)
	w.commit(http.StatusInternalServerError)
}

// finish runs once the handler returned.
func (w *responseWriter) finish() {
	w.commit(http.StatusOK)
	close(w.done)
}

// abandon makes pending and later writes fail.
func (w *responseWriter) abandon() {
	w.abandonOnce.Do(func() { close(w.gone) })
}

// trailers collects the values of trailers announced through the Trailer
// header or set with http.TrailerPrefix.
func (w *responseWriter) trailers() http.Header {
	out := make(http.Header)
	for _, v := range w.head.Values("Trailer") {
		for _, name := range strings.Split(v, ",") {
			name = http.CanonicalHeaderKey(strings.TrimSpace(name))
			if vs := w.header.Values(name); len(vs) > 0 {
				out[name] = append([]string(nil), vs...)
			}
		}
	}
	for name, vs := range w.header {
		if strings.HasPrefix(name, http.TrailerPrefix) {
			key := http.CanonicalHeaderKey(strings.TrimPrefix(name, http.TrailerPrefix))
			out[key] = append(out[key], vs...)
		}
	}
	return out
}

type handlerBody struct {
	rw           *responseWriter
	trailersSent bool
}

func (b *handlerBody) Frame(ctx context.Context) (Frame, error) {
	select {
	case chunk := <-b.rw.chunks:
		return DataFrame(chunk), nil
	case <-b.rw.done:
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}

	if b.rw.failure != nil {
		return Frame{}, b.rw.failure
	}
	if !b.trailersSent {
		b.trailersSent = true
		if t := b.rw.trailers(); len(t) > 0 {
			return TrailersFrame(t), nil
		}
	}
	return Frame{}, io.EOF
}

// NewHTTPHandler exposes a wasi:http handler as an http.Handler. Errors
// returned by h are mapped onto a status code; trailers of the wire
// response are sent as HTTP trailers.
func NewHTTPHandler(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req, err := RequestFromHTTP(ctx, r)
		if err != nil {
			writeError(w, err)
			return
		}
		// drops the body if h left it unconsumed
		defer req.Close()

		resp, err := h(ctx, req)
		if err != nil {
			writeError(w, err)
			return
		}
		hr, err := ResponseToHTTP(resp)
		if err != nil {
			resp.Close()
			writeError(w, err)
			return
		}
		defer hr.Body.Close()

		for name, vs := range hr.Header {
			w.Header()[name] = vs
		}
		w.WriteHeader(hr.StatusCode)
		if hr.ContentLength < 0 {
			// commit to chunked encoding so trailers can follow
			http.NewResponseController(w).Flush()
		}
		if _, err := io.Copy(w, hr.Body); err != nil {
			log.Warnf("httpcompat: copying response body for %s %s: %v", r.Method, r.URL, err)
			panic(http.ErrAbortHandler)
		}
		for name, vs := range hr.Trailer {
			for _, v := range vs {
				w.Header().Add(http.TrailerPrefix+name, v)
			}
		}
	})
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusForError(err))
}

// statusForError picks the status a proxy would answer with for err.
func statusForError(err error) int {
	var code types.ErrorCode
	if !errors.As(err, &code) {
		return http.StatusInternalServerError
	}
	switch code.Kind {
	case types.ErrorDNSTimeout, types.ErrorConnectionTimeout, types.ErrorConnectionReadTimeout,
		types.ErrorConnectionWriteTimeout, types.ErrorHTTPResponseTimeout:
		return http.StatusGatewayTimeout
	case types.ErrorDNSError, types.ErrorDestinationNotFound, types.ErrorDestinationUnavailable,
		types.ErrorDestinationIPProhibited, types.ErrorDestinationIPUnroutable, types.ErrorConnectionRefused,
		types.ErrorConnectionTerminated, types.ErrorTLSProtocolError, types.ErrorTLSCertificateError,
		types.ErrorTLSAlertReceived, types.ErrorHTTPResponseIncomplete, types.ErrorHTTPProtocolError:
		return http.StatusBadGateway
	case types.ErrorConnectionLimitReached:
		return http.StatusServiceUnavailable
	case types.ErrorHTTPRequestDenied:
		return http.StatusForbidden
	case types.ErrorHTTPRequestLengthRequired:
		return http.StatusLengthRequired
	case types.ErrorHTTPRequestBodySize:
		return http.StatusRequestEntityTooLarge
	case types.ErrorHTTPRequestMethodInvalid, types.ErrorHTTPRequestURIInvalid:
		return http.StatusBadRequest
	case types.ErrorHTTPRequestURITooLong:
		return http.StatusRequestURITooLong
	case types.ErrorHTTPRequestHeaderSectionSize, types.ErrorHTTPRequestHeaderSize:
		return http.StatusRequestHeaderFieldsTooLarge
	case types.ErrorLoopDetected:
		return http.StatusLoopDetected
	default:
		return http.StatusInternalServerError
	}
}
