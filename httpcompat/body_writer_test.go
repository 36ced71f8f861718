package httpcompat_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/refraction-networking/wasip3/httpcompat"
	"github.com/refraction-networking/wasip3/types"
	"github.com/refraction-networking/wasip3/wit"
)

// frames is a Body producing a fixed list of frames, then err (io.EOF if nil).
type frames struct {
	list []httpcompat.Frame
	err  error
}

func (f *frames) Frame(context.Context) (httpcompat.Frame, error) {
	if len(f.list) == 0 {
		if f.err != nil {
			return httpcompat.Frame{}, f.err
		}
		return httpcompat.Frame{}, io.EOF
	}
	next := f.list[0]
	f.list = f.list[1:]
	return next, nil
}

func data(s string) httpcompat.Frame { return httpcompat.DataFrame([]byte(s)) }

type sendResult struct {
	n   uint64
	err error
}

func sendAsync(w *httpcompat.BodyWriter, body httpcompat.Body) <-chan sendResult {
	ch := make(chan sendResult, 1)
	go func() {
		n, err := w.SendHTTPBody(context.Background(), body)
		ch <- sendResult{n, err}
	}()
	return ch
}

// readStream reads stream until it is dropped.
func readStream(t *testing.T, stream wit.StreamReader) []byte {
	t.Helper()
	var buf bytes.Buffer
	for {
		result, chunk := stream.Read(context.Background(), 7)
		switch result {
		case wit.StreamComplete:
			buf.Write(chunk)
		case wit.StreamDropped:
			return buf.Bytes()
		default:
			t.Fatalf("stream read: %v", result)
		}
	}
}

// discard reads stream until it is dropped.
func discard(stream wit.StreamReader) {
	for {
		if result, _ := stream.Read(context.Background(), 1024); result != wit.StreamComplete {
			return
		}
	}
}

func TestBodyWriterHelloWASI(t *testing.T) {
	bw, stream, result := httpcompat.NewBodyWriter()
	done := sendAsync(bw, &frames{list: []httpcompat.Frame{
		data("Hello, "),
		data("WASI!"),
		httpcompat.TrailersFrame(http.Header{}),
	}})

	if got := string(readStream(t, stream)); got != "Hello, WASI!" {
		t.Fatalf("stream = %q", got)
	}
	v, err := result.Read(context.Background())
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if v.IsErr() || v.OK() != nil {
		t.Fatalf("result = %+v, want Ok(none)", v)
	}

	res := <-done
	if res.err != nil {
		t.Fatalf("SendHTTPBody: %v", res.err)
	}
	if res.n != 12 {
		t.Fatalf("SendHTTPBody wrote %d bytes, want 12", res.n)
	}
}

func TestBodyWriterTrailersAfterData(t *testing.T) {
	bw, stream, result := httpcompat.NewBodyWriter()
	done := sendAsync(bw, &frames{list: []httpcompat.Frame{
		data("abc"),
		httpcompat.TrailersFrame(http.Header{"X-Checksum": {"900150983cd24fb0"}}),
	}})

	// the trailers are not available while data is still pending
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := result.Read(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("early result read: got %v, want deadline exceeded", err)
	}

	if got := string(readStream(t, stream)); got != "abc" {
		t.Fatalf("stream = %q", got)
	}
	v, err := result.Read(context.Background())
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if v.IsErr() || v.OK() == nil {
		t.Fatalf("result = %+v, want trailers", v)
	}
	if got := v.OK().Get("x-checksum"); len(got) != 1 || string(got[0]) != "900150983cd24fb0" {
		t.Fatalf("trailer x-checksum = %q", got)
	}
	if res := <-done; res.err != nil || res.n != 3 {
		t.Fatalf("SendHTTPBody = %d, %v", res.n, res.err)
	}
}

func TestBodyWriterReaderDropped(t *testing.T) {
	payload := bytes.Repeat([]byte{'x'}, 100)

	for _, k := range []int{0, 1, 50, 99} {
		bw, stream, result := httpcompat.NewBodyWriter()
		defer result.Close()

		taken := make(chan struct{})
		go func() {
			defer close(taken)
			if k > 0 {
				stream.Read(context.Background(), k)
			}
			stream.Close()
		}()

		written, err := bw.SendFrame(context.Background(), httpcompat.DataFrame(payload))
		<-taken

		var closed *httpcompat.StreamReaderClosedError
		if !errors.As(err, &closed) {
			t.Fatalf("k=%d: SendFrame error = %v, want StreamReaderClosedError", k, err)
		}
		if written != k || closed.Written != k {
			t.Fatalf("k=%d: written = %d (error says %d)", k, written, closed.Written)
		}
		if !bytes.Equal(closed.Unwritten, payload[k:]) {
			t.Fatalf("k=%d: unwritten has %d bytes, want %d", k, len(closed.Unwritten), 100-k)
		}
	}
}

func TestBodyWriterReaderDroppedBeforeSend(t *testing.T) {
	bw, stream, result := httpcompat.NewBodyWriter()
	stream.Close()

	n, err := bw.SendHTTPBody(context.Background(), &frames{list: []httpcompat.Frame{
		httpcompat.DataFrame(bytes.Repeat([]byte{'y'}, 100)),
	}})
	var closed *httpcompat.StreamReaderClosedError
	if !errors.As(err, &closed) {
		t.Fatalf("SendHTTPBody error = %v", err)
	}
	if n != 0 || closed.Written != 0 || len(closed.Unwritten) != 100 {
		t.Fatalf("n = %d, written = %d, unwritten = %d", n, closed.Written, len(closed.Unwritten))
	}

	// the writer is gone without a result
	v, err := result.Read(context.Background())
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if !v.IsErr() || v.Err().Kind != types.ErrorInternalError || *v.Err().Message != "body writer dropped" {
		t.Fatalf("result = %+v, want body writer dropped", v)
	}
}

func TestBodyWriterBodyError(t *testing.T) {
	bw, stream, result := httpcompat.NewBodyWriter()
	boom := errors.New("boom")
	done := sendAsync(bw, &frames{list: []httpcompat.Frame{data("partial")}, err: boom})

	if got := string(readStream(t, stream)); got != "partial" {
		t.Fatalf("stream = %q", got)
	}
	v, err := result.Read(context.Background())
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if !v.IsErr() || v.Err().Message == nil || !strings.Contains(*v.Err().Message, "boom") {
		t.Fatalf("result = %+v, want internal error carrying boom", v)
	}

	res := <-done
	var bodyErr *httpcompat.BodyError
	if !errors.As(res.err, &bodyErr) || !errors.Is(res.err, boom) {
		t.Fatalf("SendHTTPBody error = %v, want BodyError wrapping boom", res.err)
	}
}

func TestBodyWriterBodyErrorResultGone(t *testing.T) {
	bw, stream, result := httpcompat.NewBodyWriter()
	stream.Close()
	result.Close()
	boom := errors.New("boom")

	_, err := bw.SendHTTPBody(context.Background(), &frames{err: boom})
	var bodyErr *httpcompat.BodyError
	if !errors.As(err, &bodyErr) {
		t.Fatalf("SendHTTPBody error = %v, want only the BodyError", err)
	}
}

func TestBodyWriterResultReaderClosed(t *testing.T) {
	bw, stream, result := httpcompat.NewBodyWriter()
	result.Close()
	go discard(stream)

	_, err := bw.SendHTTPBody(context.Background(), &frames{list: []httpcompat.Frame{data("abc")}})
	var closed *httpcompat.ResultReaderClosedError
	if !errors.As(err, &closed) {
		t.Fatalf("SendHTTPBody error = %v, want ResultReaderClosedError", err)
	}
	if closed.Result.IsErr() || closed.Result.OK() != nil {
		t.Fatalf("lost result = %+v, want Ok(none)", closed.Result)
	}
}

func TestBodyWriterInvalidTrailers(t *testing.T) {
	bw, stream, result := httpcompat.NewBodyWriter()
	defer result.Close()
	go discard(stream)

	_, err := bw.SendHTTPBody(context.Background(), &frames{list: []httpcompat.Frame{
		httpcompat.TrailersFrame(http.Header{"Transfer-Encoding": {"chunked"}}),
	}})
	var invalid *httpcompat.InvalidTrailersError
	if !errors.As(err, &invalid) {
		t.Fatalf("SendHTTPBody error = %v, want InvalidTrailersError", err)
	}
}

func TestBodyWriterConsumedOnce(t *testing.T) {
	bw, stream, result := httpcompat.NewBodyWriter()
	go discard(stream)
	go result.Read(context.Background())

	if _, err := bw.SendHTTPBody(context.Background(), httpcompat.Empty()); err != nil {
		t.Fatalf("first SendHTTPBody: %v", err)
	}
	if _, err := bw.SendHTTPBody(context.Background(), httpcompat.Empty()); !errors.Is(err, httpcompat.ErrBodyWriterConsumed) {
		t.Fatalf("second SendHTTPBody: got %v, want ErrBodyWriterConsumed", err)
	}
}

func TestBodyWriterTrailerMerge(t *testing.T) {
	bw, _, _ := httpcompat.NewBodyWriter()
	ctx := context.Background()

	bw.SendFrame(ctx, httpcompat.TrailersFrame(http.Header{"A": {"1"}, "B": {"2"}}))
	n, err := bw.SendFrame(ctx, httpcompat.TrailersFrame(http.Header{"A": {"3"}}))
	if n != 0 || err != nil {
		t.Fatalf("SendFrame(trailers) = %d, %v", n, err)
	}
	if got := bw.Trailers["A"]; len(got) != 1 || got[0] != "3" {
		t.Fatalf("A = %q", got)
	}
	if got := bw.Trailers.Get("B"); got != "2" {
		t.Fatalf("B = %q", got)
	}
}

func TestBodyWriterZeroFramePanics(t *testing.T) {
	bw, _, _ := httpcompat.NewBodyWriter()
	defer func() {
		if recover() == nil {
			t.Fatal("SendFrame accepted a frame that is neither data nor trailers")
		}
	}()
	bw.SendFrame(context.Background(), httpcompat.Frame{})
}
