package httpcompat

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/refraction-networking/wasip3/internal/log"
	"github.com/refraction-networking/wasip3/types"
	"github.com/refraction-networking/wasip3/wit"
)

type optionsKey struct{}

// WithRequestOptions returns a copy of ctx carrying opts. RequestFromHTTP
// attaches them to the wire request.
func WithRequestOptions(ctx context.Context, opts *types.RequestOptions) context.Context {
	return context.WithValue(ctx, optionsKey{}, opts.Clone())
}

// RequestOptionsFromContext returns the options stored by
// WithRequestOptions, or nil.
func RequestOptionsFromContext(ctx context.Context) *types.RequestOptions {
	opts, _ := ctx.Value(optionsKey{}).(*types.RequestOptions)
	return opts.Clone()
}

// RequestToHTTP converts a wire request into an *http.Request whose Body
// is an *IncomingRequestBody. The wire body is not consumed until the
// first read. Request options are attached to the request context.
func RequestToHTTP(ctx context.Context, req *types.Request) (*http.Request, error) {
	method, err := MethodToHTTP(req.Method())
	if err != nil {
		return nil, err
	}

	u := &url.URL{}
	if s := req.Scheme(); s != nil {
		if u.Scheme, err = SchemeToHTTP(*s); err != nil {
			return nil, err
		}
	}
	if a := req.Authority(); a != nil {
		u.Host = *a
	}
	if p := req.PathWithQuery(); p != nil {
		pu, err := url.ParseRequestURI(*p)
		if err != nil {
			return nil, types.NewErrorCode(types.ErrorHTTPRequestURIInvalid)
		}
		u.Path, u.RawPath, u.RawQuery = pu.Path, pu.RawPath, pu.RawQuery
	}

	header, err := FieldsToHeader(req.Headers())
	if err != nil {
		return nil, err
	}
	body, err := NewIncomingBody(req)
	if err != nil {
		return nil, err
	}

	if opts := req.Options(); opts != nil {
		ctx = WithRequestOptions(ctx, opts)
	}
	hr := &http.Request{
		Method:     method,
		URL:        u,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     header,
		Body:       body,
		Host:       u.Host,
		Trailer:    body.Trailer(),
	}
	// zero with a non-nil body means unknown for requests
	if hint := body.SizeHint(); hint.HasUpper {
		hr.ContentLength = int64(hint.Upper)
	}
	return hr.WithContext(ctx), nil
}

// ResponseToHTTP converts a wire response into an *http.Response whose
// Body is an *IncomingResponseBody.
func ResponseToHTTP(resp *types.Response) (*http.Response, error) {
	header, err := FieldsToHeader(resp.Headers())
	if err != nil {
		return nil, err
	}
	body, err := NewIncomingBody(resp)
	if err != nil {
		return nil, err
	}

	code := int(resp.StatusCode())
	hr := &http.Response{
		Status:        http.StatusText(code),
		StatusCode:    code,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          body,
		ContentLength: -1,
		Trailer:       body.Trailer(),
	}
	if hint := body.SizeHint(); hint.HasUpper {
		hr.ContentLength = int64(hint.Upper)
	}
	return hr, nil
}

// outgoingBody is how a net/http body leaves for the wire: either the
// wire message it came from, still untouched, or a body to drain.
type outgoingBody[M IncomingMessage] struct {
	message M
	ok      bool
	body    Body
}

func requestBody(r *http.Request) outgoingBody[*types.Request] {
	switch body := r.Body.(type) {
	case *IncomingRequestBody:
		if msg, ok := body.TakeUnstarted(); ok {
			return outgoingBody[*types.Request]{message: msg, ok: true}
		}
		return outgoingBody[*types.Request]{body: body}
	default:
		return outgoingBody[*types.Request]{body: NewBody(r.Body, r.Trailer)}
	}
}

func responseBody(r *http.Response) outgoingBody[*types.Response] {
	switch body := r.Body.(type) {
	case *IncomingResponseBody:
		if msg, ok := body.TakeUnstarted(); ok {
			return outgoingBody[*types.Response]{message: msg, ok: true}
		}
		return outgoingBody[*types.Response]{body: body}
	default:
		return outgoingBody[*types.Response]{body: NewBody(r.Body, r.Trailer)}
	}
}

// RequestFromHTTP converts r into a wire request. If r.Body is an
// IncomingRequestBody nobody has read from, the wire request it wraps is
// returned as is. Otherwise the body is drained into the wire request by a
// detached task that outlives ctx.
func RequestFromHTTP(ctx context.Context, r *http.Request) (*types.Request, error) {
	out := requestBody(r)
	if out.ok {
		return out.message, nil
	}

	header, err := HeaderToFields(forwardableHeader(r.Header))
	if err != nil {
		closeBody(out.body)
		return nil, err
	}

	bw, stream, result := NewBodyWriter()
	req, transmit := types.NewRequest(header, stream, result, RequestOptionsFromContext(ctx))
	transmit.Close()

	if err := setRequestHead(req, r); err != nil {
		closeBody(out.body)
		req.Close()
		return nil, err
	}

	wit.Spawn(func() {
		drain(context.WithoutCancel(ctx), bw, out.body, "request")
	})
	return req, nil
}

func setRequestHead(req *types.Request, r *http.Request) error {
	if err := req.SetMethod(MethodFromHTTP(r.Method)); err != nil {
		return types.NewErrorCode(types.ErrorHTTPRequestMethodInvalid)
	}
	if r.URL == nil {
		return types.NewErrorCode(types.ErrorHTTPRequestURIInvalid)
	}
	if r.URL.Scheme != "" {
		s := SchemeFromHTTP(r.URL.Scheme)
		if err := req.SetScheme(&s); err != nil {
			return types.NewErrorCode(types.ErrorHTTPRequestURIInvalid)
		}
	}
	authority := r.Host
	if authority == "" {
		authority = r.URL.Host
	}
	if authority != "" {
		if err := req.SetAuthority(&authority); err != nil {
			return types.NewErrorCode(types.ErrorHTTPRequestURIInvalid)
		}
	}
	path := r.URL.RequestURI()
	if err := req.SetPathWithQuery(&path); err != nil {
		return types.NewErrorCode(types.ErrorHTTPRequestURIInvalid)
	}
	return nil
}

// ResponseFromHTTP converts r into a wire response, following the rules of
// RequestFromHTTP.
func ResponseFromHTTP(ctx context.Context, r *http.Response) (*types.Response, error) {
	out := responseBody(r)
	if out.ok {
		return out.message, nil
	}

	header, err := HeaderToFields(forwardableHeader(r.Header))
	if err != nil {
		closeBody(out.body)
		return nil, err
	}

	bw, stream, result := NewBodyWriter()
	resp, transmit := types.NewResponse(header, stream, result)
	transmit.Close()

	if err := setStatus(resp, r.StatusCode); err != nil {
		closeBody(out.body)
		resp.Close()
		return nil, err
	}

	wit.Spawn(func() {
		drain(context.WithoutCancel(ctx), bw, out.body, "response")
	})
	return resp, nil
}

// setStatus sets the status of resp from a net/http status code.
func setStatus(resp *types.Response, code int) error {
	if code < 0 || code > math.MaxUint16 {
		return types.InternalError(fmt.Sprintf("invalid status code %d", code))
	}
	if err := resp.SetStatusCode(uint16(code)); err != nil {
		return types.InternalError(err.Error())
	}
	return nil
}

// drain runs w until body is exhausted and logs how it ended.
func drain(ctx context.Context, w *BodyWriter, body Body, what string) {
	defer closeBody(body)

	n, err := w.SendHTTPBody(ctx, body)
	var (
		streamClosed *StreamReaderClosedError
		resultClosed *ResultReaderClosedError
	)
	switch {
	case err == nil:
		log.Debugf("httpcompat: %s body sent, %d bytes", what, n)
	case errors.As(err, &streamClosed), errors.As(err, &resultClosed):
		log.Debugf("httpcompat: %s body abandoned by reader after %d bytes: %v", what, n, err)
	default:
		log.Warnf("httpcompat: %s body failed after %d bytes: %v", what, n, err)
	}
}

func closeBody(body Body) {
	if c, ok := body.(interface{ Close() error }); ok {
		c.Close()
	}
}
