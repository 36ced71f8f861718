package types

import (
	"fmt"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/refraction-networking/wasip3/wit"
)

// Request is an in-memory wasi:http request. Its body is a stream<u8>
// plus a future of the trailers, handed out once by ConsumeBody.
type Request struct {
	method        Method
	scheme        *Scheme
	authority     *string
	pathWithQuery *string
	headers       *Fields
	options       *RequestOptions

	body *messageBody
}

// NewRequest builds a GET request with no scheme, authority or path.
// contents and trailers may be nil for an empty body. The returned future
// resolves once whoever consumes the body reports how transmission went;
// callers that do not care should Close it.
func NewRequest(headers *Fields, contents wit.StreamReader, trailers wit.FutureReader[BodyResult], options *RequestOptions) (*Request, wit.FutureReader[TransmitResult]) {
	body, transmit := newMessageBody(contents, trailers)
	return &Request{
		method:  Method{Kind: MethodGet},
		headers: headers.frozen(),
		options: options.Clone(),
		body:    body,
	}, transmit
}

func (r *Request) Method() Method { return r.method }

// SetMethod rejects an Other method that is not a valid token.
func (r *Request) SetMethod(m Method) error {
	if m.Kind == MethodOther && !validToken(m.Other) {
		return fmt.Errorf("types: invalid method %q", m.Other)
	}
	if m.Kind > MethodOther {
		return fmt.Errorf("types: invalid method kind %d", m.Kind)
	}
	r.method = m
	return nil
}

func (r *Request) Scheme() *Scheme {
	if r.scheme == nil {
		return nil
	}
	s := *r.scheme
	return &s
}

// SetScheme sets or, with nil, clears the scheme.
func (r *Request) SetScheme(s *Scheme) error {
	if s == nil {
		r.scheme = nil
		return nil
	}
	if s.Kind == SchemeOther && !validScheme(s.Other) {
		return fmt.Errorf("types: invalid scheme %q", s.Other)
	}
	v := *s
	r.scheme = &v
	return nil
}

func (r *Request) Authority() *string { return cloneString(r.authority) }

// SetAuthority sets or, with nil, clears the authority.
func (r *Request) SetAuthority(a *string) error {
	if a != nil && strings.ContainsAny(*a, "/?# \t\r\n") {
		return fmt.Errorf("types: invalid authority %q", *a)
	}
	r.authority = cloneString(a)
	return nil
}

func (r *Request) PathWithQuery() *string { return cloneString(r.pathWithQuery) }

// SetPathWithQuery sets or, with nil, clears the path and query.
func (r *Request) SetPathWithQuery(p *string) error {
	if p != nil && strings.ContainsAny(*p, "# \t\r\n") {
		return fmt.Errorf("types: invalid path-with-query %q", *p)
	}
	r.pathWithQuery = cloneString(p)
	return nil
}

// Headers returns an immutable copy of the request headers.
func (r *Request) Headers() *Fields { return r.headers.frozen() }

// Options returns a copy of the request options, or nil if none were set.
func (r *Request) Options() *RequestOptions { return r.options.Clone() }

// ConsumeBody hands out the body stream and trailers future. The outcome
// the consumer writes to res is forwarded to the future returned by
// NewRequest. Only the first call succeeds.
func (r *Request) ConsumeBody(res wit.FutureReader[TransmitResult]) (wit.StreamReader, wit.FutureReader[BodyResult], error) {
	return r.body.consume(res)
}

// Close drops the body channels if the body was never consumed.
func (r *Request) Close() error {
	return r.body.close()
}

func validToken(s string) bool {
	return s != "" && httpguts.ValidHeaderFieldName(s)
}

// validScheme follows the RFC 3986 scheme grammar.
func validScheme(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
