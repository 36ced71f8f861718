package types

import (
	"fmt"

	"github.com/refraction-networking/wasip3/wit"
)

// Response is an in-memory wasi:http response.
type Response struct {
	status  uint16
	headers *Fields

	body *messageBody
}

// NewResponse builds a 200 response. See NewRequest for the meaning of
// contents, trailers and the returned future.
func NewResponse(headers *Fields, contents wit.StreamReader, trailers wit.FutureReader[BodyResult]) (*Response, wit.FutureReader[TransmitResult]) {
	body, transmit := newMessageBody(contents, trailers)
	return &Response{
		status:  200,
		headers: headers.frozen(),
		body:    body,
	}, transmit
}

func (r *Response) StatusCode() uint16 { return r.status }

// SetStatusCode accepts any three-digit status.
func (r *Response) SetStatusCode(code uint16) error {
	if code < 100 || code > 999 {
		return fmt.Errorf("types: invalid status code %d", code)
	}
	r.status = code
	return nil
}

// Headers returns an immutable copy of the response headers.
func (r *Response) Headers() *Fields { return r.headers.frozen() }

// ConsumeBody is Request.ConsumeBody for responses.
func (r *Response) ConsumeBody(res wit.FutureReader[TransmitResult]) (wit.StreamReader, wit.FutureReader[BodyResult], error) {
	return r.body.consume(res)
}

// Close drops the body channels if the body was never consumed.
func (r *Response) Close() error {
	return r.body.close()
}
