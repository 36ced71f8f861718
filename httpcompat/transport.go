package httpcompat

import (
	"net/http"
)

// Transport is an http.RoundTripper that hands every request to a
// wasi:http handler in process.
type Transport struct {
	Handle HandlerFunc
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	req, err := RequestFromHTTP(r.Context(), r)
	if err != nil {
		return nil, err
	}
	resp, err := t.Handle(r.Context(), req)
	if err != nil {
		req.Close()
		return nil, err
	}
	hr, err := ResponseToHTTP(resp)
	if err != nil {
		resp.Close()
		return nil, err
	}
	hr.Request = r
	return hr, nil
}
