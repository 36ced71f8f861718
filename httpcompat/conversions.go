package httpcompat

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/net/http/httpguts"

	"github.com/refraction-networking/wasip3/types"
)

var methodsFromHTTP = map[string]types.MethodKind{
	http.MethodGet:     types.MethodGet,
	http.MethodHead:    types.MethodHead,
	http.MethodPost:    types.MethodPost,
	http.MethodPut:     types.MethodPut,
	http.MethodDelete:  types.MethodDelete,
	http.MethodConnect: types.MethodConnect,
	http.MethodOptions: types.MethodOptions,
	http.MethodTrace:   types.MethodTrace,
	http.MethodPatch:   types.MethodPatch,
}

// MethodFromHTTP maps a net/http method onto the wire method. Methods are
// case-sensitive; anything not well known is carried as Other.
func MethodFromHTTP(method string) types.Method {
	if method == "" {
		return types.Method{Kind: types.MethodGet}
	}
	if kind, ok := methodsFromHTTP[method]; ok {
		return types.Method{Kind: kind}
	}
	return types.OtherMethod(method)
}

// MethodToHTTP is the inverse of MethodFromHTTP. It fails if an Other
// method is not a valid token.
func MethodToHTTP(m types.Method) (string, error) {
	if m.Kind == types.MethodOther {
		if m.Other == "" || !httpguts.ValidHeaderFieldName(m.Other) {
			return "", types.InternalError(fmt.Sprintf("invalid HTTP method %q", m.Other))
		}
		return m.Other, nil
	}
	if s := m.String(); s != "" {
		return s, nil
	}
	return "", types.InternalError(fmt.Sprintf("unknown method kind %d", m.Kind))
}

// SchemeFromHTTP maps a URL scheme onto the wire scheme.
func SchemeFromHTTP(scheme string) types.Scheme {
	switch {
	case strings.EqualFold(scheme, "http"):
		return types.Scheme{Kind: types.SchemeHTTP}
	case strings.EqualFold(scheme, "https"):
		return types.Scheme{Kind: types.SchemeHTTPS}
	default:
		return types.OtherScheme(scheme)
	}
}

// SchemeToHTTP is the inverse of SchemeFromHTTP.
func SchemeToHTTP(s types.Scheme) (string, error) {
	switch s.Kind {
	case types.SchemeHTTP, types.SchemeHTTPS:
		return s.String(), nil
	}
	if s.Other == "" || strings.ContainsAny(s.Other, ":/?# \t\r\n") {
		return "", types.InternalError(fmt.Sprintf("invalid scheme %q", s.Other))
	}
	return strings.ToLower(s.Other), nil
}

// HeaderToFields converts h into wire fields. Names are visited in sorted
// order; the values of each name keep their order.
func HeaderToFields(h http.Header) (*types.Fields, error) {
	names := maps.Keys(h)
	slices.Sort(names)

	entries := make([]types.FieldEntry, 0, len(h))
	for _, name := range names {
		for _, v := range h[name] {
			entries = append(entries, types.FieldEntry{Name: name, Value: []byte(v)})
		}
	}
	return types.FieldsFromList(entries)
}

// FieldsToHeader converts wire fields into an http.Header, keeping the
// order of values sharing a name.
func FieldsToHeader(f *types.Fields) (http.Header, error) {
	h := make(http.Header, f.Len())
	for _, e := range f.CopyAll() {
		if !httpguts.ValidHeaderFieldName(e.Name) || !httpguts.ValidHeaderFieldValue(string(e.Value)) {
			return nil, types.InternalError(fmt.Sprintf("invalid field %q", e.Name))
		}
		h.Add(e.Name, string(e.Value))
	}
	return h, nil
}

// hopByHop lists the names wire fields refuse. They are stripped from
// net/http messages before conversion.
var hopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Transfer-Encoding",
	"Upgrade",
	"Host",
	"Http2-Settings",
	"Te",
	"Trailer",
}

// forwardableHeader returns a copy of h without hop-by-hop fields,
// including those named by Connection, and without trailer
// announcements.
func forwardableHeader(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		return make(http.Header)
	}
	for _, v := range out["Connection"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out.Del(name)
			}
		}
	}
	for _, name := range hopByHop {
		out.Del(name)
	}
	for name := range out {
		if strings.HasPrefix(name, http.TrailerPrefix) {
			delete(out, name)
		}
	}
	return out
}
