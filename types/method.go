package types

// MethodKind enumerates the WIT method variant.
type MethodKind uint8

const (
	MethodGet MethodKind = iota
	MethodHead
	MethodPost
	MethodPut
	MethodDelete
	MethodConnect
	MethodOptions
	MethodTrace
	MethodPatch
	MethodOther
)

var methodNames = [...]string{
	MethodGet:     "GET",
	MethodHead:    "HEAD",
	MethodPost:    "POST",
	MethodPut:     "PUT",
	MethodDelete:  "DELETE",
	MethodConnect: "CONNECT",
	MethodOptions: "OPTIONS",
	MethodTrace:   "TRACE",
	MethodPatch:   "PATCH",
}

// Method is an HTTP request method. Other is only meaningful when Kind
// is MethodOther.
type Method struct {
	Kind  MethodKind
	Other string
}

// OtherMethod returns a Method carrying a non-standard name verbatim.
func OtherMethod(name string) Method {
	return Method{Kind: MethodOther, Other: name}
}

func (m Method) String() string {
	if m.Kind == MethodOther {
		return m.Other
	}
	if int(m.Kind) < len(methodNames) {
		return methodNames[m.Kind]
	}
	return ""
}

// SchemeKind enumerates the WIT scheme variant.
type SchemeKind uint8

const (
	SchemeHTTP SchemeKind = iota
	SchemeHTTPS
	SchemeOther
)

// Scheme is a URI scheme. Other is only meaningful when Kind is SchemeOther.
type Scheme struct {
	Kind  SchemeKind
	Other string
}

// OtherScheme returns a Scheme carrying a non-standard name verbatim.
func OtherScheme(name string) Scheme {
	return Scheme{Kind: SchemeOther, Other: name}
}

func (s Scheme) String() string {
	switch s.Kind {
	case SchemeHTTP:
		return "http"
	case SchemeHTTPS:
		return "https"
	default:
		return s.Other
	}
}
