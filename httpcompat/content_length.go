package httpcompat

import (
	"strconv"
	"unicode/utf8"

	"github.com/refraction-networking/wasip3/types"
)

// contentLength reads the content-length field. ok is false when the
// field is absent.
func contentLength(headers *types.Fields) (n uint64, ok bool, err error) {
	values := headers.Get("content-length")
	switch len(values) {
	case 0:
		return 0, false, nil
	case 1:
	default:
		return 0, false, types.InternalError("multiple content-length values")
	}

	raw := values[0]
	if !utf8.Valid(raw) {
		return 0, false, types.InternalError("content-length is not valid UTF-8")
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false, types.InternalError(err.Error())
	}
	if v < 0 {
		return 0, false, types.InternalError("negative content-length " + strconv.FormatInt(v, 10))
	}
	return uint64(v), true, nil
}
