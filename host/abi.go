package host

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/refraction-networking/wasip3/types"
)

// A BodyResult crosses guest memory as the following message:
//
//	message BodyResult {
//	  oneof outcome {
//	    Fields    trailers = 1;
//	    ErrorCode error    = 2;
//	  }
//	}
//	message Fields    { repeated Field entries = 1; }
//	message Field     { string name = 1; bytes value = 2; }
//	message ErrorCode { uint32 kind = 1; optional string message = 2; }
//
// An empty message is Ok with no trailers.
const (
	fieldTrailers protowire.Number = 1
	fieldError    protowire.Number = 2

	fieldEntries protowire.Number = 1

	fieldName  protowire.Number = 1
	fieldValue protowire.Number = 2

	fieldKind    protowire.Number = 1
	fieldMessage protowire.Number = 2
)

var errMalformed = errors.New("host: malformed body result")

// EncodeBodyResult appends the wire form of v to b.
func EncodeBodyResult(b []byte, v types.BodyResult) []byte {
	if v.IsErr() {
		code := v.Err()
		var msg []byte
		msg = protowire.AppendTag(msg, fieldKind, protowire.VarintType)
		msg = protowire.AppendVarint(msg, uint64(code.Kind))
		if code.Message != nil {
			msg = protowire.AppendTag(msg, fieldMessage, protowire.BytesType)
			msg = protowire.AppendString(msg, *code.Message)
		}
		b = protowire.AppendTag(b, fieldError, protowire.BytesType)
		return protowire.AppendBytes(b, msg)
	}

	trailers := v.OK()
	if trailers == nil {
		return b
	}
	var fields []byte
	for _, e := range trailers.CopyAll() {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldName, protowire.BytesType)
		entry = protowire.AppendString(entry, e.Name)
		entry = protowire.AppendTag(entry, fieldValue, protowire.BytesType)
		entry = protowire.AppendBytes(entry, e.Value)

		fields = protowire.AppendTag(fields, fieldEntries, protowire.BytesType)
		fields = protowire.AppendBytes(fields, entry)
	}
	b = protowire.AppendTag(b, fieldTrailers, protowire.BytesType)
	return protowire.AppendBytes(b, fields)
}

// DecodeBodyResult parses the wire form produced by EncodeBodyResult.
// Trailers are validated like any other Fields.
func DecodeBodyResult(b []byte) (types.BodyResult, error) {
	result := types.OkBody(nil)
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch {
		case num == fieldTrailers && typ == protowire.BytesType:
			trailers, err := decodeFields(v)
			if err != nil {
				return err
			}
			result = types.OkBody(trailers)
		case num == fieldError && typ == protowire.BytesType:
			code, err := decodeErrorCode(v)
			if err != nil {
				return err
			}
			result = types.ErrBody(code)
		}
		return nil
	})
	return result, err
}

func decodeFields(b []byte) (*types.Fields, error) {
	var entries []types.FieldEntry
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != fieldEntries || typ != protowire.BytesType {
			return nil
		}
		var e types.FieldEntry
		err := walk(v, func(num protowire.Number, typ protowire.Type, v []byte) error {
			switch {
			case num == fieldName && typ == protowire.BytesType:
				e.Name = string(v)
			case num == fieldValue && typ == protowire.BytesType:
				e.Value = append([]byte(nil), v...)
			}
			return nil
		})
		entries = append(entries, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	return types.FieldsFromList(entries)
}

func decodeErrorCode(b []byte) (types.ErrorCode, error) {
	var code types.ErrorCode
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch {
		case num == fieldKind && typ == protowire.VarintType:
			kind, n := protowire.ConsumeVarint(v)
			if n < 0 || kind > uint64(types.ErrorInternalError) {
				return fmt.Errorf("%w: error kind %d", errMalformed, kind)
			}
			code.Kind = types.ErrorCodeKind(kind)
		case num == fieldMessage && typ == protowire.BytesType:
			msg := string(v)
			code.Message = &msg
		}
		return nil
	})
	return code, err
}

// walk calls fn for every field of the message in b. For varint fields v
// holds the raw varint; for bytes fields it holds the payload. Fields of
// other types are skipped.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		var v []byte
		switch typ {
		case protowire.VarintType:
			_, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(m))
			}
			v, n = b[:m], m
		case protowire.BytesType:
			payload, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(m))
			}
			v, n = payload, m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %v", errMalformed, protowire.ParseError(n))
			}
		}
		if err := fn(num, typ, v); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
