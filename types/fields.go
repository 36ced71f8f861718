package types

import (
	"fmt"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// HeaderErrorKind is the WIT header-error variant.
type HeaderErrorKind uint8

const (
	// HeaderInvalidSyntax means a name or value is not valid HTTP syntax.
	HeaderInvalidSyntax HeaderErrorKind = iota
	// HeaderForbidden means the name is not allowed to be set by a guest.
	HeaderForbidden
	// HeaderImmutable means the Fields belong to a message and cannot change.
	HeaderImmutable
)

func (k HeaderErrorKind) String() string {
	switch k {
	case HeaderInvalidSyntax:
		return "invalid-syntax"
	case HeaderForbidden:
		return "forbidden"
	case HeaderImmutable:
		return "immutable"
	default:
		return "unknown"
	}
}

// HeaderError is returned by every Fields operation that rejects its input.
type HeaderError struct {
	Kind HeaderErrorKind
	Name string
}

func (e *HeaderError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("header error: %s", e.Kind)
	}
	return fmt.Sprintf("header error: %s: %q", e.Kind, e.Name)
}

// forbiddenFields are hop-by-hop names the host manages itself.
var forbiddenFields = map[string]struct{}{
	"connection":        {},
	"keep-alive":        {},
	"proxy-connection":  {},
	"transfer-encoding": {},
	"upgrade":           {},
	"host":              {},
	"http2-settings":    {},
}

// FieldEntry is one name/value pair of a Fields list.
type FieldEntry struct {
	Name  string
	Value []byte
}

// Fields is an ordered multimap of header or trailer fields. Names are
// stored in lower case; the order of entries is preserved.
type Fields struct {
	entries   []FieldEntry
	immutable bool
}

// NewFields returns an empty, mutable Fields.
func NewFields() *Fields {
	return &Fields{}
}

// FieldsFromList validates entries and returns them as a mutable Fields.
func FieldsFromList(entries []FieldEntry) (*Fields, error) {
	f := &Fields{entries: make([]FieldEntry, 0, len(entries))}
	for _, e := range entries {
		name, err := checkField(e.Name, e.Value)
		if err != nil {
			return nil, err
		}
		f.entries = append(f.entries, FieldEntry{Name: name, Value: cloneBytes(e.Value)})
	}
	return f, nil
}

func checkField(name string, value []byte) (string, error) {
	if !httpguts.ValidHeaderFieldName(name) {
		return "", &HeaderError{Kind: HeaderInvalidSyntax, Name: name}
	}
	if !httpguts.ValidHeaderFieldValue(string(value)) {
		return "", &HeaderError{Kind: HeaderInvalidSyntax, Name: name}
	}
	name = strings.ToLower(name)
	if _, ok := forbiddenFields[name]; ok {
		return "", &HeaderError{Kind: HeaderForbidden, Name: name}
	}
	return name, nil
}

// Get returns every value stored under name, in insertion order.
func (f *Fields) Get(name string) [][]byte {
	name = strings.ToLower(name)
	var values [][]byte
	for _, e := range f.entries {
		if e.Name == name {
			values = append(values, cloneBytes(e.Value))
		}
	}
	return values
}

// Has reports whether at least one value is stored under name.
func (f *Fields) Has(name string) bool {
	name = strings.ToLower(name)
	for _, e := range f.entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

// Set replaces every value stored under name with values.
func (f *Fields) Set(name string, values [][]byte) error {
	if f.immutable {
		return &HeaderError{Kind: HeaderImmutable, Name: name}
	}
	lower, err := checkField(name, nil)
	if err != nil {
		return err
	}
	for _, v := range values {
		if _, err := checkField(name, v); err != nil {
			return err
		}
	}

	f.remove(lower)
	for _, v := range values {
		f.entries = append(f.entries, FieldEntry{Name: lower, Value: cloneBytes(v)})
	}
	return nil
}

// Append adds value under name after any existing values.
func (f *Fields) Append(name string, value []byte) error {
	if f.immutable {
		return &HeaderError{Kind: HeaderImmutable, Name: name}
	}
	lower, err := checkField(name, value)
	if err != nil {
		return err
	}
	f.entries = append(f.entries, FieldEntry{Name: lower, Value: cloneBytes(value)})
	return nil
}

// Delete removes every value stored under name.
func (f *Fields) Delete(name string) error {
	if f.immutable {
		return &HeaderError{Kind: HeaderImmutable, Name: name}
	}
	f.remove(strings.ToLower(name))
	return nil
}

func (f *Fields) remove(lower string) {
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.Name != lower {
			kept = append(kept, e)
		}
	}
	f.entries = kept
}

// CopyAll returns a copy of every entry in order.
func (f *Fields) CopyAll() []FieldEntry {
	out := make([]FieldEntry, len(f.entries))
	for i, e := range f.entries {
		out[i] = FieldEntry{Name: e.Name, Value: cloneBytes(e.Value)}
	}
	return out
}

// Clone returns a mutable deep copy of f.
func (f *Fields) Clone() *Fields {
	return &Fields{entries: f.CopyAll()}
}

// Len returns the number of entries.
func (f *Fields) Len() int {
	return len(f.entries)
}

// Immutable reports whether mutating operations are rejected.
func (f *Fields) Immutable() bool {
	return f.immutable
}

// frozen returns an immutable deep copy of f.
func (f *Fields) frozen() *Fields {
	if f == nil {
		return &Fields{immutable: true}
	}
	return &Fields{entries: f.CopyAll(), immutable: true}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
