package wit

// Result is the Go shape of a WIT result<T, E>.
type Result[T, E any] struct {
	ok    T
	err   E
	isErr bool
}

// Ok returns a successful Result holding v.
func Ok[T, E any](v T) Result[T, E] {
	return Result[T, E]{ok: v}
}

// Err returns a failed Result holding e.
func Err[T, E any](e E) Result[T, E] {
	return Result[T, E]{err: e, isErr: true}
}

// IsErr reports whether r holds an error.
func (r Result[T, E]) IsErr() bool {
	return r.isErr
}

// OK returns the success value. It is the zero value of T if r is an error.
func (r Result[T, E]) OK() T {
	return r.ok
}

// Err returns the error value. It is the zero value of E if r succeeded.
func (r Result[T, E]) Err() E {
	return r.err
}
