// Package wasip3 bridges the streaming bodies of wasi:http messages and
// Go's net/http.
//
// The work is split across a few packages:
//
//   - wit holds the async primitives messages are made of: stream<u8>,
//     future<T> and result<T, E>.
//   - types holds the wasi:http resources: Fields, Request, Response and
//     ErrorCode.
//   - httpcompat converts between those resources and net/http. Its
//     BodyWriter sends any Body into a stream plus a trailers future, and
//     IncomingBody reads them back as frames or through io.Reader.
//   - host exposes the streams and futures to WebAssembly guests running
//     on wazero.
//
// This package only carries the logging setup shared by all of them.
package wasip3
