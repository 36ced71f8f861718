// Package host exposes the wasi:http body channels to WebAssembly guests
// running on wazero. Channel ends live in per-host handle tables; a guest
// refers to them by handle through the functions of the host module.
package host

import (
	"sync"

	"github.com/refraction-networking/wasip3/internal/log"
	"github.com/refraction-networking/wasip3/types"
	"github.com/refraction-networking/wasip3/wit"
)

// resultReader is a future reader plus an encoded value the guest has not
// had room for yet. mu serializes future-read calls on the handle.
type resultReader struct {
	mu      sync.Mutex
	r       wit.FutureReader[types.BodyResult]
	pending []byte
	ready   bool
}

// Host owns every channel end handed to a guest.
type Host struct {
	logger *log.Logger

	streamReaders table[wit.StreamReader]
	streamWriters table[wit.StreamWriter]
	resultReaders table[*resultReader]
	resultWriters table[wit.FutureWriter[types.BodyResult]]
}

// NewHost creates an empty Host. A nil logger means the default logger.
func NewHost(logger *log.Logger) *Host {
	if logger == nil {
		logger = log.Component("wasip3-host")
	}
	return &Host{logger: logger}
}

// PushStreamReader hands r to the guest and returns its handle.
func (h *Host) PushStreamReader(r wit.StreamReader) uint32 {
	return h.streamReaders.add(r)
}

// TakeStreamReader removes the reader behind handle from the guest.
func (h *Host) TakeStreamReader(handle uint32) (wit.StreamReader, bool) {
	return h.streamReaders.remove(handle)
}

func (h *Host) PushStreamWriter(w wit.StreamWriter) uint32 {
	return h.streamWriters.add(w)
}

func (h *Host) TakeStreamWriter(handle uint32) (wit.StreamWriter, bool) {
	return h.streamWriters.remove(handle)
}

func (h *Host) PushResultReader(r wit.FutureReader[types.BodyResult]) uint32 {
	return h.resultReaders.add(&resultReader{r: r})
}

func (h *Host) TakeResultReader(handle uint32) (wit.FutureReader[types.BodyResult], bool) {
	rr, ok := h.resultReaders.remove(handle)
	if !ok {
		return nil, false
	}
	return rr.r, true
}

func (h *Host) PushResultWriter(w wit.FutureWriter[types.BodyResult]) uint32 {
	return h.resultWriters.add(w)
}

func (h *Host) TakeResultWriter(handle uint32) (wit.FutureWriter[types.BodyResult], bool) {
	return h.resultWriters.remove(handle)
}

// Len returns the number of channel ends currently held for the guest.
func (h *Host) Len() int {
	return h.streamReaders.len() + h.streamWriters.len() + h.resultReaders.len() + h.resultWriters.len()
}
