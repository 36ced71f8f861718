package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/refraction-networking/wasip3/internal/log"
	"github.com/refraction-networking/wasip3/types"
	"github.com/refraction-networking/wasip3/wit"
)

// DefaultModuleName is the import module guests use for the body channels.
const DefaultModuleName = "wasip3"

// Function names exported by the host module.
const (
	FuncStreamNew          = "stream-new"
	FuncStreamWrite        = "stream-write"
	FuncStreamRead         = "stream-read"
	FuncStreamDropReadable = "stream-drop-readable"
	FuncStreamDropWritable = "stream-drop-writable"
	FuncFutureNew          = "future-new"
	FuncFutureWrite        = "future-write"
	FuncFutureRead         = "future-read"
	FuncFutureDropReadable = "future-drop-readable"
	FuncFutureDropWritable = "future-drop-writable"
)

// Status codes of future-write.
const (
	FutureWritten uint32 = iota
	FutureReaderDropped
	FutureAlreadyWritten
	FutureWriteCancelled
)

// Status codes of future-read.
const (
	FutureValue uint32 = iota
	FutureClosed
	FutureReadCancelled
)

// packStream packs a stream-read or stream-write outcome as count<<4|status.
func packStream(count int, result wit.StreamResult) uint64 {
	return uint64(count)<<4 | uint64(result)
}

// packHandles packs the two ends returned by stream-new and future-new.
func packHandles(writable, readable uint32) uint64 {
	return uint64(writable)<<32 | uint64(readable)
}

const i32, i64 = api.ValueTypeI32, api.ValueTypeI64

// Instantiate registers the host module under name (DefaultModuleName if
// empty) in r.
func (h *Host) Instantiate(ctx context.Context, r wazero.Runtime, name string) (api.Module, error) {
	if name == "" {
		name = DefaultModuleName
	}
	return r.NewHostModuleBuilder(name).
		NewFunctionBuilder().
		WithGoFunction(api.GoFunc(h.streamNew), []api.ValueType{}, []api.ValueType{i64}).
		WithResultNames("handles").Export(FuncStreamNew).
		NewFunctionBuilder().
		WithGoModuleFunction(withMemory(h.streamWrite), []api.ValueType{i32, i32, i32}, []api.ValueType{i64}).
		WithParameterNames("handle", "buf", "buf_len").Export(FuncStreamWrite).
		NewFunctionBuilder().
		WithGoModuleFunction(withMemory(h.streamRead), []api.ValueType{i32, i32, i32}, []api.ValueType{i64}).
		WithParameterNames("handle", "buf", "buf_limit").Export(FuncStreamRead).
		NewFunctionBuilder().
		WithGoFunction(api.GoFunc(h.streamDropReadable), []api.ValueType{i32}, []api.ValueType{}).
		WithParameterNames("handle").Export(FuncStreamDropReadable).
		NewFunctionBuilder().
		WithGoFunction(api.GoFunc(h.streamDropWritable), []api.ValueType{i32}, []api.ValueType{}).
		WithParameterNames("handle").Export(FuncStreamDropWritable).
		NewFunctionBuilder().
		WithGoFunction(api.GoFunc(h.futureNew), []api.ValueType{}, []api.ValueType{i64}).
		WithResultNames("handles").Export(FuncFutureNew).
		NewFunctionBuilder().
		WithGoModuleFunction(withMemory(h.futureWrite), []api.ValueType{i32, i32, i32}, []api.ValueType{i32}).
		WithParameterNames("handle", "buf", "buf_len").Export(FuncFutureWrite).
		NewFunctionBuilder().
		WithGoModuleFunction(withMemory(h.futureRead), []api.ValueType{i32, i32, i32}, []api.ValueType{i64}).
		WithParameterNames("handle", "buf", "buf_limit").Export(FuncFutureRead).
		NewFunctionBuilder().
		WithGoFunction(api.GoFunc(h.futureDropReadable), []api.ValueType{i32}, []api.ValueType{}).
		WithParameterNames("handle").Export(FuncFutureDropReadable).
		NewFunctionBuilder().
		WithGoFunction(api.GoFunc(h.futureDropWritable), []api.ValueType{i32}, []api.ValueType{}).
		WithParameterNames("handle").Export(FuncFutureDropWritable).
		Instantiate(ctx)
}

func withMemory(fn func(ctx context.Context, mem api.Memory, stack []uint64)) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		fn(ctx, mod.Memory(), stack)
	}
}

// streamNew implements FuncStreamNew.
func (h *Host) streamNew(_ context.Context, stack []uint64) {
	w, r := wit.NewStream()
	stack[0] = packHandles(h.PushStreamWriter(w), h.PushStreamReader(r))
}

// streamWrite implements FuncStreamWrite. It blocks until the reader takes
// some of the bytes.
func (h *Host) streamWrite(ctx context.Context, mem api.Memory, stack []uint64) {
	handle, buf, bufLen := uint32(stack[0]), uint32(stack[1]), uint32(stack[2])

	w, ok := h.streamWriters.get(handle)
	if !ok {
		panic(fmt.Errorf("%s: unknown writable stream %d", FuncStreamWrite, handle))
	}
	b := mustRead(mem, "stream data", buf, bufLen)
	unwritten, result := w.Write(ctx, b)
	stack[0] = packStream(len(b)-len(unwritten), result)
}

// streamRead implements FuncStreamRead.
func (h *Host) streamRead(ctx context.Context, mem api.Memory, stack []uint64) {
	handle, buf, bufLimit := uint32(stack[0]), uint32(stack[1]), uint32(stack[2])

	r, ok := h.streamReaders.get(handle)
	if !ok {
		panic(fmt.Errorf("%s: unknown readable stream %d", FuncStreamRead, handle))
	}
	result, chunk := r.Read(ctx, int(bufLimit))
	if result == wit.StreamComplete && len(chunk) > 0 {
		if !mem.Write(buf, chunk) {
			panic(fmt.Errorf("out of memory writing stream data"))
		}
	}
	stack[0] = packStream(len(chunk), result)
}

func (h *Host) streamDropReadable(_ context.Context, stack []uint64) {
	handle := uint32(stack[0])
	if r, ok := h.streamReaders.remove(handle); ok {
		r.Close()
		return
	}
	log.LDebugf(h.logger, "%s: unknown handle %d", FuncStreamDropReadable, handle)
}

func (h *Host) streamDropWritable(_ context.Context, stack []uint64) {
	handle := uint32(stack[0])
	if w, ok := h.streamWriters.remove(handle); ok {
		w.Close()
		return
	}
	log.LDebugf(h.logger, "%s: unknown handle %d", FuncStreamDropWritable, handle)
}

// futureNew implements FuncFutureNew. The future has no default value: a
// reader whose writer is dropped sees FutureClosed.
func (h *Host) futureNew(_ context.Context, stack []uint64) {
	w, r := wit.NewFuture[types.BodyResult](nil)
	stack[0] = packHandles(h.PushResultWriter(w), h.PushResultReader(r))
}

// futureWrite implements FuncFutureWrite. The value is an encoded
// BodyResult.
func (h *Host) futureWrite(ctx context.Context, mem api.Memory, stack []uint64) {
	handle, buf, bufLen := uint32(stack[0]), uint32(stack[1]), uint32(stack[2])

	w, ok := h.resultWriters.get(handle)
	if !ok {
		panic(fmt.Errorf("%s: unknown writable future %d", FuncFutureWrite, handle))
	}
	v, err := DecodeBodyResult(mustRead(mem, "body result", buf, bufLen))
	if err != nil {
		panic(fmt.Errorf("%s: %w", FuncFutureWrite, err))
	}

	var closed *wit.FutureClosedError[types.BodyResult]
	switch err := w.Write(ctx, v); {
	case err == nil:
		stack[0] = uint64(FutureWritten)
	case errors.As(err, &closed):
		stack[0] = uint64(FutureReaderDropped)
	case errors.Is(err, wit.ErrFutureWritten), errors.Is(err, wit.ErrFutureClosed):
		stack[0] = uint64(FutureAlreadyWritten)
	default:
		log.LDebugf(h.logger, "%s: %v", FuncFutureWrite, err)
		stack[0] = uint64(FutureWriteCancelled)
	}
}

// futureRead implements FuncFutureRead. It returns len<<4|status. When the
// encoded value does not fit in buf_limit nothing is written and the value
// is kept for the next call, which the guest makes with a larger buffer.
func (h *Host) futureRead(ctx context.Context, mem api.Memory, stack []uint64) {
	handle, buf, bufLimit := uint32(stack[0]), uint32(stack[1]), uint32(stack[2])

	rr, ok := h.resultReaders.get(handle)
	if !ok {
		panic(fmt.Errorf("%s: unknown readable future %d", FuncFutureRead, handle))
	}
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if !rr.ready {
		v, err := rr.r.Read(ctx)
		switch {
		case errors.Is(err, wit.ErrFutureClosed):
			stack[0] = uint64(FutureClosed)
			return
		case err != nil:
			stack[0] = uint64(FutureReadCancelled)
			return
		}
		rr.pending, rr.ready = EncodeBodyResult(nil, v), true
	}

	n := writeIfUnderLimit(mem, buf, bufLimit, rr.pending)
	if n <= bufLimit {
		rr.pending, rr.ready = nil, false
		rr.r.Close()
	}
	stack[0] = uint64(n)<<4 | uint64(FutureValue)
}

func (h *Host) futureDropReadable(_ context.Context, stack []uint64) {
	handle := uint32(stack[0])
	if rr, ok := h.resultReaders.remove(handle); ok {
		rr.r.Close()
		return
	}
	log.LDebugf(h.logger, "%s: unknown handle %d", FuncFutureDropReadable, handle)
}

func (h *Host) futureDropWritable(_ context.Context, stack []uint64) {
	handle := uint32(stack[0])
	if w, ok := h.resultWriters.remove(handle); ok {
		w.Close()
		return
	}
	log.LDebugf(h.logger, "%s: unknown handle %d", FuncFutureDropWritable, handle)
}

// mustRead is like api.Memory.Read except that it panics if the offset and
// byteCount are out of range.
func mustRead(mem api.Memory, fieldName string, offset, byteCount uint32) []byte {
	if byteCount == 0 {
		return []byte{}
	}
	if mem == nil {
		panic(fmt.Errorf("no memory to read %s from", fieldName))
	}
	buf, ok := mem.Read(offset, byteCount)
	if !ok {
		panic(fmt.Errorf("out of memory reading %s", fieldName))
	}
	return append([]byte(nil), buf...)
}

func writeIfUnderLimit(mem api.Memory, offset, limit uint32, v []byte) (vLen uint32) {
	vLen = uint32(len(v))
	if vLen > limit {
		return // caller can retry with a larger limit
	} else if vLen == 0 {
		return // nothing to write
	}
	if !mem.Write(offset, v) {
		panic(fmt.Errorf("out of memory writing body result"))
	}
	return
}
