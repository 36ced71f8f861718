package host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/refraction-networking/wasip3/types"
	"github.com/refraction-networking/wasip3/wit"
)

// memoryWasm is a module exporting one page of memory as "memory".
var memoryWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: min 1 page
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00, // export section
}

func newTestMemory(t *testing.T) api.Memory {
	t.Helper()
	ctx := context.Background()

	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	t.Cleanup(func() { r.Close(ctx) })
	mod, err := r.Instantiate(ctx, memoryWasm)
	require.NoError(t, err)
	require.NotNil(t, mod.Memory())
	return mod.Memory()
}

func unpackStream(v uint64) (int, wit.StreamResult) {
	return int(v >> 4), wit.StreamResult(v & 0xf)
}

func TestStreamFunctions(t *testing.T) {
	ctx := context.Background()
	h := NewHost(nil)
	mem := newTestMemory(t)

	stack := make([]uint64, 3)
	h.streamNew(ctx, stack)
	writable, readable := uint32(stack[0]>>32), uint32(stack[0])
	require.NotZero(t, writable)
	require.NotZero(t, readable)

	require.True(t, mem.Write(0, []byte("Hello, WASI!")))

	done := make(chan uint64, 1)
	go func() {
		s := []uint64{uint64(writable), 0, 12}
		h.streamWrite(ctx, mem, s)
		done <- s[0]
	}()

	s := []uint64{uint64(readable), 100, 5}
	h.streamRead(ctx, mem, s)
	n, result := unpackStream(s[0])
	require.Equal(t, wit.StreamComplete, result)
	require.Equal(t, 5, n)
	got, ok := mem.Read(100, 5)
	require.True(t, ok)
	require.Equal(t, "Hello", string(got))

	n, result = unpackStream(<-done)
	require.Equal(t, wit.StreamComplete, result)
	require.Equal(t, 5, n, "a write reports how much the reader took")

	h.streamDropWritable(ctx, []uint64{uint64(writable)})
	s = []uint64{uint64(readable), 100, 5}
	h.streamRead(ctx, mem, s)
	_, result = unpackStream(s[0])
	require.Equal(t, wit.StreamDropped, result)

	h.streamDropReadable(ctx, []uint64{uint64(readable)})
	require.Zero(t, h.Len())

	require.Panics(t, func() { h.streamRead(ctx, mem, []uint64{uint64(readable), 0, 1}) })
}

func TestStreamWriteToDroppedReader(t *testing.T) {
	ctx := context.Background()
	h := NewHost(nil)
	mem := newTestMemory(t)

	w, r := wit.NewStream()
	handle := h.PushStreamWriter(w)
	r.Close()

	s := []uint64{uint64(handle), 0, 100}
	h.streamWrite(ctx, mem, s)
	n, result := unpackStream(s[0])
	require.Equal(t, wit.StreamDropped, result)
	require.Zero(t, n)
}

func TestFutureFunctions(t *testing.T) {
	ctx := context.Background()
	h := NewHost(nil)
	mem := newTestMemory(t)

	trailers, err := types.FieldsFromList([]types.FieldEntry{{Name: "x-done", Value: []byte("yes")}})
	require.NoError(t, err)
	encoded := EncodeBodyResult(nil, types.OkBody(trailers))
	require.True(t, mem.Write(0, encoded))

	stack := make([]uint64, 3)
	h.futureNew(ctx, stack)
	writable, readable := uint32(stack[0]>>32), uint32(stack[0])

	done := make(chan uint64, 1)
	go func() {
		s := []uint64{uint64(writable), 0, uint64(len(encoded))}
		h.futureWrite(ctx, mem, s)
		done <- s[0]
	}()

	// too small a buffer keeps the value for the next call
	s := []uint64{uint64(readable), 1000, 1}
	h.futureRead(ctx, mem, s)
	require.Equal(t, uint64(len(encoded))<<4|uint64(FutureValue), s[0])
	require.Equal(t, uint64(FutureWritten), <-done)

	s = []uint64{uint64(readable), 1000, 1000}
	h.futureRead(ctx, mem, s)
	require.Equal(t, uint64(len(encoded))<<4|uint64(FutureValue), s[0])
	got, ok := mem.Read(1000, uint32(len(encoded)))
	require.True(t, ok)

	v, err := DecodeBodyResult(got)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("yes")}, v.OK().Get("x-done"))

	s = []uint64{uint64(writable), 0, uint64(len(encoded))}
	h.futureWrite(ctx, mem, s)
	require.Equal(t, uint64(FutureAlreadyWritten), s[0])

	s = []uint64{uint64(readable), 1000, 1000}
	h.futureRead(ctx, mem, s)
	require.Equal(t, uint64(FutureClosed), s[0])
}

func TestFutureDroppedEnds(t *testing.T) {
	ctx := context.Background()
	h := NewHost(nil)
	mem := newTestMemory(t)

	stack := make([]uint64, 1)
	h.futureNew(ctx, stack)
	writable, readable := uint32(stack[0]>>32), uint32(stack[0])

	h.futureDropReadable(ctx, []uint64{uint64(readable)})
	s := []uint64{uint64(writable), 0, 0}
	h.futureWrite(ctx, mem, s)
	require.Equal(t, uint64(FutureReaderDropped), s[0])

	// a host-side BodyWriter result reader keeps its default
	w, r := wit.NewFuture(func() types.BodyResult {
		return types.ErrBody(types.InternalError("body writer dropped"))
	})
	handle := h.PushResultReader(r)
	w.Close()

	s = []uint64{uint64(handle), 0, 1000}
	h.futureRead(ctx, mem, s)
	require.Equal(t, uint32(FutureValue), uint32(s[0]&0xf))
	got, ok := mem.Read(0, uint32(s[0]>>4))
	require.True(t, ok)
	v, err := DecodeBodyResult(got)
	require.NoError(t, err)
	require.True(t, v.IsErr())
	require.Equal(t, "body writer dropped", *v.Err().Message)
}

func TestFutureReadSerialized(t *testing.T) {
	ctx := context.Background()
	h := NewHost(nil)
	mem := newTestMemory(t)

	w, r := wit.NewFuture[types.BodyResult](nil)
	handle := h.PushResultReader(r)
	go func() {
		w.Write(ctx, types.OkBody(nil))
		w.Close()
	}()

	statuses := make(chan uint32, 2)
	for i := 0; i < 2; i++ {
		go func(buf uint64) {
			s := []uint64{uint64(handle), buf, 100}
			h.futureRead(ctx, mem, s)
			statuses <- uint32(s[0] & 0xf)
		}(uint64(i * 100))
	}
	require.ElementsMatch(t, []uint32{FutureValue, FutureClosed}, []uint32{<-statuses, <-statuses})
}

func TestTable(t *testing.T) {
	var tbl table[string]
	a := tbl.add("a")
	b := tbl.add("b")
	require.NotEqual(t, a, b)
	require.NotZero(t, a)

	v, ok := tbl.get(a)
	require.True(t, ok)
	require.Equal(t, "a", v)

	v, ok = tbl.remove(a)
	require.True(t, ok)
	require.Equal(t, "a", v)
	_, ok = tbl.remove(a)
	require.False(t, ok)
	require.Equal(t, 1, tbl.len())
}
