package wit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/refraction-networking/wasip3/wit"
)

func TestFuture(t *testing.T) {
	t.Run("WriteRead", testFutureWriteRead)
	t.Run("AtMostOneWrite", testFutureAtMostOneWrite)
	t.Run("ReaderClosed", testFutureReaderClosed)
	t.Run("DefaultOnDrop", testFutureDefaultOnDrop)
	t.Run("ClosedWithoutDefault", testFutureClosedWithoutDefault)
}

func testFutureWriteRead(t *testing.T) {
	w, r := wit.NewFuture[string](nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Write(context.Background(), "done")
	}()

	v, err := r.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v != "done" {
		t.Fatalf("Read = %q, want %q", v, "done")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := r.Read(context.Background()); !errors.Is(err, wit.ErrFutureClosed) {
		t.Fatalf("second Read: got %v, want ErrFutureClosed", err)
	}
}

func testFutureAtMostOneWrite(t *testing.T) {
	w, r := wit.NewFuture[int](nil)
	go r.Read(context.Background())

	if err := w.Write(context.Background(), 1); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if err := w.Write(context.Background(), 2); !errors.Is(err, wit.ErrFutureWritten) {
		t.Fatalf("second Write: got %v, want ErrFutureWritten", err)
	}
}

func testFutureReaderClosed(t *testing.T) {
	w, r := wit.NewFuture[int](nil)
	r.Close()

	err := w.Write(context.Background(), 42)
	var closedErr *wit.FutureClosedError[int]
	if !errors.As(err, &closedErr) {
		t.Fatalf("Write: got %v, want *FutureClosedError", err)
	}
	if closedErr.Value != 42 {
		t.Fatalf("FutureClosedError.Value = %d, want 42", closedErr.Value)
	}
}

func testFutureDefaultOnDrop(t *testing.T) {
	w, r := wit.NewFuture(func() string { return "abandoned" })
	w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := r.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v != "abandoned" {
		t.Fatalf("Read = %q, want the default value", v)
	}
}

func testFutureClosedWithoutDefault(t *testing.T) {
	w, r := wit.NewFuture[string](nil)
	w.Close()

	if _, err := r.Read(context.Background()); !errors.Is(err, wit.ErrFutureClosed) {
		t.Fatalf("Read: got %v, want ErrFutureClosed", err)
	}
}
