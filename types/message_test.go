package types_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/refraction-networking/wasip3/types"
	"github.com/refraction-networking/wasip3/wit"
)

func TestRequestAccessors(t *testing.T) {
	req, transmit := types.NewRequest(nil, nil, nil, nil)
	defer transmit.Close()
	defer req.Close()

	if req.Method().Kind != types.MethodGet {
		t.Fatalf("default method = %v", req.Method())
	}
	if err := req.SetMethod(types.OtherMethod("BREW")); err != nil {
		t.Fatalf("SetMethod(BREW): %v", err)
	}
	if err := req.SetMethod(types.OtherMethod("NOT VALID")); err == nil {
		t.Fatal("SetMethod accepted a method with a space")
	}
	if req.Method().String() != "BREW" {
		t.Fatalf("method = %q after rejected set", req.Method())
	}

	if err := req.SetScheme(&types.Scheme{Kind: types.SchemeOther, Other: "1http"}); err == nil {
		t.Fatal("SetScheme accepted a scheme starting with a digit")
	}
	if err := req.SetScheme(&types.Scheme{Kind: types.SchemeOther, Other: "coap+tcp"}); err != nil {
		t.Fatalf("SetScheme(coap+tcp): %v", err)
	}

	authority := "example.com:8080"
	if err := req.SetAuthority(&authority); err != nil {
		t.Fatalf("SetAuthority: %v", err)
	}
	bad := "example.com/path"
	if err := req.SetAuthority(&bad); err == nil {
		t.Fatal("SetAuthority accepted a path")
	}
	if got := req.Authority(); got == nil || *got != authority {
		t.Fatalf("Authority = %v", got)
	}

	if req.Options() != nil {
		t.Fatal("Options non-nil without options")
	}
}

func TestRequestOptionsClone(t *testing.T) {
	d := time.Second
	opts := &types.RequestOptions{ConnectTimeout: &d}
	req, transmit := types.NewRequest(nil, nil, nil, opts)
	defer transmit.Close()
	defer req.Close()

	d = time.Hour
	got := req.Options()
	if got == nil || got.ConnectTimeout == nil || *got.ConnectTimeout != time.Second {
		t.Fatalf("Options = %+v", got)
	}
	if got.FirstByteTimeout != nil {
		t.Fatal("FirstByteTimeout set")
	}
}

func TestResponseStatus(t *testing.T) {
	resp, transmit := types.NewResponse(nil, nil, nil)
	defer transmit.Close()
	defer resp.Close()

	if resp.StatusCode() != 200 {
		t.Fatalf("default status = %d", resp.StatusCode())
	}
	for _, code := range []uint16{0, 99, 1000} {
		if err := resp.SetStatusCode(code); err == nil {
			t.Fatalf("SetStatusCode(%d) accepted", code)
		}
	}
	if err := resp.SetStatusCode(418); err != nil || resp.StatusCode() != 418 {
		t.Fatalf("SetStatusCode(418): %v, status %d", err, resp.StatusCode())
	}
}

func TestConsumeBody(t *testing.T) {
	t.Run("Once", testConsumeBodyOnce)
	t.Run("EmptyBody", testConsumeBodyEmpty)
	t.Run("ForwardsTransmit", testConsumeBodyForwardsTransmit)
	t.Run("DroppedUnconsumed", testConsumeBodyDroppedUnconsumed)
}

func testConsumeBodyOnce(t *testing.T) {
	resp, transmit := types.NewResponse(nil, nil, nil)
	defer transmit.Close()

	if _, _, err := resp.ConsumeBody(nil); err != nil {
		t.Fatalf("first ConsumeBody: %v", err)
	}
	if _, _, err := resp.ConsumeBody(nil); !errors.Is(err, types.ErrBodyConsumed) {
		t.Fatalf("second ConsumeBody: got %v, want ErrBodyConsumed", err)
	}
}

func testConsumeBodyEmpty(t *testing.T) {
	ctx := context.Background()
	resp, transmit := types.NewResponse(nil, nil, nil)
	defer transmit.Close()

	contents, trailers, err := resp.ConsumeBody(nil)
	if err != nil {
		t.Fatalf("ConsumeBody: %v", err)
	}
	if result, _ := contents.Read(ctx, 16); result != wit.StreamDropped {
		t.Fatalf("Read on empty body = %v, want dropped", result)
	}
	v, err := trailers.Read(ctx)
	if err != nil {
		t.Fatalf("trailers: %v", err)
	}
	if v.IsErr() || v.OK() != nil {
		t.Fatalf("trailers = %+v, want Ok(none)", v)
	}
}

func testConsumeBodyForwardsTransmit(t *testing.T) {
	ctx := context.Background()
	req, transmit := types.NewRequest(nil, nil, nil, nil)

	resW, resR := wit.NewFuture[types.TransmitResult](nil)
	if _, _, err := req.ConsumeBody(resR); err != nil {
		t.Fatalf("ConsumeBody: %v", err)
	}

	go resW.Write(ctx, wit.Err[struct{}, types.ErrorCode](types.NewErrorCode(types.ErrorHTTPRequestBodySize)))

	v, err := transmit.Read(ctx)
	if err != nil {
		t.Fatalf("transmit: %v", err)
	}
	if !v.IsErr() || v.Err().Kind != types.ErrorHTTPRequestBodySize {
		t.Fatalf("transmit = %+v", v)
	}
}

func testConsumeBodyDroppedUnconsumed(t *testing.T) {
	req, transmit := types.NewRequest(nil, nil, nil, nil)
	if err := req.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	v, err := transmit.Read(context.Background())
	if err != nil {
		t.Fatalf("transmit: %v", err)
	}
	if !v.IsErr() || v.Err().Kind != types.ErrorInternalError {
		t.Fatalf("transmit = %+v, want internal error", v)
	}
	if _, _, err := req.ConsumeBody(nil); !errors.Is(err, types.ErrBodyConsumed) {
		t.Fatalf("ConsumeBody after Close: %v", err)
	}
}
