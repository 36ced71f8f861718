package types

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/refraction-networking/wasip3/wit"
)

// BodyResult is the terminal outcome of a body: optional trailers on
// success, or the error that ended it.
type BodyResult = wit.Result[*Fields, ErrorCode]

// TransmitResult reports whether a message body was fully transmitted.
type TransmitResult = wit.Result[struct{}, ErrorCode]

// ErrBodyConsumed is returned by ConsumeBody on every call but the first.
var ErrBodyConsumed = errors.New("types: message body already consumed")

// OkBody returns a successful BodyResult with the given (possibly nil) trailers.
func OkBody(trailers *Fields) BodyResult {
	return wit.Ok[*Fields, ErrorCode](trailers)
}

// ErrBody returns a failed BodyResult.
func ErrBody(code ErrorCode) BodyResult {
	return wit.Err[*Fields, ErrorCode](code)
}

// OkTransmit returns a successful TransmitResult.
func OkTransmit() TransmitResult {
	return wit.Ok[struct{}, ErrorCode](struct{}{})
}

// messageBody keeps the channel ends a message was built with until the
// body is consumed.
type messageBody struct {
	contents wit.StreamReader
	trailers wit.FutureReader[BodyResult]
	transmit wit.FutureWriter[TransmitResult]

	consumed atomic.Bool
}

func newMessageBody(contents wit.StreamReader, trailers wit.FutureReader[BodyResult]) (*messageBody, wit.FutureReader[TransmitResult]) {
	tw, tr := wit.NewFuture(func() TransmitResult {
		return wit.Err[struct{}, ErrorCode](InternalError("message dropped before its body was consumed"))
	})
	return &messageBody{contents: contents, trailers: trailers, transmit: tw}, tr
}

// consume hands the body channels to the consumer. The outcome the
// consumer eventually reports on res is forwarded to the transmit future
// returned when the message was created.
func (b *messageBody) consume(res wit.FutureReader[TransmitResult]) (wit.StreamReader, wit.FutureReader[BodyResult], error) {
	if !b.consumed.CompareAndSwap(false, true) {
		return nil, nil, ErrBodyConsumed
	}

	contents := b.contents
	if contents == nil {
		w, r := wit.NewStream()
		w.Close()
		contents = r
	}
	trailers := b.trailers
	if trailers == nil {
		w, r := wit.NewFuture(func() BodyResult { return OkBody(nil) })
		w.Close()
		trailers = r
	}

	transmit := b.transmit
	wit.Spawn(func() {
		defer transmit.Close()
		if res == nil {
			return
		}
		v, err := res.Read(context.Background())
		if err != nil {
			return
		}
		_ = transmit.Write(context.Background(), v)
	})

	b.contents, b.trailers, b.transmit = nil, nil, nil
	return contents, trailers, nil
}

func (b *messageBody) close() error {
	if !b.consumed.CompareAndSwap(false, true) {
		return nil
	}
	if b.contents != nil {
		b.contents.Close()
	}
	if b.trailers != nil {
		b.trailers.Close()
	}
	return b.transmit.Close()
}
