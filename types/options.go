package types

import "time"

// RequestOptions carries the per-request timeouts of wasi:http. A nil
// field means the host default applies.
type RequestOptions struct {
	ConnectTimeout      *time.Duration
	FirstByteTimeout    *time.Duration
	BetweenBytesTimeout *time.Duration
}

// NewRequestOptions returns options with every timeout unset.
func NewRequestOptions() *RequestOptions {
	return &RequestOptions{}
}

// Clone returns a deep copy of o. It returns nil if o is nil.
func (o *RequestOptions) Clone() *RequestOptions {
	if o == nil {
		return nil
	}
	return &RequestOptions{
		ConnectTimeout:      cloneDuration(o.ConnectTimeout),
		FirstByteTimeout:    cloneDuration(o.FirstByteTimeout),
		BetweenBytesTimeout: cloneDuration(o.BetweenBytesTimeout),
	}
}

func cloneDuration(d *time.Duration) *time.Duration {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
