package mtop

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingToken means the cookie set carries no usable _m_h5_tk value.
	ErrMissingToken = errors.New("mtop: missing _m_h5_tk token cookie")
	// ErrNoEnvelope means the body held neither a JSONP wrapper nor a bare JSON object.
	ErrNoEnvelope = errors.New("mtop: response is not a JSONP envelope")
)

// SignatureError wraps failures while building a signed request. These indicate a
// programming defect (an unserializable payload) and are never retried.
type SignatureError struct {
	Err error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("mtop signature error: %v", e.Err)
}

func (e *SignatureError) Unwrap() error {
	return e.Err
}

// ParseError wraps a JSON decoding failure of the unwrapped envelope.
type ParseError struct {
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("mtop parse error: %v (body: %q)", e.Err, e.Snippet)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
