package cookiestore

import (
	"errors"
	"fmt"
)

// ErrNoCookiesField is reported when the file parses but has no cookies list.
var ErrNoCookiesField = errors.New("cookiestore: missing cookies field")

// CorruptStoreError reports a cookies file that exists but cannot be decoded.
// It is recoverable: the store behaves as if it were empty.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("cookiestore: corrupt cookies file %s: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error {
	return e.Err
}

// IsCorrupt reports whether err is a CorruptStoreError.
func IsCorrupt(err error) bool {
	var ce *CorruptStoreError
	return errors.As(err, &ce)
}
