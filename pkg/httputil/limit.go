package httputil

import (
	"errors"
	"fmt"
	"io"
)

// ErrTooLarge is returned by [CopyLimited] when the source exceeds the limit.
var ErrTooLarge = errors.New("payload exceeds size limit")

// CopyLimited copies from src to dst and returns the number of bytes written.
// A non-positive limit disables the check.
func CopyLimited(dst io.Writer, src io.Reader, limit int64) (int64, error) {
	if limit <= 0 {
		return io.Copy(dst, src)
	}
	n, err := io.Copy(dst, io.LimitReader(src, limit+1))
	if err != nil {
		return n, err
	}
	if n > limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return n, nil
}
