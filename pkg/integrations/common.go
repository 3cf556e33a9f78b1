package integrations

import (
	"errors"
	"net/http"
	"time"

	"github.com/matzehuels/phpvendor/pkg/httputil"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when a release or package doesn't exist.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, non-200 responses).
	ErrNetwork = errors.New("network error")

	// ErrMalformed is returned when a response body does not match the expected schema.
	ErrMalformed = errors.New("malformed response")
)

// NewHTTPClient creates an HTTP client with the given timeout. A
// non-positive timeout falls back to 10 seconds.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func isTooLarge(err error) bool {
	return errors.Is(err, httputil.ErrTooLarge)
}
