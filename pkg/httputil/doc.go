// Package httputil provides HTTP helpers shared by the release-metadata and
// archive-download clients.
//
// # Retry
//
// [Retry] and [Policy] wrap an operation with automatic retry for transient
// failures. Only errors wrapped with [Retryable] are retried:
//
//   - Network errors
//   - 5xx server errors
//
// Everything else (404, malformed bodies, context cancellation) is returned
// on the first attempt:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    ...
//	})
//
// # Bounded reads
//
// [CopyLimited] streams a response body into a writer and fails once more
// than the configured number of bytes arrive, so a hostile or misconfigured
// server cannot fill the disk.
package httputil
