// File: api/errors.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// Common error values shared across the yoctochat servers.

package api

import "fmt"

var (
	// ErrSubmissionFull is returned by a Completer when the underlying
	// submission capacity is transiently exhausted. The operation was not
	// submitted and may be retried after draining completions.
	ErrSubmissionFull = fmt.Errorf("submission queue is full")

	// ErrRegistryFull is returned when the configured maximum connection
	// count has been reached and no further peer can be admitted.
	ErrRegistryFull = fmt.Errorf("connection registry is full")

	// ErrClosed is returned by operations on a released facility.
	ErrClosed = fmt.Errorf("facility is closed")
)
