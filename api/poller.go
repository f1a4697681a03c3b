// File: api/poller.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// Contract for readiness-based event demultiplexers (select, poll, epoll,
// kqueue). A Poller reports which descriptors are ready for a synchronous
// call; it performs no I/O itself.

package api

// Poller is a readiness-based event loop backend. Implementations watch
// descriptors for readability and report them from Wait.
type Poller interface {
	// AddRead registers fd for readability notifications.
	AddRead(fd int) error

	// Remove unregisters fd. Removing an unknown fd is not an error.
	Remove(fd int) error

	// Wait blocks until at least one watched descriptor is readable and
	// fills ready with the descriptors, returning how many were stored.
	Wait(ready []int) (int, error)

	// Close releases the backend.
	Close() error
}
