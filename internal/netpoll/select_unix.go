//go:build linux || darwin

// File: internal/netpoll/select_unix.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// select(2) backend. The fd_set is rebuilt before every wait because the
// kernel overwrites it in place; the watched set itself lives in a map.

package netpoll

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Select is a select(2) based poller. Descriptors must stay below the
// FD_SETSIZE limit of the platform.
type Select struct {
	watched map[int]struct{}
}

// NewSelect creates a select-backed poller.
func NewSelect() *Select {
	return &Select{watched: make(map[int]struct{})}
}

// AddRead registers fd for readability.
func (p *Select) AddRead(fd int) error {
	if fd >= 1024 {
		return fmt.Errorf("select: fd %d beyond FD_SETSIZE", fd)
	}
	p.watched[fd] = struct{}{}
	return nil
}

// Remove unregisters fd.
func (p *Select) Remove(fd int) error {
	delete(p.watched, fd)
	return nil
}

// Wait blocks until at least one watched descriptor is readable.
func (p *Select) Wait(ready []int) (int, error) {
	for {
		var rset unix.FdSet
		maxFD := -1
		for fd := range p.watched {
			rset.Set(fd)
			if fd > maxFD {
				maxFD = fd
			}
		}

		_, err := unix.Select(maxFD+1, &rset, nil, nil, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("select: %w", err)
		}

		n := 0
		for fd := range p.watched {
			if n == len(ready) {
				break
			}
			if rset.IsSet(fd) {
				ready[n] = fd
				n++
			}
		}
		return n, nil
	}
}

// Close has nothing to release.
func (p *Select) Close() error {
	return nil
}
