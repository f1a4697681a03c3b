//go:build linux

// File: internal/netpoll/poll_linux.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// poll(2) backend. The watched set is a plain slice rebuilt on removal,
// matching the small fixed connection counts this server is meant for.

package netpoll

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Poll is a poll(2) based poller.
type Poll struct {
	fds []unix.PollFd
}

// NewPoll creates a poll-backed poller.
func NewPoll() *Poll {
	return &Poll{}
}

// AddRead registers fd for POLLIN.
func (p *Poll) AddRead(fd int) error {
	p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	return nil
}

// Remove unregisters fd.
func (p *Poll) Remove(fd int) error {
	for i := range p.fds {
		if p.fds[i].Fd == int32(fd) {
			p.fds = append(p.fds[:i], p.fds[i+1:]...)
			break
		}
	}
	return nil
}

// Wait blocks until at least one descriptor is readable. Hangups and errors
// are reported as readability so the caller observes them on its next read.
func (p *Poll) Wait(ready []int) (int, error) {
	for {
		_, err := unix.Poll(p.fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("poll: %w", err)
		}
		n := 0
		for i := range p.fds {
			if n == len(ready) {
				break
			}
			if p.fds[i].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
				ready[n] = int(p.fds[i].Fd)
				n++
			}
		}
		return n, nil
	}
}

// Close has nothing to release; poll keeps no kernel object.
func (p *Poll) Close() error {
	return nil
}
