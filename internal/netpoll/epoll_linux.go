//go:build linux

// File: internal/netpoll/epoll_linux.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// Level-triggered epoll backend.

package netpoll

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Epoll is an epoll(7) based poller.
type Epoll struct {
	epfd   int
	events []unix.EpollEvent
}

// NewEpoll creates an epoll instance reporting up to maxEvents per wait.
func NewEpoll(maxEvents int) (*Epoll, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &Epoll{
		epfd:   epfd,
		events: make([]unix.EpollEvent, maxEvents),
	}, nil
}

// AddRead registers fd for readability.
func (p *Epoll) AddRead(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl add %d: %w", fd, err)
	}
	return nil
}

// Remove unregisters fd.
func (p *Epoll) Remove(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil && err != unix.ENOENT && err != unix.EBADF {
		return fmt.Errorf("epoll_ctl del %d: %w", fd, err)
	}
	return nil
}

// Wait blocks until at least one descriptor is readable.
func (p *Epoll) Wait(ready []int) (int, error) {
	for {
		n, err := unix.EpollWait(p.epfd, p.events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("epoll_wait: %w", err)
		}
		if n > len(ready) {
			n = len(ready)
		}
		for i := 0; i < n; i++ {
			ready[i] = int(p.events[i].Fd)
		}
		return n, nil
	}
}

// Close releases the epoll descriptor.
func (p *Epoll) Close() error {
	return unix.Close(p.epfd)
}
