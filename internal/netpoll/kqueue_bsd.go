//go:build darwin || dragonfly || freebsd || netbsd || openbsd

// File: internal/netpoll/kqueue_bsd.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// kqueue backend for the BSDs and darwin.

package netpoll

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Kqueue is a kqueue(2) based poller.
type Kqueue struct {
	kq     int
	events []unix.Kevent_t
}

// NewKqueue creates a kqueue instance reporting up to maxEvents per wait.
func NewKqueue(maxEvents int) (*Kqueue, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue: %w", err)
	}
	unix.CloseOnExec(kq)
	return &Kqueue{
		kq:     kq,
		events: make([]unix.Kevent_t, maxEvents),
	}, nil
}

// AddRead registers fd for EVFILT_READ.
func (p *Kqueue) AddRead(fd int) error {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, unix.EVFILT_READ, unix.EV_ADD)
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		return fmt.Errorf("kevent add %d: %w", fd, err)
	}
	return nil
}

// Remove unregisters fd. Closing the descriptor removes its kevents anyway,
// so a missing entry is not an error.
func (p *Kqueue) Remove(fd int) error {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, unix.EVFILT_READ, unix.EV_DELETE)
	if _, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil); err != nil && err != unix.ENOENT && err != unix.EBADF {
		return fmt.Errorf("kevent del %d: %w", fd, err)
	}
	return nil
}

// Wait blocks until at least one descriptor is readable.
func (p *Kqueue) Wait(ready []int) (int, error) {
	for {
		n, err := unix.Kevent(p.kq, nil, p.events, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("kevent wait: %w", err)
		}
		if n > len(ready) {
			n = len(ready)
		}
		for i := 0; i < n; i++ {
			ready[i] = int(p.events[i].Ident)
		}
		return n, nil
	}
}

// Close releases the kqueue descriptor.
func (p *Kqueue) Close() error {
	return unix.Close(p.kq)
}
