//go:build linux

// File: internal/netpoll/netpoll_linux_test.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// One behavioural suite run against every backend available on Linux.

package netpoll

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/robn/yoctochat/api"
)

func backends(t *testing.T) map[string]api.Poller {
	t.Helper()
	ep, err := NewEpoll(16)
	if err != nil {
		t.Fatalf("NewEpoll: %v", err)
	}
	return map[string]api.Poller{
		"epoll":  ep,
		"poll":   NewPoll(),
		"select": NewSelect(),
	}
}

func TestPollersReportReadable(t *testing.T) {
	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer p.Close()

			var fds [2]int
			if err := unix.Pipe(fds[:]); err != nil {
				t.Fatalf("pipe: %v", err)
			}
			r, w := fds[0], fds[1]
			defer unix.Close(r)
			defer unix.Close(w)

			if err := p.AddRead(r); err != nil {
				t.Fatalf("AddRead: %v", err)
			}
			if _, err := unix.Write(w, []byte("x")); err != nil {
				t.Fatalf("write: %v", err)
			}

			ready := make([]int, 4)
			n, err := p.Wait(ready)
			if err != nil {
				t.Fatalf("Wait: %v", err)
			}
			if n != 1 || ready[0] != r {
				t.Errorf("Wait = %d ready %v, want fd %d", n, ready[:n], r)
			}
		})
	}
}

func TestPollersStopReportingRemoved(t *testing.T) {
	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer p.Close()

			var a, b [2]int
			if err := unix.Pipe(a[:]); err != nil {
				t.Fatalf("pipe: %v", err)
			}
			if err := unix.Pipe(b[:]); err != nil {
				t.Fatalf("pipe: %v", err)
			}
			defer func() {
				for _, fd := range []int{a[0], a[1], b[0], b[1]} {
					unix.Close(fd)
				}
			}()

			if err := p.AddRead(a[0]); err != nil {
				t.Fatalf("AddRead a: %v", err)
			}
			if err := p.AddRead(b[0]); err != nil {
				t.Fatalf("AddRead b: %v", err)
			}
			if err := p.Remove(a[0]); err != nil {
				t.Fatalf("Remove a: %v", err)
			}

			unix.Write(a[1], []byte("x"))
			unix.Write(b[1], []byte("y"))

			ready := make([]int, 4)
			n, err := p.Wait(ready)
			if err != nil {
				t.Fatalf("Wait: %v", err)
			}
			for i := 0; i < n; i++ {
				if ready[i] == a[0] {
					t.Errorf("removed fd %d still reported", a[0])
				}
			}
			if n != 1 || ready[0] != b[0] {
				t.Errorf("Wait = %d ready %v, want fd %d", n, ready[:n], b[0])
			}
		})
	}
}
