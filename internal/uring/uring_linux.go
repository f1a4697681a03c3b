//go:build linux

// File: internal/uring/uring_linux.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// Minimal io_uring wrapper implementing api.Completer. One Ring owns one
// kernel ring pair; submission pushes an SQE and tells the kernel about it
// immediately, waiting reaps exactly one CQE at a time. The caller keeps the
// submitted buffers and sockaddr storage reachable until the matching
// completion is consumed, which also keeps the Go GC from collecting memory
// the kernel still writes to.

package uring

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/robn/yoctochat/api"
)

// Ring is a single io_uring instance. Not safe for concurrent use; the
// dispatcher drives it from one goroutine.
type Ring struct {
	fd     int
	closed bool

	// pending counts SQEs published to the ring that the kernel has not yet
	// consumed, because enter reported completion-queue backpressure. Wait
	// flushes them alongside its blocking call.
	pending uint32

	// enter wraps the io_uring_enter syscall; swapped out by tests.
	enter func(toSubmit, minComplete, flags uint32) (uint32, unix.Errno)

	sqMem  []byte
	cqMem  []byte
	sqeMem []byte

	sqHead    *uint32
	sqTail    *uint32
	sqMask    uint32
	sqEntries uint32
	sqArray   []uint32
	sqes      []sqe

	cqHead *uint32
	cqTail *uint32
	cqMask uint32
	cqes   []cqe
}

// New sets up an io_uring with the given submission queue depth and maps
// both rings plus the SQE array into the process.
func New(depth uint32) (*Ring, error) {
	var params setupParams
	fd, _, errno := unix.Syscall(sysSetup, uintptr(depth), uintptr(unsafe.Pointer(&params)), 0)
	if errno != 0 {
		return nil, fmt.Errorf("io_uring_setup: %w", errno)
	}

	r := &Ring{fd: int(fd)}
	r.enter = r.sysEnter

	sqSize := int(params.sqOff.array + params.sqEntries*4)
	cqSize := int(params.cqOff.cqes + params.cqEntries*uint32(unsafe.Sizeof(cqe{})))
	singleMmap := params.features&featSingleMmap != 0
	if singleMmap {
		if cqSize > sqSize {
			sqSize = cqSize
		}
		cqSize = sqSize
	}

	sqMem, err := unix.Mmap(r.fd, offSQRing, sqSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Close(r.fd)
		return nil, fmt.Errorf("mmap sq ring: %w", err)
	}
	r.sqMem = sqMem

	if singleMmap {
		r.cqMem = sqMem
	} else {
		cqMem, err := unix.Mmap(r.fd, offCQRing, cqSize,
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
		if err != nil {
			r.unmap()
			unix.Close(r.fd)
			return nil, fmt.Errorf("mmap cq ring: %w", err)
		}
		r.cqMem = cqMem
	}

	sqeMem, err := unix.Mmap(r.fd, offSQEs, int(params.sqEntries)*int(unsafe.Sizeof(sqe{})),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		r.unmap()
		unix.Close(r.fd)
		return nil, fmt.Errorf("mmap sqes: %w", err)
	}
	r.sqeMem = sqeMem

	r.sqHead = (*uint32)(unsafe.Pointer(&r.sqMem[params.sqOff.head]))
	r.sqTail = (*uint32)(unsafe.Pointer(&r.sqMem[params.sqOff.tail]))
	r.sqMask = *(*uint32)(unsafe.Pointer(&r.sqMem[params.sqOff.ringMask]))
	r.sqEntries = params.sqEntries
	r.sqArray = unsafe.Slice((*uint32)(unsafe.Pointer(&r.sqMem[params.sqOff.array])), params.sqEntries)
	r.sqes = unsafe.Slice((*sqe)(unsafe.Pointer(&r.sqeMem[0])), params.sqEntries)

	r.cqHead = (*uint32)(unsafe.Pointer(&r.cqMem[params.cqOff.head]))
	r.cqTail = (*uint32)(unsafe.Pointer(&r.cqMem[params.cqOff.tail]))
	r.cqMask = *(*uint32)(unsafe.Pointer(&r.cqMem[params.cqOff.ringMask]))
	r.cqes = unsafe.Slice((*cqe)(unsafe.Pointer(&r.cqMem[params.cqOff.cqes])), params.cqEntries)

	return r, nil
}

// SubmitAccept arms an asynchronous accept on the listening descriptor. The
// kernel fills sa/saLen with the peer address when the accept completes.
func (r *Ring) SubmitAccept(listenFD int, sa *unix.RawSockaddrAny, saLen *uint32, token uint64) error {
	return r.push(sqe{
		opcode:   opAccept,
		fd:       int32(listenFD),
		addr:     uint64(uintptr(unsafe.Pointer(sa))),
		off:      uint64(uintptr(unsafe.Pointer(saLen))),
		userData: token,
	})
}

// SubmitRead arms an asynchronous read into buf.
func (r *Ring) SubmitRead(fd int, buf []byte, token uint64) error {
	return r.push(sqe{
		opcode:   opRead,
		fd:       int32(fd),
		addr:     uint64(uintptr(unsafe.Pointer(&buf[0]))),
		len:      uint32(len(buf)),
		userData: token,
	})
}

// SubmitWrite arms an asynchronous write of buf.
func (r *Ring) SubmitWrite(fd int, buf []byte, token uint64) error {
	return r.push(sqe{
		opcode:   opWrite,
		fd:       int32(fd),
		addr:     uint64(uintptr(unsafe.Pointer(&buf[0]))),
		len:      uint32(len(buf)),
		userData: token,
	})
}

// SubmitClose arms an asynchronous close of fd.
func (r *Ring) SubmitClose(fd int, token uint64) error {
	return r.push(sqe{
		opcode:   opClose,
		fd:       int32(fd),
		userData: token,
	})
}

// push writes one SQE into the submission ring and submits it, together
// with any earlier entries the kernel has not consumed yet. Returns
// api.ErrSubmissionFull only when no SQ slot is free; completion-queue
// backpressure leaves the entry queued in the ring, where the next enter
// flushes it, so it must not be reported as unsubmitted — the caller
// would submit the same token twice.
func (r *Ring) push(s sqe) error {
	if r.closed {
		return api.ErrClosed
	}

	head := atomic.LoadUint32(r.sqHead)
	tail := *r.sqTail
	if tail-head == r.sqEntries {
		return api.ErrSubmissionFull
	}

	idx := tail & r.sqMask
	r.sqes[idx] = s
	r.sqArray[idx] = idx
	atomic.StoreUint32(r.sqTail, tail+1)
	r.pending++

	for {
		n, errno := r.enter(r.pending, 0, 0)
		switch errno {
		case 0:
			r.pending -= n
			return nil
		case unix.EINTR:
			continue
		case unix.EBUSY, unix.EAGAIN:
			// CQ is saturated; the entry stays queued in the SQ and Wait
			// flushes it once completions drain.
			return nil
		default:
			// The entry never reached the kernel; unpublish it.
			atomic.StoreUint32(r.sqTail, tail)
			r.pending--
			return fmt.Errorf("io_uring_enter submit: %w", errno)
		}
	}
}

// Wait blocks until a completion is available and consumes exactly one.
// SQEs left queued by a backpressured push are flushed here.
func (r *Ring) Wait() (api.Completion, error) {
	if r.closed {
		return api.Completion{}, api.ErrClosed
	}
	for {
		head := *r.cqHead
		tail := atomic.LoadUint32(r.cqTail)
		if head != tail {
			c := r.cqes[head&r.cqMask]
			atomic.StoreUint32(r.cqHead, head+1)
			return api.Completion{Token: c.userData, Result: c.res}, nil
		}

		n, errno := r.enter(r.pending, 1, enterGetEvents)
		switch errno {
		case 0:
			r.pending -= n
		case unix.EINTR:
		case unix.EBUSY, unix.EAGAIN:
			// Still backpressured; wait without submitting until the CQ
			// drains.
			if _, e := r.enter(0, 1, enterGetEvents); e != 0 && e != unix.EINTR {
				return api.Completion{}, fmt.Errorf("io_uring_enter wait: %w", e)
			}
		default:
			return api.Completion{}, fmt.Errorf("io_uring_enter wait: %w", errno)
		}
	}
}

func (r *Ring) sysEnter(toSubmit, minComplete, flags uint32) (uint32, unix.Errno) {
	n, _, errno := unix.Syscall6(sysEnter, uintptr(r.fd),
		uintptr(toSubmit), uintptr(minComplete), uintptr(flags), 0, 0)
	return uint32(n), errno
}

// Close unmaps the rings and releases the ring descriptor.
func (r *Ring) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.unmap()
	return unix.Close(r.fd)
}

func (r *Ring) unmap() {
	if r.sqeMem != nil {
		unix.Munmap(r.sqeMem)
		r.sqeMem = nil
	}
	if r.cqMem != nil && &r.cqMem[0] != &r.sqMem[0] {
		unix.Munmap(r.cqMem)
	}
	r.cqMem = nil
	if r.sqMem != nil {
		unix.Munmap(r.sqMem)
		r.sqMem = nil
	}
}
