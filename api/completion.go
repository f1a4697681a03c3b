// File: api/completion.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// Contract for completion-based I/O facilities (io_uring on Linux, fakes in
// tests). An operation is described and submitted together with a correlation
// token; its result arrives later as an independent Completion carrying that
// token. Nothing in this contract implies any ordering between completions of
// independently submitted operations.

package api

import (
	"golang.org/x/sys/unix"
)

// OpKind identifies the logical operation an in-flight request performs.
type OpKind uint8

const (
	OpInvalid OpKind = iota
	OpAccept
	OpRead
	OpWrite
	OpClose
)

// String returns the lower-case name of the operation kind.
func (k OpKind) String() string {
	switch k {
	case OpAccept:
		return "accept"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpClose:
		return "close"
	default:
		return "invalid"
	}
}

// Completion is the result of one submitted operation. Result follows the
// CQE convention: a negative value is the negated errno of the underlying
// call, a non-negative value is the call's return value (the new descriptor
// for accept, the byte count for read/write).
type Completion struct {
	Token  uint64
	Result int32
}

// Err returns the failure carried by the completion, or nil on success.
func (c Completion) Err() error {
	if c.Result >= 0 {
		return nil
	}
	return unix.Errno(-c.Result)
}

// Completer is a completion-based I/O facility. Submit methods are
// fire-and-forget: they only describe the operation and hand it to the
// facility, returning ErrSubmissionFull when no submission slot is free.
// The described operation's buffers and address storage must stay reachable
// until the matching Completion has been consumed.
//
// Wait blocks until at least one completed operation is available and
// consumes exactly one. Exactly one Completion is produced per submission.
type Completer interface {
	SubmitAccept(listenFD int, sa *unix.RawSockaddrAny, saLen *uint32, token uint64) error
	SubmitRead(fd int, buf []byte, token uint64) error
	SubmitWrite(fd int, buf []byte, token uint64) error
	SubmitClose(fd int, token uint64) error
	Wait() (Completion, error)
	Close() error
}
