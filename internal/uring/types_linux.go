//go:build linux

// File: internal/uring/types_linux.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// io_uring kernel ABI: syscall numbers, opcodes, mmap offsets and the
// shared-memory ring structures. Layouts must match include/uapi/linux/io_uring.h
// exactly; the kernel reads and writes these through the ring mappings.

package uring

const (
	sysSetup = 425 // io_uring_setup
	sysEnter = 426 // io_uring_enter

	// Opcodes used by this server. io_uring covers many more; these four
	// are the whole request vocabulary of a byte relay.
	opAccept = 13 // IORING_OP_ACCEPT
	opClose  = 19 // IORING_OP_CLOSE
	opRead   = 22 // IORING_OP_READ
	opWrite  = 23 // IORING_OP_WRITE

	enterGetEvents = 1 << 0 // IORING_ENTER_GETEVENTS

	featSingleMmap = 1 << 0 // IORING_FEAT_SINGLE_MMAP

	// mmap offsets selecting which ring a mapping refers to.
	offSQRing = 0
	offCQRing = 0x8000000
	offSQEs   = 0x10000000
)

// sqOffsets is struct io_sqring_offsets: byte offsets of the submission
// ring's fields within its mapping.
type sqOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	flags       uint32
	dropped     uint32
	array       uint32
	resv1       uint32
	userAddr    uint64
}

// cqOffsets is struct io_cqring_offsets for the completion ring.
type cqOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	overflow    uint32
	cqes        uint32
	flags       uint32
	resv1       uint32
	userAddr    uint64
}

// setupParams is struct io_uring_params, filled in by io_uring_setup.
type setupParams struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCPU  uint32
	sqThreadIdle uint32
	features     uint32
	wqFD         uint32
	resv         [3]uint32
	sqOff        sqOffsets
	cqOff        cqOffsets
}

// sqe is struct io_uring_sqe, one submission queue entry (64 bytes).
// off doubles as addr2 for accept (the addrlen pointer).
type sqe struct {
	opcode      uint8
	flags       uint8
	ioprio      uint16
	fd          int32
	off         uint64
	addr        uint64
	len         uint32
	opFlags     uint32
	userData    uint64
	bufIndex    uint16
	personality uint16
	spliceFDIn  int32
	_pad        [2]uint64
}

// cqe is struct io_uring_cqe, one completion queue entry (16 bytes).
type cqe struct {
	userData uint64
	res      int32
	flags    uint32
}
