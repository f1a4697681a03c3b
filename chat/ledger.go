// File: chat/ledger.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0

package chat

import (
	"golang.org/x/sys/unix"

	"github.com/robn/yoctochat/api"
)

// Request is one in-flight asynchronous operation: its kind, the connection
// it belongs to, and kind-specific storage. Read and write requests own a
// fixed-capacity chunk buffer; accept requests own raw sockaddr storage the
// kernel fills with the peer address. The request object is what keeps that
// memory reachable while the kernel works on it.
type Request struct {
	Kind api.OpKind
	Conn int

	// Buf is the chunk buffer for reads and writes; N is the payload
	// length for writes (reads use the completion's result instead).
	Buf []byte
	N   int

	// Addr/AddrLen are accept-only: storage for the peer's address.
	Addr    unix.RawSockaddrAny
	AddrLen uint32
}

// Ledger allocates and tracks in-flight requests, mapping each completion
// token back to its request. Tokens are monotonically increasing and never
// reused, so a stale completion can never alias a newer request. Resolve
// consumes the token, which makes releasing the same request twice
// unrepresentable: there is no separate release call to misuse.
type Ledger struct {
	chunkSize int
	next      uint64
	inflight  map[uint64]*Request
}

// NewLedger creates a ledger handing out chunkSize read/write buffers.
func NewLedger(chunkSize int) *Ledger {
	return &Ledger{
		chunkSize: chunkSize,
		next:      1,
		inflight:  make(map[uint64]*Request),
	}
}

// Allocate creates a request of the given kind for the given connection,
// sets up its kind-appropriate storage, and returns its correlation token.
func (l *Ledger) Allocate(kind api.OpKind, conn int) (uint64, *Request) {
	req := &Request{Kind: kind, Conn: conn}
	switch kind {
	case api.OpRead, api.OpWrite:
		req.Buf = make([]byte, l.chunkSize)
	case api.OpAccept:
		req.AddrLen = unix.SizeofSockaddrAny
	}
	return l.track(req), req
}

// Rearm re-registers an already-resolved accept or read request under a
// fresh token, reusing its storage. The fresh token keeps the
// never-reuse-while-outstanding invariant without reallocating buffers.
func (l *Ledger) Rearm(req *Request) uint64 {
	if req.Kind == api.OpAccept {
		req.AddrLen = unix.SizeofSockaddrAny
	}
	return l.track(req)
}

// Resolve consumes a token and returns its request. The second return is
// false when the token is unknown, including when it was already resolved.
func (l *Ledger) Resolve(token uint64) (*Request, bool) {
	req, ok := l.inflight[token]
	if ok {
		delete(l.inflight, token)
	}
	return req, ok
}

// InFlight returns the number of outstanding requests.
func (l *Ledger) InFlight() int {
	return len(l.inflight)
}

func (l *Ledger) track(req *Request) uint64 {
	token := l.next
	l.next++
	l.inflight[token] = req
	return token
}
