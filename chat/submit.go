// File: chat/submit.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0

package chat

import (
	"errors"
	"fmt"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"

	"github.com/robn/yoctochat/api"
)

// pending is a described operation waiting for a free submission slot.
type pending struct {
	token uint64
	req   *Request
}

// Submitter pairs the request ledger with the completion facility. Every
// operation is allocated in the ledger first, then described to the
// facility. When the facility reports exhausted submission capacity the
// operation parks in an overflow FIFO and is retried by Drain after the
// next completion; submission therefore never blocks and is never dropped.
type Submitter struct {
	ring     api.Completer
	ledger   *Ledger
	overflow *queue.Queue
	log      zerolog.Logger
}

// NewSubmitter wires a submitter to its facility and ledger.
func NewSubmitter(ring api.Completer, ledger *Ledger, log zerolog.Logger) *Submitter {
	return &Submitter{
		ring:     ring,
		ledger:   ledger,
		overflow: queue.New(),
		log:      log,
	}
}

// Accept arms a fresh accept on the listening descriptor.
func (s *Submitter) Accept(listenFD int) error {
	token, req := s.ledger.Allocate(api.OpAccept, listenFD)
	return s.push(token, req)
}

// RearmAccept resubmits a completed accept request, reusing its storage.
// The accept slot must never be lost, so unlike the other submissions a
// hard facility error parks the request for retry instead of failing.
func (s *Submitter) RearmAccept(req *Request) {
	if err := s.push(s.ledger.Rearm(req), req); err != nil {
		// push released the failed token; park under a fresh one.
		s.log.Error().Err(err).Msg("accept submit failed, queued for retry")
		s.overflow.Add(pending{token: s.ledger.Rearm(req), req: req})
	}
}

// Read arms the first read on a freshly accepted connection.
func (s *Submitter) Read(fd int) error {
	token, req := s.ledger.Allocate(api.OpRead, fd)
	return s.push(token, req)
}

// RearmRead resubmits a completed read, reusing its buffer.
func (s *Submitter) RearmRead(req *Request) error {
	return s.push(s.ledger.Rearm(req), req)
}

// Write copies payload into a fresh write request and submits it. Each
// destination of a fan-out gets its own copy and its own completion.
func (s *Submitter) Write(fd int, payload []byte) error {
	token, req := s.ledger.Allocate(api.OpWrite, fd)
	req.N = copy(req.Buf, payload)
	return s.push(token, req)
}

// Close submits an asynchronous close for fd.
func (s *Submitter) Close(fd int) error {
	token, req := s.ledger.Allocate(api.OpClose, fd)
	return s.push(token, req)
}

// Drain retries parked operations in FIFO order until the overflow is empty
// or the facility reports full again. Called after every completion, which
// is exactly when capacity can have freed. Each parked operation is tried
// at most once per call.
func (s *Submitter) Drain() {
	for n := s.overflow.Length(); n > 0; n-- {
		p := s.overflow.Peek().(pending)
		err := s.submit(p.token, p.req)
		if err == nil {
			s.overflow.Remove()
			continue
		}
		if errors.Is(err, api.ErrSubmissionFull) {
			return
		}
		s.overflow.Remove()
		// Hard failure on a parked request: the accept slot is retried
		// forever, anything else is abandoned and its token released. The
		// accept rotates to the back so it cannot starve the operations
		// parked behind it.
		if p.req.Kind == api.OpAccept {
			s.log.Error().Err(err).Msg("parked accept resubmit failed, retrying later")
			s.overflow.Add(p)
			continue
		}
		s.ledger.Resolve(p.token)
		s.log.Error().Err(err).Int("fd", p.req.Conn).Stringer("op", p.req.Kind).
			Msg("parked submit failed, dropping")
	}
}

// Backlog returns the number of parked operations.
func (s *Submitter) Backlog() int {
	return s.overflow.Length()
}

// push submits a tracked request, parking it when the facility is full.
// Any other submission error releases the token and is returned for the
// caller to resolve (typically by converging on the close path).
func (s *Submitter) push(token uint64, req *Request) error {
	err := s.submit(token, req)
	if err == nil {
		return nil
	}
	if errors.Is(err, api.ErrSubmissionFull) {
		s.overflow.Add(pending{token: token, req: req})
		return nil
	}
	s.ledger.Resolve(token)
	return err
}

// submit describes one operation to the facility.
func (s *Submitter) submit(token uint64, req *Request) error {
	switch req.Kind {
	case api.OpAccept:
		return s.ring.SubmitAccept(req.Conn, &req.Addr, &req.AddrLen, token)
	case api.OpRead:
		return s.ring.SubmitRead(req.Conn, req.Buf, token)
	case api.OpWrite:
		return s.ring.SubmitWrite(req.Conn, req.Buf[:req.N], token)
	case api.OpClose:
		return s.ring.SubmitClose(req.Conn, token)
	}
	return fmt.Errorf("submit: invalid request kind %d", req.Kind)
}
