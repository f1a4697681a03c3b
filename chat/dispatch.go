// File: chat/dispatch.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// The completion dispatcher. One loop, one completion at a time: resolve
// the token, run the state transition for the request's kind, re-arm what
// re-arms (the accept slot always, the per-connection read on success) and
// let everything else converge on the close path. Per-connection failures
// never leave the handling of the completion that revealed them; only a
// failure of the wait primitive itself ends the loop.

package chat

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/robn/yoctochat/api"
	"github.com/robn/yoctochat/internal/socket"
)

// Server is the completion-based broadcast server core.
type Server struct {
	cfg      Config
	log      zerolog.Logger
	ring     api.Completer
	listenFD int

	reg *Registry
	led *Ledger
	sub *Submitter
}

// New assembles a server around an already-listening descriptor and a
// completion facility.
func New(listenFD int, ring api.Completer, cfg Config) *Server {
	led := NewLedger(cfg.BufferSize)
	return &Server{
		cfg:      cfg,
		log:      cfg.Logger,
		ring:     ring,
		listenFD: listenFD,
		reg:      NewRegistry(cfg.MaxConns),
		led:      led,
		sub:      NewSubmitter(ring, led, cfg.Logger),
	}
}

// Run arms the accept slot and dispatches completions until the wait
// primitive fails. It does not return on success.
func (s *Server) Run() error {
	if err := s.sub.Accept(s.listenFD); err != nil {
		return fmt.Errorf("arm accept: %w", err)
	}
	for {
		c, err := s.ring.Wait()
		if err != nil {
			return fmt.Errorf("wait for completion: %w", err)
		}
		s.dispatch(c)
		s.sub.Drain()
	}
}

// dispatch resolves one completion and runs its state transition. Resolve
// consumes the token, so the request is owned here and freed by falling out
// of scope unless a transition re-arms it.
func (s *Server) dispatch(c api.Completion) {
	req, ok := s.led.Resolve(c.Token)
	if !ok {
		s.log.Warn().Uint64("token", c.Token).Msg("completion for unknown token")
		return
	}
	switch req.Kind {
	case api.OpAccept:
		s.completeAccept(req, c)
	case api.OpRead:
		s.completeRead(req, c)
	case api.OpWrite:
		s.completeWrite(req, c)
	case api.OpClose:
		s.completeClose(req, c)
	}
}

// completeAccept admits the new peer (or rejects it at capacity) and
// unconditionally re-arms the accept slot: the listener never goes idle.
func (s *Server) completeAccept(req *Request, c api.Completion) {
	if c.Result < 0 {
		s.log.Error().Err(c.Err()).Msg("accept failed")
		s.sub.RearmAccept(req)
		return
	}

	fd := int(c.Result)
	addr := socket.TCPAddr(&req.Addr, req.AddrLen)
	if err := s.reg.MarkLive(fd, addr); err != nil {
		s.log.Warn().Int("fd", fd).Stringer("peer", addr).Err(err).Msg("rejecting connection")
		s.submitClose(fd)
	} else {
		s.log.Info().Int("fd", fd).Stringer("peer", addr).Msg("connect")
		if err := s.sub.Read(fd); err != nil {
			s.log.Error().Int("fd", fd).Err(err).Msg("arm read failed")
			s.disconnect(fd)
		}
	}

	s.sub.RearmAccept(req)
}

// completeRead relays the payload and re-arms the read; EOF and errors
// converge on the close path. Exactly one read is outstanding per live
// connection, which is what preserves per-connection byte ordering.
func (s *Server) completeRead(req *Request, c api.Completion) {
	fd := req.Conn
	switch {
	case c.Result < 0:
		s.log.Error().Int("fd", fd).Err(c.Err()).Msg("read failed")
		s.disconnect(fd)
	case c.Result == 0:
		s.log.Info().Int("fd", fd).Msg("closed by peer")
		s.disconnect(fd)
	default:
		n := int(c.Result)
		s.log.Debug().Int("fd", fd).Int("bytes", n).Msg("read")
		s.broadcast(fd, req.Buf[:n])
		if err := s.sub.RearmRead(req); err != nil {
			s.log.Error().Int("fd", fd).Err(err).Msg("rearm read failed")
			s.disconnect(fd)
		}
	}
}

// completeWrite is one-shot: success just frees the request. A failed write
// tears the connection down unless an earlier failure already did; the
// in-flight write of a dead connection completes harmlessly and is freed
// without another close.
func (s *Server) completeWrite(req *Request, c api.Completion) {
	fd := req.Conn
	if c.Result < 0 {
		s.log.Error().Int("fd", fd).Err(c.Err()).Msg("write failed")
		s.disconnect(fd)
		return
	}
	if n := int(c.Result); n < req.N {
		s.log.Debug().Int("fd", fd).Int("wrote", n).Int("want", req.N).Msg("short write")
	}
}

// completeClose frees the request. A close failure is not actionable;
// the peer was already removed from the registry when the close was
// submitted.
func (s *Server) completeClose(req *Request, c api.Completion) {
	if err := c.Err(); err != nil {
		s.log.Debug().Int("fd", req.Conn).Err(err).Msg("close failed")
		return
	}
	s.log.Debug().Int("fd", req.Conn).Msg("closed")
}

// disconnect converges every established-connection failure on one path:
// remove from the registry now, close asynchronously. Already-dead
// connections are left alone so racing failures cannot double-close.
func (s *Server) disconnect(fd int) {
	if !s.reg.IsLive(fd) {
		return
	}
	s.reg.MarkDead(fd)
	s.log.Info().Int("fd", fd).Msg("disconnect")
	s.submitClose(fd)
}

func (s *Server) submitClose(fd int) {
	if err := s.sub.Close(fd); err != nil {
		s.log.Error().Int("fd", fd).Err(err).Msg("close submit failed")
	}
}
