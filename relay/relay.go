//go:build unix

// File: relay/relay.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// Readiness-based broadcast relay: the loop shared by the select, poll,
// epoll and kqueue front-ends. A poller reports readable descriptors and
// the relay performs the matching synchronous call — accept on the
// listener, read-and-fan-out on a peer. Same network contract as the
// completion core, none of its machinery: readiness needs no request
// tracking because every call happens synchronously against a descriptor
// that was just reported ready.

package relay

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/robn/yoctochat/api"
	"github.com/robn/yoctochat/internal/socket"
)

// Config carries the relay tunables.
type Config struct {
	MaxConns   int
	BufferSize int
	Logger     zerolog.Logger
}

// DefaultConfig returns the defaults matching the original servers.
func DefaultConfig() Config {
	return Config{
		MaxConns:   128,
		BufferSize: 1024,
		Logger:     zerolog.Nop(),
	}
}

// Relay is a single-threaded readiness-driven broadcast server.
type Relay struct {
	poller   api.Poller
	listenFD int
	log      zerolog.Logger
	max      int

	peers map[int]net.Addr
	buf   []byte
	ready []int
}

// New assembles a relay around an already-listening descriptor and a
// readiness poller.
func New(listenFD int, poller api.Poller, cfg Config) *Relay {
	return &Relay{
		poller:   poller,
		listenFD: listenFD,
		log:      cfg.Logger,
		max:      cfg.MaxConns,
		peers:    make(map[int]net.Addr, cfg.MaxConns),
		buf:      make([]byte, cfg.BufferSize),
		ready:    make([]int, cfg.MaxConns+1),
	}
}

// Run watches the listener and serves until the poller fails. It does not
// return on success.
func (r *Relay) Run() error {
	if err := r.poller.AddRead(r.listenFD); err != nil {
		return fmt.Errorf("watch listener: %w", err)
	}
	for {
		n, err := r.poller.Wait(r.ready)
		if err != nil {
			return fmt.Errorf("poll: %w", err)
		}
		for _, fd := range r.ready[:n] {
			if fd == r.listenFD {
				r.accept()
			} else if _, ok := r.peers[fd]; ok {
				// A peer dropped earlier in this batch may still be
				// reported; skip it.
				r.service(fd)
			}
		}
	}
}

// accept takes one pending connection. Beyond the connection bound the peer
// is closed immediately; the listener itself is never unwatched.
func (r *Relay) accept() {
	fd, sa, err := unix.Accept(r.listenFD)
	if err != nil {
		if err == unix.EAGAIN || err == unix.ECONNABORTED {
			return
		}
		r.log.Error().Err(err).Msg("accept failed")
		return
	}

	addr := socket.SockaddrTCP(sa)
	if len(r.peers) >= r.max {
		r.log.Warn().Int("fd", fd).Stringer("peer", addrStringer(addr)).Msg("rejecting connection")
		unix.Close(fd)
		return
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		r.log.Error().Int("fd", fd).Err(err).Msg("set nonblock failed")
		unix.Close(fd)
		return
	}
	if err := r.poller.AddRead(fd); err != nil {
		r.log.Error().Int("fd", fd).Err(err).Msg("watch failed")
		unix.Close(fd)
		return
	}

	r.peers[fd] = addr
	r.log.Info().Int("fd", fd).Stringer("peer", addrStringer(addr)).Msg("connect")
}

// service reads one chunk from a ready peer and relays it verbatim to every
// other peer. EOF and read errors drop the peer.
func (r *Relay) service(fd int) {
	n, err := unix.Read(fd, r.buf)
	if err == unix.EAGAIN {
		return
	}
	if err != nil {
		r.log.Error().Int("fd", fd).Err(err).Msg("read failed")
		r.drop(fd)
		return
	}
	if n == 0 {
		r.log.Info().Int("fd", fd).Msg("closed by peer")
		r.drop(fd)
		return
	}

	r.log.Debug().Int("fd", fd).Int("bytes", n).Msg("read")
	r.fanout(fd, r.buf[:n])
}

// fanout writes the payload to every peer except the sender. A failed write
// drops only that destination.
func (r *Relay) fanout(sender int, payload []byte) {
	targets := make([]int, 0, len(r.peers))
	for fd := range r.peers {
		if fd != sender {
			targets = append(targets, fd)
		}
	}
	for _, fd := range targets {
		if _, err := unix.Write(fd, payload); err != nil && err != unix.EAGAIN {
			r.log.Error().Int("fd", fd).Err(err).Msg("write failed")
			r.drop(fd)
		}
	}
}

// drop removes a peer, closing its descriptor synchronously.
func (r *Relay) drop(fd int) {
	if _, ok := r.peers[fd]; !ok {
		return
	}
	if err := r.poller.Remove(fd); err != nil {
		r.log.Error().Int("fd", fd).Err(err).Msg("unwatch failed")
	}
	unix.Close(fd)
	delete(r.peers, fd)
	r.log.Info().Int("fd", fd).Msg("disconnect")
}

// addrStringer keeps nil addresses printable in log fields.
func addrStringer(a net.Addr) fmt.Stringer { return addrText{a} }

type addrText struct{ a net.Addr }

func (t addrText) String() string {
	if t.a == nil {
		return "?"
	}
	return t.a.String()
}
