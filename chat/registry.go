// File: chat/registry.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0

package chat

import (
	"net"

	"github.com/robn/yoctochat/api"
)

// Registry is the bounded set of live peer connections, keyed by an opaque
// connection id (the descriptor, but nothing here depends on that). A peer
// is live from its successful accept until the moment its close is
// submitted; it is removed eagerly so no further operation is scheduled
// against it while the close is still in flight.
type Registry struct {
	max   int
	peers map[int]net.Addr
}

// NewRegistry creates a registry admitting at most max peers.
func NewRegistry(max int) *Registry {
	return &Registry{
		max:   max,
		peers: make(map[int]net.Addr, max),
	}
}

// MarkLive admits a peer. Returns api.ErrRegistryFull when the configured
// maximum is reached; the caller rejects the connection.
func (r *Registry) MarkLive(id int, addr net.Addr) error {
	if len(r.peers) >= r.max {
		return api.ErrRegistryFull
	}
	r.peers[id] = addr
	return nil
}

// MarkDead removes a peer. Unknown ids are ignored so death can be observed
// from several converging paths.
func (r *Registry) MarkDead(id int) {
	delete(r.peers, id)
}

// IsLive reports whether a peer is currently live.
func (r *Registry) IsLive(id int) bool {
	_, ok := r.peers[id]
	return ok
}

// Addr returns the peer's remote address, or nil if it is not live.
func (r *Registry) Addr(id int) net.Addr {
	return r.peers[id]
}

// Len returns the number of live peers.
func (r *Registry) Len() int {
	return len(r.peers)
}

// Others returns a snapshot of every live peer except sender. Fan-out
// iterates the snapshot, so peers dying or arriving mid-iteration cannot
// perturb it.
func (r *Registry) Others(sender int) []int {
	if len(r.peers) == 0 {
		return nil
	}
	ids := make([]int, 0, len(r.peers))
	for id := range r.peers {
		if id != sender {
			ids = append(ids, id)
		}
	}
	return ids
}
