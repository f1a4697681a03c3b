// File: chat/registry_test.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0

package chat

import (
	"errors"
	"net"
	"sort"
	"testing"

	"github.com/robn/yoctochat/api"
)

func TestRegistryLiveSetTracksAcceptsAndCloses(t *testing.T) {
	r := NewRegistry(8)
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}

	for _, id := range []int{4, 5, 6} {
		if err := r.MarkLive(id, addr); err != nil {
			t.Fatalf("MarkLive(%d): %v", id, err)
		}
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}

	r.MarkDead(5)
	if r.IsLive(5) {
		t.Errorf("id 5 live after MarkDead")
	}
	if !r.IsLive(4) || !r.IsLive(6) {
		t.Errorf("unrelated ids lost")
	}

	// Dying twice is harmless; several failure paths converge here.
	r.MarkDead(5)
	if r.Len() != 2 {
		t.Errorf("Len() = %d after double MarkDead, want 2", r.Len())
	}
}

func TestRegistryRejectsBeyondCapacity(t *testing.T) {
	r := NewRegistry(2)
	if err := r.MarkLive(1, nil); err != nil {
		t.Fatalf("MarkLive(1): %v", err)
	}
	if err := r.MarkLive(2, nil); err != nil {
		t.Fatalf("MarkLive(2): %v", err)
	}
	err := r.MarkLive(3, nil)
	if !errors.Is(err, api.ErrRegistryFull) {
		t.Fatalf("MarkLive(3) = %v, want ErrRegistryFull", err)
	}

	// Capacity frees as soon as a close is submitted for a peer.
	r.MarkDead(1)
	if err := r.MarkLive(3, nil); err != nil {
		t.Errorf("MarkLive(3) after MarkDead(1): %v", err)
	}
}

func TestRegistryOthersExcludesSender(t *testing.T) {
	r := NewRegistry(8)
	for _, id := range []int{7, 8, 9} {
		r.MarkLive(id, nil)
	}

	got := r.Others(8)
	sort.Ints(got)
	want := []int{7, 9}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Others(8) = %v, want %v", got, want)
	}

	if got := r.Others(999); len(got) != 3 {
		t.Errorf("Others(non-member) returned %d ids, want 3", len(got))
	}
}

func TestRegistryOthersIsASnapshot(t *testing.T) {
	r := NewRegistry(8)
	for _, id := range []int{1, 2, 3} {
		r.MarkLive(id, nil)
	}

	snap := r.Others(1)
	// Mutations mid-iteration must not perturb the snapshot.
	r.MarkDead(2)
	r.MarkLive(4, nil)

	sort.Ints(snap)
	if len(snap) != 2 || snap[0] != 2 || snap[1] != 3 {
		t.Errorf("snapshot changed under mutation: %v", snap)
	}
}
