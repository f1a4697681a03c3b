// File: chat/submit_test.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0

package chat

import (
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/robn/yoctochat/api"
)

func newTestSubmitter(ring *fakeRing) (*Submitter, *Ledger) {
	led := NewLedger(16)
	return NewSubmitter(ring, led, zerolog.Nop()), led
}

func TestSubmitterParksWhenFacilityFull(t *testing.T) {
	ring := &fakeRing{fullFor: 2}
	sub, led := newTestSubmitter(ring)

	if err := sub.Write(3, []byte("a")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sub.Write(4, []byte("b")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if len(ring.subs) != 0 {
		t.Fatalf("submissions reached a full facility: %d", len(ring.subs))
	}
	if sub.Backlog() != 2 {
		t.Fatalf("Backlog() = %d, want 2", sub.Backlog())
	}
	// Parked operations stay tracked; their completions are still owed.
	if led.InFlight() != 2 {
		t.Fatalf("InFlight() = %d, want 2", led.InFlight())
	}

	sub.Drain()
	if sub.Backlog() != 0 {
		t.Fatalf("Backlog() = %d after drain, want 0", sub.Backlog())
	}
	writes := ring.ofKind(api.OpWrite)
	if len(writes) != 2 || writes[0].fd != 3 || writes[1].fd != 4 {
		t.Errorf("drain order wrong: %+v", writes)
	}
}

func TestSubmitterDrainStopsWhileStillFull(t *testing.T) {
	ring := &fakeRing{fullFor: 3}
	sub, _ := newTestSubmitter(ring)

	sub.Write(3, []byte("a")) // full (1)
	sub.Drain()               // full (2), stays parked

	if sub.Backlog() != 1 {
		t.Fatalf("Backlog() = %d, want 1", sub.Backlog())
	}
}

func TestSubmitterHardErrorReleasesToken(t *testing.T) {
	ring := &fakeRing{failKind: api.OpWrite, failErr: unix.EBADF}
	sub, led := newTestSubmitter(ring)

	err := sub.Write(3, []byte("a"))
	if err == nil {
		t.Fatalf("Write succeeded against a hard-failing facility")
	}
	if led.InFlight() != 0 {
		t.Errorf("InFlight() = %d after hard failure, want 0", led.InFlight())
	}
	if sub.Backlog() != 0 {
		t.Errorf("hard failure parked the request")
	}
}

func TestSubmitterDrainDropsHardFailures(t *testing.T) {
	ring := &fakeRing{fullFor: 1}
	sub, led := newTestSubmitter(ring)

	sub.Write(3, []byte("a")) // parked
	ring.failKind, ring.failErr = api.OpWrite, unix.EBADF

	sub.Drain()
	if sub.Backlog() != 0 {
		t.Errorf("Backlog() = %d, want 0", sub.Backlog())
	}
	if led.InFlight() != 0 {
		t.Errorf("InFlight() = %d, want 0", led.InFlight())
	}
}

func TestSubmitterAcceptSlotSurvivesHardError(t *testing.T) {
	ring := &fakeRing{}
	sub, led := newTestSubmitter(ring)

	token, req := led.Allocate(api.OpAccept, 5)
	led.Resolve(token)

	ring.failKind, ring.failErr = api.OpAccept, unix.EBADF
	sub.RearmAccept(req)

	// The accept slot is parked, never dropped.
	if sub.Backlog() != 1 {
		t.Fatalf("Backlog() = %d, want 1", sub.Backlog())
	}
	if led.InFlight() != 1 {
		t.Fatalf("InFlight() = %d, want 1", led.InFlight())
	}

	ring.failErr = nil
	sub.Drain()
	if sub.Backlog() != 0 {
		t.Errorf("accept still parked after facility recovered")
	}
	if _, ok := ring.last(api.OpAccept); !ok {
		t.Errorf("accept never reached the facility")
	}
}

func TestSubmitterFailingAcceptDoesNotStarveQueue(t *testing.T) {
	ring := &fakeRing{fullFor: 3}
	sub, led := newTestSubmitter(ring)

	token, req := led.Allocate(api.OpAccept, 5)
	led.Resolve(token)
	sub.RearmAccept(req)      // parked at the head
	sub.Write(3, []byte("a")) // parked behind it
	sub.Write(4, []byte("b"))

	ring.failKind, ring.failErr = api.OpAccept, unix.EBADF
	sub.Drain()

	// The hard-failing accept rotated to the back; the writes behind it
	// went through.
	writes := ring.ofKind(api.OpWrite)
	if len(writes) != 2 || writes[0].fd != 3 || writes[1].fd != 4 {
		t.Fatalf("writes behind a failing accept: %+v", writes)
	}
	if sub.Backlog() != 1 {
		t.Fatalf("Backlog() = %d, want the accept alone", sub.Backlog())
	}
	if led.InFlight() != 3 {
		t.Errorf("InFlight() = %d, want 3", led.InFlight())
	}

	ring.failErr = nil
	sub.Drain()
	if sub.Backlog() != 0 {
		t.Errorf("accept still parked after facility recovered")
	}
	if _, ok := ring.last(api.OpAccept); !ok {
		t.Errorf("accept never reached the facility")
	}
}

func TestSubmitterWriteCopiesPayload(t *testing.T) {
	ring := &fakeRing{}
	sub, _ := newTestSubmitter(ring)

	payload := []byte("hello")
	sub.Write(3, payload)
	payload[0] = 'X' // caller reuses its buffer

	w, ok := ring.last(api.OpWrite)
	if !ok {
		t.Fatalf("write never submitted")
	}
	if string(w.raw) != "hello" {
		t.Errorf("write buffer %q aliases the caller's payload", w.raw)
	}
}
