// File: chat/fake_ring_test.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// Scriptable in-memory api.Completer for driving the dispatcher state
// machine without a kernel.

package chat

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/robn/yoctochat/api"
)

// submission records one described operation as the fake saw it.
type submission struct {
	kind  api.OpKind
	fd    int
	token uint64
	raw   []byte // the caller's buffer, shared, for simulating reads
	data  []byte // copy of the buffer at submission time, for asserting writes
}

var errScriptDone = fmt.Errorf("script done")

// fakeRing implements api.Completer. Submissions are recorded; completions
// are popped from a script the test appends to. fullFor makes the next N
// submissions report ErrSubmissionFull; failKind/failErr makes submissions
// of one kind fail hard.
type fakeRing struct {
	subs        []submission
	completions []api.Completion
	fullFor     int
	failKind    api.OpKind
	failErr     error
	closed      bool
}

func (f *fakeRing) record(kind api.OpKind, fd int, buf []byte, token uint64) error {
	if f.fullFor > 0 {
		f.fullFor--
		return api.ErrSubmissionFull
	}
	if f.failErr != nil && f.failKind == kind {
		return f.failErr
	}
	f.subs = append(f.subs, submission{
		kind:  kind,
		fd:    fd,
		token: token,
		raw:   buf,
		data:  append([]byte(nil), buf...),
	})
	return nil
}

func (f *fakeRing) SubmitAccept(listenFD int, sa *unix.RawSockaddrAny, saLen *uint32, token uint64) error {
	return f.record(api.OpAccept, listenFD, nil, token)
}

func (f *fakeRing) SubmitRead(fd int, buf []byte, token uint64) error {
	return f.record(api.OpRead, fd, buf, token)
}

func (f *fakeRing) SubmitWrite(fd int, buf []byte, token uint64) error {
	return f.record(api.OpWrite, fd, buf, token)
}

func (f *fakeRing) SubmitClose(fd int, token uint64) error {
	return f.record(api.OpClose, fd, nil, token)
}

func (f *fakeRing) Wait() (api.Completion, error) {
	if len(f.completions) == 0 {
		return api.Completion{}, errScriptDone
	}
	c := f.completions[0]
	f.completions = f.completions[1:]
	return c, nil
}

func (f *fakeRing) Close() error {
	f.closed = true
	return nil
}

// ofKind returns the recorded submissions of one kind, oldest first.
func (f *fakeRing) ofKind(kind api.OpKind) []submission {
	var out []submission
	for _, s := range f.subs {
		if s.kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// last returns the most recent submission of one kind.
func (f *fakeRing) last(kind api.OpKind) (submission, bool) {
	subs := f.ofKind(kind)
	if len(subs) == 0 {
		return submission{}, false
	}
	return subs[len(subs)-1], true
}
