// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package pump

import (
	"context"
	"time"
)

// FakeBackendCalls is a helping struct that implements the Backend interface
// by delegating to a real backend, but keeps every call for testing purposes.
type FakeBackendCalls struct {
	Backend

	calls  []Call
	closed int

	// removeErr, when set, fails Remove before the real backend sees it.
	removeErr error
}

func (s *FakeBackendCalls) AddIdler(w *Watcher) error {
	dbgprintf("%s: (*FakeBackendCalls).AddIdler(%v)", caller(), w)
	s.calls = append(s.calls, Call{F: FuncAddIdler, W: w})
	return s.Backend.AddIdler(w)
}

func (s *FakeBackendCalls) AddTimer(w *Watcher, after, repeat time.Duration) error {
	dbgprintf("%s: (*FakeBackendCalls).AddTimer(%v, %v, %v)", caller(), w, after, repeat)
	s.calls = append(s.calls, Call{F: FuncAddTimer, W: w, After: after, Repeat: repeat})
	return s.Backend.AddTimer(w, after, repeat)
}

func (s *FakeBackendCalls) AddFD(w *Watcher, fd int, write bool) error {
	dbgprintf("%s: (*FakeBackendCalls).AddFD(%v, %d, %v)", caller(), w, fd, write)
	s.calls = append(s.calls, Call{F: FuncAddFD, W: w, FD: fd, Write: write})
	return s.Backend.AddFD(w, fd, write)
}

func (s *FakeBackendCalls) Remove(w *Watcher) error {
	dbgprintf("%s: (*FakeBackendCalls).Remove(%v)", caller(), w)
	s.calls = append(s.calls, Call{F: FuncRemove, W: w})
	if s.removeErr != nil {
		return s.removeErr
	}
	return s.Backend.Remove(w)
}

func (s *FakeBackendCalls) Run(ctx context.Context, gate Gate) error {
	dbgprint(caller(), ": (*FakeBackendCalls).Run()")
	s.calls = append(s.calls, Call{F: FuncRun})
	return s.Backend.Run(ctx, gate)
}

func (s *FakeBackendCalls) Break() {
	dbgprint(caller(), ": (*FakeBackendCalls).Break()")
	s.calls = append(s.calls, Call{F: FuncBreak})
	s.Backend.Break()
}

func (s *FakeBackendCalls) Close() error {
	dbgprint(caller(), ": (*FakeBackendCalls).Close()")
	s.calls = append(s.calls, Call{F: FuncClose})
	s.closed++
	return s.Backend.Close()
}

// registered reports whether the wrapped bundled backend still holds w.
func (s *FakeBackendCalls) registered(w *Watcher) bool {
	r, ok := s.Backend.(*reactor)
	if !ok {
		return false
	}
	if _, armed := r.armed[w]; armed {
		return true
	}
	return r.registered(w)
}
