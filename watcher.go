// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package pump

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

var (
	ErrManagerGone    = errors.New("pump: manager is absent or released")
	ErrAlreadyStarted = errors.New("pump: watcher is already started")
	ErrFreed          = errors.New("pump: watcher is freed")
	ErrNilFunc        = errors.New("pump: nil callback")
	ErrInvalidKind    = errors.New("pump: invalid watcher kind")
	ErrInvalidDelay   = errors.New("pump: negative timer delay")
	ErrBadFD          = errors.New("pump: bad file descriptor")
	ErrRunning        = errors.New("pump: loop is already running")
	ErrStalled        = errors.New("pump: only sink-blocked idlers remain")
)

// Func is a watcher callback. It runs on the loop and must not block.
type Func func(w *Watcher)

// Extra carries kind specific parameters for Manager.Alloc. FD is used by
// FDRead and FDWrite watchers; After and Repeat by Timer watchers. A zero
// Repeat makes a single-shot timer.
type Extra struct {
	FD     int
	After  time.Duration
	Repeat time.Duration
}

// Watcher is one event source registered through a Manager.
//
// The watcher does not own its manager, its argument or its descriptor: the
// caller keeps the manager referenced for as long as the watcher is in use
// and closes the descriptor only after the watcher is stopped or freed.
type Watcher struct {
	manager *Manager
	kind    Kind
	fn      Func
	arg     any
	state   State

	fd     int
	after  time.Duration
	repeat time.Duration
}

// Kind reports the class of event source.
func (w *Watcher) Kind() Kind { return w.kind }

// State reports the lifecycle state.
func (w *Watcher) State() State { return w.state }

// Arg returns the opaque argument given at allocation.
func (w *Watcher) Arg() any { return w.arg }

// FD returns the descriptor of an fd watcher, or -1.
func (w *Watcher) FD() int {
	if !w.kind.isFD() {
		return -1
	}
	return w.fd
}

// After returns the initial delay of a timer watcher.
func (w *Watcher) After() time.Duration { return w.after }

// Repeat returns the repeat interval of a timer watcher; zero for
// single-shot timers.
func (w *Watcher) Repeat() time.Duration { return w.repeat }

// Manager returns the manager the watcher was allocated from.
func (w *Watcher) Manager() *Manager { return w.manager }

func (w *Watcher) String() string {
	switch w.kind {
	case Timer:
		return fmt.Sprintf("%v(after=%v, repeat=%v, %v)", w.kind, w.after, w.repeat, w.state)
	case FDRead, FDWrite:
		return fmt.Sprintf("%v(fd=%d, %v)", w.kind, w.fd, w.state)
	default:
		return fmt.Sprintf("%v(%v)", w.kind, w.state)
	}
}

// Start registers the watcher with the backend.
//
// Starting an already started watcher is a caller error and reports
// ErrAlreadyStarted. Start fails with ErrManagerGone once the manager has
// been released and with ErrBadFD when the descriptor is no longer open.
func (w *Watcher) Start() error {
	switch w.state {
	case Freed:
		return ErrFreed
	case Started:
		return ErrAlreadyStarted
	}
	m := w.manager
	if !m.alive() {
		return ErrManagerGone
	}
	if w.kind.isFD() {
		if _, err := unix.FcntlInt(uintptr(w.fd), unix.F_GETFD, 0); err != nil {
			return fmt.Errorf("%w: fd %d: %v", ErrBadFD, w.fd, err)
		}
	}
	var err error
	switch w.kind {
	case Idle:
		err = m.backend.AddIdler(w)
	case Timer:
		err = m.backend.AddTimer(w, w.after, w.repeat)
	case FDRead:
		err = m.backend.AddFD(w, w.fd, false)
	case FDWrite:
		err = m.backend.AddFD(w, w.fd, true)
	}
	if err != nil {
		return fmt.Errorf("pump: start %v: %w", w.kind, err)
	}
	w.state = Started
	m.started++
	dbgprintf("start %v", w)
	return nil
}

// Stop unregisters the watcher from the backend.
//
// The watcher stays started when the backend fails to remove it. Stopping a watcher that is not started succeeds without doing anything;
// in particular a single-shot timer that already expired is stopped.
func (w *Watcher) Stop() error {
	switch w.state {
	case Freed:
		return ErrFreed
	case Started:
	default:
		return nil
	}
	m := w.manager
	if err := m.backend.Remove(w); err != nil {
		return fmt.Errorf("pump: stop %v: %w", w.kind, err)
	}
	w.state = Stopped
	m.started--
	dbgprintf("stop %v", w)
	return nil
}

// Free stops the watcher if needed and releases it. A failed stop is logged
// and the watcher is released anyway; it never fires again. The watcher must not be
// used afterwards; further calls to Free, and Free on a nil watcher, are
// no-ops.
func (w *Watcher) Free() {
	if w == nil || w.state == Freed {
		return
	}
	if err := w.Stop(); err != nil {
		w.manager.logger.Warn("watcher stop on free failed",
			"kind", w.kind.String(), "error", err.Error())
	}
	w.state = Freed
	w.manager.forget(w)
	w.fn, w.arg = nil, nil
}

// Fire delivers the event to the callback. Backends call it for every
// readiness, expiry or idle slot; it does nothing unless the watcher is
// started. A single-shot timer moves to Stopped before its callback runs,
// so the callback may start it again. The backend must already have dropped
// its registration for such a timer.
func (w *Watcher) Fire() {
	if w.state != Started {
		return
	}
	if w.kind == Timer && w.repeat == 0 {
		w.state = Stopped
		w.manager.started--
	}
	w.manager.fired++
	w.fn(w)
}
