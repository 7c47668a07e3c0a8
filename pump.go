// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

// BUG(olandr): Watchers and managers are not safe for concurrent use. The
// only call that may come from another goroutine is the cancellation of the
// context given to Run.

// BUG(olandr): A poll backend watching a descriptor that was closed while its
// watcher is still started reports it as ready on every iteration (POLLNVAL).
// Stop fd watchers before closing their descriptors.

// Package pump provides a reference counted event dispatcher for pipeline
// stages. A Manager owns one backend loop (epoll, poll or any registered
// Backend) and hands out Watchers for idle work, timers and descriptor
// readiness. Stages throttle themselves against a blocked consumer with
// SinkBlock and SinkUnblock, which park idle watchers without canceling them.
package pump

import (
	"context"
	"log/slog"
	"time"
)

// Manager is a reference counted dispatcher bound to one Backend.
type Manager struct {
	backend    Backend
	refs       int
	sinkBlocks int
	released   bool
	name       string
	logger     *slog.Logger

	live    map[*Watcher]struct{}
	started int
	fired   uint64
}

// Stats is a snapshot of a Manager's counters.
type Stats struct {
	Refs       int
	SinkBlocks int
	Watchers   int    // allocated and not freed
	Started    int    // currently registered with the backend
	Fired      uint64 // callbacks delivered since creation
}

// New wraps backend in a Manager holding one reference. The Manager owns
// backend from now on and closes it when the last reference is released.
func New(backend Backend, options ...Option) *Manager {
	m := &Manager{
		backend: backend,
		refs:    1,
		logger:  slog.New(silentHandler{}),
		live:    make(map[*Watcher]struct{}),
	}
	for _, option := range options {
		option(m)
	}
	if m.name != "" {
		m.logger = m.logger.With("manager", m.name)
	}
	return m
}

// Open builds the backend registered under name, see NewBackend, and wraps
// it in a new Manager.
func Open(name string, options ...Option) (*Manager, error) {
	backend, err := NewBackend(name)
	if err != nil {
		return nil, err
	}
	return New(backend, options...), nil
}

// Use acquires a reference and returns m. It is a no-op on a nil Manager, so
// callers may pass through an unset manager unchanged.
func (m *Manager) Use() *Manager {
	if m == nil {
		return nil
	}
	m.refs++
	return m
}

// Release drops a reference. Releasing the last one stops every watcher
// still started, closes the backend and marks the manager released; watchers
// allocated from it can then only be freed. Release is a no-op on a nil
// Manager. Each Use, and the creation, must be paired with exactly one
// Release.
func (m *Manager) Release() {
	if m == nil || m.released {
		return
	}
	if m.refs--; m.refs > 0 {
		return
	}
	m.teardown()
}

func (m *Manager) teardown() {
	for w := range m.live {
		if w.state != Started {
			continue
		}
		m.logger.Warn("watcher still started at manager release", "watcher", w.String())
		if err := w.Stop(); err != nil {
			m.logger.Warn("watcher stop failed", "watcher", w.String(), "error", err.Error())
		}
	}
	m.released = true
	if err := m.backend.Close(); err != nil {
		m.logger.Warn("backend close failed", "error", err.Error())
	}
	m.logger.Debug("manager released", "backend", backendName(m.backend))
}

func backendName(b Backend) string {
	if s, ok := b.(interface{ String() string }); ok {
		return s.String()
	}
	return "custom"
}

func (m *Manager) alive() bool { return m != nil && !m.released }

func (m *Manager) forget(w *Watcher) {
	if m != nil {
		delete(m.live, w)
	}
}

// Refs reports the number of outstanding references.
func (m *Manager) Refs() int {
	if m == nil {
		return 0
	}
	return m.refs
}

// Released reports whether the last reference was dropped.
func (m *Manager) Released() bool { return m == nil || m.released }

// Stats returns the manager's counters.
func (m *Manager) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		Refs:       m.refs,
		SinkBlocks: m.sinkBlocks,
		Watchers:   len(m.live),
		Started:    m.started,
		Fired:      m.fired,
	}
}

// Alloc creates a watcher of the given kind. extra carries the kind specific
// parameters. When start is set the watcher is started as well; if that
// fails it is freed and the error returned.
func (m *Manager) Alloc(kind Kind, fn Func, arg any, start bool, extra Extra) (*Watcher, error) {
	switch {
	case !m.alive():
		return nil, ErrManagerGone
	case !kind.valid():
		return nil, ErrInvalidKind
	case fn == nil:
		return nil, ErrNilFunc
	}
	w := &Watcher{manager: m, kind: kind, fn: fn, arg: arg, fd: -1}
	switch kind {
	case Timer:
		if extra.After < 0 || extra.Repeat < 0 {
			return nil, ErrInvalidDelay
		}
		w.after, w.repeat = extra.After, extra.Repeat
	case FDRead, FDWrite:
		if extra.FD < 0 {
			return nil, ErrBadFD
		}
		w.fd = extra.FD
	}
	m.live[w] = struct{}{}
	if start {
		if err := w.Start(); err != nil {
			w.Free()
			return nil, err
		}
	}
	return w, nil
}

// NewIdler allocates an idle watcher.
func (m *Manager) NewIdler(fn Func, arg any, start bool) (*Watcher, error) {
	return m.Alloc(Idle, fn, arg, start, Extra{})
}

// NewTimer allocates a timer watcher firing after the given delay, and then
// every repeat interval unless repeat is zero.
func (m *Manager) NewTimer(fn Func, arg any, start bool, after, repeat time.Duration) (*Watcher, error) {
	return m.Alloc(Timer, fn, arg, start, Extra{After: after, Repeat: repeat})
}

// NewFDRead allocates a watcher firing when fd is readable.
func (m *Manager) NewFDRead(fn Func, arg any, start bool, fd int) (*Watcher, error) {
	return m.Alloc(FDRead, fn, arg, start, Extra{FD: fd})
}

// NewFDWrite allocates a watcher firing when fd is writable.
func (m *Manager) NewFDWrite(fn Func, arg any, start bool, fd int) (*Watcher, error) {
	return m.Alloc(FDWrite, fn, arg, start, Extra{FD: fd})
}

// SinkBlock parks idle watchers until a matching SinkUnblock. A producer
// that cannot make progress blocks the sink and unblocks it once it can
// resume; several blockers compose, and idle watchers fire again only once
// every one of them unblocked. Timer and fd watchers are unaffected.
func (m *Manager) SinkBlock() {
	m.sinkBlocks++
	dbgprintf("sink block (%d)", m.sinkBlocks)
}

// SinkUnblock undoes one SinkBlock. An unblock without a pending block is
// ignored and logged.
func (m *Manager) SinkUnblock() {
	if m.sinkBlocks == 0 {
		m.logger.Warn("unbalanced sink unblock")
		return
	}
	m.sinkBlocks--
	dbgprintf("sink unblock (%d)", m.sinkBlocks)
}

// SinkBlocked reports whether idle watchers are parked.
func (m *Manager) SinkBlocked() bool { return m.sinkBlocks > 0 }

// SinkBlocks reports the number of pending SinkBlock calls.
func (m *Manager) SinkBlocks() int { return m.sinkBlocks }

// Run drives the backend until Break is called from a callback, ctx is done,
// or no watcher is started any more. It reports ErrStalled when the only
// started watchers are idle watchers parked by a blocked sink, since nothing
// is left that could unblock it.
func (m *Manager) Run(ctx context.Context) error {
	if !m.alive() {
		return ErrManagerGone
	}
	if ctx == nil {
		ctx = context.Background()
	}
	m.logger.Debug("loop start", "started", m.started)
	err := m.backend.Run(ctx, m)
	m.logger.Debug("loop exit", "started", m.started, "fired", m.fired)
	return err
}

// Break makes Run return once the current callback completes.
func (m *Manager) Break() {
	if m.alive() {
		m.backend.Break()
	}
}
