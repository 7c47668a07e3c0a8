// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package pump

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/sys/unix"
)

func nop(*Watcher) {}

func TestManagerRefs(t *testing.T) {
	forEachBackend(t, func(t *testing.T, m *M) {
		n := pairs()
		for i := 0; i < n; i++ {
			if got := m.mgr.Use(); got != m.mgr {
				t.Fatalf("Use()=%p; want %p", got, m.mgr)
			}
		}
		if got := m.mgr.Refs(); got != n+1 {
			t.Fatalf("want Refs()=%d; got %d", n+1, got)
		}
		for i := 0; i < n; i++ {
			m.mgr.Release()
			if m.mgr.Released() {
				t.Fatalf("released with %d references outstanding (i=%d)", m.mgr.Refs(), i)
			}
			if m.spy.closed != 0 {
				t.Fatalf("backend closed with %d references outstanding", m.mgr.Refs())
			}
		}
		m.mgr.Release()
		if !m.mgr.Released() {
			t.Fatal("want manager released")
		}
		if m.spy.closed != 1 {
			t.Fatalf("want backend closed once; got %d", m.spy.closed)
		}
		m.Close()
		if m.spy.closed != 1 {
			t.Fatalf("want backend closed once after extra release; got %d", m.spy.closed)
		}
	})
}

func TestManagerRefsInterleaved(t *testing.T) {
	m := NewManagerTest(t, "")
	held := 1
	for i := 0; i < 256; i++ {
		if held > 1 && gofakeit.Bool() {
			m.mgr.Release()
			held--
		} else {
			m.mgr.Use()
			held++
		}
		if got := m.mgr.Refs(); got != held {
			t.Fatalf("want Refs()=%d; got %d (i=%d)", held, got, i)
		}
		if m.mgr.Released() || m.spy.closed != 0 {
			t.Fatalf("backend torn down with %d references held (i=%d)", held, i)
		}
	}
	for ; held > 0; held-- {
		m.mgr.Release()
	}
	if m.spy.closed != 1 {
		t.Fatalf("want backend closed once; got %d", m.spy.closed)
	}
}

func TestManagerNil(t *testing.T) {
	var m *Manager
	if m.Use() != nil {
		t.Fatal("want (*Manager)(nil).Use()=nil")
	}
	m.Release()
	if m.Refs() != 0 {
		t.Fatalf("want Refs()=0; got %d", m.Refs())
	}
	if _, err := m.NewIdler(nop, nil, false); !errors.Is(err, ErrManagerGone) {
		t.Fatalf("want err=%v; got %v", ErrManagerGone, err)
	}
	if err := m.Run(context.Background()); !errors.Is(err, ErrManagerGone) {
		t.Fatalf("want err=%v; got %v", ErrManagerGone, err)
	}
}

func TestManagerAllocErrors(t *testing.T) {
	m := NewManagerTest(t, "")
	cases := map[string]struct {
		kind  Kind
		fn    Func
		extra Extra
		err   error
	}{
		"kind":          {Kind(0), nop, Extra{}, ErrInvalidKind},
		"nil func":      {Idle, nil, Extra{}, ErrNilFunc},
		"negative fd":   {FDRead, nop, Extra{FD: -1}, ErrBadFD},
		"negative wfd":  {FDWrite, nop, Extra{FD: -gofakeit.IntRange(1, 100)}, ErrBadFD},
		"negative time": {Timer, nop, Extra{After: -time.Second}, ErrInvalidDelay},
		"negative rep":  {Timer, nop, Extra{Repeat: -time.Millisecond}, ErrInvalidDelay},
	}
	for name, cas := range cases {
		t.Run(name, func(t *testing.T) {
			w, err := m.mgr.Alloc(cas.kind, cas.fn, nil, true, cas.extra)
			if !errors.Is(err, cas.err) {
				t.Fatalf("want err=%v; got %v", cas.err, err)
			}
			if w != nil {
				t.Fatalf("want nil watcher; got %v", w)
			}
		})
	}
	if st := m.mgr.Stats(); st.Watchers != 0 || st.Started != 0 {
		t.Fatalf("want no watchers left; got %+v", st)
	}
	m.ExpectRecordedCalls()
}

func TestManagerAllocAutoStartFailure(t *testing.T) {
	m := NewManagerTest(t, "")
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("Pipe()=%v", err)
	}
	defer unix.Close(fds[1])
	r, w := fds[0], fds[1]
	unix.Close(r)
	if _, err := m.mgr.NewFDRead(nop, nil, true, r); !errors.Is(err, ErrBadFD) {
		t.Fatalf("want err=%v; got %v", ErrBadFD, err)
	}
	if st := m.mgr.Stats(); st.Watchers != 0 {
		t.Fatalf("want failed watcher freed; got %+v", st)
	}
	ww, err := m.mgr.NewFDWrite(nop, nil, true, w)
	if err != nil {
		t.Fatalf("NewFDWrite()=%v", err)
	}
	m.ExpectRecordedCalls(Call{F: FuncAddFD, W: ww, FD: w, Write: true})
	ww.Free()
}

func TestManagerAllocAfterRelease(t *testing.T) {
	m := NewManagerTest(t, "")
	w := m.Alloc(Idle, nop, false, Extra{})
	m.mgr.Release()
	if _, err := m.mgr.NewTimer(nop, nil, false, time.Second, 0); !errors.Is(err, ErrManagerGone) {
		t.Fatalf("want err=%v; got %v", ErrManagerGone, err)
	}
	if err := w.Start(); !errors.Is(err, ErrManagerGone) {
		t.Fatalf("want err=%v; got %v", ErrManagerGone, err)
	}
	w.Free()
	m.ExpectState(w, Freed)
}

func TestManagerReleaseStopsWatchers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, m *M) {
		_, wfd := pipe(t)
		idler := m.Alloc(Idle, nop, true, Extra{})
		timer := m.Alloc(Timer, nop, true, Extra{After: time.Hour})
		writer := m.Alloc(FDWrite, nop, true, Extra{FD: wfd})
		stopped := m.Alloc(Idle, nop, false, Extra{})
		m.ExpectRecordedCalls(
			Call{F: FuncAddIdler, W: idler},
			Call{F: FuncAddTimer, W: timer, After: time.Hour},
			Call{F: FuncAddFD, W: writer, FD: wfd, Write: true},
		)
		m.mgr.Release()
		for _, w := range []*Watcher{idler, timer, writer, stopped} {
			if w == stopped {
				m.ExpectState(w, Allocated)
				continue
			}
			m.ExpectState(w, Stopped)
		}
		if got := m.spy.calls[len(m.spy.calls)-1]; got.F != FuncClose {
			t.Fatalf("want backend closed last; got %v", got)
		}
		if removes := countCalls(m.spy.calls, FuncRemove); removes != 3 {
			t.Fatalf("want 3 removals before close; got %d", removes)
		}
		if st := m.mgr.Stats(); st.Started != 0 {
			t.Fatalf("want no started watcher; got %+v", st)
		}
	})
}

func TestManagerStats(t *testing.T) {
	m := NewManagerTest(t, "")
	n := gofakeit.IntRange(1, 16)
	ws := make([]*Watcher, 0, n)
	for i := 0; i < n; i++ {
		ws = append(ws, m.Alloc(Idle, nop, i%2 == 0, Extra{}))
	}
	st := m.mgr.Stats()
	if st.Watchers != n || st.Started != (n+1)/2 || st.Refs != 1 {
		t.Fatalf("unexpected stats %+v (n=%d)", st, n)
	}
	for _, w := range ws {
		w.Free()
	}
	if st := m.mgr.Stats(); st.Watchers != 0 || st.Started != 0 {
		t.Fatalf("want empty stats; got %+v", st)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	name := gofakeit.LetterN(12)
	if _, err := Open(name); err == nil {
		t.Fatalf("Open(%q)=nil", name)
	}
}

func TestBackends(t *testing.T) {
	names := Backends()
	if len(names) == 0 {
		t.Fatal("want at least one registered backend")
	}
	for _, name := range names {
		m, err := Open(name, WithName(name))
		if err != nil {
			t.Fatalf("Open(%q)=%v", name, err)
		}
		m.Release()
	}
	m, err := Open("")
	if err != nil {
		t.Fatalf("Open(default)=%v", err)
	}
	m.Release()
}

func countCalls(calls []Call, f FuncType) (n int) {
	for _, c := range calls {
		if c.F == f {
			n++
		}
	}
	return n
}
