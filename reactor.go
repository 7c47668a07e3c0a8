// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package pump

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// poller is the readiness primitive a reactor is built on.
type poller interface {
	// set replaces the interest registered for fd; clearing both read and
	// write removes fd.
	set(fd int, read, write bool) error

	// wait blocks for at most timeout (forever when negative) and reports
	// every ready descriptor to fn.
	wait(timeout time.Duration, fn func(fd int, read, write bool)) error

	close() error
}

type interest struct {
	readers []*Watcher
	writers []*Watcher
}

type ready struct {
	fd          int
	read, write bool
}

type timer struct {
	w      *Watcher
	when   time.Time
	repeat time.Duration
	seq    uint64
	index  int
}

// timerHeap is a min-heap of timers ordered by expiry, then by arming order.
type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// reactor is the loop shared by the bundled backends. Only the readiness
// wait differs between them.
type reactor struct {
	name   string
	poller poller

	idlers []*Watcher
	timers timerHeap
	armed  map[*Watcher]*timer
	fds    map[int]*interest
	fdOf   map[*Watcher]int
	seq    uint64

	ready    []ready
	running  bool
	breaking bool

	wakeMu sync.Mutex
	wakeR  int
	wakeW  int
	closed bool
}

func newReactor(name string, p poller) (*reactor, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		p.close()
		return nil, fmt.Errorf("pump: %s: wake pipe: %w", name, err)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			p.close()
			return nil, fmt.Errorf("pump: %s: wake pipe: %w", name, err)
		}
	}
	if err := p.set(fds[0], true, false); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		p.close()
		return nil, fmt.Errorf("pump: %s: wake pipe: %w", name, err)
	}
	return &reactor{
		name:   name,
		poller: p,
		armed:  make(map[*Watcher]*timer),
		fds:    make(map[int]*interest),
		fdOf:   make(map[*Watcher]int),
		wakeR:  fds[0],
		wakeW:  fds[1],
	}, nil
}

func (r *reactor) String() string { return r.name }

func (r *reactor) AddIdler(w *Watcher) error {
	r.idlers = append(r.idlers, w)
	return nil
}

func (r *reactor) AddTimer(w *Watcher, after, repeat time.Duration) error {
	if after < 0 || repeat < 0 {
		return ErrInvalidDelay
	}
	r.seq++
	t := &timer{w: w, when: time.Now().Add(after), repeat: repeat, seq: r.seq}
	heap.Push(&r.timers, t)
	r.armed[w] = t
	return nil
}

func (r *reactor) AddFD(w *Watcher, fd int, write bool) error {
	in, ok := r.fds[fd]
	if !ok {
		in = &interest{}
	}
	rd, wr := len(in.readers) > 0 || !write, len(in.writers) > 0 || write
	if err := r.poller.set(fd, rd, wr); err != nil {
		return err
	}
	if write {
		in.writers = append(in.writers, w)
	} else {
		in.readers = append(in.readers, w)
	}
	r.fds[fd] = in
	r.fdOf[w] = fd
	return nil
}

func (r *reactor) Remove(w *Watcher) error {
	switch w.Kind() {
	case Idle:
		r.idlers = without(r.idlers, w)
	case Timer:
		if t, ok := r.armed[w]; ok {
			heap.Remove(&r.timers, t.index)
			delete(r.armed, w)
		}
	case FDRead, FDWrite:
		fd, ok := r.fdOf[w]
		if !ok {
			return nil
		}
		delete(r.fdOf, w)
		in := r.fds[fd]
		in.readers = without(in.readers, w)
		in.writers = without(in.writers, w)
		if len(in.readers) == 0 && len(in.writers) == 0 {
			delete(r.fds, fd)
		}
		return r.poller.set(fd, len(in.readers) > 0, len(in.writers) > 0)
	}
	return nil
}

func without(ws []*Watcher, w *Watcher) []*Watcher {
	for i, c := range ws {
		if c == w {
			copy(ws[i:], ws[i+1:])
			ws[len(ws)-1] = nil
			return ws[:len(ws)-1]
		}
	}
	return ws
}

func (r *reactor) registered(w *Watcher) bool {
	switch w.Kind() {
	case FDRead, FDWrite:
		_, ok := r.fdOf[w]
		return ok
	case Idle:
		for _, c := range r.idlers {
			if c == w {
				return true
			}
		}
	}
	return false
}

func (r *reactor) Break() {
	r.breaking = true
	r.wake()
}

func (r *reactor) wake() {
	r.wakeMu.Lock()
	defer r.wakeMu.Unlock()
	if r.closed {
		return
	}
	// EAGAIN means a wake-up is already pending.
	unix.Write(r.wakeW, []byte{1})
}

func (r *reactor) drain() {
	var buf [64]byte
	for {
		if n, err := unix.Read(r.wakeR, buf[:]); n <= 0 || err != nil {
			return
		}
	}
}

func (r *reactor) Run(ctx context.Context, gate Gate) error {
	if r.running {
		return ErrRunning
	}
	r.running, r.breaking = true, false
	defer func() { r.running = false }()
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, r.wake)
		defer stop()
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.breaking {
			return nil
		}
		idle := len(r.idlers) > 0 && !gate.SinkBlocked()
		var timeout time.Duration
		switch {
		case idle:
			timeout = 0
		case len(r.timers) > 0:
			timeout = max(time.Until(r.timers[0].when), 0)
		case len(r.fds) > 0:
			timeout = -1
		case len(r.idlers) > 0:
			return ErrStalled
		default:
			return nil
		}
		if err := r.iterate(timeout, gate); err != nil {
			return err
		}
	}
}

// iterate runs one loop pass: fd readiness, then expired timers, then idle
// watchers when nothing else ran.
func (r *reactor) iterate(timeout time.Duration, gate Gate) error {
	r.ready = r.ready[:0]
	err := r.poller.wait(timeout, func(fd int, read, write bool) {
		r.ready = append(r.ready, ready{fd: fd, read: read, write: write})
	})
	if err != nil && !errors.Is(err, unix.EINTR) {
		return fmt.Errorf("pump: %s: wait: %w", r.name, err)
	}
	busy := false
	for _, ev := range r.ready {
		if ev.fd == r.wakeR {
			r.drain()
			continue
		}
		in, ok := r.fds[ev.fd]
		if !ok {
			continue
		}
		var fire []*Watcher
		if ev.read {
			fire = append(fire, in.readers...)
		}
		if ev.write {
			fire = append(fire, in.writers...)
		}
		for _, w := range fire {
			if r.breaking {
				return nil
			}
			if r.registered(w) {
				busy = true
				w.Fire()
			}
		}
	}
	now := time.Now()
	for len(r.timers) > 0 && !r.timers[0].when.After(now) {
		if r.breaking {
			return nil
		}
		t := r.timers[0]
		if t.repeat > 0 {
			t.when = now.Add(t.repeat)
			heap.Fix(&r.timers, 0)
		} else {
			heap.Pop(&r.timers)
			delete(r.armed, t.w)
		}
		busy = true
		t.w.Fire()
	}
	if busy {
		return nil
	}
	idlers := append([]*Watcher(nil), r.idlers...)
	for _, w := range idlers {
		if r.breaking || gate.SinkBlocked() {
			return nil
		}
		if r.registered(w) {
			w.Fire()
		}
	}
	return nil
}

func (r *reactor) Close() error {
	r.wakeMu.Lock()
	r.closed = true
	r.wakeMu.Unlock()
	err := r.poller.close()
	unix.Close(r.wakeR)
	unix.Close(r.wakeW)
	r.idlers, r.timers = nil, nil
	clear(r.armed)
	clear(r.fds)
	clear(r.fdOf)
	return err
}
