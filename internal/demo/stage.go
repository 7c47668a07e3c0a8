// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package demo

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/olandr/pump"
	"github.com/olandr/pump/internal/config"
	"github.com/olandr/pump/probe"
	"golang.org/x/sys/unix"
)

// reader drains the pipe one padding sized chunk per readiness event.
type reader struct {
	*probe.Base
	fd      int
	chunk   []byte
	minRead int64
	read    int64
	watcher *pump.Watcher
	idler   *pump.Watcher // stopped together with the reader
	err     error
}

func newReader(chain probe.Probe, fd int, cfg config.Config, logger *slog.Logger) (*reader, error) {
	r := &reader{
		Base:    probe.NewBase("reader", chain, probe.WithLogger(logger)),
		fd:      fd,
		chunk:   make([]byte, len(cfg.Padding)+1),
		minRead: int64(cfg.MinRead),
	}
	r.Bind(r)
	mgr := r.RequireManager()
	if mgr == nil {
		return nil, ErrNoManager
	}
	var err error
	if r.watcher, err = mgr.NewFDRead(r.onReadable, r, false, fd); err != nil {
		r.Close()
		return nil, err
	}
	r.Throw(probe.NewEvent(probe.Ready))
	return r, nil
}

func (r *reader) onReadable(w *pump.Watcher) {
	n, err := unix.Read(r.fd, r.chunk)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return
		}
		r.fail(fmt.Errorf("demo: read: %w", err))
		return
	}
	r.read += int64(n)
	if r.read > r.minRead {
		r.Throw(probe.NewEvent(probe.Log, "read watcher passed"))
		if err := r.idler.Stop(); err != nil {
			r.fail(err)
		}
		if err := w.Stop(); err != nil {
			r.fail(err)
		}
	}
}

func (r *reader) fail(err error) {
	r.err = errors.Join(r.err, err)
	r.Throw(probe.NewEvent(probe.Fatal, err))
	r.Manager().Break()
}

// Close frees the watcher and releases the manager.
func (r *reader) Close() {
	r.watcher.Free()
	r.Base.Close()
}

// writer fills the pipe from an idle watcher. When the pipe is full it
// blocks the sink until the pipe becomes writable again, and arms the timer
// that starts the reader.
type writer struct {
	*probe.Base
	fd      int
	chunk   []byte
	written int64
	blocks  int
	idler   *pump.Watcher
	watcher *pump.Watcher
	timer   *pump.Watcher
	reader  *reader
	err     error
}

func newWriter(chain probe.Probe, fd int, cfg config.Config, r *reader, logger *slog.Logger) (*writer, error) {
	wr := &writer{
		Base:   probe.NewBase("writer", chain, probe.WithLogger(logger)),
		fd:     fd,
		chunk:  append([]byte(cfg.Padding), 0),
		reader: r,
	}
	wr.Bind(wr)
	mgr := wr.RequireManager()
	if mgr == nil {
		return nil, ErrNoManager
	}
	var err error
	if wr.watcher, err = mgr.NewFDWrite(wr.onWritable, wr, false, fd); err != nil {
		wr.Close()
		return nil, err
	}
	if wr.timer, err = mgr.NewTimer(wr.onTimer, wr, false, cfg.Timer, 0); err != nil {
		wr.Close()
		return nil, err
	}
	if wr.idler, err = mgr.NewIdler(wr.onIdle, wr, true); err != nil {
		wr.Close()
		return nil, err
	}
	r.idler = wr.idler
	wr.Throw(probe.NewEvent(probe.Ready))
	return wr, nil
}

func (wr *writer) onIdle(*pump.Watcher) {
	n, err := unix.Write(wr.fd, wr.chunk)
	switch {
	case err == nil:
		wr.written += int64(n)
	case errors.Is(err, unix.EAGAIN):
		wr.blocks++
		wr.Throw(probe.NewEvent(probe.Log, "write idler blocked"))
		mgr := wr.Manager()
		mgr.SinkBlock()
		wr.start(wr.watcher)
		wr.start(wr.timer)
	case errors.Is(err, unix.EINTR):
	default:
		wr.fail(fmt.Errorf("demo: write: %w", err))
	}
}

func (wr *writer) onWritable(w *pump.Watcher) {
	wr.Throw(probe.NewEvent(probe.Log, "write watcher passed"))
	wr.Manager().SinkUnblock()
	if err := w.Stop(); err != nil {
		wr.fail(err)
	}
}

func (wr *writer) onTimer(*pump.Watcher) {
	wr.Throw(probe.NewEvent(probe.Log, "read timer passed"))
	wr.start(wr.reader.watcher)
}

// start starts w unless it already runs; the timer and the reader are only
// armed by the first blocked write.
func (wr *writer) start(w *pump.Watcher) {
	if w.State() == pump.Started {
		return
	}
	if err := w.Start(); err != nil {
		wr.fail(err)
	}
}

func (wr *writer) fail(err error) {
	wr.err = errors.Join(wr.err, err)
	wr.Throw(probe.NewEvent(probe.Fatal, err))
	wr.Manager().Break()
}

// Close frees the watchers and releases the manager.
func (wr *writer) Close() {
	for _, w := range []*pump.Watcher{wr.idler, wr.watcher, wr.timer} {
		w.Free()
	}
	wr.Base.Close()
}
