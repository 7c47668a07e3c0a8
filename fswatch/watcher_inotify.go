// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

//go:build linux

package fswatch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"unsafe"

	"github.com/olandr/pump"
	"golang.org/x/sys/unix"
)

var (
	ErrClosed     = errors.New("fswatch: watcher is closed")
	ErrNotWatched = errors.New("fswatch: path is not watched")
	ErrNoEvents   = errors.New("fswatch: empty event set")
)

// Func receives the changes reported by a Watcher. It runs on the pump loop.
type Func func(ei EventInfo)

// Watcher reports changes of watched paths to its callback.
type Watcher struct {
	fd      int
	manager *pump.Manager
	pw      *pump.Watcher
	fn      Func
	logger  *slog.Logger

	paths   map[int]string // watch descriptor to path
	wds     map[string]int
	exclude []string
	buf     []byte
}

// New opens an inotify instance and starts watching it on m. The watcher
// keeps a reference on m until closed.
func New(m *pump.Manager, fn Func, logger *slog.Logger) (*Watcher, error) {
	if fn == nil {
		return nil, pump.ErrNilFunc
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("fswatch: inotify_init1: %w", err)
	}
	w := &Watcher{
		fd:      fd,
		manager: m.Use(),
		fn:      fn,
		logger:  logger,
		paths:   make(map[int]string),
		wds:     make(map[string]int),
		buf:     make([]byte, 64*(unix.SizeofInotifyEvent+unix.PathMax)),
	}
	if w.pw, err = m.NewFDRead(w.onReadable, w, true, fd); err != nil {
		unix.Close(fd)
		w.manager.Release()
		return nil, err
	}
	return w, nil
}

// Watch adds path with the given event set. Watching a path again replaces
// its event set.
func (w *Watcher) Watch(path string, events Event) error {
	if w.pw == nil {
		return ErrClosed
	}
	if events&All == 0 {
		return ErrNoEvents
	}
	path = filepath.Clean(path)
	wd, err := unix.InotifyAddWatch(w.fd, path, uint32(events&All))
	if err != nil {
		return fmt.Errorf("fswatch: watch %s: %w", path, err)
	}
	w.paths[wd] = path
	w.wds[path] = wd
	w.logger.Debug("watch", "path", path, "wd", wd, "events", events.String())
	return nil
}

// Unwatch removes path.
func (w *Watcher) Unwatch(path string) error {
	if w.pw == nil {
		return ErrClosed
	}
	path = filepath.Clean(path)
	wd, ok := w.wds[path]
	if !ok {
		return ErrNotWatched
	}
	delete(w.wds, path)
	delete(w.paths, wd)
	if _, err := unix.InotifyRmWatch(w.fd, uint32(wd)); err != nil {
		return fmt.Errorf("fswatch: unwatch %s: %w", path, err)
	}
	return nil
}

// Exclude drops events whose entry name matches pattern, as understood by
// filepath.Match. Excluded entries are still watched; the filter applies
// right before the callback.
func (w *Watcher) Exclude(pattern string) error {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return fmt.Errorf("fswatch: exclude %q: %w", pattern, err)
	}
	w.exclude = append(w.exclude, pattern)
	return nil
}

func (w *Watcher) excluded(name string) bool {
	for _, pattern := range w.exclude {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Close stops the fd watcher, closes the inotify instance and releases the
// manager. Further calls are no-ops.
func (w *Watcher) Close() error {
	if w.pw == nil {
		return nil
	}
	w.pw.Free()
	w.pw = nil
	err := unix.Close(w.fd)
	w.manager.Release()
	w.manager = nil
	return err
}

func (w *Watcher) onReadable(*pump.Watcher) {
	for w.pw != nil {
		n, err := unix.Read(w.fd, w.buf)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return
		case err != nil:
			w.logger.Warn("inotify read failed", "error", err.Error())
			return
		case n < unix.SizeofInotifyEvent:
			return
		}
		w.dispatch(w.buf[:n])
	}
}

func (w *Watcher) dispatch(buf []byte) {
	for off := 0; off+unix.SizeofInotifyEvent <= len(buf); {
		sys := (*unix.InotifyEvent)(unsafe.Pointer(&buf[off]))
		end := off + unix.SizeofInotifyEvent + int(sys.Len)
		if end > len(buf) {
			return
		}
		name := strings.TrimRight(string(buf[off+unix.SizeofInotifyEvent:end]), "\x00")
		off = end

		switch {
		case sys.Mask&unix.IN_Q_OVERFLOW != 0:
			w.logger.Warn("inotify queue overflow, events were lost")
			continue
		case sys.Mask&unix.IN_IGNORED != 0:
			if path, ok := w.paths[int(sys.Wd)]; ok {
				delete(w.paths, int(sys.Wd))
				delete(w.wds, path)
			}
			continue
		}
		path, ok := w.paths[int(sys.Wd)]
		if !ok || (name != "" && w.excluded(name)) {
			continue
		}
		if name != "" {
			path = filepath.Join(path, name)
		}
		ei := EventInfo{
			Event:  Event(sys.Mask) & All,
			Path:   path,
			Dir:    sys.Mask&unix.IN_ISDIR != 0,
			Cookie: sys.Cookie,
		}
		w.fn(ei)
		if w.pw == nil {
			// Closed from the callback.
			return
		}
	}
}
