// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

//go:build linux
// +build linux

package pump

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

const defaultBackend = "epoll"

func init() {
	RegisterBackend("epoll", NewEpoll)
}

// NewEpoll builds a level-triggered epoll(7) backend.
func NewEpoll() (Backend, error) {
	p, err := newEpoller(64)
	if err != nil {
		return nil, err
	}
	return newReactor("epoll", p)
}

type epoller struct {
	epfd   int
	mask   map[int]uint32
	events []unix.EpollEvent
}

func newEpoller(size int) (*epoller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epoller{
		epfd:   epfd,
		mask:   make(map[int]uint32),
		events: make([]unix.EpollEvent, size),
	}, nil
}

func (p *epoller) set(fd int, read, write bool) error {
	var mask uint32
	if read {
		mask |= unix.EPOLLIN
	}
	if write {
		mask |= unix.EPOLLOUT
	}
	old, ok := p.mask[fd]
	switch {
	case mask == 0 && !ok:
		return nil
	case mask == 0:
		delete(p.mask, fd)
		err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		// A descriptor closed before its watcher was stopped has already
		// left the interest list.
		if errors.Is(err, unix.EBADF) || errors.Is(err, unix.ENOENT) {
			return nil
		}
		return err
	case mask == old:
		return nil
	}
	op := unix.EPOLL_CTL_ADD
	if ok {
		op = unix.EPOLL_CTL_MOD
	}
	ev := unix.EpollEvent{Events: mask, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, op, fd, &ev); err != nil {
		return err
	}
	p.mask[fd] = mask
	return nil
}

func (p *epoller) wait(timeout time.Duration, fn func(fd int, read, write bool)) error {
	msec := -1
	if timeout >= 0 {
		msec = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}
	n, err := unix.EpollWait(p.epfd, p.events, msec)
	if err != nil {
		return err
	}
	for _, ev := range p.events[:n] {
		hup := ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0
		fn(int(ev.Fd), ev.Events&unix.EPOLLIN != 0 || hup, ev.Events&unix.EPOLLOUT != 0 || hup)
	}
	return nil
}

func (p *epoller) close() error {
	clear(p.mask)
	return unix.Close(p.epfd)
}
