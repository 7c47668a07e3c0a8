// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

//go:build unix

package pump

import (
	"sort"
	"time"

	"golang.org/x/sys/unix"
)

func init() {
	RegisterBackend("poll", NewPoll)
}

// NewPoll builds a poll(2) backend. It is slower than epoll with many
// descriptors but available on every unix.
func NewPoll() (Backend, error) {
	return newReactor("poll", &poller2{events: make(map[int]int16)})
}

type poller2 struct {
	events map[int]int16
	fds    []unix.PollFd
	dirty  bool
}

func (p *poller2) set(fd int, read, write bool) error {
	var events int16
	if read {
		events |= unix.POLLIN
	}
	if write {
		events |= unix.POLLOUT
	}
	if events == 0 {
		delete(p.events, fd)
	} else {
		p.events[fd] = events
	}
	p.dirty = true
	return nil
}

func (p *poller2) wait(timeout time.Duration, fn func(fd int, read, write bool)) error {
	if p.dirty {
		p.fds = p.fds[:0]
		for fd, events := range p.events {
			p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: events})
		}
		sort.Slice(p.fds, func(i, j int) bool { return p.fds[i].Fd < p.fds[j].Fd })
		p.dirty = false
	}
	msec := -1
	if timeout >= 0 {
		msec = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}
	n, err := unix.Poll(p.fds, msec)
	if err != nil || n == 0 {
		return err
	}
	for i := range p.fds {
		re := p.fds[i].Revents
		if re == 0 {
			continue
		}
		p.fds[i].Revents = 0
		hup := re&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0
		fn(int(p.fds[i].Fd), re&unix.POLLIN != 0 || hup, re&unix.POLLOUT != 0 || hup)
	}
	return nil
}

func (p *poller2) close() error {
	clear(p.events)
	p.fds = nil
	return nil
}
