// File created by olandr (c) 2025.
// Contains code from Copyright (c) 2014-2015 The Notify Authors. All rights reserved.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

//go:build linux

package fswatch

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

// Event is a set of inotify event bits.
type Event uint32

// Inotify masks a Watcher accepts and reports.
const (
	InAccess       = Event(unix.IN_ACCESS)        // File was accessed
	InModify       = Event(unix.IN_MODIFY)        // File was modified
	InAttrib       = Event(unix.IN_ATTRIB)        // Metadata changed
	InCloseWrite   = Event(unix.IN_CLOSE_WRITE)   // Writtable file was closed
	InCloseNowrite = Event(unix.IN_CLOSE_NOWRITE) // Unwrittable file closed
	InOpen         = Event(unix.IN_OPEN)          // File was opened
	InMovedFrom    = Event(unix.IN_MOVED_FROM)    // File was moved from X
	InMovedTo      = Event(unix.IN_MOVED_TO)      // File was moved to Y
	InCreate       = Event(unix.IN_CREATE)        // Subfile was created
	InDelete       = Event(unix.IN_DELETE)        // Subfile was deleted
	InDeleteSelf   = Event(unix.IN_DELETE_SELF)   // Self was deleted
	InMoveSelf     = Event(unix.IN_MOVE_SELF)     // Self was moved

	// All is every event above.
	All = InAccess | InModify | InAttrib | InCloseWrite | InCloseNowrite | InOpen |
		InMovedFrom | InMovedTo | InCreate | InDelete | InDeleteSelf | InMoveSelf
)

var estr = map[Event]string{
	InAccess:       "fswatch.InAccess",
	InAttrib:       "fswatch.InAttrib",
	InCloseNowrite: "fswatch.InCloseNowrite",
	InCloseWrite:   "fswatch.InCloseWrite",
	InCreate:       "fswatch.InCreate",
	InDelete:       "fswatch.InDelete",
	InDeleteSelf:   "fswatch.InDeleteSelf",
	InModify:       "fswatch.InModify",
	InMovedFrom:    "fswatch.InMovedFrom",
	InMovedTo:      "fswatch.InMovedTo",
	InMoveSelf:     "fswatch.InMoveSelf",
	InOpen:         "fswatch.InOpen",
}

// String joins the names of the bits set in e with "|".
func (e Event) String() string {
	var names []string
	for bit, name := range estr {
		if e&bit != 0 {
			names = append(names, name)
		}
	}
	if rest := e &^ All; rest != 0 {
		names = append(names, fmt.Sprintf("fswatch.Event(%#x)", uint32(rest)))
	}
	if len(names) == 0 {
		return "<none>"
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

// EventInfo describes one filesystem change.
type EventInfo struct {
	Event Event
	// Path is the watched path joined with the name of the entry that
	// changed, if any.
	Path string
	// Dir reports whether the entry is a directory.
	Dir bool
	// Cookie pairs the InMovedFrom and InMovedTo halves of a rename.
	Cookie uint32
}

func (ei EventInfo) String() string {
	return ei.Event.String() + "@" + ei.Path
}
