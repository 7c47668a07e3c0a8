// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

// Package probe implements chains of event catchers for pipeline stages.
//
// A stage raises an Event through the first probe of its chain; every probe
// either claims it or lets it fall through to the next one. The
// ManagerProvider probe uses this to hand a shared pump.Manager to stages
// that discover they need one.
package probe

import (
	"fmt"

	"github.com/olandr/pump"
)

// Kind identifies an event.
type Kind uint8

const (
	// Ready is raised when a stage is set up.
	Ready Kind = iota + 1
	// Dead is raised when a stage is torn down.
	Dead
	// Log carries a message a stage wants reported; Args[0] is the message.
	Log
	// Error reports a recoverable failure; Args[0] is the error.
	Error
	// Fatal reports a failure the stage cannot recover from; Args[0] is the
	// error.
	Fatal
	// NeedManager is raised by a stage that has no pump.Manager configured
	// and needs one.
	NeedManager
)

var kindstr = map[Kind]string{
	Ready:       "probe.Ready",
	Dead:        "probe.Dead",
	Log:         "probe.Log",
	Error:       "probe.Error",
	Fatal:       "probe.Fatal",
	NeedManager: "probe.NeedManager",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if s, ok := kindstr[k]; ok {
		return s
	}
	return fmt.Sprintf("probe.Kind(%d)", uint8(k))
}

// Event is a tagged value raised by a stage.
type Event struct {
	Kind Kind
	Args []any
}

// NewEvent builds an event of the given kind.
func NewEvent(kind Kind, args ...any) Event {
	return Event{Kind: kind, Args: args}
}

func (ev Event) String() string {
	if len(ev.Args) == 0 {
		return ev.Kind.String()
	}
	return fmt.Sprintf("%v%v", ev.Kind, ev.Args)
}

// Stage is the part of a pipeline stage probes talk to.
type Stage interface {
	// Name identifies the stage in logs.
	Name() string

	// SetManager configures the manager the stage allocates watchers from.
	// The stage acquires its own reference on success.
	SetManager(m *pump.Manager) error
}

// Probe is one link of a chain.
type Probe interface {
	// Catch reports whether the probe handled ev raised by stage.
	Catch(stage Stage, ev Event) bool

	// Next returns the following probe, or nil at the end of the chain.
	Next() Probe
}

// Throw raises ev from stage through the chain starting at p. It reports
// whether a probe claimed the event; an unclaimed event is not an error.
func Throw(p Probe, stage Stage, ev Event) bool {
	for ; p != nil; p = p.Next() {
		if p.Catch(stage, ev) {
			return true
		}
	}
	return false
}

// Node is the link embedded by every probe of this package.
type Node struct {
	next Probe
}

// Next implements Probe.
func (n *Node) Next() Probe { return n.next }

// Free returns the next probe so callers can continue unwinding the chain.
func (n *Node) Free() Probe {
	next := n.Next()
	n.next = nil
	return next
}

// Freer is a probe owning resources that must be released at teardown.
type Freer interface {
	Free() Probe
}

// Unwind tears a chain down front to back. Probes implementing Freer are
// freed; the others are skipped over.
func Unwind(p Probe) {
	for p != nil {
		if f, ok := p.(Freer); ok {
			p = f.Free()
			continue
		}
		p = p.Next()
	}
}

// CatchFunc is the signature of a function probe.
type CatchFunc func(stage Stage, ev Event) bool

// Func is a probe backed by a function.
type Func struct {
	Node
	fn CatchFunc
}

// NewFunc links fn in front of next.
func NewFunc(next Probe, fn CatchFunc) *Func {
	return &Func{Node: Node{next: next}, fn: fn}
}

// Catch implements Probe.
func (f *Func) Catch(stage Stage, ev Event) bool {
	return f.fn != nil && f.fn(stage, ev)
}
