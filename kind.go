// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package pump

// Kind is the class of event source a Watcher is bound to.
type Kind uint8

const (
	// Idle watchers fire when the loop has no other pending work. They are
	// the only kind affected by sink blocking. An iteration that ran any fd
	// or timer callback skips them, so an fd watcher that stays ready, such
	// as a started FDWrite watcher on a descriptor with room, starves every
	// idle watcher until it is stopped.
	Idle Kind = iota + 1
	// Timer watchers fire once after a delay, or repeatedly when a repeat
	// interval is given.
	Timer
	// FDRead watchers fire when a descriptor is readable.
	FDRead
	// FDWrite watchers fire when a descriptor is writable.
	FDWrite
)

var kindstr = map[Kind]string{
	Idle:    "pump.Idle",
	Timer:   "pump.Timer",
	FDRead:  "pump.FDRead",
	FDWrite: "pump.FDWrite",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if s, ok := kindstr[k]; ok {
		return s
	}
	return "pump.Kind(?)"
}

func (k Kind) valid() bool {
	_, ok := kindstr[k]
	return ok
}

func (k Kind) isFD() bool { return k == FDRead || k == FDWrite }

// State is the lifecycle position of a Watcher.
//
//	Allocated -> Started <-> Stopped -> Freed
type State uint8

const (
	Allocated State = iota
	Started
	Stopped
	Freed
)

var statestr = map[State]string{
	Allocated: "allocated",
	Started:   "started",
	Stopped:   "stopped",
	Freed:     "freed",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if str, ok := statestr[s]; ok {
		return str
	}
	return "unknown"
}
