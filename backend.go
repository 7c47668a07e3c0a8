// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package pump

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Gate tells a backend whether idle watchers may fire. The Manager is the
// gate of the backend it owns.
type Gate interface {
	SinkBlocked() bool
}

// Backend is the platform loop a Manager dispatches through. Implementations
// deliver events by calling (*Watcher).Fire on the goroutine running Run.
//
// The Manager guarantees that Add* is only called for a watcher that is not
// registered yet and Remove only for one that is. A backend must drop the
// registration of a single-shot timer before firing it.
type Backend interface {
	// AddIdler registers an idle watcher.
	AddIdler(w *Watcher) error

	// AddTimer registers a timer firing after the given delay, then every
	// repeat interval when repeat is positive.
	AddTimer(w *Watcher, after, repeat time.Duration) error

	// AddFD registers readiness interest on fd: writability when write is
	// set, readability otherwise.
	AddFD(w *Watcher, fd int, write bool) error

	// Remove unregisters a watcher of any kind.
	Remove(w *Watcher) error

	// Run drives the loop until Break is called, ctx is done or no watcher
	// is registered any more. Idle watchers are skipped while gate reports
	// the sink as blocked.
	Run(ctx context.Context, gate Gate) error

	// Break makes Run return after the current callback.
	Break()

	// Close releases the backend. It is called exactly once, after every
	// watcher was removed.
	Close() error
}

// BackendFunc builds a Backend.
type BackendFunc func() (Backend, error)

var registry = struct {
	sync.Mutex
	m map[string]BackendFunc
}{m: make(map[string]BackendFunc)}

// RegisterBackend makes a backend available under name to Open and
// NewBackend. Registering the same name twice replaces the earlier factory.
func RegisterBackend(name string, fn BackendFunc) {
	registry.Lock()
	registry.m[name] = fn
	registry.Unlock()
}

// Backends lists registered backend names in sorted order.
func Backends() []string {
	registry.Lock()
	defer registry.Unlock()
	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewBackend builds the backend registered under name. An empty name
// selects the platform default.
func NewBackend(name string) (Backend, error) {
	if name == "" {
		name = defaultBackend
	}
	registry.Lock()
	fn, ok := registry.m[name]
	registry.Unlock()
	if !ok {
		return nil, fmt.Errorf("pump: unknown backend %q (have %v)", name, Backends())
	}
	return fn()
}
