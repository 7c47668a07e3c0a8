// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package pump

import "testing"

// NewManagerTest builds a manager on the named backend, wrapped by a spy. The
// manager's creation reference is released at cleanup.
func NewManagerTest(t *testing.T, backend string) *M {
	inner, err := NewBackend(backend)
	if err != nil {
		t.Fatalf("NewBackend(%q)=%v", backend, err)
	}
	spy := &FakeBackendCalls{Backend: inner}
	m := &M{t: t, spy: spy, mgr: New(spy)}
	t.Cleanup(m.Close)
	return m
}

// forEachBackend runs fn as a subtest for every registered backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, m *M)) {
	for _, name := range Backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, NewManagerTest(t, name))
		})
	}
}
