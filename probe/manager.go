// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package probe

import (
	"log/slog"

	"github.com/olandr/pump"
)

// ManagerProvider catches NeedManager events and hands its manager to the
// stage raising them.
type ManagerProvider struct {
	Node
	manager *pump.Manager
	logger  *slog.Logger
}

// NewManagerProvider links a provider for m in front of next. It holds a
// reference on m until freed; m may be nil, in which case the provider lets
// every event through until Set gives it a manager.
func NewManagerProvider(next Probe, m *pump.Manager, options ...Option) *ManagerProvider {
	p := &ManagerProvider{
		Node:    Node{next: next},
		manager: m.Use(),
		logger:  defaultLogger(),
	}
	for _, option := range options {
		option(&p.logger)
	}
	return p
}

// Catch implements Probe. A stage rejecting the manager leaves the event
// unclaimed so a later probe may resolve it another way.
func (p *ManagerProvider) Catch(stage Stage, ev Event) bool {
	if ev.Kind != NeedManager || p.manager == nil {
		return false
	}
	if err := stage.SetManager(p.manager); err != nil {
		p.logger.Warn("probe couldn't set pump manager", "stage", stage.Name(), "error", err.Error())
		return false
	}
	return true
}

// Manager returns the manager handed out, or nil.
func (p *ManagerProvider) Manager() *pump.Manager {
	return p.manager
}

// Set replaces the manager handed out. The new manager is acquired before
// the old one is released, and setting the current manager again changes
// nothing.
func (p *ManagerProvider) Set(m *pump.Manager) {
	if m == p.manager {
		return
	}
	old := p.manager
	p.manager = m.Use()
	old.Release()
}

// Free releases the manager reference and returns the next probe.
func (p *ManagerProvider) Free() Probe {
	p.manager.Release()
	p.manager = nil
	return p.Node.Free()
}
