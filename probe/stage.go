// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package probe

import (
	"log/slog"

	"github.com/olandr/pump"
)

// Base is the manager plumbing a stage embeds. It raises events through its
// chain and keeps one reference on the manager it was configured with.
type Base struct {
	name    string
	probe   Probe
	self    Stage
	manager *pump.Manager
	logger  *slog.Logger
}

// NewBase returns a stage named name raising its events through p.
func NewBase(name string, p Probe, options ...Option) *Base {
	b := &Base{name: name, probe: p, logger: defaultLogger()}
	for _, option := range options {
		option(&b.logger)
	}
	b.logger = b.logger.With("stage", name)
	return b
}

// Bind makes s the stage raising b's events, so probes configure s through
// its own SetManager. A type embedding Base binds itself right after
// construction; until then events are raised with b.
func (b *Base) Bind(s Stage) {
	b.self = s
}

func (b *Base) stage() Stage {
	if b.self != nil {
		return b.self
	}
	return b
}

// Name implements Stage.
func (b *Base) Name() string { return b.name }

// Probe returns the first probe of the stage's chain.
func (b *Base) Probe() Probe { return b.probe }

// Manager returns the configured manager, or nil.
func (b *Base) Manager() *pump.Manager { return b.manager }

// SetManager implements Stage. The new manager is acquired before the old
// one is released; nil unsets the manager.
func (b *Base) SetManager(m *pump.Manager) error {
	if m == b.manager {
		return nil
	}
	old := b.manager
	b.manager = m.Use()
	old.Release()
	b.logger.Debug("pump manager set", "refs", m.Refs())
	return nil
}

// Throw raises ev through the stage's chain.
func (b *Base) Throw(ev Event) bool {
	return Throw(b.probe, b.stage(), ev)
}

// RequireManager returns the configured manager, first raising NeedManager
// when there is none. It returns nil when no probe could provide one; the
// stage then runs without dispatch capability.
func (b *Base) RequireManager() *pump.Manager {
	if b.manager == nil && !b.Throw(NewEvent(NeedManager)) {
		b.logger.Debug("no pump manager available")
	}
	return b.manager
}

// Close raises Dead and releases the manager.
func (b *Base) Close() {
	b.Throw(NewEvent(Dead))
	b.manager.Release()
	b.manager = nil
}
