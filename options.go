// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package pump

import (
	"context"
	"log/slog"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger warnings and lifecycle events are written to.
// Managers are silent by default.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithName labels the manager in log records.
func WithName(name string) Option {
	return func(m *Manager) {
		m.name = name
	}
}

// silentHandler is a slog.Handler that discards everything.
type silentHandler struct{}

func (silentHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (silentHandler) Handle(context.Context, slog.Record) error { return nil }
func (h silentHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h silentHandler) WithGroup(string) slog.Handler           { return h }
