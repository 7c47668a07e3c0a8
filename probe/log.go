// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package probe

import (
	"context"
	"log/slog"
)

// Option configures the logger of a probe or stage.
type Option func(logger **slog.Logger)

// WithLogger routes log records to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(dst **slog.Logger) {
		if logger != nil {
			*dst = logger
		}
	}
}

func defaultLogger() *slog.Logger {
	return slog.New(silentHandler{})
}

type silentHandler struct{}

func (silentHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (silentHandler) Handle(context.Context, slog.Record) error { return nil }
func (h silentHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h silentHandler) WithGroup(string) slog.Handler           { return h }

// Logger writes every event passing through it and never claims one.
type Logger struct {
	Node
	logger *slog.Logger
	level  slog.Level
}

// NewLogger links a logging probe in front of next. Ordinary events are
// written at level; Error and Fatal events at least at warning and error
// level respectively.
func NewLogger(next Probe, logger *slog.Logger, level slog.Level) *Logger {
	if logger == nil {
		logger = defaultLogger()
	}
	return &Logger{Node: Node{next: next}, logger: logger, level: level}
}

// Catch implements Probe.
func (l *Logger) Catch(stage Stage, ev Event) bool {
	level := l.level
	switch ev.Kind {
	case Error:
		level = max(level, slog.LevelWarn)
	case Fatal:
		level = max(level, slog.LevelError)
	}
	attrs := []any{"stage", stage.Name(), "event", ev.Kind.String()}
	if len(ev.Args) > 0 {
		attrs = append(attrs, "args", ev.Args)
	}
	l.logger.Log(context.Background(), level, "stage event", attrs...)
	return false
}
