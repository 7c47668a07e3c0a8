// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

// Package demo pushes a padding string through a pipe with a writer stage
// throttled by sink blocking and a reader stage that starts late, so the
// pipe fills up before it is drained.
package demo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/olandr/pump"
	"github.com/olandr/pump/internal/config"
	"github.com/olandr/pump/probe"
	"golang.org/x/sys/unix"
)

// ErrNoManager is returned when no probe of the chain provided a manager.
var ErrNoManager = errors.New("demo: no pump manager provided")

// Result summarizes a demo run.
type Result struct {
	Backend string
	Written int64
	Read    int64
	// Blocks counts how often the writer found the pipe full.
	Blocks  int
	Elapsed time.Duration
	// States holds the watcher states observed once the loop exited.
	States map[string]pump.State
	Stats  pump.Stats
}

// Balanced reports whether everything written was read back.
func (r Result) Balanced() bool { return r.Read > 0 && r.Read == r.Written }

// Run executes the demo with cfg and returns once the reader consumed more
// than cfg.MinRead bytes, ctx is done or a stage failed.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	mgr, err := pump.Open(cfg.Backend, pump.WithLogger(logger), pump.WithName("demo"))
	if err != nil {
		return Result{}, err
	}
	chain := probe.NewLogger(
		probe.NewManagerProvider(nil, mgr, probe.WithLogger(logger)),
		logger, slog.LevelDebug)
	// The provider holds the manager from here on.
	mgr.Release()
	defer probe.Unwind(chain)

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return Result{}, fmt.Errorf("demo: pipe: %w", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])
	if err := unix.SetNonblock(fds[1], true); err != nil {
		return Result{}, fmt.Errorf("demo: pipe: %w", err)
	}

	r, err := newReader(chain, fds[0], cfg, logger)
	if err != nil {
		return Result{}, err
	}
	defer r.Close()
	w, err := newWriter(chain, fds[1], cfg, r, logger)
	if err != nil {
		return Result{}, err
	}
	defer w.Close()

	res := Result{Backend: cfg.Backend}
	if res.Backend == "" {
		res.Backend = "default"
	}
	start := time.Now()
	err = w.Manager().Run(ctx)
	res.Elapsed = time.Since(start)
	res.Written, res.Read, res.Blocks = w.written, r.read, w.blocks
	res.States = map[string]pump.State{
		"write idler":   w.idler.State(),
		"write watcher": w.watcher.State(),
		"read timer":    w.timer.State(),
		"read watcher":  r.watcher.State(),
	}
	res.Stats = w.Manager().Stats()
	if err == nil {
		err = errors.Join(w.err, r.err)
	}
	logger.Info("demo finished",
		"backend", res.Backend,
		"written", res.Written,
		"read", res.Read,
		"blocks", res.Blocks,
		"elapsed", res.Elapsed)
	return res, err
}
