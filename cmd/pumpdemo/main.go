// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

// Command pumpdemo runs the pipe backpressure demo on a pump backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/olandr/pump"
	"github.com/olandr/pump/internal/config"
	"github.com/olandr/pump/internal/demo"
)

const (
	exitOK = iota
	exitFailure
	exitUsage
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv)
	stop()
	os.Exit(code)
}

type options struct {
	config  string
	backend string
	debug   bool
	list    bool
}

func parseArgs(args []string, errOut io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("pumpdemo", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&opts.config, "config", "", "settings file (.yaml, .yml or .toml)")
	fs.StringVar(&opts.backend, "backend", "", "pump backend: "+strings.Join(pump.Backends(), ", "))
	fs.BoolVar(&opts.debug, "debug", false, "log every stage event")
	fs.BoolVar(&opts.list, "list", false, "list the available backends and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(errOut, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return options{}, errors.New("unexpected arguments")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, out, errOut io.Writer, lookup func(string) (string, bool)) int {
	opts, err := parseArgs(args, errOut)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if opts.list {
		for _, name := range pump.Backends() {
			fmt.Fprintln(out, name)
		}
		return exitOK
	}

	cfg, err := config.Load(opts.config)
	if err == nil {
		err = cfg.ApplyEnv(lookup)
	}
	if err != nil {
		fmt.Fprintln(errOut, err)
		return exitUsage
	}
	if opts.backend != "" {
		cfg.Backend = opts.backend
	}
	if opts.debug {
		cfg.LogLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: cfg.LogLevel}))
	res, err := demo.Run(ctx, cfg, logger)
	if err != nil {
		logger.Error("demo failed", "error", err.Error())
		return exitFailure
	}
	fmt.Fprintf(out, "%s: wrote %d bytes, read %d bytes, %d blocks in %v\n",
		res.Backend, res.Written, res.Read, res.Blocks, res.Elapsed)
	if !res.Balanced() {
		logger.Error("bytes read do not match bytes written")
		return exitFailure
	}
	return exitOK
}
