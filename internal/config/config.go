// File created by olandr (c) 2025.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

// Package config loads the settings of the pump demo from YAML or TOML files
// and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultPadding is the chunk the demo writer pushes into its pipe.
const DefaultPadding = "This is an initialized bit of space used to pad sufficiently !"

var (
	ErrUnsupportedFormat = errors.New("config: unsupported file extension")
	ErrInvalid           = errors.New("config: invalid value")
)

// Config holds the demo settings.
type Config struct {
	// Backend names the pump backend; empty selects the platform default.
	Backend  string
	LogLevel slog.Level
	// Timer is the delay before the reader starts draining the pipe.
	Timer time.Duration
	// MinRead is the byte count after which the demo stops.
	MinRead int
	Padding string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel: slog.LevelInfo,
		Timer:    time.Second,
		MinRead:  128 * 1024,
		Padding:  DefaultPadding,
	}
}

// file mirrors Config as it is written on disk. Unset keys keep the value
// they are layered over.
type file struct {
	Backend  *string `yaml:"backend" toml:"backend"`
	LogLevel *string `yaml:"log_level" toml:"log_level"`
	Timer    *string `yaml:"timer" toml:"timer"`
	MinRead  *int    `yaml:"min_read" toml:"min_read"`
	Padding  *string `yaml:"padding" toml:"padding"`
}

// Load layers the file at path over the defaults. An empty path yields the
// defaults. The format is chosen by extension: .yaml, .yml or .toml.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var f file
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = decodeYAML(data, &f)
	case ".toml":
		err = decodeTOML(data, &f)
	default:
		return Config{}, fmt.Errorf("%w %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if err := f.apply(&cfg); err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, f *file) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeTOML(data []byte, f *file) error {
	md, err := toml.Decode(string(data), f)
	if err != nil {
		var parseErr toml.ParseError
		if errors.As(err, &parseErr) {
			return errors.New(parseErr.ErrorWithPosition())
		}
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	return nil
}

func (f file) apply(cfg *Config) error {
	if f.Backend != nil {
		cfg.Backend = strings.TrimSpace(*f.Backend)
	}
	if f.LogLevel != nil {
		if err := cfg.LogLevel.UnmarshalText([]byte(*f.LogLevel)); err != nil {
			return fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
		}
	}
	if f.Timer != nil {
		d, err := time.ParseDuration(*f.Timer)
		if err != nil {
			return fmt.Errorf("%w: timer: %v", ErrInvalid, err)
		}
		cfg.Timer = d
	}
	if f.MinRead != nil {
		cfg.MinRead = *f.MinRead
	}
	if f.Padding != nil {
		cfg.Padding = *f.Padding
	}
	return nil
}

// ApplyEnv overrides cfg from PUMP_BACKEND, PUMP_LOG_LEVEL, PUMP_TIMER and
// PUMP_MIN_READ as reported by lookup, usually os.LookupEnv.
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var f file
	if v, ok := lookup("PUMP_BACKEND"); ok {
		f.Backend = &v
	}
	if v, ok := lookup("PUMP_LOG_LEVEL"); ok {
		f.LogLevel = &v
	}
	if v, ok := lookup("PUMP_TIMER"); ok {
		f.Timer = &v
	}
	if v, ok := lookup("PUMP_MIN_READ"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: PUMP_MIN_READ: %v", ErrInvalid, err)
		}
		f.MinRead = &n
	}
	if err := f.apply(cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

// Validate reports the first setting the demo cannot run with.
func (cfg Config) Validate() error {
	switch {
	case cfg.Timer < 0:
		return fmt.Errorf("%w: negative timer %s", ErrInvalid, cfg.Timer)
	case cfg.MinRead <= 0:
		return fmt.Errorf("%w: min_read must be positive, got %d", ErrInvalid, cfg.MinRead)
	case cfg.Padding == "":
		return fmt.Errorf("%w: empty padding", ErrInvalid)
	}
	return nil
}
