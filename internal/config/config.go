// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads daqunpack settings from a TOML file and command line
// flags. Flags override the file, the file overrides the defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"code.hybscloud.com/daq/internal/logging"
	"code.hybscloud.com/daq/pipeline"
	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

// Config is the complete command configuration.
type Config struct {
	Workers         int `toml:"workers"`
	UnpackQueueSize int `toml:"unpack_queue_size"`
	RetireQueueSize int `toml:"retire_queue_size"`
	OpenQueueSize   int `toml:"open_queue_size"`
	LookAhead       int `toml:"look_ahead"`
	ArenaBlockSize  int `toml:"arena_block_size"`

	// SourceWindow bounds the bytes of one file in flight, 0 disables it.
	SourceWindow int64 `toml:"source_window"`
	MaxRecord    int   `toml:"max_record"`

	IOErrorFatal       bool `toml:"io_error_fatal"`
	ReprintDamaged     bool `toml:"reprint_damaged"`
	PrintEvents        bool `toml:"print_events"`
	PrintEventData     bool `toml:"print_event_data"`
	PrintBufferHeaders bool `toml:"print_buffer_headers"`

	StatusInterval time.Duration `toml:"status_interval"`
	LogLevel       string        `toml:"log_level"`
	MetricsAddr    string        `toml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	pc := pipeline.DefaultConfig()
	return Config{
		Workers:         pc.Workers,
		UnpackQueueSize: pc.UnpackQueueSize,
		RetireQueueSize: pc.RetireQueueSize,
		OpenQueueSize:   pc.OpenQueueSize,
		LookAhead:       pc.LookAhead,
		ArenaBlockSize:  pc.ArenaBlockSize,
		SourceWindow:    64 << 20,
		StatusInterval:  pc.StatusInterval,
		LogLevel:        "info",
	}
}

// Load reads a TOML file over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("config: %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Bind registers one flag per field, defaulting to the current values.
func (c *Config) Bind(fs *pflag.FlagSet) {
	fs.IntVarP(&c.Workers, "workers", "j", c.Workers, "number of unpacking workers")
	fs.IntVar(&c.UnpackQueueSize, "unpack-queue", c.UnpackQueueSize, "capacity of each reader to worker queue (power of 2)")
	fs.IntVar(&c.RetireQueueSize, "retire-queue", c.RetireQueueSize, "capacity of each worker to retire queue (power of 2)")
	fs.IntVar(&c.OpenQueueSize, "open-queue", c.OpenQueueSize, "capacity of the open-file queue (power of 2)")
	fs.IntVar(&c.LookAhead, "look-ahead", c.LookAhead, "files opened ahead of the one being retired")
	fs.IntVar(&c.ArenaBlockSize, "arena-block", c.ArenaBlockSize, "arena block size in bytes")
	fs.Int64Var(&c.SourceWindow, "window", c.SourceWindow, "bytes of one file in flight, 0 for unbounded")
	fs.IntVar(&c.MaxRecord, "max-record", c.MaxRecord, "largest accepted record payload, 0 for the format default")
	fs.BoolVar(&c.IOErrorFatal, "io-error-fatal", c.IOErrorFatal, "stop on the first open or read error")
	fs.BoolVar(&c.ReprintDamaged, "reprint-damaged", c.ReprintDamaged, "print damaged events with their data")
	fs.BoolVarP(&c.PrintEvents, "print", "p", c.PrintEvents, "print every event")
	fs.BoolVarP(&c.PrintEventData, "data", "d", c.PrintEventData, "print event data")
	fs.BoolVar(&c.PrintBufferHeaders, "headers", c.PrintBufferHeaders, "print record headers")
	fs.DurationVar(&c.StatusInterval, "status", c.StatusInterval, "status log interval, 0 disables it")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warning, err, off)")
	fs.StringVar(&c.MetricsAddr, "metrics", c.MetricsAddr, "serve Prometheus metrics on this address")
}

// Parse builds the configuration for a command line: the file named by
// --config (if any) is loaded first, then the remaining flags are applied.
// It returns the positional arguments. pflag.ErrHelp is returned as is.
func Parse(name string, args []string, stderr io.Writer) (Config, []string, error) {
	pre := pflag.NewFlagSet(name, pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	pre.Usage = func() {}
	path := pre.StringP("config", "c", "", "")
	pre.BoolP("help", "h", false, "")
	_ = pre.Parse(args)

	cfg := Default()
	if *path != "" {
		var err error
		if cfg, err = Load(*path); err != nil {
			return Config{}, nil, err
		}
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringP("config", "c", *path, "TOML configuration file")
	cfg.Bind(fs)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: %s [flags] file...\n", name)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, nil, err
	}
	return cfg, fs.Args(), nil
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if err := c.Pipeline().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.SourceWindow < 0 {
		errs = append(errs, fmt.Errorf("window: got %d, want >= 0", c.SourceWindow))
	}
	if c.MaxRecord < 0 {
		errs = append(errs, fmt.Errorf("max record: got %d, want >= 0", c.MaxRecord))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Pipeline returns the pipeline part of the configuration.
func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Workers:            c.Workers,
		UnpackQueueSize:    c.UnpackQueueSize,
		RetireQueueSize:    c.RetireQueueSize,
		OpenQueueSize:      c.OpenQueueSize,
		LookAhead:          c.LookAhead,
		ArenaBlockSize:     c.ArenaBlockSize,
		IOErrorFatal:       c.IOErrorFatal,
		ReprintDamaged:     c.ReprintDamaged,
		PrintEvents:        c.PrintEvents,
		PrintEventData:     c.PrintEventData,
		PrintBufferHeaders: c.PrintBufferHeaders,
		StatusInterval:     c.StatusInterval,
	}
}
