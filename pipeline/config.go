// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"errors"
	"fmt"
	"time"

	"code.hybscloud.com/daq"
)

// Config holds the stage counts, queue sizes and error policy of a Pipeline.
type Config struct {
	// Workers is the number of processor goroutines.
	Workers int
	// UnpackQueueSize is the capacity of each reader -> processor queue.
	UnpackQueueSize int
	// RetireQueueSize is the capacity of each processor -> retire queue.
	RetireQueueSize int
	// OpenQueueSize is the capacity of the open-file queue.
	OpenQueueSize int
	// LookAhead bounds the files opened but not yet closed.
	LookAhead int
	// ArenaBlockSize is the first block size of every stage arena.
	ArenaBlockSize int

	// IOErrorFatal stops the pipeline on open, read or close failures
	// instead of skipping the file.
	IOErrorFatal bool
	// ReprintDamaged prints damaged events with their data at retirement.
	ReprintDamaged bool

	PrintEvents        bool
	PrintEventData     bool
	PrintBufferHeaders bool

	// StatusInterval is the period of the status hook, 0 disables it.
	StatusInterval time.Duration
}

// DefaultConfig returns the configuration used when fields are left zero.
func DefaultConfig() Config {
	return Config{
		Workers:         2,
		UnpackQueueSize: 8192,
		RetireQueueSize: 8192,
		OpenQueueSize:   4,
		LookAhead:       2,
		ArenaBlockSize:  1 << 20,
		StatusInterval:  time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.UnpackQueueSize == 0 {
		c.UnpackQueueSize = d.UnpackQueueSize
	}
	if c.RetireQueueSize == 0 {
		c.RetireQueueSize = d.RetireQueueSize
	}
	if c.OpenQueueSize == 0 {
		c.OpenQueueSize = d.OpenQueueSize
	}
	if c.LookAhead == 0 {
		c.LookAhead = d.LookAhead
	}
	if c.ArenaBlockSize == 0 {
		c.ArenaBlockSize = d.ArenaBlockSize
	}
	return c
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers: got %d, want >= 1", c.Workers))
	}
	for _, q := range []struct {
		name string
		n    int
	}{
		{"unpack queue size", c.UnpackQueueSize},
		{"retire queue size", c.RetireQueueSize},
		{"open queue size", c.OpenQueueSize},
	} {
		if q.n < 2 || !daq.IsPow2(q.n) {
			errs = append(errs, fmt.Errorf("%s: got %d, want a power of 2 >= 2", q.name, q.n))
		}
	}
	if c.LookAhead < 1 {
		errs = append(errs, fmt.Errorf("look-ahead: got %d, want >= 1", c.LookAhead))
	}
	if c.ArenaBlockSize < 0 {
		errs = append(errs, fmt.Errorf("arena block size: got %d, want >= 0", c.ArenaBlockSize))
	}
	if c.StatusInterval < 0 {
		errs = append(errs, fmt.Errorf("status interval: got %v, want >= 0", c.StatusInterval))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("pipeline: invalid config: %w", errors.Join(errs...))
}
