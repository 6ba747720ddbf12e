// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package logging builds the structured logger used by the daq commands.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// ParseLevel maps a syslog keyword to a logiface level. Both the short
// keywords ("err", "warning") and the common long forms ("error", "warn")
// are accepted, case-insensitively.
func ParseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "off", "none":
		return logiface.LevelDisabled, nil
	case "emerg", "emergency", "panic":
		return logiface.LevelEmergency, nil
	case "alert":
		return logiface.LevelAlert, nil
	case "crit", "critical":
		return logiface.LevelCritical, nil
	case "err", "error":
		return logiface.LevelError, nil
	case "warning", "warn":
		return logiface.LevelWarning, nil
	case "notice":
		return logiface.LevelNotice, nil
	case "info", "informational", "":
		return logiface.LevelInformational, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "trace":
		return logiface.LevelTrace, nil
	}
	return logiface.LevelDisabled, fmt.Errorf("logging: unknown level %q", s)
}

// Option tunes New.
type Option func(*options)

type options struct {
	timeField string
	hasTime   bool
}

// WithoutTime drops the timestamp field, for reproducible output.
func WithoutTime() Option {
	return func(o *options) {
		o.timeField = ""
		o.hasTime = true
	}
}

// New returns a JSON line logger writing to w at the given level.
func New(w io.Writer, level string, opts ...Option) (*logiface.Logger[logiface.Event], error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	sopts := []stumpy.Option{stumpy.WithWriter(w)}
	if o.hasTime {
		sopts = append(sopts, stumpy.WithTimeField(o.timeField))
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(sopts...),
		stumpy.L.WithLevel(lvl),
	).Logger(), nil
}
