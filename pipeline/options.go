// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"io"
	"time"

	"github.com/joeycumines/logiface"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger. The default logs nothing.
func WithLogger(l *logiface.Logger[logiface.Event]) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// WithPrinter sets the Printer used for PrintEvent items and damaged event
// reprints.
func WithPrinter(pr Printer) Option {
	return func(p *Pipeline) {
		p.printer = pr
	}
}

// WithSink sets the target flushed when a Flush item retires.
func WithSink(s Sink) Option {
	return func(p *Pipeline) {
		p.sink = s
	}
}

// WithOutput sets where buffered diagnostics are written at retirement.
// The default is os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) {
		p.out = w
	}
}

// WithStatus registers fn to receive a Snapshot every StatusInterval.
// fn runs on the retirement goroutine and must not block.
func WithStatus(fn func(Snapshot)) Option {
	return func(p *Pipeline) {
		p.status = fn
	}
}

// WithDamagedLogRates limits damaged-event log lines per source, as
// catrate rates (window to max events).
func WithDamagedLogRates(rates map[time.Duration]int) Option {
	return func(p *Pipeline) {
		p.damagedRates = rates
	}
}
