// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"io"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/daq/arena"
	"code.hybscloud.com/daq/wake"
	"github.com/joeycumines/logiface"
)

// WorkerContext is the per-goroutine state of a stage.
//
// It is created once per stage goroutine and passed to every collaborator
// call made from it. Nothing in it may be used from another goroutine,
// except Gate.Wakeup.
type WorkerContext struct {
	// ID is the processor index, -1 for the reader and -2 for retirement.
	ID    int
	Arena *arena.Arena
	Gate  *wake.Gate

	log   *logiface.Logger[logiface.Event]
	chain *arena.Chain
	out   io.Writer
	stop  *atomix.Bool
	flush func()
}

const (
	readerID = -1
	retireID = -2
)

// NewWorkerContext creates a standalone context, for driving a Source,
// Unpacker or Printer outside a Pipeline. out receives unattached messages.
func NewWorkerContext(id int, a *arena.Arena, g *wake.Gate, out io.Writer) *WorkerContext {
	return &WorkerContext{ID: id, Arena: a, Gate: g, out: out, stop: new(atomix.Bool)}
}

// Name returns the stage name.
func (c *WorkerContext) Name() string {
	switch c.ID {
	case readerID:
		return "reader"
	case retireID:
		return "retire"
	default:
		return fmt.Sprintf("processor-%d", c.ID)
	}
}

// Logger returns the stage logger. It may be nil, which logs nothing.
func (c *WorkerContext) Logger() *logiface.Logger[logiface.Event] {
	return c.log
}

// Attachment is the single-owner handle for a chain attached to a context.
// Allocations made while it is held are appended to that chain.
type Attachment struct {
	wc    *WorkerContext
	chain *arena.Chain
}

// Attach makes c the chain that receives this context's reclaim items until
// the returned Attachment is detached. Panics if a chain is already attached.
func (c *WorkerContext) Attach(chain *arena.Chain) Attachment {
	if c.chain != nil {
		panic("pipeline: reclaim chain already attached")
	}
	if chain == nil {
		panic("pipeline: attach of nil chain")
	}
	c.chain = chain
	return Attachment{wc: c, chain: chain}
}

// Detach releases the attachment. Panics if it is not the current one.
func (a Attachment) Detach() {
	if a.wc == nil || a.wc.chain != a.chain {
		panic("pipeline: detach of a chain that is not attached")
	}
	a.wc.chain = nil
}

// Attached reports whether a chain is attached.
func (c *WorkerContext) Attached() bool {
	return c.chain != nil
}

// Alloc returns n arena bytes reclaimed with the attached chain.
// Panics if no chain is attached.
func (c *WorkerContext) Alloc(n int) []byte {
	if c.chain == nil {
		panic("pipeline: Alloc without attached chain")
	}
	return c.Arena.AllocInto(c.chain, n)
}

// Append links r onto the attached chain.
// Panics if no chain is attached.
func (c *WorkerContext) Append(r *arena.Reclaim) {
	if c.chain == nil {
		panic("pipeline: Append without attached chain")
	}
	c.chain.Append(r)
}

// Messagef emits a diagnostic line.
//
// With a chain attached the text is buffered in the arena and written when
// the item retires, so diagnostics come out in retirement order. Otherwise
// it is written directly.
func (c *WorkerContext) Messagef(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if c.chain != nil {
		c.Arena.Message(c.chain, text)
		return
	}
	if c.out != nil {
		_, _ = io.WriteString(c.out, text)
	}
}

// FlushOutputs publishes every item this stage has inserted into its output
// queues, even below the wakeup watermark. A Source calls it before a read
// that may block in the operating system.
func (c *WorkerContext) FlushOutputs() {
	if c.flush != nil {
		c.flush()
	}
}

// Stopped reports whether the pipeline is shutting down.
func (c *WorkerContext) Stopped() bool {
	return c.stop.LoadAcquire()
}

// Await parks on c.Gate until request reports readiness.
//
// request must check its condition and, when it does not hold, register
// the gate so that whoever changes the condition wakes it; it returns true
// when the condition holds (see BoundedQueue.RequestInsert). Before each
// park the stage flushes its output queues. Returns ErrStopped if the
// pipeline shuts down first.
func (c *WorkerContext) Await(request func(g *wake.Gate) bool) error {
	for {
		if request(c.Gate) {
			return nil
		}
		c.FlushOutputs()
		if c.stop.LoadAcquire() {
			return ErrStopped
		}
		c.Gate.Block(wake.Forever)
	}
}
