// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

// Source yields the records of one opened input.
//
// Next runs on the reader goroutine. Memory backing the returned Event must
// be allocated through wc (wc.Alloc or arena.NewRelease appended with
// wc.Append) so that it is reclaimed only after the event retires. Next
// returns io.EOF at the end of the input, an error wrapping ErrCorruptRecord
// for a recoverable bad record, ErrStopped when a wait inside Next was
// interrupted, and any other error for an I/O failure that ends the file.
// Before a read that can block for an unbounded time, such as on a pipe or
// a socket with nothing buffered, Next calls wc.FlushOutputs so that the
// records already extracted can retire while it waits.
//
// Close runs on the retirement goroutine after every item of the source has
// been retired.
type Source interface {
	Next(wc *WorkerContext) (Event, error)
	Close() error
	Name() string
}

// Opener opens the named input. It runs on the retirement goroutine, ahead
// of the reader.
type Opener interface {
	Open(name string) (Source, error)
}

// Unpacker decodes an event on a processor goroutine.
//
// A returned error marks the item Damaged; it never stops the pipeline.
// Diagnostics written with wc.Messagef appear in retirement order.
type Unpacker interface {
	Unpack(wc *WorkerContext, ev Event) error
}

// Printer renders an event at retirement. flags carries PrintEventData,
// PrintBufferHeaders and Damaged as applicable.
type Printer interface {
	Print(wc *WorkerContext, ev Event, flags Flags) error
}

// Sink is flushed when a Flush item retires.
type Sink interface {
	Flush() error
}

// OpenFunc adapts a function to Opener.
type OpenFunc func(name string) (Source, error)

// Open calls f(name).
func (f OpenFunc) Open(name string) (Source, error) {
	return f(name)
}

// UnpackFunc adapts a function to Unpacker.
type UnpackFunc func(wc *WorkerContext, ev Event) error

// Unpack calls f(wc, ev).
func (f UnpackFunc) Unpack(wc *WorkerContext, ev Event) error {
	return f(wc, ev)
}

// PrintFunc adapts a function to Printer.
type PrintFunc func(wc *WorkerContext, ev Event, flags Flags) error

// Print calls f(wc, ev, flags).
func (f PrintFunc) Print(wc *WorkerContext, ev Event, flags Flags) error {
	return f(wc, ev, flags)
}

// FlushFunc adapts a function to Sink.
type FlushFunc func() error

// Flush calls f.
func (f FlushFunc) Flush() error {
	return f()
}
