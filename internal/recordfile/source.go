// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recordfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/daq/arena"
	"code.hybscloud.com/daq/pipeline"
	"code.hybscloud.com/daq/wake"
	"github.com/cespare/xxhash/v2"
)

// Record is the Event produced by Source.
type Record struct {
	Header  Header
	Offset  int64  // file offset of the header
	Payload []byte // arena memory, valid until the record retires

	// Subevents is filled in by Unpacker.
	Subevents []Subevent
}

// Seq returns the record number.
func (r *Record) Seq() uint64 {
	return r.Header.Seq
}

// Window bounds the bytes of a source that are extracted but not yet
// retired. The reader parks when a record would exceed the limit; the
// retirement goroutine releases ranges as records retire.
//
// A record larger than the whole window is admitted once nothing else is in
// flight.
type Window struct {
	limit    int64
	inflight atomix.Int64
	parked   atomix.Pointer[wake.Gate]
	waits    atomix.Uint64
}

// NewWindow creates a window of limit bytes.
func NewWindow(limit int64) *Window {
	return &Window{limit: limit}
}

// InFlight returns the bytes acquired and not yet released.
func (w *Window) InFlight() int64 {
	return w.inflight.Load()
}

// Waits returns how often the reader had to park on the window.
func (w *Window) Waits() uint64 {
	return w.waits.Load()
}

// Release implements arena.Releaser. It runs on the retirement goroutine.
func (w *Window) Release(off, n int64) {
	// Both sides RMW their own word before loading the other's; see acquire.
	w.inflight.AddAcqRel(-n)
	if g := w.parked.LoadAcquire(); g != nil && w.parked.CompareAndSwapAcqRel(g, nil) {
		g.Wakeup(wake.TokenWindow)
	}
}

func (w *Window) fits(n int64) bool {
	in := w.inflight.LoadAcquire()
	return in == 0 || in+n <= w.limit
}

// acquire reserves n bytes, parking wc until they fit.
func (w *Window) acquire(wc *pipeline.WorkerContext, n int64) error {
	if !w.fits(n) {
		w.waits.Add(1)
		err := wc.Await(func(g *wake.Gate) bool {
			if w.fits(n) {
				return true
			}
			w.parked.SwapAcqRel(g)
			// A release may have landed before it could see g.
			if w.fits(n) {
				w.parked.CompareAndSwapAcqRel(g, nil)
				return true
			}
			return false
		})
		if err != nil {
			return err
		}
	}
	w.inflight.AddAcqRel(n)
	return nil
}

// Source reads records from one stream.
type Source struct {
	name      string
	rc        io.ReadCloser
	r         *bufio.Reader
	off       int64
	win       *Window
	maxRecord int
}

// NewSource wraps rc. window bounds in-flight bytes (0 disables the window),
// maxRecord bounds payloads (0 selects DefaultMaxRecord).
func NewSource(name string, rc io.ReadCloser, window int64, maxRecord int) *Source {
	if maxRecord <= 0 {
		maxRecord = DefaultMaxRecord
	}
	s := &Source{
		name:      name,
		rc:        rc,
		r:         bufio.NewReaderSize(rc, 64<<10),
		maxRecord: maxRecord,
	}
	if window > 0 {
		s.win = NewWindow(window)
	}
	return s
}

// Name implements pipeline.Source.
func (s *Source) Name() string {
	return s.name
}

// Window returns the source window, nil when unbounded.
func (s *Source) Window() *Window {
	return s.win
}

// Next implements pipeline.Source. The payload is read into wc's arena.
func (s *Source) Next(wc *pipeline.WorkerContext) (pipeline.Event, error) {
	var hb [HeaderSize]byte
	if s.r.Buffered() == 0 {
		// The read below may block on the underlying reader.
		wc.FlushOutputs()
	}
	if _, err := io.ReadFull(s.r, hb[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("header at offset %d: %w", s.off, err)
	}
	h, err := ParseHeader(hb[:])
	if err != nil {
		return nil, fmt.Errorf("offset %d: %w", s.off, err)
	}
	if int64(h.Length) > int64(s.maxRecord) {
		return nil, fmt.Errorf("record %d at offset %d: %w: %d bytes", h.Seq, s.off, ErrTooLarge, h.Length)
	}

	off := s.off
	size := HeaderSize + int64(h.Length)
	if s.win != nil {
		if err := s.win.acquire(wc, size); err != nil {
			return nil, err
		}
		wc.Append(arena.NewRelease(s.win, off, size))
	}
	payload := wc.Alloc(int(h.Length))
	if _, err := io.ReadFull(s.r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("record %d payload: %w", h.Seq, err)
	}
	s.off += size

	if xxhash.Sum64(payload) != h.Sum {
		return nil, fmt.Errorf("record %d at offset %d: checksum mismatch: %w", h.Seq, off, pipeline.ErrCorruptRecord)
	}
	return &Record{Header: h, Offset: off, Payload: payload}, nil
}

// Close implements pipeline.Source.
func (s *Source) Close() error {
	return s.rc.Close()
}

// Opener opens record files from the file system.
type Opener struct {
	// Window bounds each source's in-flight bytes, 0 disables it.
	Window int64
	// MaxRecord bounds payload lengths, 0 selects DefaultMaxRecord.
	MaxRecord int
}

// Open implements pipeline.Opener.
func (o Opener) Open(name string) (pipeline.Source, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return NewSource(name, f, o.Window, o.MaxRecord), nil
}
