// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptRecord marks a bad record the source could skip. The reader
	// turns it into a Message item and continues with the file.
	ErrCorruptRecord = errors.New("pipeline: corrupt record")

	// ErrStopped is returned from waits interrupted by pipeline shutdown.
	ErrStopped = errors.New("pipeline: stopped")

	// ErrNoInput is returned by Run when the file list is empty or no file
	// could be opened.
	ErrNoInput = errors.New("pipeline: no input")
)

// DecodeError is a per-event unpack failure.
type DecodeError struct {
	Seq uint64 // Event.Seq of the failing event
	Err error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode event %d: %v", e.Seq, e.Err)
}

// Unwrap returns the cause.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FileError is a per-file I/O failure.
type FileError struct {
	Op   string // "open", "read" or "close"
	Name string
	Err  error
}

// Error implements error.
func (e *FileError) Error() string {
	return fmt.Sprintf("pipeline: %s %s: %v", e.Op, e.Name, e.Err)
}

// Unwrap returns the cause.
func (e *FileError) Unwrap() error {
	return e.Err
}

// asDecodeError wraps err for ev unless it already is a DecodeError.
func asDecodeError(ev Event, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	var seq uint64
	if ev != nil {
		seq = ev.Seq()
	}
	return &DecodeError{Seq: seq, Err: err}
}
