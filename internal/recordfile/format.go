// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package recordfile implements a framed record file format and the
// pipeline collaborators for it: a Source and Opener, an Unpacker that
// splits records into subevents, and a text Printer.
//
// A file is a sequence of records. Each record is a 24 byte little-endian
// header followed by the payload:
//
//	magic  uint32  "DAQ1"
//	length uint32  payload bytes
//	seq    uint64  record number, starting at 1
//	sum    uint64  xxhash64 of the payload
//
// A payload is a sequence of subevents, each a uint16 id and a uint16
// length followed by that many bytes.
package recordfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

const (
	// HeaderSize is the size of a record header.
	HeaderSize = 24
	// Magic starts every record header.
	Magic uint32 = 'D' | 'A'<<8 | 'Q'<<16 | '1'<<24
	// DefaultMaxRecord bounds the payload length accepted by a Source.
	DefaultMaxRecord = 16 << 20

	subeventHeaderSize = 4
)

var (
	// ErrBadMagic reports a header that does not start with Magic. The
	// stream cannot be resynchronised after it.
	ErrBadMagic = errors.New("recordfile: bad record magic")
	// ErrTooLarge reports a payload length above the source limit.
	ErrTooLarge = errors.New("recordfile: record too large")
	// ErrTruncatedSubevent reports a subevent running past its record.
	ErrTruncatedSubevent = errors.New("recordfile: truncated subevent")
)

// Header is a decoded record header.
type Header struct {
	Length uint32
	Seq    uint64
	Sum    uint64
}

// ParseHeader decodes b[:HeaderSize].
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, io.ErrUnexpectedEOF
	}
	if m := binary.LittleEndian.Uint32(b[0:4]); m != Magic {
		return Header{}, fmt.Errorf("%w: %#08x", ErrBadMagic, m)
	}
	return Header{
		Length: binary.LittleEndian.Uint32(b[4:8]),
		Seq:    binary.LittleEndian.Uint64(b[8:16]),
		Sum:    binary.LittleEndian.Uint64(b[16:24]),
	}, nil
}

// AppendHeader appends the encoding of h to dst.
func AppendHeader(dst []byte, h Header) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, Magic)
	dst = binary.LittleEndian.AppendUint32(dst, h.Length)
	dst = binary.LittleEndian.AppendUint64(dst, h.Seq)
	return binary.LittleEndian.AppendUint64(dst, h.Sum)
}

// Subevent is one detector block of a record payload.
type Subevent struct {
	ID   uint16
	Data []byte // aliases the record payload
}

// AppendSubevent appends one encoded subevent to dst.
// Panics if data is longer than 65535 bytes.
func AppendSubevent(dst []byte, id uint16, data []byte) []byte {
	if len(data) > 0xffff {
		panic("recordfile: subevent too large")
	}
	dst = binary.LittleEndian.AppendUint16(dst, id)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(data)))
	return append(dst, data...)
}

// ParseSubevents splits a payload into subevents without copying.
func ParseSubevents(payload []byte) ([]Subevent, error) {
	var subs []Subevent
	for off := 0; off < len(payload); {
		if len(payload)-off < subeventHeaderSize {
			return subs, fmt.Errorf("%w: header at %d", ErrTruncatedSubevent, off)
		}
		id := binary.LittleEndian.Uint16(payload[off:])
		n := int(binary.LittleEndian.Uint16(payload[off+2:]))
		off += subeventHeaderSize
		if len(payload)-off < n {
			return subs, fmt.Errorf("%w: id %#04x wants %d bytes, %d left", ErrTruncatedSubevent, id, n, len(payload)-off)
		}
		subs = append(subs, Subevent{ID: id, Data: payload[off : off+n : off+n]})
		off += n
	}
	return subs, nil
}

// Writer encodes records.
type Writer struct {
	w   io.Writer
	seq uint64
	buf []byte
}

// NewWriter returns a Writer numbering records from 1.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write frames payload as the next record and returns its sequence number.
func (w *Writer) Write(payload []byte) (uint64, error) {
	if uint64(len(payload)) > 0xffffffff {
		return 0, ErrTooLarge
	}
	w.seq++
	w.buf = AppendHeader(w.buf[:0], Header{
		Length: uint32(len(payload)),
		Seq:    w.seq,
		Sum:    xxhash.Sum64(payload),
	})
	w.buf = append(w.buf, payload...)
	if _, err := w.w.Write(w.buf); err != nil {
		return 0, err
	}
	return w.seq, nil
}
