// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recordfile

import (
	"encoding/hex"
	"fmt"
	"strings"

	"code.hybscloud.com/daq/pipeline"
)

// Unpacker splits record payloads into subevents.
type Unpacker struct {
	// Known reports whether a subevent id is expected. Unknown ids produce
	// a diagnostic, not a failure. Nil accepts every id.
	Known func(id uint16) bool
}

// Unpack implements pipeline.Unpacker.
func (u Unpacker) Unpack(wc *pipeline.WorkerContext, ev pipeline.Event) error {
	rec, ok := ev.(*Record)
	if !ok {
		return fmt.Errorf("recordfile: unexpected event type %T", ev)
	}
	subs, err := ParseSubevents(rec.Payload)
	if err != nil {
		return &pipeline.DecodeError{Seq: rec.Seq(), Err: err}
	}
	if u.Known != nil {
		for _, s := range subs {
			if !u.Known(s.ID) {
				wc.Messagef("record %d: unknown subevent id %#04x\n", rec.Seq(), s.ID)
			}
		}
	}
	rec.Subevents = subs
	return nil
}

// Printer renders records as text through the ordered diagnostic stream.
type Printer struct{}

// Print implements pipeline.Printer.
func (Printer) Print(wc *pipeline.WorkerContext, ev pipeline.Event, flags pipeline.Flags) error {
	rec, ok := ev.(*Record)
	if !ok {
		return fmt.Errorf("recordfile: unexpected event type %T", ev)
	}
	var sb strings.Builder
	if flags&pipeline.PrintBufferHeaders != 0 {
		fmt.Fprintf(&sb, "record offset=%d length=%d sum=%016x\n", rec.Offset, rec.Header.Length, rec.Header.Sum)
	}
	fmt.Fprintf(&sb, "event %d size=%d subevents=%d", rec.Seq(), len(rec.Payload), len(rec.Subevents))
	if flags&pipeline.Damaged != 0 {
		sb.WriteString(" DAMAGED")
	}
	sb.WriteByte('\n')
	if flags&pipeline.PrintEventData != 0 {
		if len(rec.Subevents) == 0 && len(rec.Payload) > 0 {
			sb.WriteString(hex.Dump(rec.Payload))
		}
		for _, s := range rec.Subevents {
			fmt.Fprintf(&sb, "  subevent %#04x length=%d\n", s.ID, len(s.Data))
			if len(s.Data) > 0 {
				sb.WriteString(hex.Dump(s.Data))
			}
		}
	}
	wc.Messagef("%s", sb.String())
	return nil
}
