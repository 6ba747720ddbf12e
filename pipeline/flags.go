// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"strconv"
	"strings"
)

// Flags describe what the stages do with an Item.
type Flags uint32

const (
	// Process asks a processor to unpack the event.
	Process Flags = 1 << iota
	// Damaged marks an event whose unpacking failed.
	Damaged
	// Message marks an item that only carries a buffered diagnostic.
	Message
	// Flush drains every queue and flushes the Sink when retired.
	Flush
	// Done terminates the pipeline once retired.
	Done
	// FileClose closes Item.Source when retired.
	FileClose
	// PrintEvent prints the event at retirement.
	PrintEvent
	// PrintEventData also prints the payload.
	PrintEventData
	// PrintBufferHeaders prints record framing.
	PrintBufferHeaders

	flagsEnd
)

var flagNames = [...]string{
	"PROCESS",
	"DAMAGED",
	"MESSAGE",
	"FLUSH",
	"DONE",
	"FILE_CLOSE",
	"PRINT_EVENT",
	"PRINT_EVENT_DATA",
	"PRINT_BUFFER_HEADERS",
}

// String returns the set flags joined by '|', for example "PROCESS|PRINT_EVENT".
func (f Flags) String() string {
	if f == 0 {
		return "0"
	}
	var sb strings.Builder
	for i, name := range flagNames {
		if f&(1<<i) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(name)
	}
	if rest := f &^ (flagsEnd - 1); rest != 0 {
		if sb.Len() > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString("0x")
		sb.WriteString(strconv.FormatUint(uint64(rest), 16))
	}
	return sb.String()
}
