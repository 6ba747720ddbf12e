// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/daq/arena"
)

// stats are the pipeline counters, grouped by the stage that writes them.
type stats struct {
	// retire
	filesOpened  atomix.Uint64
	filesSkipped atomix.Uint64
	filesClosed  atomix.Uint64
	retired      atomix.Uint64
	damaged      atomix.Uint64
	flushes      atomix.Uint64
	_            pad
	// reader
	events   atomix.Uint64
	messages atomix.Uint64
	reroutes atomix.Uint64
	_        pad
	// processors
	processed atomix.Uint64
}

// Snapshot is a point-in-time copy of the pipeline counters.
type Snapshot struct {
	FilesOpened  uint64
	FilesSkipped uint64
	FilesClosed  uint64

	Events   uint64 // PROCESS items emitted by the reader
	Messages uint64 // MESSAGE items emitted by the reader
	Reroutes uint64 // routing decisions moved off a full queue

	Processed uint64 // Unpack calls
	Damaged   uint64
	Retired   uint64 // PROCESS, DAMAGED and MESSAGE items retired
	Flushes   uint64

	ArenaAllocated   uint64
	ArenaReclaimed   uint64
	ArenaOutstanding uint64

	Elapsed time.Duration
}

// InFlight returns the items emitted by the reader that have not retired.
// Sentinels and FILE_CLOSE items are not counted on either side.
func (s Snapshot) InFlight() uint64 {
	return s.Events + s.Messages - min(s.Events+s.Messages, s.Retired)
}

func (s *stats) snapshot(start time.Time, arenas []*arena.Arena) Snapshot {
	snap := Snapshot{
		FilesOpened:  s.filesOpened.Load(),
		FilesSkipped: s.filesSkipped.Load(),
		FilesClosed:  s.filesClosed.Load(),
		Events:       s.events.Load(),
		Messages:     s.messages.Load(),
		Reroutes:     s.reroutes.Load(),
		Processed:    s.processed.Load(),
		Damaged:      s.damaged.Load(),
		Retired:      s.retired.Load(),
		Flushes:      s.flushes.Load(),
	}
	for _, a := range arenas {
		r := a.Reclaimed()
		snap.ArenaAllocated += a.Allocated()
		snap.ArenaReclaimed += r
	}
	snap.ArenaOutstanding = snap.ArenaAllocated - min(snap.ArenaAllocated, snap.ArenaReclaimed)
	if !start.IsZero() {
		snap.Elapsed = time.Since(start)
	}
	return snap
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
