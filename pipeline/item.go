// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import "code.hybscloud.com/daq/arena"

// Event is an opaque event handle produced by a Source.
//
// Its memory usually lives in the reader's arena and stays valid until the
// reclaim chain of the Item carrying it has run.
type Event interface {
	// Seq is the position of the event within its source, starting at 1.
	Seq() uint64
}

// Item is the unit moved through the pipeline queues.
//
// Each stage owns the Item while it sits in that stage's slot. Reclaim
// collects the deferred actions for everything allocated on behalf of the
// item; only the retirement stage runs it.
type Item struct {
	Info    Flags
	Event   Event
	Source  Source
	Err     error // Decode failure when Info has Damaged
	Reclaim arena.Chain
}

// openItem is the slot type of the open-file queue.
type openItem struct {
	src  Source
	info Flags // Flush and/or Done travelling with the file
}
