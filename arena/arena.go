// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package arena provides a per-goroutine bump allocator whose blocks are
// reused only after a downstream goroutine has reclaimed every byte handed
// out from them.
//
// An Arena is owned by one goroutine. Every allocation returns a [Reclaim]
// item that must be threaded onto exactly one [Chain]. The chain travels
// with a pipeline item and is executed once, by the retirement goroutine,
// which credits the bytes back. Only then may the owner hand the block out
// again.
package arena

import (
	"code.hybscloud.com/atomix"
)

// DefaultBlockSize is the size of the first block when New is given 0.
const DefaultBlockSize = 1 << 20

type block struct {
	buf       []byte
	next      *block
	used      uint64        // Cumulative bytes handed out (owner only)
	_         pad
	reclaimed atomix.Uint64 // Cumulative bytes credited back (retire goroutine)
}

// free reports whether every byte ever handed out from b was reclaimed.
func (b *block) free() bool {
	return b.reclaimed.LoadAcquire() >= b.used
}

// Arena is a growable circular list of byte blocks.
//
// Allocation bumps a cursor through the current block. When the block is
// exhausted the unused tail is skipped (wasted) and allocation moves to the
// next block in the ring, but only if that block is fully reclaimed.
// Otherwise a new block, about 12.5% larger than the last one created, is
// linked in between.
//
// Alloc and its helpers are owner-only. Reclaim execution and the statistics
// accessors may run on any goroutine.
type Arena struct {
	cur       *block
	off       int
	lastSize  int
	blocks    int
	wasted    uint64
	_         pad
	allocated atomix.Uint64
	_         pad
	reclaimed atomix.Uint64
}

// New creates an arena whose first block holds blockSize bytes.
func New(blockSize int) *Arena {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	b := &block{buf: make([]byte, blockSize)}
	b.next = b
	return &Arena{cur: b, lastSize: blockSize, blocks: 1}
}

// Alloc hands out n bytes from the current block.
//
// The returned Reclaim credits exactly those bytes; the caller must append
// it to one Chain. The slice must not be used after the chain runs.
func (a *Arena) Alloc(n int) ([]byte, *Reclaim) {
	buf := a.take(n)
	return buf, &Reclaim{kind: KindBytes, arena: a, blk: a.cur, n: n}
}

// AllocInto allocates n bytes and appends their Reclaim to c.
func (a *Arena) AllocInto(c *Chain, n int) []byte {
	buf, r := a.Alloc(n)
	c.Append(r)
	return buf
}

// Message copies text into the arena and appends a Reclaim to c that writes
// it to the retirement output before crediting the bytes.
func (a *Arena) Message(c *Chain, text string) {
	buf := a.take(len(text))
	copy(buf, text)
	c.Append(&Reclaim{kind: KindMessage, arena: a, blk: a.cur, n: len(text), msg: buf})
}

func (a *Arena) take(n int) []byte {
	if n < 0 {
		panic("arena: negative allocation")
	}
	if len(a.cur.buf)-a.off < n {
		a.advance(n)
	}
	buf := a.cur.buf[a.off : a.off+n : a.off+n]
	a.off += n
	a.cur.used += uint64(n)
	a.allocated.Add(uint64(n))
	return buf
}

// advance makes a block with at least n free bytes current.
func (a *Arena) advance(n int) {
	a.wasted += uint64(len(a.cur.buf) - a.off)

	next := a.cur.next
	if len(next.buf) >= n && next.free() {
		a.cur = next
		a.off = 0
		return
	}

	size := a.lastSize + a.lastSize/8
	if size < n {
		size = n
	}
	b := &block{buf: make([]byte, size), next: next}
	a.cur.next = b
	a.cur = b
	a.off = 0
	a.lastSize = size
	a.blocks++
}

// reclaim credits n bytes of blk. Called while a Chain runs.
func (a *Arena) reclaim(blk *block, n int) {
	blk.reclaimed.AddAcqRel(uint64(n))
	a.reclaimed.Add(uint64(n))
}

// Allocated returns the total bytes ever handed out.
func (a *Arena) Allocated() uint64 {
	return a.allocated.Load()
}

// Reclaimed returns the total bytes ever credited back.
func (a *Arena) Reclaimed() uint64 {
	return a.reclaimed.Load()
}

// Outstanding returns the bytes handed out and not yet reclaimed.
func (a *Arena) Outstanding() uint64 {
	r := a.reclaimed.Load()
	return a.allocated.Load() - r
}

// Blocks returns the number of blocks in the ring (owner only).
func (a *Arena) Blocks() int {
	return a.blocks
}

// Wasted returns the bytes skipped at block ends (owner only).
func (a *Arena) Wasted() uint64 {
	return a.wasted
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
