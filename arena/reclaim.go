// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package arena

import (
	"errors"
	"fmt"
	"io"
)

// Kind tags what a Reclaim item does when executed.
type Kind uint8

const (
	// KindBytes credits arena bytes.
	KindBytes Kind = 1 + iota
	// KindRelease releases a byte range of an upstream resource.
	KindRelease
	// KindMessage writes a buffered diagnostic, then credits its bytes.
	KindMessage

	kindSpent
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBytes:
		return "bytes"
	case KindRelease:
		return "release"
	case KindMessage:
		return "message"
	case kindSpent:
		return "spent"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Releaser owns a byte range that a Reclaim item gives back, for example a
// file buffer window the reader is waiting on.
//
// Release runs on the retirement goroutine.
type Releaser interface {
	Release(off, n int64)
}

// Reclaim is a deferred action threaded onto a Chain.
type Reclaim struct {
	next   *Reclaim
	kind   Kind
	linked bool

	arena *Arena
	blk   *block
	n     int
	msg   []byte

	rel Releaser
	off int64
	len int64
}

// NewRelease returns a Reclaim that calls r.Release(off, n) when executed.
func NewRelease(r Releaser, off, n int64) *Reclaim {
	if r == nil {
		panic("arena: nil Releaser")
	}
	return &Reclaim{kind: KindRelease, rel: r, off: off, len: n}
}

// Kind returns the item's kind.
func (r *Reclaim) Kind() Kind {
	return r.kind
}

// Size returns the arena bytes the item credits, 0 for releases.
func (r *Reclaim) Size() int {
	return r.n
}

func (r *Reclaim) run(w io.Writer) (err error) {
	switch r.kind {
	case KindBytes:
		r.arena.reclaim(r.blk, r.n)
	case KindMessage:
		if w != nil {
			_, err = w.Write(r.msg)
		}
		r.msg = nil
		r.arena.reclaim(r.blk, r.n)
	case KindRelease:
		r.rel.Release(r.off, r.len)
		r.rel = nil
	case kindSpent:
		panic("arena: reclaim item executed twice")
	default:
		panic("arena: corrupt reclaim item")
	}
	r.kind = kindSpent
	r.arena, r.blk = nil, nil
	return err
}

// Chain is an intrusive singly linked list of Reclaim items.
//
// A Chain is owned by one goroutine at a time and moves with the value that
// embeds it. The zero value is an empty chain. Copying a Chain copies the
// ownership; the original must not be used afterwards.
type Chain struct {
	head *Reclaim
	tail *Reclaim
	n    int
}

// Append links r at the tail. Panics if r is already linked.
func (c *Chain) Append(r *Reclaim) {
	if r.linked {
		panic("arena: reclaim item already linked")
	}
	r.linked = true
	if c.tail == nil {
		c.head = r
	} else {
		c.tail.next = r
	}
	c.tail = r
	c.n++
}

// Splice moves every item of o to the tail of c, leaving o empty.
func (c *Chain) Splice(o *Chain) {
	if o == c || o.head == nil {
		return
	}
	if c.tail == nil {
		c.head = o.head
	} else {
		c.tail.next = o.head
	}
	c.tail = o.tail
	c.n += o.n
	*o = Chain{}
}

// Empty reports whether the chain holds no items.
func (c *Chain) Empty() bool {
	return c.head == nil
}

// Len returns the number of linked items.
func (c *Chain) Len() int {
	return c.n
}

// Run executes every item once, in append order, and empties the chain.
//
// Messages are written to w (nil discards them). All items run even if a
// write fails; the write errors are joined. Returns the number of executed
// items.
func (c *Chain) Run(w io.Writer) (int, error) {
	var errs []error
	count := 0
	for r := c.head; r != nil; {
		next := r.next
		r.next = nil
		if err := r.run(w); err != nil {
			errs = append(errs, err)
		}
		count++
		r = next
	}
	if count != c.n {
		panic("arena: reclaim chain corrupted")
	}
	*c = Chain{}
	return count, errors.Join(errs...)
}
