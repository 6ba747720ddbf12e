// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package daq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/daq/wake"
	"code.hybscloud.com/spin"
)

// spinTries bounds the busy wait before a goroutine parks on its gate.
const spinTries = 64

// BoundedQueue is a fixed-capacity single-producer single-consumer queue
// with a parking protocol for both ends.
//
// Based on Lamport's ring buffer with cached index optimization, extended
// with wakeup watermarks. Two monotonically increasing counters, avail
// (producer) and done (consumer), give fill = avail - done in [0, capacity].
//
// Slots are accessed in place: the producer fills *NextInsert() and then
// publishes it with Insert; the consumer reads *NextRemove() and then
// releases it with Remove. No copy happens between the two sides.
//
// Parking: a side that cannot proceed records a watermark on the other
// side's counter, publishes its gate, re-checks, and only then blocks. The
// other side checks the published gate exactly once per counter advance and
// wakes it when the watermark has been crossed. The margin between the
// watermark and the true full/empty point (hysteresis) batches wakeups; a
// producer that is about to park elsewhere calls FlushAvail so items below
// the watermark are never stranded.
//
// Ordering: both counters advance with an acquire-release add and gates are
// published with an acquire-release swap. Each side therefore writes its own
// word with a full read-modify-write before it loads the other side's word,
// so at least one of "publisher sees the gate" and "waiter sees the new
// counter" holds. The release half also orders slot writes (including the
// clearing in Remove) before the counter advance.
type BoundedQueue[T any] struct {
	_           pad
	avail       atomix.Uint64 // Producer publishes here
	_           pad
	cachedDone  uint64 // Producer's cached view of done
	_           pad
	done        atomix.Uint64 // Consumer releases here
	_           pad
	cachedAvail uint64 // Consumer's cached view of avail
	_           pad
	wakeupAvail atomix.Uint64             // Consumer wants avail >= this
	parkedAvail atomix.Pointer[wake.Gate] // Consumer waiting for data
	_           pad
	wakeupDone  atomix.Uint64             // Producer wants done >= this
	parkedDone  atomix.Pointer[wake.Gate] // Producer waiting for space
	_           pad
	buffer      []T
	mask        uint64
	size        uint64
	hysteresis  uint64
}

// NewBoundedQueue creates a queue with the given capacity.
// Capacity must be a power of 2 and at least 2.
func NewBoundedQueue[T any](capacity int, opts ...Option) *BoundedQueue[T] {
	b := New(capacity)
	for _, o := range opts {
		o(&b.opts)
	}
	return BuildBounded[T](b)
}

func newBoundedQueue[T any](o Options) *BoundedQueue[T] {
	n := uint64(o.capacity)
	h := uint64(o.hysteresis)
	if h == 0 {
		h = max(n/8, 1)
	}
	return &BoundedQueue[T]{
		buffer:     make([]T, n),
		mask:       n - 1,
		size:       n,
		hysteresis: h,
	}
}

// Cap returns the queue capacity.
func (q *BoundedQueue[T]) Cap() int {
	return int(q.size)
}

// Hysteresis returns the wakeup margin in slots.
func (q *BoundedQueue[T]) Hysteresis() int {
	return int(q.hysteresis)
}

// Fill returns the number of published, unreleased slots.
// Exact only when called from one of the two owning goroutines while the
// other side is idle.
func (q *BoundedQueue[T]) Fill() int {
	return int(q.avail.Load() - q.done.Load())
}

// =============================================================================
// Producer side
// =============================================================================

// CanInsert reports whether a free slot exists (producer only).
func (q *BoundedQueue[T]) CanInsert() bool {
	a := q.avail.LoadRelaxed()
	if a-q.cachedDone < q.size {
		return true
	}
	q.cachedDone = q.done.LoadAcquire()
	return a-q.cachedDone < q.size
}

// NextInsert returns the slot the next Insert publishes (producer only).
// The caller must have observed CanInsert.
func (q *BoundedQueue[T]) NextInsert() *T {
	a := q.avail.LoadRelaxed()
	if a-q.cachedDone >= q.size {
		panic("daq: NextInsert without free slot")
	}
	return &q.buffer[a&q.mask]
}

// Insert publishes the slot returned by NextInsert (producer only).
func (q *BoundedQueue[T]) Insert() {
	a := q.avail.LoadRelaxed()
	if a-q.cachedDone >= q.size {
		panic("daq: Insert without free slot")
	}
	// The add is a full read-modify-write: the parked load below cannot
	// pass it, pairing with the swap in RequestRemove.
	a = q.avail.AddAcqRel(1)
	q.wakeConsumer(a, false)
}

// FlushAvail wakes a parked consumer if any slot is published, ignoring the
// hysteresis watermark (producer only).
func (q *BoundedQueue[T]) FlushAvail() {
	a := q.avail.LoadRelaxed()
	if a == q.done.LoadAcquire() {
		return
	}
	q.wakeConsumer(a, true)
}

// wakeConsumer hands TokenData to a parked consumer once avail reached its
// watermark, or unconditionally when force is set.
func (q *BoundedQueue[T]) wakeConsumer(a uint64, force bool) {
	g := q.parkedAvail.LoadAcquire()
	if g == nil {
		return
	}
	if !force && int64(a-q.wakeupAvail.LoadAcquire()) < 0 {
		return
	}
	if q.parkedAvail.CompareAndSwapAcqRel(g, nil) {
		g.Wakeup(wake.TokenData)
	}
}

// RequestInsert registers g to be woken when space becomes available
// (producer only).
//
// Returns true if a slot is already free, in which case nothing stays
// registered and the caller must not block.
func (q *BoundedQueue[T]) RequestInsert(g *wake.Gate) bool {
	if q.CanInsert() {
		return true
	}
	a := q.avail.LoadRelaxed()
	q.wakeupDone.StoreRelaxed(a - q.size + q.hysteresis)
	// Full read-modify-write before the re-check, pairing with the add in
	// Remove. The release half publishes the watermark with the gate.
	q.parkedDone.SwapAcqRel(g)
	// The consumer may have crossed the watermark before it could see g.
	if q.CanInsert() {
		q.parkedDone.CompareAndSwapAcqRel(g, nil)
		return true
	}
	return false
}

// CancelInsert withdraws a registration made by RequestInsert.
func (q *BoundedQueue[T]) CancelInsert() {
	q.parkedDone.StoreRelease(nil)
}

// WaitInsert blocks on g until a slot is free (producer only).
func (q *BoundedQueue[T]) WaitInsert(g *wake.Gate) {
	sw := spin.Wait{}
	for range spinTries {
		if q.CanInsert() {
			return
		}
		sw.Once()
	}
	for !q.RequestInsert(g) {
		g.Block(wake.Forever)
	}
}

// Enqueue copies elem into the queue (producer only).
// Returns ErrWouldBlock if the queue is full.
func (q *BoundedQueue[T]) Enqueue(elem *T) error {
	if !q.CanInsert() {
		return ErrWouldBlock
	}
	*q.NextInsert() = *elem
	q.Insert()
	return nil
}

// =============================================================================
// Consumer side
// =============================================================================

// CanRemove reports whether a published slot exists (consumer only).
func (q *BoundedQueue[T]) CanRemove() bool {
	d := q.done.LoadRelaxed()
	if d != q.cachedAvail {
		return true
	}
	q.cachedAvail = q.avail.LoadAcquire()
	return d != q.cachedAvail
}

// NextRemove returns the oldest published slot (consumer only).
// The caller must have observed CanRemove.
func (q *BoundedQueue[T]) NextRemove() *T {
	d := q.done.LoadRelaxed()
	if d == q.cachedAvail {
		panic("daq: NextRemove on empty queue")
	}
	return &q.buffer[d&q.mask]
}

// Remove releases the slot returned by NextRemove (consumer only).
// The slot is cleared; pointers into it must not be used afterwards.
func (q *BoundedQueue[T]) Remove() {
	d := q.done.LoadRelaxed()
	if d == q.cachedAvail {
		panic("daq: Remove on empty queue")
	}
	var zero T
	q.buffer[d&q.mask] = zero
	// Release: the cleared slot is visible before the producer may reuse
	// it. Full read-modify-write: pairs with the swap in RequestInsert.
	d = q.done.AddAcqRel(1)

	g := q.parkedDone.LoadAcquire()
	if g != nil && int64(d-q.wakeupDone.LoadAcquire()) >= 0 {
		if q.parkedDone.CompareAndSwapAcqRel(g, nil) {
			g.Wakeup(wake.TokenSpace)
		}
	}
}

// RequestRemove registers g to be woken when data becomes available
// (consumer only).
//
// Returns true if a slot is already published, in which case nothing stays
// registered and the caller must not block.
func (q *BoundedQueue[T]) RequestRemove(g *wake.Gate) bool {
	if q.CanRemove() {
		return true
	}
	d := q.done.LoadRelaxed()
	q.wakeupAvail.StoreRelaxed(d + q.hysteresis)
	// Full read-modify-write before the re-check, pairing with the add in
	// Insert. The release half publishes the watermark with the gate.
	q.parkedAvail.SwapAcqRel(g)
	// The producer may have crossed the watermark before it could see g.
	if q.CanRemove() {
		q.parkedAvail.CompareAndSwapAcqRel(g, nil)
		return true
	}
	return false
}

// CancelRemove withdraws a registration made by RequestRemove.
func (q *BoundedQueue[T]) CancelRemove() {
	q.parkedAvail.StoreRelease(nil)
}

// WaitRemove blocks on g until a slot is published (consumer only).
func (q *BoundedQueue[T]) WaitRemove(g *wake.Gate) {
	sw := spin.Wait{}
	for range spinTries {
		if q.CanRemove() {
			return
		}
		sw.Once()
	}
	for !q.RequestRemove(g) {
		g.Block(wake.Forever)
	}
}

// Dequeue removes and returns the oldest element (consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *BoundedQueue[T]) Dequeue() (T, error) {
	if !q.CanRemove() {
		var zero T
		return zero, ErrWouldBlock
	}
	elem := *q.NextRemove()
	q.Remove()
	return elem, nil
}
