// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package daq

import "code.hybscloud.com/daq/wake"

// Routed is the slot type of FanOut and FanIn queues.
//
// Next is the index of the queue holding the item that follows this one in
// production order. The fan-in side follows it to rebuild the total order
// without a global sequence counter.
type Routed[T any] struct {
	Value T
	Next  uint32
}

// FanOut distributes items from one producer over per-consumer queues.
//
// Every physical queue stays single-producer single-consumer: the producer
// goroutine owns the FanOut, consumer i owns the consumer side of Queue(i).
//
// Insert takes the index of the queue that receives the successor of the
// item being inserted. The item itself goes into the queue chosen by the
// previous Insert (queue 0 initially).
type FanOut[T any] struct {
	queues []*BoundedQueue[Routed[T]]
	cur    uint32
}

// NewFanOut creates a FanOut over the given queues.
// Panics if queues is empty.
func NewFanOut[T any](queues ...*BoundedQueue[Routed[T]]) *FanOut[T] {
	if len(queues) == 0 {
		panic("daq: FanOut needs at least one queue")
	}
	return &FanOut[T]{queues: queues}
}

// Len returns the number of queues.
func (f *FanOut[T]) Len() int {
	return len(f.queues)
}

// Queue returns queue i. Consumer i uses its consumer side.
func (f *FanOut[T]) Queue(i int) *BoundedQueue[Routed[T]] {
	return f.queues[i]
}

// Current returns the index of the queue the next Insert publishes into.
func (f *FanOut[T]) Current() int {
	return int(f.cur)
}

// CanInsert reports whether the current queue has a free slot.
func (f *FanOut[T]) CanInsert() bool {
	return f.queues[f.cur].CanInsert()
}

// NextInsert returns the payload of the current queue's next slot.
func (f *FanOut[T]) NextInsert() *T {
	return &f.queues[f.cur].NextInsert().Value
}

// Insert publishes the current slot, routing its successor to queue next.
// Panics if next is out of range.
func (f *FanOut[T]) Insert(next int) {
	if next < 0 || next >= len(f.queues) {
		panic("daq: FanOut next queue out of range")
	}
	q := f.queues[f.cur]
	q.NextInsert().Next = uint32(next)
	q.Insert()
	f.cur = uint32(next)
}

// RequestInsert registers g on the current queue, see BoundedQueue.RequestInsert.
func (f *FanOut[T]) RequestInsert(g *wake.Gate) bool {
	return f.queues[f.cur].RequestInsert(g)
}

// WaitInsert blocks on g until the current queue has a free slot.
func (f *FanOut[T]) WaitInsert(g *wake.Gate) {
	f.queues[f.cur].WaitInsert(g)
}

// FlushAvail wakes every parked consumer that has items pending.
func (f *FanOut[T]) FlushAvail() {
	for _, q := range f.queues {
		q.FlushAvail()
	}
}

// FanIn collects items from per-producer queues in production order.
//
// Each removed item names the queue of its successor; FanIn polls that queue
// next. Queue(i) is single-producer (producer i) single-consumer (the FanIn
// owner).
type FanIn[T any] struct {
	queues []*BoundedQueue[Routed[T]]
	cur    uint32
}

// NewFanIn creates a FanIn over the given queues.
// Panics if queues is empty.
func NewFanIn[T any](queues ...*BoundedQueue[Routed[T]]) *FanIn[T] {
	if len(queues) == 0 {
		panic("daq: FanIn needs at least one queue")
	}
	return &FanIn[T]{queues: queues}
}

// Len returns the number of queues.
func (f *FanIn[T]) Len() int {
	return len(f.queues)
}

// Queue returns queue i. Producer i uses its producer side.
func (f *FanIn[T]) Queue(i int) *BoundedQueue[Routed[T]] {
	return f.queues[i]
}

// Current returns the index of the queue polled next.
func (f *FanIn[T]) Current() int {
	return int(f.cur)
}

// CanRemove reports whether the next item in order is available.
func (f *FanIn[T]) CanRemove() bool {
	return f.queues[f.cur].CanRemove()
}

// NextRemove returns the payload of the next item in order.
func (f *FanIn[T]) NextRemove() *T {
	return &f.queues[f.cur].NextRemove().Value
}

// Remove releases the current item and moves to the queue it names.
func (f *FanIn[T]) Remove() {
	q := f.queues[f.cur]
	next := q.NextRemove().Next
	if int(next) >= len(f.queues) {
		panic("daq: FanIn next queue out of range")
	}
	q.Remove()
	f.cur = next
}

// RequestRemove registers g on the current queue, see BoundedQueue.RequestRemove.
func (f *FanIn[T]) RequestRemove(g *wake.Gate) bool {
	return f.queues[f.cur].RequestRemove(g)
}

// CancelRemove withdraws a registration on the current queue.
func (f *FanIn[T]) CancelRemove() {
	f.queues[f.cur].CancelRemove()
}

// WaitRemove blocks on g until the next item in order is available.
func (f *FanIn[T]) WaitRemove(g *wake.Gate) {
	f.queues[f.cur].WaitRemove(g)
}
