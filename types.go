// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package daq

import "code.hybscloud.com/daq/wake"

// SlotProducer is the zero-copy producer side of a queue.
//
// The producer checks CanInsert (or parks), fills *NextInsert() in place and
// publishes it with Insert.
type SlotProducer[T any] interface {
	CanInsert() bool
	NextInsert() *T
	Insert()
	FlushAvail()
	RequestInsert(g *wake.Gate) bool
}

// SlotConsumer is the zero-copy consumer side of a queue.
//
// The consumer checks CanRemove (or parks), reads *NextRemove() in place and
// releases it with Remove.
type SlotConsumer[T any] interface {
	CanRemove() bool
	NextRemove() *T
	Remove()
	RequestRemove(g *wake.Gate) bool
}

// Queue is the copying, non-blocking view of a BoundedQueue.
// Both operations return ErrWouldBlock when they cannot proceed.
type Queue[T any] interface {
	Enqueue(elem *T) error
	Dequeue() (T, error)
	Cap() int
}

var (
	_ SlotProducer[int] = (*BoundedQueue[int])(nil)
	_ SlotConsumer[int] = (*BoundedQueue[int])(nil)
	_ Queue[int]        = (*BoundedQueue[int])(nil)
)
