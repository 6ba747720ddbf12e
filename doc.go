// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package daq provides the inter-stage queues of the event unpacking
// pipeline: a bounded single-producer single-consumer queue that can park
// either end on a wake.Gate, and the fan-out and fan-in groups built from it.
//
// Subpackages:
//
//   - wake: Gate, the per-goroutine blocking primitive
//   - arena: append-only stage memory and reclaim chains
//   - pipeline: reader, processors and the in-order retirement stage
//
// # Quick Start
//
//	q := daq.NewBoundedQueue[Event](1024)
//	q := daq.BuildBounded[Event](daq.New(8192).Hysteresis(64))
//
// # Slot Access
//
// Slots are used in place. The producer fills the slot returned by
// NextInsert and publishes it with Insert; the consumer reads NextRemove and
// releases it with Remove:
//
//	if q.CanInsert() {
//	    *q.NextInsert() = ev
//	    q.Insert()
//	}
//
//	if q.CanRemove() {
//	    handle(q.NextRemove())
//	    q.Remove()
//	}
//
// Enqueue and Dequeue copy and return ErrWouldBlock instead of parking:
//
//	if err := q.Enqueue(&ev); daq.IsWouldBlock(err) {
//	    // full
//	}
//
// # Parking
//
// A goroutine that cannot proceed registers its gate with RequestInsert or
// RequestRemove and blocks only when the request reports false:
//
//	for !q.CanRemove() {
//	    if q.RequestRemove(g) {
//	        break
//	    }
//	    g.Block(wake.Forever)
//	}
//
// The other end wakes it once the fill level crosses the hysteresis
// watermark. Before parking on anything, a producer calls FlushAvail on
// every queue it feeds so that items below the watermark reach their
// consumer. WaitInsert and WaitRemove wrap the loop with a short spin.
//
// # Fan-Out and Fan-In
//
// FanOut gives one producer N queues and FanIn gives one consumer N queues.
// Every item carries the index of the queue that holds its successor:
//
//	fo := daq.BuildFanOut[Item](daq.New(8192), workers)
//	slot := fo.NextInsert()
//	*slot = item
//	fo.Insert(next) // successor goes to queue next
//
// FanIn removes from the current queue and then follows the recorded index,
// so the consumer sees items in producer order regardless of how the N
// middle stages interleave.
//
// # Capacity
//
// Capacities must be powers of 2 and at least 2; constructors panic
// otherwise. The default hysteresis is capacity/8, clamped to [1, capacity].
//
// # Thread Safety
//
// Each queue has exactly one producer goroutine and one consumer goroutine.
// Cap, Hysteresis and Fill may be called from any goroutine; Fill is then
// only a snapshot.
//
// # Race Detection
//
// RaceEnabled reports whether the race detector is active. Long stress
// tests skip under it.
package daq
