// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package daq_test

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/daq"
	"code.hybscloud.com/daq/wake"
)

// =============================================================================
// FanOut / FanIn - Single Goroutine
// =============================================================================

// TestFanOutRouting tests that each item lands in the queue named by the
// previous Insert and carries its successor's queue.
func TestFanOutRouting(t *testing.T) {
	fo := daq.BuildFanOut[int](daq.New(8), 3)

	if fo.Len() != 3 {
		t.Fatalf("Len: got %d, want 3", fo.Len())
	}
	route := []int{2, 2, 0, 1, 0}
	for i, next := range route {
		if !fo.CanInsert() {
			t.Fatalf("CanInsert(%d): got false", i)
		}
		*fo.NextInsert() = i
		fo.Insert(next)
		if fo.Current() != next {
			t.Fatalf("Current after %d: got %d, want %d", i, fo.Current(), next)
		}
	}

	// item i is in queue route[i-1] (queue 0 for item 0)
	want := map[int][]daq.Routed[int]{
		0: {{Value: 0, Next: 2}, {Value: 3, Next: 1}},
		1: {{Value: 4, Next: 0}},
		2: {{Value: 1, Next: 2}, {Value: 2, Next: 0}},
	}
	for qi, items := range want {
		q := fo.Queue(qi)
		for _, w := range items {
			got, err := q.Dequeue()
			if err != nil {
				t.Fatalf("queue %d: %v", qi, err)
			}
			if got != w {
				t.Fatalf("queue %d: got %+v, want %+v", qi, got, w)
			}
		}
		if q.CanRemove() {
			t.Fatalf("queue %d: unexpected extra item", qi)
		}
	}
}

// TestFanInFollowsRoute tests that FanIn rebuilds the order from the Next
// fields alone.
func TestFanInFollowsRoute(t *testing.T) {
	fi := daq.BuildFanIn[string](daq.New(4), 2)

	// Production order a, b, c, d over queues 0, 1, 1, 0.
	push := func(q int, v string, next uint32) {
		r := daq.Routed[string]{Value: v, Next: next}
		if err := fi.Queue(q).Enqueue(&r); err != nil {
			t.Fatalf("Enqueue %s: %v", v, err)
		}
	}
	push(0, "a", 1)
	push(0, "d", 0)
	push(1, "b", 1)
	push(1, "c", 0)

	var got []string
	for fi.CanRemove() {
		got = append(got, *fi.NextRemove())
		fi.Remove()
	}
	if len(got) != 4 || got[0] != "a" || got[1] != "b" || got[2] != "c" || got[3] != "d" {
		t.Fatalf("order: got %v, want [a b c d]", got)
	}
}

// TestFanInStallsOnMissingSuccessor tests that FanIn never skips ahead to a
// queue that is not next in order.
func TestFanInStallsOnMissingSuccessor(t *testing.T) {
	fi := daq.BuildFanIn[int](daq.New(4), 2)

	r := daq.Routed[int]{Value: 7, Next: 0}
	if err := fi.Queue(1).Enqueue(&r); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if fi.CanRemove() {
		t.Fatal("CanRemove: got true with queue 0 empty")
	}
}

// TestFanRangePanics tests route validation on both ends.
func TestFanRangePanics(t *testing.T) {
	fo := daq.BuildFanOut[int](daq.New(2), 2)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("FanOut.Insert(2): expected panic")
			}
		}()
		fo.Insert(2)
	}()

	fi := daq.BuildFanIn[int](daq.New(2), 2)
	r := daq.Routed[int]{Value: 1, Next: 5}
	_ = fi.Queue(0).Enqueue(&r)
	if !fi.CanRemove() {
		t.Fatal("CanRemove: got false")
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("FanIn.Remove with Next=5: expected panic")
			}
		}()
		fi.Remove()
	}()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("BuildFanOut(0): expected panic")
			}
		}()
		daq.BuildFanOut[int](daq.New(2), 0)
	}()
}

// =============================================================================
// BoundedQueue - Concurrent
// =============================================================================

// TestBoundedParkingStress runs a producer and a consumer that park on their
// gates whenever the queue is full or empty.
func TestBoundedParkingStress(t *testing.T) {
	if daq.RaceEnabled {
		t.Skip("skip: parking stress under race detector")
	}
	const total = 200000
	for _, n := range []int{2, 4, 64} {
		q := daq.NewBoundedQueue[int](n)
		pg, cg := newGate(t), newGate(t)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range total {
				q.WaitInsert(pg)
				*q.NextInsert() = i
				q.Insert()
			}
			q.FlushAvail()
		}()

		for i := range total {
			if !q.CanRemove() {
				q.WaitRemove(cg)
			}
			if got := *q.NextRemove(); got != i {
				t.Fatalf("N=%d: got %d, want %d", n, got, i)
			}
			q.Remove()
		}
		wg.Wait()
	}
}

// =============================================================================
// FanOut / FanIn - Concurrent
// =============================================================================

// TestFanOrderingAcrossWorkers pushes items through reader -> 8 workers ->
// collector with random routes and random worker delays; the collector must
// see production order.
func TestFanOrderingAcrossWorkers(t *testing.T) {
	if daq.RaceEnabled {
		t.Skip("skip: ordering stress under race detector")
	}
	const (
		workers = 8
		items   = 1000
		stop    = -1
	)
	fo := daq.BuildFanOut[int](daq.New(16), workers)
	fi := daq.BuildFanIn[int](daq.New(16), workers)

	gates := make([]*wake.Gate, workers+2)
	for i := range gates {
		gates[i] = newGate(t)
	}

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			g := gates[w]
			in, out := fo.Queue(w), fi.Queue(w)
			for {
				if !in.CanRemove() {
					out.FlushAvail()
					in.WaitRemove(g)
				}
				r := *in.NextRemove()
				in.Remove()
				if r.Value != stop && rand.IntN(16) == 0 {
					time.Sleep(time.Duration(rand.IntN(50)) * time.Microsecond)
				}
				out.WaitInsert(g)
				*out.NextInsert() = r
				out.Insert()
				if r.Value == stop {
					out.FlushAvail()
					return
				}
			}
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		g := gates[workers]
		send := func(v, next int) {
			if !fo.CanInsert() {
				fo.FlushAvail()
				fo.WaitInsert(g)
			}
			*fo.NextInsert() = v
			fo.Insert(next)
		}
		for i := range items {
			send(i, rand.IntN(workers))
		}
		// One stop per worker, routed round the ring from the current queue.
		for range workers {
			send(stop, (fo.Current()+1)%workers)
		}
		fo.FlushAvail()
	}()

	g := gates[workers+1]
	recv := func() int {
		if !fi.CanRemove() {
			fi.WaitRemove(g)
		}
		v := *fi.NextRemove()
		fi.Remove()
		return v
	}
	for i := range items {
		if got := recv(); got != i {
			t.Fatalf("item %d: got %d", i, got)
		}
	}
	for k := range workers {
		if got := recv(); got != stop {
			t.Fatalf("stop %d: got %d", k, got)
		}
	}
	wg.Wait()
}
