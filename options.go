// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package daq

// Options configures queue creation.
type Options struct {
	// Capacity (must be a power of 2)
	capacity int

	// Wakeup margin in slots, 0 selects capacity/8
	hysteresis int
}

// Option mutates Options for the direct constructors.
type Option func(*Options)

// WithHysteresis sets the wakeup margin in slots.
//
// A parked consumer is woken once at least n items are published, a parked
// producer once at least n slots are free. n is clamped to [1, capacity].
func WithHysteresis(n int) Option {
	return func(o *Options) {
		o.hysteresis = n
	}
}

// Builder creates queues with fluent configuration.
//
// Example:
//
//	// One open-file queue, eager wakeups
//	ofq := daq.BuildBounded[OpenFile](daq.New(4).Hysteresis(1))
//
//	// Reader -> workers and workers -> retirement
//	unpack := daq.BuildFanOut[Item](daq.New(8192), workers)
//	retire := daq.BuildFanIn[Item](daq.New(8192), workers)
type Builder struct {
	opts Options
}

// New creates a queue builder with the given capacity.
//
// Panics if capacity is not a power of 2 or is less than 2.
func New(capacity int) *Builder {
	if capacity < 2 {
		panic("daq: capacity must be >= 2")
	}
	if !IsPow2(capacity) {
		panic("daq: capacity must be a power of 2")
	}
	return &Builder{opts: Options{capacity: capacity}}
}

// Hysteresis sets the wakeup margin in slots, see WithHysteresis.
func (b *Builder) Hysteresis(n int) *Builder {
	b.opts.hysteresis = n
	return b
}

// Capacity returns the configured per-queue capacity.
func (b *Builder) Capacity() int {
	return b.opts.capacity
}

// BuildBounded creates a single BoundedQueue.
func BuildBounded[T any](b *Builder) *BoundedQueue[T] {
	o := b.opts
	if o.hysteresis < 0 {
		o.hysteresis = 1
	}
	if o.hysteresis > o.capacity {
		o.hysteresis = o.capacity
	}
	return newBoundedQueue[T](o)
}

// BuildFanOut creates a FanOut over n queues of the builder's capacity.
// Panics if n < 1.
func BuildFanOut[T any](b *Builder, n int) *FanOut[T] {
	return NewFanOut(buildQueues[Routed[T]](b, n)...)
}

// BuildFanIn creates a FanIn over n queues of the builder's capacity.
// Panics if n < 1.
func BuildFanIn[T any](b *Builder, n int) *FanIn[T] {
	return NewFanIn(buildQueues[Routed[T]](b, n)...)
}

func buildQueues[T any](b *Builder, n int) []*BoundedQueue[T] {
	if n < 1 {
		panic("daq: need at least one queue")
	}
	qs := make([]*BoundedQueue[T], n)
	for i := range qs {
		qs[i] = BuildBounded[T](b)
	}
	return qs
}

// IsPow2 reports whether n is a positive power of 2.
func IsPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
