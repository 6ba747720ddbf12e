// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipeline moves events from a single reader through a pool of
// processors to a single in-order retirement stage.
//
//	open-file queue        unpack FanOut            retire FanIn
//	retire ----------> reader ----------> processor[i] ----------> retire
//
// Every physical queue is single-producer single-consumer. The retirement
// goroutine opens files ahead of the reader, retires items in extraction
// order, runs their reclaim chains and handles Flush and Done sentinels.
// Stages park on their own wake.Gate and flush their output queues before
// parking, so items below a queue's wakeup watermark are never stranded.
//
// Per-event unpack failures mark the item Damaged. Per-file I/O failures
// skip the file unless Config.IOErrorFatal is set. Queue and reclaim misuse
// panics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/daq"
	"code.hybscloud.com/daq/arena"
	"code.hybscloud.com/daq/wake"
	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"golang.org/x/sync/errgroup"
)

// ErrReused is returned by Run on a Pipeline that already ran.
var ErrReused = errors.New("pipeline: Run called more than once")

var defaultDamagedRates = map[time.Duration]int{
	time.Second: 10,
	time.Minute: 100,
}

const (
	stateNew uint64 = iota
	stateRunning
	stateFinished
)

// Pipeline runs the reader, processor and retirement stages over a list of
// inputs. A Pipeline runs once.
type Pipeline struct {
	cfg          Config
	opener       Opener
	unpacker     Unpacker
	printer      Printer
	sink         Sink
	out          io.Writer
	log          *logiface.Logger[logiface.Event]
	status       func(Snapshot)
	damagedRates map[time.Duration]int
	damaged      *catrate.Limiter
	printFlags   Flags

	open   *daq.BoundedQueue[openItem]
	unpack *daq.FanOut[Item]
	retire *daq.FanIn[Item]

	reader  *WorkerContext
	workers []*WorkerContext
	retirer *WorkerContext
	arenas  []*arena.Arena
	gates   []*wake.Gate

	_        pad
	stop     atomix.Bool
	state    atomix.Uint64
	closed   atomix.Uint64
	started  atomix.Int64
	flushReq atomix.Uint64
	_        pad
	stats    stats
}

// New creates a pipeline. Zero fields of cfg take their DefaultConfig
// values. The pipeline holds OS resources until Close.
func New(cfg Config, opener Opener, unpacker Unpacker, opts ...Option) (*Pipeline, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opener == nil || unpacker == nil {
		return nil, errors.New("pipeline: nil opener or unpacker")
	}

	p := &Pipeline{
		cfg:          cfg,
		opener:       opener,
		unpacker:     unpacker,
		out:          os.Stdout,
		damagedRates: defaultDamagedRates,
	}
	for _, o := range opts {
		o(p)
	}
	if p.out == nil {
		p.out = io.Discard
	}
	p.damaged = catrate.NewLimiter(p.damagedRates)
	if cfg.PrintEvents {
		p.printFlags |= PrintEvent
	}
	if cfg.PrintEventData {
		p.printFlags |= PrintEvent | PrintEventData
	}
	if cfg.PrintBufferHeaders {
		p.printFlags |= PrintEvent | PrintBufferHeaders
	}

	p.open = daq.BuildBounded[openItem](daq.New(cfg.OpenQueueSize).Hysteresis(1))
	p.unpack = daq.BuildFanOut[Item](daq.New(cfg.UnpackQueueSize), cfg.Workers)
	p.retire = daq.BuildFanIn[Item](daq.New(cfg.RetireQueueSize), cfg.Workers)

	var err error
	if p.reader, err = p.newContext(readerID); err != nil {
		return nil, err
	}
	p.reader.flush = p.unpack.FlushAvail
	for i := range cfg.Workers {
		wc, err := p.newContext(i)
		if err != nil {
			return nil, err
		}
		wc.flush = p.retire.Queue(i).FlushAvail
		p.workers = append(p.workers, wc)
	}
	if p.retirer, err = p.newContext(retireID); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) newContext(id int) (*WorkerContext, error) {
	g, err := wake.New()
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	a := arena.New(p.cfg.ArenaBlockSize)
	p.gates = append(p.gates, g)
	p.arenas = append(p.arenas, a)
	wc := &WorkerContext{ID: id, Arena: a, Gate: g, out: p.out, stop: &p.stop}
	wc.log = p.log.Clone().Str("stage", wc.Name()).Logger()
	return wc, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Run processes files in order and returns once the Done sentinel retired,
// a fatal error occurred or ctx was cancelled. It returns ErrNoInput when
// files is empty or when every file was skipped because it failed to open.
//
// On the normal path every item is retired and every reclaim chain has run
// before Run returns. On cancellation the stages stop where they are and
// reclaim chains of items still in flight are not run; sources that were
// opened are still closed.
func (p *Pipeline) Run(ctx context.Context, files []string) error {
	if !p.state.CompareAndSwapAcqRel(stateNew, stateRunning) {
		return ErrReused
	}
	defer p.state.StoreRelease(stateFinished)
	if p.closed.Load() != 0 {
		return errors.New("pipeline: Run after Close")
	}
	if len(files) == 0 {
		return ErrNoInput
	}
	p.started.StoreRelease(time.Now().UnixNano())
	p.log.Debug().Int("files", len(files)).Int("workers", p.cfg.Workers).Log("pipeline started")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		p.shutdown()
		return nil
	})
	g.Go(p.runReader)
	for _, wc := range p.workers {
		g.Go(func() error { return p.runProcessor(wc) })
	}
	r := newRetirer(p, files)
	g.Go(func() error {
		defer cancel()
		return r.run(gctx)
	})

	err := g.Wait()
	if cerr := r.closeRemaining(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	snap := p.Stats()
	if err == nil && snap.FilesOpened == 0 {
		err = ErrNoInput
	}
	b := p.log.Info().
		Uint64("events", snap.Events).
		Uint64("damaged", snap.Damaged).
		Uint64("files", snap.FilesClosed).
		Dur("elapsed", snap.Elapsed)
	if err != nil {
		b = b.Err(err)
	}
	b.Log("pipeline finished")
	return err
}

// Flush asks for a Flush sentinel to travel with the next open-file item.
// It may be called from any goroutine before Close.
func (p *Pipeline) Flush() {
	p.flushReq.Add(1)
	if p.state.LoadAcquire() == stateRunning {
		p.retirer.Gate.Wakeup(wake.TokenFile)
	}
}

// Stats returns the current counters. It may be called from any goroutine.
func (p *Pipeline) Stats() Snapshot {
	var start time.Time
	if ns := p.started.LoadAcquire(); ns != 0 {
		start = time.Unix(0, ns)
	}
	return p.stats.snapshot(start, p.arenas)
}

// Close releases the stage gates. Call it after Run returned and once no
// Flush call can be in progress.
func (p *Pipeline) Close() error {
	if !p.closed.CompareAndSwapAcqRel(0, 1) {
		return nil
	}
	var errs []error
	for _, g := range p.gates {
		errs = append(errs, g.Close())
	}
	return errors.Join(errs...)
}

// shutdown raises the stop flag and wakes every stage.
func (p *Pipeline) shutdown() {
	p.stop.StoreRelease(true)
	for _, g := range p.gates {
		g.Wakeup(wake.TokenStop)
	}
}
