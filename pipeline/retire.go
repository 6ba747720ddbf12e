// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"errors"
	"time"

	"code.hybscloud.com/daq/wake"
)

// retirer is the state of the retirement goroutine.
type retirer struct {
	p     *Pipeline
	wc    *WorkerContext
	files []string

	next      int      // index of the next file to open
	sources   []Source // opened and not yet closed, in open order
	doneSent  bool
	flushSeen uint64

	nextStatus time.Time
}

func newRetirer(p *Pipeline, files []string) *retirer {
	return &retirer{p: p, wc: p.retirer, files: files}
}

// run retires items in order and opens files ahead of the reader until the
// Done sentinel retires.
func (r *retirer) run(ctx context.Context) error {
	p := r.p
	fi := p.retire
	r.wc.log.Debug().Log("stage started")
	if r.statusEnabled() {
		r.nextStatus = time.Now().Add(p.cfg.StatusInterval)
	}
	for {
		progressed := false
		for fi.CanRemove() {
			it := fi.NextRemove()
			done := it.Info&Done != 0
			if err := r.retire(it); err != nil {
				return err
			}
			fi.Remove()
			if done {
				p.shutdown()
				if p.status != nil {
					p.status(p.Stats())
				}
				r.wc.log.Debug().Log("stage finished")
				return nil
			}
			progressed = true
		}

		fed, err := r.feed()
		if err != nil {
			return err
		}
		r.tick()
		if err := ctx.Err(); err != nil {
			return err
		}
		if !progressed && !fed {
			r.park()
		}
	}
}

// retire handles one item at the head of the order and runs its reclaim
// chain.
func (r *retirer) retire(it *Item) error {
	p := r.p
	wc := r.wc
	info := it.Info

	if info&Damaged != 0 {
		p.stats.damaged.Add(1)
		r.logDamaged(it)
	}

	reprint := info&Damaged != 0 && p.cfg.ReprintDamaged
	if it.Event != nil && (info&PrintEvent != 0 || reprint) {
		att := wc.Attach(&it.Reclaim)
		flags := info
		if reprint {
			wc.Messagef("damaged event %d: %v\n", it.Event.Seq(), it.Err)
			flags |= PrintEvent | PrintEventData
		}
		if p.printer != nil {
			if err := p.printer.Print(wc, it.Event, flags); err != nil {
				wc.log.Warning().Uint64("seq", it.Event.Seq()).Err(err).Log("print failed")
			}
		}
		att.Detach()
	}

	if _, err := it.Reclaim.Run(p.out); err != nil {
		wc.log.Warning().Err(err).Log("diagnostic write failed")
	}
	if info&(Process|Damaged|Message) != 0 {
		p.stats.retired.Add(1)
	}

	if info&FileClose != 0 {
		if err := r.closeSource(it.Source); err != nil {
			return err
		}
	}
	if info&Flush != 0 {
		p.stats.flushes.Add(1)
		if p.sink != nil {
			if err := p.sink.Flush(); err != nil {
				wc.log.Err().Err(err).Log("flush failed")
			}
		}
	}
	return nil
}

func (r *retirer) logDamaged(it *Item) {
	name := "?"
	if it.Source != nil {
		name = it.Source.Name()
	}
	if _, ok := r.p.damaged.Allow(name); !ok {
		return
	}
	b := r.wc.log.Warning().Str("file", name)
	if it.Event != nil {
		b = b.Uint64("seq", it.Event.Seq())
	}
	if it.Err != nil {
		b = b.Err(it.Err)
	}
	b.Log("damaged event")
}

// closeSource closes the oldest open source, which src must be.
func (r *retirer) closeSource(src Source) error {
	p := r.p
	if len(r.sources) == 0 {
		panic("pipeline: FILE_CLOSE without an open source")
	}
	r.sources = r.sources[1:]
	if src == nil {
		return nil
	}
	err := src.Close()
	p.stats.filesClosed.Add(1)
	if err == nil {
		r.wc.log.Info().Str("file", src.Name()).Log("file closed")
		return nil
	}
	ferr := &FileError{Op: "close", Name: src.Name(), Err: err}
	if p.cfg.IOErrorFatal {
		r.wc.log.Err().Err(ferr).Log("close failed")
		return ferr
	}
	r.wc.log.Warning().Err(ferr).Log("close failed")
	return nil
}

// feed fills the open-file queue: files up to the look-ahead limit, pending
// flush requests, and Done once the list is exhausted.
func (r *retirer) feed() (bool, error) {
	p := r.p
	q := p.open
	fed := false
	for !r.doneSent && q.CanInsert() {
		slot := q.NextInsert()
		*slot = openItem{}

		if r.next == len(r.files) {
			slot.info = Done | r.takeFlush()
			q.Insert()
			r.doneSent = true
			return true, nil
		}
		if len(r.sources) >= p.cfg.LookAhead {
			if !r.flushPending() {
				break
			}
			slot.info = r.takeFlush()
			q.Insert()
			fed = true
			continue
		}

		name := r.files[r.next]
		r.next++
		src, err := p.opener.Open(name)
		if err != nil {
			p.stats.filesSkipped.Add(1)
			ferr := &FileError{Op: "open", Name: name, Err: err}
			if p.cfg.IOErrorFatal {
				r.wc.log.Err().Err(ferr).Log("open failed")
				return fed, ferr
			}
			r.wc.log.Warning().Err(ferr).Log("open failed, skipping file")
			continue
		}
		p.stats.filesOpened.Add(1)
		r.wc.log.Info().Str("file", name).Log("file opened")
		r.sources = append(r.sources, src)
		slot.src = src
		slot.info = r.takeFlush()
		q.Insert()
		fed = true
	}
	return fed, nil
}

func (r *retirer) flushPending() bool {
	return r.p.flushReq.LoadAcquire() != r.flushSeen
}

func (r *retirer) takeFlush() Flags {
	n := r.p.flushReq.LoadAcquire()
	if n == r.flushSeen {
		return 0
	}
	r.flushSeen = n
	return Flush
}

// wantsOpenSlot reports whether feed would insert given a free slot.
func (r *retirer) wantsOpenSlot() bool {
	if r.doneSent {
		return false
	}
	return r.next == len(r.files) || len(r.sources) < r.p.cfg.LookAhead || r.flushPending()
}

// park blocks until the next item in order arrives, the open-file queue
// frees a wanted slot, a flush is requested or the status timer expires.
func (r *retirer) park() {
	p := r.p
	g := r.wc.Gate
	if p.stop.LoadAcquire() {
		return
	}
	if p.retire.RequestRemove(g) {
		return
	}
	wantOpen := r.wantsOpenSlot()
	if wantOpen && p.open.RequestInsert(g) {
		p.retire.CancelRemove()
		return
	}
	g.Block(r.timeout())
	p.retire.CancelRemove()
	if wantOpen {
		p.open.CancelInsert()
	}
}

func (r *retirer) statusEnabled() bool {
	return r.p.status != nil && r.p.cfg.StatusInterval > 0
}

func (r *retirer) timeout() time.Duration {
	if !r.statusEnabled() {
		return wake.Forever
	}
	return max(time.Until(r.nextStatus), 0)
}

func (r *retirer) tick() {
	if !r.statusEnabled() {
		return
	}
	now := time.Now()
	if now.Before(r.nextStatus) {
		return
	}
	r.p.status(r.p.Stats())
	r.nextStatus = now.Add(r.p.cfg.StatusInterval)
}

// closeRemaining closes sources left open by an interrupted run.
func (r *retirer) closeRemaining() error {
	var errs []error
	for _, src := range r.sources {
		if err := src.Close(); err != nil {
			errs = append(errs, &FileError{Op: "close", Name: src.Name(), Err: err})
		}
	}
	r.sources = nil
	return errors.Join(errs...)
}
