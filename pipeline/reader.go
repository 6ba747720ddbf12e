// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"errors"
	"io"
)

// runReader takes opened sources from the open-file queue and extracts
// their records into the unpack FanOut until it forwards Done.
func (p *Pipeline) runReader() error {
	wc := p.reader
	q := p.open
	wc.log.Debug().Log("stage started")
	for {
		if err := wc.Await(q.RequestRemove); err != nil {
			return nil
		}
		oi := *q.NextRemove()
		q.Remove()

		// A sentinel is ordered before the records of the file it came with.
		if s := oi.info & (Flush | Done); s != 0 {
			if err := p.emitSentinel(s); err != nil {
				return nil
			}
			if s&Done != 0 {
				wc.log.Debug().Log("stage finished")
				return nil
			}
		}
		if oi.src == nil {
			continue
		}
		if err := p.readSource(oi.src); err != nil {
			if errors.Is(err, ErrStopped) {
				return nil
			}
			return err
		}
	}
}

// emitSentinel inserts an item carrying only info and wakes every processor.
func (p *Pipeline) emitSentinel(info Flags) error {
	fo := p.unpack
	if err := p.reader.Await(fo.RequestInsert); err != nil {
		return err
	}
	*fo.NextInsert() = Item{Info: info}
	fo.Insert(p.route())
	fo.FlushAvail()
	return nil
}

// readSource extracts every record of src, then emits its FileClose item.
func (p *Pipeline) readSource(src Source) error {
	wc := p.reader
	fo := p.unpack
	name := src.Name()
	wc.log.Debug().Str("file", name).Log("reading")
	for {
		if err := wc.Await(fo.RequestInsert); err != nil {
			return err
		}
		it := fo.NextInsert()
		*it = Item{Source: src}

		att := wc.Attach(&it.Reclaim)
		ev, err := src.Next(wc)
		var fatal error
		switch {
		case err == nil:
			it.Event = ev
			it.Info = Process | p.printFlags
			p.stats.events.Add(1)
		case errors.Is(err, io.EOF):
			it.Info = FileClose
		case errors.Is(err, ErrCorruptRecord):
			wc.Messagef("%s: %v\n", name, err)
			it.Info = Message
			p.stats.messages.Add(1)
		case errors.Is(err, ErrStopped):
			att.Detach()
			return err
		default:
			ferr := &FileError{Op: "read", Name: name, Err: err}
			wc.Messagef("%v\n", ferr)
			wc.log.Warning().Str("file", name).Err(err).Log("read failed, skipping rest of file")
			it.Info = FileClose
			if p.cfg.IOErrorFatal {
				fatal = ferr
			}
		}
		att.Detach()

		info := it.Info
		fo.Insert(p.route())
		if info&FileClose != 0 {
			fo.FlushAvail()
			return fatal
		}
	}
}

// route picks the queue for the successor of the item being inserted:
// round-robin, moving to the next queue with space when the candidate is
// full.
func (p *Pipeline) route() int {
	fo := p.unpack
	n := fo.Len()
	next := (fo.Current() + 1) % n
	if n == 1 || fo.Queue(next).CanInsert() {
		return next
	}
	for i := 1; i < n; i++ {
		c := (next + i) % n
		if c != fo.Current() && fo.Queue(c).CanInsert() {
			p.stats.reroutes.Add(1)
			return c
		}
	}
	return next
}
