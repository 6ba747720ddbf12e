// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

// runProcessor moves items from its unpack queue to its retire queue,
// unpacking PROCESS events on the way. Order within the worker is FIFO; the
// routing field is carried over so retirement can rebuild the global order.
func (p *Pipeline) runProcessor(wc *WorkerContext) error {
	in := p.unpack.Queue(wc.ID)
	out := p.retire.Queue(wc.ID)
	wc.log.Debug().Log("stage started")
	for {
		// Output space first: there is no point taking input without it.
		if err := wc.Await(out.RequestInsert); err != nil {
			return nil
		}
		if err := wc.Await(in.RequestRemove); err != nil {
			return nil
		}

		dst := out.NextInsert()
		*dst = *in.NextRemove()
		in.Remove()

		it := &dst.Value
		if it.Info&Process != 0 {
			p.stats.processed.Add(1)
			att := wc.Attach(&it.Reclaim)
			err := p.unpacker.Unpack(wc, it.Event)
			att.Detach()
			if err != nil {
				it.Info = it.Info&^Process | Damaged
				it.Err = asDecodeError(it.Event, err)
			}
		}

		info := it.Info
		out.Insert()
		if info&(Flush|Done) != 0 {
			out.FlushAvail()
		}
		if info&Done != 0 {
			wc.log.Debug().Log("stage finished")
			return nil
		}
	}
}
