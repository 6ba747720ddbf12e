// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recordfile_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"code.hybscloud.com/daq"
	"code.hybscloud.com/daq/arena"
	"code.hybscloud.com/daq/internal/recordfile"
	"code.hybscloud.com/daq/pipeline"
	"code.hybscloud.com/daq/wake"
	"github.com/stretchr/testify/require"
)

func payload(subs ...[]byte) []byte {
	var p []byte
	for i, s := range subs {
		p = recordfile.AppendSubevent(p, uint16(0x100+i), s)
	}
	return p
}

func encode(t *testing.T, payloads ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := recordfile.NewWriter(&buf)
	for i, p := range payloads {
		seq, err := w.Write(p)
		require.NoError(t, err)
		require.EqualValues(t, i+1, seq)
	}
	return buf.Bytes()
}

func newContext(t *testing.T) *pipeline.WorkerContext {
	t.Helper()
	g, err := wake.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return pipeline.NewWorkerContext(0, arena.New(256), g, io.Discard)
}

// next reads one record into its own chain.
func next(wc *pipeline.WorkerContext, src pipeline.Source) (pipeline.Event, *arena.Chain, error) {
	c := new(arena.Chain)
	att := wc.Attach(c)
	defer att.Detach()
	ev, err := src.Next(wc)
	return ev, c, err
}

func TestHeaderRoundTrip(t *testing.T) {
	h := recordfile.Header{Length: 7, Seq: 99, Sum: 0xdeadbeef}
	b := recordfile.AppendHeader(nil, h)
	require.Len(t, b, recordfile.HeaderSize)
	require.Equal(t, "DAQ1", string(b[:4]))

	got, err := recordfile.ParseHeader(b)
	require.NoError(t, err)
	require.Equal(t, h, got)

	b[0] = 'X'
	_, err = recordfile.ParseHeader(b)
	require.ErrorIs(t, err, recordfile.ErrBadMagic)

	_, err = recordfile.ParseHeader(b[:10])
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestParseSubevents(t *testing.T) {
	p := payload([]byte("abc"), nil, []byte{1, 2})
	subs, err := recordfile.ParseSubevents(p)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	require.Equal(t, uint16(0x100), subs[0].ID)
	require.Equal(t, []byte("abc"), subs[0].Data)
	require.Empty(t, subs[1].Data)
	require.Equal(t, []byte{1, 2}, subs[2].Data)

	_, err = recordfile.ParseSubevents(p[:len(p)-1])
	require.ErrorIs(t, err, recordfile.ErrTruncatedSubevent)

	_, err = recordfile.ParseSubevents([]byte{1, 2, 3})
	require.ErrorIs(t, err, recordfile.ErrTruncatedSubevent)
}

func TestSourceReadsRecords(t *testing.T) {
	data := encode(t, payload([]byte("one")), payload([]byte("two"), []byte("2")))
	src := recordfile.NewSource("mem", io.NopCloser(bytes.NewReader(data)), 0, 0)
	wc := newContext(t)

	ev, c, err := next(wc, src)
	require.NoError(t, err)
	rec := ev.(*recordfile.Record)
	require.EqualValues(t, 1, rec.Seq())
	require.EqualValues(t, 0, rec.Offset)
	require.Equal(t, payload([]byte("one")), rec.Payload)
	require.Equal(t, 1, c.Len(), "payload bytes only, no window")

	ev, _, err = next(wc, src)
	require.NoError(t, err)
	rec = ev.(*recordfile.Record)
	require.EqualValues(t, 2, rec.Seq())
	require.EqualValues(t, recordfile.HeaderSize+7, rec.Offset)

	_, _, err = next(wc, src)
	require.ErrorIs(t, err, io.EOF)
	require.NoError(t, src.Close())
}

func TestSourceChecksumMismatchIsRecoverable(t *testing.T) {
	data := encode(t, payload([]byte("aaaa")), payload([]byte("bbbb")))
	data[recordfile.HeaderSize+5] ^= 0xff // inside record 1 payload

	src := recordfile.NewSource("mem", io.NopCloser(bytes.NewReader(data)), 0, 0)
	wc := newContext(t)

	_, _, err := next(wc, src)
	require.ErrorIs(t, err, pipeline.ErrCorruptRecord)

	ev, _, err := next(wc, src)
	require.NoError(t, err)
	require.EqualValues(t, 2, ev.Seq())
}

func TestSourceTruncatedIsNotEOF(t *testing.T) {
	data := encode(t, payload([]byte("abcdef")))

	for _, cut := range []int{5, recordfile.HeaderSize, len(data) - 1} {
		src := recordfile.NewSource("mem", io.NopCloser(bytes.NewReader(data[:cut])), 0, 0)
		_, _, err := next(newContext(t), src)
		require.Error(t, err, "cut %d", cut)
		require.NotErrorIs(t, err, io.EOF, "cut %d", cut)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF, "cut %d", cut)
	}
}

func TestSourceRejectsOversizeRecord(t *testing.T) {
	data := encode(t, make([]byte, 100))
	src := recordfile.NewSource("mem", io.NopCloser(bytes.NewReader(data)), 0, 64)
	_, _, err := next(newContext(t), src)
	require.ErrorIs(t, err, recordfile.ErrTooLarge)
	require.NotErrorIs(t, err, pipeline.ErrCorruptRecord)
}

func TestWindowParksReader(t *testing.T) {
	p := payload([]byte("0123456789"))
	size := int64(recordfile.HeaderSize + len(p))
	data := encode(t, p, p, p)
	src := recordfile.NewSource("mem", io.NopCloser(bytes.NewReader(data)), 2*size, 0)
	wc := newContext(t)

	_, first, err := next(wc, src)
	require.NoError(t, err)
	_, second, err := next(wc, src)
	require.NoError(t, err)
	require.Equal(t, 2*size, src.Window().InFlight())

	got := make(chan error, 1)
	go func() {
		_, third, err := next(wc, src)
		if err == nil {
			_, err = third.Run(nil)
		}
		got <- err
	}()

	select {
	case err := <-got:
		t.Fatalf("third record read past a full window: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	_, err = first.Run(nil)
	require.NoError(t, err)
	select {
	case err := <-got:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("release did not wake the reader")
	}
	require.EqualValues(t, 1, src.Window().Waits())

	_, err = second.Run(nil)
	require.NoError(t, err)
	require.Zero(t, src.Window().InFlight())
}

func TestUnpackerAndPrinter(t *testing.T) {
	data := encode(t, payload([]byte{0xca, 0xfe}, []byte("x")))
	src := recordfile.NewSource("mem", io.NopCloser(bytes.NewReader(data)), 0, 0)

	var out bytes.Buffer
	g, err := wake.New()
	require.NoError(t, err)
	defer g.Close()
	wc := pipeline.NewWorkerContext(0, arena.New(256), g, &out)

	ev, c, err := next(wc, src)
	require.NoError(t, err)

	att := wc.Attach(c)
	u := recordfile.Unpacker{Known: func(id uint16) bool { return id == 0x100 }}
	require.NoError(t, u.Unpack(wc, ev))
	require.NoError(t, recordfile.Printer{}.Print(wc, ev, pipeline.PrintEvent|pipeline.PrintEventData|pipeline.PrintBufferHeaders))
	att.Detach()

	require.Empty(t, out.String(), "diagnostics are buffered until the chain runs")
	_, err = c.Run(&out)
	require.NoError(t, err)

	text := out.String()
	require.True(t, strings.HasPrefix(text, "record 1: unknown subevent id 0x0101\n"), text)
	require.Contains(t, text, "record offset=0 length=11 sum=")
	require.Contains(t, text, "event 1 size=11 subevents=2\n")
	require.Contains(t, text, "  subevent 0x0100 length=2\n")
	require.Contains(t, text, "ca fe")
}

func TestUnpackerDecodeError(t *testing.T) {
	rec := &recordfile.Record{Header: recordfile.Header{Seq: 7}, Payload: []byte{1, 0, 9, 0, 'x'}}
	err := recordfile.Unpacker{}.Unpack(newContext(t), rec)
	var de *pipeline.DecodeError
	require.ErrorAs(t, err, &de)
	require.EqualValues(t, 7, de.Seq)
	require.ErrorIs(t, err, recordfile.ErrTruncatedSubevent)
}

// Record files through the full pipeline, with a corrupt record and a
// malformed payload.
func TestPipelineOverFiles(t *testing.T) {
	if daq.RaceEnabled {
		t.Skip("skip: stages hand slots over through atomix counters")
	}
	dir := t.TempDir()
	good := encode(t, payload([]byte("a")), payload([]byte("b")), payload([]byte("c")))
	bad := encode(t, payload([]byte("d")), []byte{1, 0, 9, 0}, payload([]byte("f")))
	bad[recordfile.HeaderSize+4] ^= 0xff // corrupt record 1 payload
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.dat"), good, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.dat"), bad, 0o644))

	var out bytes.Buffer
	cfg := pipeline.Config{
		Workers:         3,
		UnpackQueueSize: 4,
		RetireQueueSize: 4,
		PrintEvents:     true,
	}
	p, err := pipeline.New(cfg, recordfile.Opener{Window: 64}, recordfile.Unpacker{},
		pipeline.WithPrinter(recordfile.Printer{}),
		pipeline.WithOutput(&out))
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx, []string{
		filepath.Join(dir, "good.dat"),
		filepath.Join(dir, "bad.dat"),
	}))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	require.Equal(t, "event 1 size=5 subevents=1", lines[0])
	require.Equal(t, "event 2 size=5 subevents=1", lines[1])
	require.Equal(t, "event 3 size=5 subevents=1", lines[2])
	require.Contains(t, lines[3], "record 1 at offset 0: checksum mismatch")
	require.Equal(t, "event 2 size=4 subevents=0 DAMAGED", lines[4])
	require.Equal(t, "event 3 size=5 subevents=1", lines[5])

	snap := p.Stats()
	require.EqualValues(t, 1, snap.Damaged)
	require.EqualValues(t, 1, snap.Messages)
	require.EqualValues(t, 2, snap.FilesClosed)
	require.Zero(t, snap.ArenaOutstanding)
}

// A record read from a stream that then stalls must still retire.
func TestPipelineRetiresWhileReaderBlocks(t *testing.T) {
	if daq.RaceEnabled {
		t.Skip("skip: stages hand slots over through atomix counters")
	}
	pr, pw := io.Pipe()
	defer pw.Close()

	printed := make(chan uint64, 4)
	printer := pipeline.PrintFunc(func(wc *pipeline.WorkerContext, ev pipeline.Event, flags pipeline.Flags) error {
		printed <- ev.Seq()
		return recordfile.Printer{}.Print(wc, ev, flags)
	})
	var out bytes.Buffer
	p, err := pipeline.New(pipeline.Config{PrintEvents: true},
		pipeline.OpenFunc(func(name string) (pipeline.Source, error) {
			return recordfile.NewSource(name, pr, 0, 0), nil
		}),
		recordfile.Unpacker{},
		pipeline.WithPrinter(printer),
		pipeline.WithOutput(&out))
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx, []string{"pipe"}) }()

	rec := encode(t, payload([]byte("a")))
	go func() { _, _ = pw.Write(rec) }()

	select {
	case seq := <-printed:
		require.EqualValues(t, 1, seq)
	case <-time.After(5 * time.Second):
		t.Fatal("record 1 did not retire while the reader waited for input")
	}
	require.NoError(t, pw.Close())
	require.NoError(t, <-errc)
	require.Equal(t, "event 1 size=5 subevents=1\n", out.String())
}

func TestOpenerMissingFile(t *testing.T) {
	_, err := recordfile.Opener{}.Open(filepath.Join(t.TempDir(), "nope"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}
