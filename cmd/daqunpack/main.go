// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command daqunpack unpacks record files through the event pipeline and
// prints the events in file order.
//
//	daqunpack [flags] file...
//
// SIGUSR1 flushes the output after the records read so far. With --metrics
// the pipeline counters are served for Prometheus on /metrics.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"code.hybscloud.com/daq/internal/config"
	"code.hybscloud.com/daq/internal/logging"
	"code.hybscloud.com/daq/internal/metrics"
	"code.hybscloud.com/daq/internal/recordfile"
	"code.hybscloud.com/daq/pipeline"
	"github.com/joeycumines/logiface"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, files, err := config.Parse("daqunpack", args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if len(files) == 0 {
		fmt.Fprintln(stderr, "daqunpack: no input files")
		return exitUsage
	}

	log, err := logging.New(stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, a ...any) {
		log.Debug().Log(fmt.Sprintf(format, a...))
	}))
	if err != nil {
		log.Warning().Err(err).Log("set GOMAXPROCS")
	}
	defer undo()

	out := bufio.NewWriterSize(stdout, 64<<10)
	p, err := pipeline.New(cfg.Pipeline(),
		recordfile.Opener{Window: cfg.SourceWindow, MaxRecord: cfg.MaxRecord},
		recordfile.Unpacker{},
		pipeline.WithLogger(log),
		pipeline.WithPrinter(recordfile.Printer{}),
		pipeline.WithOutput(out),
		pipeline.WithSink(pipeline.FlushFunc(out.Flush)),
		pipeline.WithStatus(statusLogger(log)),
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	defer p.Close()

	if cfg.MetricsAddr != "" {
		shutdown, err := serveMetrics(cfg.MetricsAddr, p, log)
		if err != nil {
			log.Err().Err(err).Log("metrics listener")
			return exitError
		}
		defer shutdown()
	}

	stopFlush := forwardFlushSignals(p)
	err = p.Run(ctx, files)
	stopFlush()

	if ferr := out.Flush(); ferr != nil {
		err = errors.Join(err, ferr)
	}
	if err != nil {
		log.Err().Err(err).Log("daqunpack failed")
		return exitError
	}
	return exitOK
}

func statusLogger(log *logiface.Logger[logiface.Event]) func(pipeline.Snapshot) {
	var last pipeline.Snapshot
	return func(s pipeline.Snapshot) {
		log.Info().
			Uint64("files", s.FilesClosed).
			Uint64("events", s.Events).
			Uint64("events_delta", s.Events-min(s.Events, last.Events)).
			Uint64("damaged", s.Damaged).
			Uint64("in_flight", s.InFlight()).
			Uint64("arena_outstanding", s.ArenaOutstanding).
			Dur("elapsed", s.Elapsed).
			Log("status")
		last = s
	}
}

// forwardFlushSignals turns flush signals into Pipeline.Flush calls until
// the returned function is called.
func forwardFlushSignals(p *pipeline.Pipeline) (stop func()) {
	if len(flushSignals) == 0 {
		return func() {}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, flushSignals...)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ch:
				p.Flush()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
		wg.Wait()
	}
}

func serveMetrics(addr string, p *pipeline.Pipeline, log *logiface.Logger[logiface.Event]) (shutdown func(), err error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		metrics.NewCollector("daq", p.Stats),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warning().Err(err).Log("metrics server")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Log("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
