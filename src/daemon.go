package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	The acquisition daemon.
 *
 * Description:	One goroutine owns the pipeline.  It polls the frame
 *		source on a ticker, hands every processed sample to the
 *		Reporter and writes the vitals log.  The TCP result
 *		server, the DNS-SD responder and the metrics endpoint
 *		each get a goroutine of their own.  If any of them fails
 *		everything is shut down.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Samples processed per poll at most, so a source that is always ready
// can't starve the vitals log.
const MAX_SAMPLES_PER_POLL = 64

// Give up when the source fails this many reads in a row.
const MAX_CONSECUTIVE_READ_ERRORS = 100

type DaemonOptions struct {
	Config Config

	// Source replaces the AFE, e.g. a capture replay or a Synth.  When it
	// has a Done method the daemon stops once Done is true.
	Source FrameSource

	// Realtime limits a Source to one sample per sample period.
	// The AFE paces itself with DRDY and ignores this.
	Realtime bool

	Record string // Also write every frame read to this capture file.

	Logger *log.Logger
}

type Daemon struct {
	cfg      Config
	log      *log.Logger
	realtime bool

	met            *Metrics
	metricsHandler http.Handler

	pipe *Pipeline
	done func() bool

	rep  *Reporter
	srv  *ResultServer
	vlog *VitalsLog

	readErrors int

	closers []func() error
}

// recordingSource copies frames to a capture file as they are read.
type recordingSource struct {
	FrameSource
	w *FrameFileWriter
}

func (r *recordingSource) ReadFrame() (SampleFrame, error) {
	var f, err = r.FrameSource.ReadFrame()
	if err != nil {
		return f, err
	}
	if werr := r.w.WriteFrame(f); werr != nil {
		return f, fmt.Errorf("record: %w", werr)
	}
	return f, nil
}

/*-------------------------------------------------------------------
 *
 * Name:        NewDaemon
 *
 * Purpose:     Open everything the configuration asks for.
 *
 * Inputs:	ctx	- Only used for the AFE power up sequence.
 *
 * Returns:	A daemon ready to Run.  On error anything already
 *		opened has been closed again.
 *
 *--------------------------------------------------------------------*/

func NewDaemon(ctx context.Context, opts DaemonOptions) (*Daemon, error) {
	var cfg = opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var logger = opts.Logger
	if logger == nil {
		logger = quietLogger()
	}

	var d = &Daemon{
		cfg:      cfg,
		log:      logger,
		realtime: opts.Realtime,
		done:     func() bool { return false },
	}
	var fail = func(err error) (*Daemon, error) {
		return nil, errors.Join(err, d.Close())
	}

	if cfg.Metrics.Addr != "" {
		var met, handler, shutdown, err = NewPrometheusMetrics()
		if err != nil {
			return fail(fmt.Errorf("metrics: %w", err))
		}
		d.met = met
		d.metricsHandler = handler
		d.closers = append(d.closers, func() error { return shutdown(context.Background()) })
	}

	var pcfg, err = cfg.PipelineConfig(logger, d.met)
	if err != nil {
		return fail(err)
	}

	var src = opts.Source
	if src == nil {
		var afe, afeErr = OpenADS1292R(cfg.AFE.SPIDevice, cfg.AFE.SPISpeed, cfg.AFE.Pins, ADS1292RConfig{
			Program: cfg.AFE.Registers,
			Logger:  logger,
		})
		if afeErr != nil {
			return fail(fmt.Errorf("open AFE: %w", afeErr))
		}
		d.closers = append(d.closers, afe.Close)

		if err := afe.Init(ctx); err != nil {
			return fail(err)
		}
		d.closers = append(d.closers, afe.Stop)
		logger.Info("ADS1292R running", "spi", cfg.AFE.SPIDevice, "gpio", cfg.AFE.Pins.Chip)

		src = afe
		d.realtime = false
	}

	if e, ok := src.(interface{ Done() bool }); ok {
		d.done = e.Done
	}

	if opts.Record != "" {
		var w, werr = CreateFrameFile(opts.Record)
		if werr != nil {
			return fail(werr)
		}
		d.closers = append(d.closers, w.Close)
		src = &recordingSource{FrameSource: src, w: w}
		logger.Info("Recording frames", "file", opts.Record)
	}

	d.pipe, err = NewPipeline(src, pcfg)
	if err != nil {
		return fail(err)
	}

	d.rep = NewReporter(cfg.Report.Every, logger, d.met)
	d.closers = append(d.closers, d.rep.Close)

	if cfg.Report.SerialDevice != "" {
		var t, terr = OpenSerialPort(cfg.Report.SerialDevice, cfg.Report.SerialBaud)
		if terr != nil {
			return fail(terr)
		}
		d.rep.Attach("serial "+cfg.Report.SerialDevice, t)
		logger.Info("Sending results to serial port", "device", cfg.Report.SerialDevice, "baud", cfg.Report.SerialBaud)
	}

	if cfg.Report.Pty {
		var p, perr = OpenPtySink(cfg.Report.PtySymlink, logger)
		if perr != nil {
			return fail(fmt.Errorf("pseudo terminal: %w", perr))
		}
		d.rep.Attach("pty "+p.Name(), p)
	}

	if cfg.Report.TCPAddr != "" {
		var srv, serr = ListenResults(cfg.Report.TCPAddr, d.rep, logger)
		if serr != nil {
			return fail(serr)
		}
		d.srv = srv
		d.closers = append(d.closers, srv.Close)
	}

	if cfg.VitalsLog.Path != "" {
		var l, lerr = OpenVitalsLog(cfg.VitalsLog.Daily, cfg.VitalsLog.Path, cfg.VitalsLog.Pattern, logger)
		if lerr != nil {
			return fail(lerr)
		}
		d.vlog = l
		d.closers = append(d.closers, l.Close)
	}

	return d, nil
}

func (d *Daemon) Pipeline() *Pipeline {
	return d.pipe
}

func (d *Daemon) Reporter() *Reporter {
	return d.rep
}

// ResultAddr is where the TCP result server listens, nil if it doesn't.
func (d *Daemon) ResultAddr() net.Addr {
	if d.srv == nil {
		return nil
	}
	return d.srv.Addr()
}

/*-------------------------------------------------------------------
 *
 * Name:        Run
 *
 * Purpose:     Acquire and report until told to stop.
 *
 * Returns:	nil when ctx is cancelled or a replay runs out.
 *		Otherwise the first failure of any component.
 *
 *--------------------------------------------------------------------*/

func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g, gctx = errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return d.acquire(gctx)
	})

	if d.srv != nil {
		g.Go(func() error {
			var err = d.srv.Serve(gctx)
			if gctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("result server: %w", err)
		})

		if d.cfg.Report.DNSSD {
			g.Go(func() error {
				var err = AnnounceResults(gctx, d.cfg.Report.DNSSDName, d.srv.Port(), d.log)
				if gctx.Err() == nil {
					// Clients can still connect by address.
					d.log.Warn("DNS-SD announcement stopped", "err", err)
				}
				return nil
			})
		}
	}

	if d.metricsHandler != nil {
		var mux = http.NewServeMux()
		mux.Handle("/metrics", d.metricsHandler)

		var hs = &http.Server{
			Addr:              d.cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			d.log.Info("Metrics listening", "addr", hs.Addr)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			var sctx, scancel = context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return hs.Shutdown(sctx)
		})
	}

	return g.Wait()
}

func (d *Daemon) acquire(ctx context.Context) error {
	var interval = d.cfg.AFE.PollInterval
	var perPoll = MAX_SAMPLES_PER_POLL
	if d.realtime {
		interval = time.Second / time.Duration(d.pipe.cfg.QRS.SampleRate)
		perPoll = 1
	}

	var poll = time.NewTicker(interval)
	defer poll.Stop()

	var logTick <-chan time.Time
	if d.vlog != nil {
		var t = time.NewTicker(d.cfg.VitalsLog.Interval)
		defer t.Stop()
		logTick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-poll.C:
			if err := d.drain(perPoll); err != nil {
				return err
			}
			if d.done() {
				var v = d.pipe.Vitals()
				d.log.Info("End of capture", "samples", v.Sample, "heart_rate", v.HeartRate, "breath_rate", v.BreathRate)
				if d.vlog != nil {
					d.writeVitals()
				}
				return nil
			}

		case <-logTick:
			d.writeVitals()
		}
	}
}

// drain processes whatever the source has ready, up to max samples.
func (d *Daemon) drain(max int) error {
	for i := 0; i < max; i++ {
		var _, ok, err = d.pipe.PollSample()
		if err != nil {
			var fe *FrameError
			if errors.As(err, &fe) {
				continue
			}

			d.readErrors++
			if d.readErrors >= MAX_CONSECUTIVE_READ_ERRORS {
				return fmt.Errorf("giving up after %d read errors: %w", d.readErrors, err)
			}
			d.log.Error("Frame source", "err", err)
			return nil
		}
		if !ok {
			return nil
		}

		d.readErrors = 0
		d.rep.Report(d.pipe.Vitals())
	}
	return nil
}

func (d *Daemon) writeVitals() {
	if err := d.vlog.Write(d.pipe.Vitals()); err != nil {
		d.log.Warn("Vitals log", "err", err)
	}
}

// Close releases everything in the reverse of the order it was opened.
func (d *Daemon) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	d.closers = nil
	return errors.Join(errs...)
}
