package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for the heartwolf acquisition daemon.
 *
 * Description:	Reads ECG and respiration from an ADS1292R on SPI,
 *		works out heart and breath rates, and sends the results
 *		to any of a serial port, a pseudo terminal and TCP
 *		clients.  A capture file or the built in synthesizer can
 *		stand in for the chip.
 *
 * Examples:	heartwolf -c /etc/heartwolf/heartwolf.yaml
 *
 *		heartwolf --replay z1.bin --tcp :8050
 *
 *		heartwolf --synth --pty --metrics :9108
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

func HeartwolfMain() {
	var configFileName = pflag.StringP("config-file", "c", "", "Configuration file name.  Default is to search the usual places.")
	var replay = pflag.StringP("replay", "R", "", "Read frames from this capture file rather than the AFE.")
	var synth = pflag.BoolP("synth", "S", false, "Use the built in signal synthesizer rather than the AFE.")
	var synthHeartRate = pflag.Float64("synth-heart-rate", DefaultSynthConfig().HeartRate, "Heart rate for --synth.")
	var realtime = pflag.Bool("realtime", false, "Replay a capture at the sample rate rather than as fast as possible.")
	var record = pflag.StringP("record", "w", "", "Write every frame read to this capture file.")
	var serialDevice = pflag.StringP("serial", "s", "", "Send result packets to this serial port.")
	var enablePty = pflag.BoolP("enable-ptty", "p", false, "Send result packets to a pseudo terminal.")
	var tcpAddr = pflag.StringP("tcp", "t", "", "Serve result packets to TCP clients on this address, e.g. :8050.")
	var metricsAddr = pflag.StringP("metrics", "m", "", "Serve Prometheus metrics on this address.")
	var vitalsDir = pflag.StringP("log-dir", "l", "", "Directory for daily vitals CSV files.")
	var strict = pflag.Bool("strict", false, "Reject frames whose status word lacks the 1100 preamble.")
	var breathDetector = pflag.StringP("breath-detector", "b", "", "Breath detector: held or crossing.")
	var logLevel = pflag.StringP("log-level", "d", "", "Log level: debug, info, warn, error.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.  Add -d debug for build details.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - ECG and respiration acquisition daemon.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: heartwolf [options]\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}

	if *version {
		printVersion(os.Stdout, *logLevel == "debug")
		return
	}

	var cfg, used, err = LoadConfig(*configFileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}

	// Command line beats the file.
	var flags = pflag.CommandLine
	if flags.Changed("serial") {
		cfg.Report.SerialDevice = *serialDevice
	}
	if flags.Changed("enable-ptty") {
		cfg.Report.Pty = *enablePty
	}
	if flags.Changed("tcp") {
		cfg.Report.TCPAddr = *tcpAddr
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Addr = *metricsAddr
	}
	if flags.Changed("log-dir") {
		cfg.VitalsLog.Path = *vitalsDir
		cfg.VitalsLog.Daily = true
	}
	if flags.Changed("strict") {
		cfg.Signal.StrictStatus = *strict
	}
	if flags.Changed("breath-detector") {
		cfg.Signal.BreathDetector = *breathDetector
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}

	var logger, logErr = NewLogger(os.Stderr, cfg.Log)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", logErr)
		os.Exit(1)
	}

	logger.Info(VersionString())
	if used != "" {
		logger.Info("Configuration", "file", used)
	}

	var opts = DaemonOptions{
		Config:   cfg,
		Realtime: *realtime,
		Record:   *record,
		Logger:   logger,
	}

	switch {
	case *replay != "" && *synth:
		logger.Error("--replay and --synth can't be used together")
		os.Exit(1)
	case *replay != "":
		var src, rerr = OpenFrameFile(*replay)
		if rerr != nil {
			logger.Error("Replay", "err", rerr)
			os.Exit(1)
		}
		defer src.Close()
		opts.Source = src
		logger.Info("Replaying capture", "file", *replay)
	case *synth:
		var sc = DefaultSynthConfig()
		sc.SampleRate = cfg.Signal.QRS.SampleRate
		sc.HeartRate = *synthHeartRate
		opts.Source = NewSynth(sc)
		opts.Realtime = true
		logger.Info("Using synthesized signal", "heart_rate", sc.HeartRate)
	}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var d, derr = NewDaemon(ctx, opts)
	if derr != nil {
		logger.Error("Startup failed", "err", derr)
		os.Exit(1)
	}

	var runErr = d.Run(ctx)

	var v = d.Pipeline().Vitals()
	logger.Info("Stopped", "samples", v.Sample, "heart_rate", v.HeartRate, "breath_rate", v.BreathRate)

	if err := d.Close(); err != nil {
		logger.Warn("Shutdown", "err", err)
	}

	if runErr != nil {
		logger.Error("Failed", "err", runErr)
		os.Exit(1)
	}
}
