package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:	Main program for standalone application to run a frame
 *		capture through the signal chain and explain it.
 *
 * Inputs:	One or more capture files, 9 byte ADS1292R frames back
 *		to back, as written by gen_frames or heartwolf --record.
 *		"-" reads stdin.
 *
 * Outputs:	stdout, one line per second of signal (configurable):
 *
 *		   12.000s  HR  75  BR  15
 *		   13.000s  HR  75  BR  15  LEAD OFF
 *
 *		or the same as CSV with --csv.
 *
 * Description:	./decode_frames z1.bin
 *
 *		gen_frames -r 90 -o - | decode_frames -
 *
 *------------------------------------------------------------------*/

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/pflag"
)

// DecodeSummary describes one capture after it has been run through.
type DecodeSummary struct {
	Frames     uint64
	Rejected   uint64 // Failed the status check in strict mode.
	LeadOff    uint64
	HeartRate  int // Final values.
	BreathRate int
	Truncated  bool // Capture ended mid frame.
}

func DecodeFramesMain() {
	var configFile = pflag.StringP("config-file", "c", "", "Configuration file name.  Only the signal section is used.")
	var every = pflag.Float64P("every", "e", 1, "Print vitals every this many seconds of signal.  0 for summary only.")
	var csvOut = pflag.Bool("csv", false, "Print CSV rather than text.")
	var strict = pflag.Bool("strict", false, "Reject frames whose status word lacks the 1100 preamble.")
	var detector = pflag.StringP("breath-detector", "b", "", "Breath detector: held or crossing.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: decode_frames [options] capture.bin ...\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help || pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(1)
	}

	var cfg, _, err = LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
	if *strict {
		cfg.Signal.StrictStatus = true
	}
	if *detector != "" {
		cfg.Signal.BreathDetector = *detector
	}

	var pcfg PipelineConfig
	pcfg, err = cfg.PipelineConfig(nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}

	var everySamples = int(*every * float64(pcfg.QRS.SampleRate))

	var status = 0
	for _, name := range pflag.Args() {
		var src *FrameFileSource
		if name == "-" {
			src = NewFrameReader(os.Stdin)
		} else {
			src, err = OpenFrameFile(name)
			if err != nil {
				fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
				status = 1
				continue
			}
		}

		if pflag.NArg() > 1 {
			fmt.Printf("# %s\n", name)
		}

		// Each capture starts from a clean chain.
		if pcfg.BreathDetector != nil {
			pcfg.BreathDetector.Reset()
		}

		var sum DecodeSummary
		sum, err = DecodeFrames(os.Stdout, src, pcfg, everySamples, *csvOut)
		src.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s: %s\n", name, err)
			status = 1
			continue
		}

		if !*csvOut {
			fmt.Printf("%d frames, %d rejected, %d with lead off.  Heart rate %d, breath rate %d.\n",
				sum.Frames, sum.Rejected, sum.LeadOff, sum.HeartRate, sum.BreathRate)
		}
		if sum.Truncated {
			fmt.Fprintf(os.Stderr, "Warning: %s ends with a partial frame.\n", name)
		}
	}

	if status != 0 {
		os.Exit(status)
	}
}

/*------------------------------------------------------------------
 *
 * Name:	DecodeFrames
 *
 * Purpose:	Run every frame of a capture through a new pipeline.
 *
 * Inputs:	w	- Where the periodic vitals lines go.
 *		src	- Capture to read.
 *		cfg	- Pipeline settings.
 *		every	- Print vitals every this many samples.  0 for none.
 *		asCSV	- CSV rows instead of text.
 *
 * Returns:	Summary of the run.  Frames failing the strict status
 *		check are counted and skipped, not fatal.
 *
 *------------------------------------------------------------------*/

func DecodeFrames(w io.Writer, src *FrameFileSource, cfg PipelineConfig, every int, asCSV bool) (DecodeSummary, error) {
	var sum DecodeSummary

	var p, err = NewPipeline(src, cfg)
	if err != nil {
		return sum, err
	}

	var cw *csv.Writer
	if asCSV {
		cw = csv.NewWriter(w)
		cw.Write([]string{"sample", "seconds", "heart_rate", "breath_rate", "lead_off"})
	}

	var fs = float64(p.cfg.QRS.SampleRate)

	for !src.Done() {
		var s, ok, perr = p.PollSample()
		if perr != nil {
			var fe *FrameError
			if errors.As(perr, &fe) {
				sum.Rejected++
				continue
			}
			return sum, perr
		}
		if !ok {
			continue
		}

		sum.Frames++
		if s.LeadOff {
			sum.LeadOff++
		}

		if every > 0 && sum.Frames%uint64(every) == 0 {
			var v = p.Vitals()
			var t = float64(v.Sample) / fs
			if cw != nil {
				cw.Write([]string{
					strconv.FormatUint(v.Sample, 10),
					strconv.FormatFloat(t, 'f', 3, 64),
					strconv.Itoa(v.HeartRate),
					strconv.Itoa(v.BreathRate),
					strconv.FormatBool(v.LeadOff),
				})
			} else {
				var lead = ""
				if v.LeadOff {
					lead = "  LEAD OFF"
				}
				fmt.Fprintf(w, "%10.3fs  HR %3d  BR %3d%s\n", t, v.HeartRate, v.BreathRate, lead)
			}
		}
	}

	if cw != nil {
		cw.Flush()
		if err = cw.Error(); err != nil {
			return sum, err
		}
	}

	sum.HeartRate = p.HeartRate()
	sum.BreathRate = p.BreathRate()
	sum.Truncated = errors.Is(src.Err(), ErrShortFrame)

	return sum, nil
}
