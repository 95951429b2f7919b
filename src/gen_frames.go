package heartwolf

/*------------------------------------------------------------------
 *
 * Name:	gen_frames
 *
 * Purpose:	Test program for generating ADS1292R capture files.
 *
 * Description:	A synthetic ECG and respiration signal is encoded as
 *		9 byte frames and written back to back, exactly as
 *		heartwolf --record would store them from the real chip.
 *
 * Examples:	One minute at 75 bpm:
 *
 *			gen_frames -o z1.bin
 *			decode_frames z1.bin
 *
 *		Faster heart, some noise, electrode pulled for 5 seconds:
 *
 *			gen_frames -r 120 -n 0.05 --lead-off 20:25 -o z2.bin
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

func GenFramesMain() {
	var def = DefaultSynthConfig()

	var outFile = pflag.StringP("output", "o", "", "Capture file to write.  Required.")
	var seconds = pflag.Float64P("seconds", "s", 60, "Length of the capture in seconds.")
	var sampleRate = pflag.IntP("sample-rate", "S", def.SampleRate, "Samples per second.")
	var heartRate = pflag.Float64P("heart-rate", "r", def.HeartRate, "Heart rate, beats per minute.")
	var breathRate = pflag.Float64P("breath-rate", "b", def.BreathRate, "Breath rate, breaths per minute.")
	var noise = pflag.Float64P("noise", "n", 0, "Noise as a fraction of ECG amplitude.")
	var seed = pflag.Uint64("seed", 1, "Random number seed for the noise.")
	var leadOff = pflag.String("lead-off", "", "Seconds FROM:TO during which the leads are off.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gen_frames [options] -o capture.bin\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}

	if *outFile == "" {
		fmt.Fprintf(os.Stderr, "ERROR: The -o output file option is required.\n")
		pflag.Usage()
		os.Exit(1)
	}

	if *sampleRate <= 0 || *seconds <= 0 {
		fmt.Fprintf(os.Stderr, "ERROR: Sample rate and length must be positive.\n")
		os.Exit(1)
	}

	var cfg = def
	cfg.SampleRate = *sampleRate
	cfg.HeartRate = *heartRate
	cfg.BreathRate = *breathRate
	cfg.Noise = *noise
	cfg.Seed = *seed

	if *leadOff != "" {
		var from, to, err = parseSecondsRange(*leadOff)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: --lead-off %s: %s\n", *leadOff, err)
			os.Exit(1)
		}
		cfg.LeadOffFrom = uint64(from * float64(cfg.SampleRate))
		cfg.LeadOffTo = uint64(to * float64(cfg.SampleRate))
	}

	var n = int(*seconds * float64(cfg.SampleRate))

	var err = GenFrames(*outFile, cfg, n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Wrote %d frames to %s.\n", n, *outFile)
}

// GenFrames writes n synthetic frames to a new capture file, or to
// stdout if path is "-".
func GenFrames(path string, cfg SynthConfig, n int) error {
	var w *FrameFileWriter
	var err error
	if path == "-" {
		w = NewFrameWriter(nopCloser{os.Stdout})
	} else {
		w, err = CreateFrameFile(path)
		if err != nil {
			return err
		}
	}

	var s = NewSynth(cfg)
	for i := 0; i < n; i++ {
		err = w.WriteFrame(s.Next())
		if err != nil {
			w.Close()
			return err
		}
	}

	return w.Close()
}

// parseSecondsRange parses "FROM:TO".
func parseSecondsRange(s string) (float64, float64, error) {
	var a, b, ok = strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("want FROM:TO")
	}

	var from, err = strconv.ParseFloat(a, 64)
	if err != nil {
		return 0, 0, err
	}
	to, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return 0, 0, err
	}
	if from < 0 || to < from {
		return 0, 0, fmt.Errorf("bad range %g to %g", from, to)
	}

	return from, to, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
