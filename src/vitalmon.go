package heartwolf

/*------------------------------------------------------------------
 *
 * Name:	vitalmon
 *
 * Purpose:	Host side monitor for the result packets.
 *
 * Description:	Reads the packet stream from a serial port, a
 *		heartwolf TCP port, a pseudo terminal or a file and
 *		prints what is in it.  The breath rate is also worked
 *		out again here from the respiration wave, with the
 *		threshold crossing detector, so the two can be compared.
 *
 *		With --average the samples for that long are collected
 *		and the mean heart and breath rates are printed at the
 *		end.  One minute is the usual clinical measurement.
 *
 * Usage:	vitalmon  [ options ]
 *
 *		vitalmon -p /dev/ttyUSB0
 *		vitalmon -p localhost:8050 --average 1m
 *		vitalmon --list-ports
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
)

type MonitorOptions struct {
	SampleRate int           // Packets per second of signal.
	Every      int           // Print every Nth packet.  0 for none.
	Average    time.Duration // Stop after this much signal and print means.  0 to run until EOF.
}

type MonitorSummary struct {
	Packets    uint64
	Other      uint64 // Packets that weren't vitals data.
	Discarded  int
	LeadOff    uint64
	HeartRate  float64 // Means of the nonzero rates seen.
	BreathRate float64
	HostBreath float64 // Same for the host side breath rate.
}

func VitalMonMain() {
	var port = pflag.StringP("port", "p", "", "Serial port, capture file, or host:port of a heartwolf TCP server.")
	var baud = pflag.IntP("serial-speed", "s", DEFAULT_SERIAL_BAUD, "Serial port speed.")
	var sampleRate = pflag.IntP("sample-rate", "r", SAMPLE_RATE, "Packets per second sent by heartwolf.")
	var every = pflag.IntP("every", "e", SAMPLE_RATE, "Print every Nth packet.  0 for none.")
	var average = pflag.DurationP("average", "a", 0, "Measure for this long, e.g. 1m, then print the average rates and exit.")
	var listPorts = pflag.BoolP("list-ports", "l", false, "List serial ports and exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vitalmon [options]\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}

	if *listPorts {
		var ports, err = ListSerialPorts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			os.Exit(1)
		}
		if len(ports) == 0 {
			fmt.Printf("No serial ports found.\n")
		}
		for _, p := range ports {
			fmt.Printf("%s\n", p)
		}
		return
	}

	if *port == "" {
		fmt.Fprintf(os.Stderr, "ERROR: The -p port option is required.\n")
		pflag.Usage()
		os.Exit(1)
	}

	var r, err = openVitalsStream(*port, *baud)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
	defer r.Close()

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Closing the stream is the only way to break a blocked read.
	context.AfterFunc(ctx, func() { r.Close() })

	var sum MonitorSummary
	sum, err = MonitorVitals(ctx, r, os.Stdout, MonitorOptions{
		SampleRate: *sampleRate,
		Every:      *every,
		Average:    *average,
	})
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
	}

	fmt.Printf("%d packets, %d other, %d bytes discarded, %d with lead off.\n", sum.Packets, sum.Other, sum.Discarded, sum.LeadOff)
	fmt.Printf("Average heart rate %.1f, breath rate %.1f (host %.1f).\n", sum.HeartRate, sum.BreathRate, sum.HostBreath)
}

// openVitalsStream picks the transport from the look of the name.
func openVitalsStream(name string, baud int) (io.ReadCloser, error) {
	if !strings.HasPrefix(name, "/") && strings.Contains(name, ":") {
		var c, err = net.DialTimeout("tcp", name, 5*time.Second)
		if err != nil {
			return nil, fmt.Errorf("connect to %s: %w", name, err)
		}
		return c, nil
	}

	var fi, err = os.Stat(name)
	if err != nil {
		return nil, err
	}
	if fi.Mode()&os.ModeCharDevice != 0 {
		var t, terr = OpenSerialPort(name, baud)
		if terr != nil {
			return nil, terr
		}
		return t, nil
	}

	var f, ferr = os.Open(name)
	if ferr != nil {
		return nil, ferr
	}
	return f, nil
}

/*-------------------------------------------------------------------
 *
 * Name:	MonitorVitals
 *
 * Purpose:	Decode a packet stream and report on it.
 *
 * Inputs:	r	- Packet stream.  Read until EOF, error, or
 *			  the averaging period is up.
 *		w	- Per packet lines go here.
 *
 * Returns:	Summary, and the error that ended the stream if it
 *		wasn't plain EOF.
 *
 *---------------------------------------------------------------*/

func MonitorVitals(ctx context.Context, r io.Reader, w io.Writer, opts MonitorOptions) (MonitorSummary, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = SAMPLE_RATE
	}

	var limit uint64
	if opts.Average > 0 {
		limit = uint64(opts.Average.Seconds() * float64(opts.SampleRate))
	}

	var sum MonitorSummary
	var dec PacketDecoder
	var host = NewCrossingBreathDetector(opts.SampleRate)

	var hrTotal, brTotal, hostTotal float64
	var hrN, brN, hostN int

	var finish = func() MonitorSummary {
		sum.Discarded = dec.Discarded
		if hrN > 0 {
			sum.HeartRate = hrTotal / float64(hrN)
		}
		if brN > 0 {
			sum.BreathRate = brTotal / float64(brN)
		}
		if hostN > 0 {
			sum.HostBreath = hostTotal / float64(hostN)
		}
		return sum
	}

	var buf = make([]byte, 512)
	for {
		if ctx.Err() != nil {
			return finish(), ctx.Err()
		}

		var n, err = r.Read(buf)

		for _, pkt := range dec.Feed(buf[:n]) {
			if pkt.Type != PKT_TYPE_DATA {
				sum.Other++
				fmt.Fprintf(w, "Packet type 0x%02x, %d bytes:\n", pkt.Type, len(pkt.Payload))
				hexDump(w, pkt.Payload)
				continue
			}
			var v, perr = ParseVitalsPayload(pkt.Payload)
			if perr != nil {
				sum.Other++
				fmt.Fprintf(w, "%s\n", perr)
				hexDump(w, pkt.Payload)
				continue
			}

			sum.Packets++
			if v.LeadOff {
				sum.LeadOff++
			}

			var hostRate = host.Detect(int32(v.Resp))

			if v.HeartRate > 0 {
				hrTotal += float64(v.HeartRate)
				hrN++
			}
			if v.BreathRate > 0 {
				brTotal += float64(v.BreathRate)
				brN++
			}
			if hostRate > 0 {
				hostTotal += float64(hostRate)
				hostN++
			}

			if opts.Every > 0 && sum.Packets%uint64(opts.Every) == 0 {
				var lead = ""
				if v.LeadOff {
					lead = "  LEAD OFF"
				}
				fmt.Fprintf(w, "ECG %6d  RESP %6d  HR %3d  BR %3d  host BR %3d%s\n",
					v.ECG, v.Resp, v.HeartRate, v.BreathRate, hostRate, lead)
			}

			if limit > 0 && sum.Packets >= limit {
				return finish(), nil
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			return finish(), err
		}
	}
}
