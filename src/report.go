package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	Send result packets to every attached host.
 *
 * Description:	Sinks come and go.  A serial port or pseudo terminal is
 *		attached at startup, TCP clients attach whenever they
 *		connect.  A sink that fails a write is closed and dropped.
 *		The others carry on.
 *
 *		Packets are built once per report and the same bytes go
 *		to everyone.
 *
 *---------------------------------------------------------------*/

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

type sink struct {
	name string
	w    io.Writer
}

type Reporter struct {
	mu    sync.Mutex
	sinks []sink

	every int    // Report every Nth sample.
	count uint64 // Samples seen.

	log *log.Logger
	met *Metrics
}

/*-------------------------------------------------------------------
 *
 * Name:        NewReporter
 *
 * Inputs:	every	- Decimation.  1 (or less) sends every sample,
 *			  which is what the host plotting software expects
 *			  at 125 SPS.
 *
 *--------------------------------------------------------------------*/

func NewReporter(every int, logger *log.Logger, met *Metrics) *Reporter {
	if every < 1 {
		every = 1
	}
	if logger == nil {
		logger = quietLogger()
	}
	return &Reporter{every: every, log: logger, met: met}
}

// Attach adds a sink.  If w is also an io.Closer it is closed when dropped.
func (r *Reporter) Attach(name string, w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sinks = append(r.sinks, sink{name: name, w: w})
	r.log.Info("Attached result sink", "sink", name, "sinks", len(r.sinks))
}

// Detach removes a sink by name without closing it.
func (r *Reporter) Detach(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.sinks {
		if s.name == name {
			r.sinks = append(r.sinks[:i], r.sinks[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Reporter) Sinks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names = make([]string, len(r.sinks))
	for i, s := range r.sinks {
		names[i] = s.name
	}
	return names
}

// Report sends v if it falls on the decimation boundary.  Returns the
// number of sinks that got it.
func (r *Reporter) Report(v Vitals) int {
	r.count++
	if (r.count-1)%uint64(r.every) != 0 {
		return 0
	}

	return r.Broadcast(EncodeVitalsPacket(PayloadFromVitals(v)))
}

func (r *Reporter) Broadcast(pkt []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept = r.sinks[:0]
	for _, s := range r.sinks {
		var n, err = s.w.Write(pkt)
		if err == nil && n != len(pkt) {
			err = io.ErrShortWrite
		}
		if err != nil {
			r.log.Warn("Dropping result sink", "sink", s.name, "err", err)
			r.met.sinkDropped()
			if c, ok := s.w.(io.Closer); ok {
				c.Close()
			}
			continue
		}
		r.met.packetSent()
		kept = append(kept, s)
	}

	// Clear the tail so dropped writers can be collected.
	for i := len(kept); i < len(r.sinks); i++ {
		r.sinks[i] = sink{}
	}
	r.sinks = kept

	return len(kept)
}

// Close closes and removes every sink.
func (r *Reporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for _, s := range r.sinks {
		if c, ok := s.w.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	r.sinks = nil
	return first
}
