package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	Respiration path after the FIR: smoothing, a delay
 *		line, then a pluggable breath rate detector.
 *
 * Description:	Breathing is much slower than the heart so the moving
 *		sum is twice as long as the QRS one.  This stage does
 *		not decide what a breath is.  That is the job of the
 *		BreathDetector it is given.
 *
 *---------------------------------------------------------------*/

const RESP_SMOOTH_LEN = 64
const RESP_SMOOTH_SHIFT = 1

// BreathDetector turns the smoothed, time ordered respiration stream
// into breaths per minute.  Detect is called once per sample and
// returns the current rate, 0 for unknown.
type BreathDetector interface {
	Detect(sample int32) int
	Reset()
}

// HeldBreathRate is the detector used when nothing better is configured.
// It ignores the waveform and reports whatever rate was last Set, for
// systems where breath rate is worked out somewhere else.
type HeldBreathRate struct {
	rate int
}

func (h *HeldBreathRate) Detect(int32) int {
	return h.rate
}

func (h *HeldBreathRate) Set(rate int) {
	h.rate = rate
}

func (h *HeldBreathRate) Reset() {
	h.rate = 0
}

type RespirationDetector struct {
	smoothReg [RESP_SMOOTH_LEN]int32 // Newest first.
	delay     [DELAY_LINE_LEN]int32  // Oldest first.

	detector   BreathDetector
	breathRate int
}

// NewRespirationDetector wraps a BreathDetector.  nil gets a HeldBreathRate.
func NewRespirationDetector(det BreathDetector) *RespirationDetector {
	if det == nil {
		det = &HeldBreathRate{}
	}
	return &RespirationDetector{detector: det}
}

func (r *RespirationDetector) Detector() BreathDetector {
	return r.detector
}

func (r *RespirationDetector) Reset() {
	r.smoothReg = [RESP_SMOOTH_LEN]int32{}
	r.delay = [DELAY_LINE_LEN]int32{}
	r.breathRate = 0
	r.detector.Reset()
}

func (r *RespirationDetector) BreathRate() int {
	return r.breathRate
}

// Process takes one filtered respiration sample.  It returns the value
// handed to the detector, which is what gets reported as the
// respiration wave, and the current breath rate.
func (r *RespirationDetector) Process(x int16) (int32, int) {
	copy(r.smoothReg[1:], r.smoothReg[:RESP_SMOOTH_LEN-1])
	r.smoothReg[0] = int32(x)

	var sum int32
	for _, v := range r.smoothReg {
		sum += v
	}

	copy(r.delay[0:], r.delay[1:])
	r.delay[DELAY_LINE_LEN-1] = sum >> RESP_SMOOTH_SHIFT

	var wave = r.delay[DELAY_LINE_LEN-2]
	r.breathRate = r.detector.Detect(wave)

	return wave, r.breathRate
}
