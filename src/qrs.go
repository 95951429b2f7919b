package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	Find QRS complexes in the filtered ECG and turn the
 *		spacing between them into a heart rate.
 *
 * Description:	Each filtered sample goes through:
 *
 *		1. A 32 sample moving sum, scaled down by 4.
 *
 *		2. A 5 sample delay line.  The "derivative" is the
 *		   absolute difference between the newest-but-one and
 *		   oldest-but-one entries, i.e. the slope over 2 samples.
 *		   QRS complexes are by far the steepest part of the wave.
 *
 *		3. Threshold calibration.  The largest derivative in each
 *		   2 second window sets the threshold for the next one.
 *		   Nothing is detected until the first window is complete.
 *
 *		4. Peak search (Detecting only).  The derivative rising
 *		   through the threshold opens a search.  The search closes
 *		   when the derivative drops back to the threshold, or after
 *		   the search window, and the largest derivative seen is
 *		   taken as the peak.
 *
 *		   The moving sum echoes every slope QRS_SMOOTH_LEN samples
 *		   later, when the complex leaves it, with the same size.
 *		   So the next search can't open until the skip window has
 *		   passed since the peak and the echo of the whole lobe has
 *		   gone by.  Both are counted from the peak, not from the end
 *		   of the search, so the spacing of real beats is the only
 *		   limit up to about 190 per minute.  Beyond that the echo
 *		   runs into the next complex.
 *
 *		5. Heart rate from the average spacing of the peaks kept.
 *
 *---------------------------------------------------------------*/

const SAMPLE_RATE = 125

const QRS_SMOOTH_LEN = 32
const QRS_SMOOTH_SHIFT = 2
const DELAY_LINE_LEN = 5

const MAX_PEAKS_TO_FIND = 5
const MAX_SEARCH_WINDOW = 25
const MIN_SKIP_WINDOW = 30
const MAX_HEART_RATE = 250

// Threshold is 7/10 of the previous window's largest derivative.
const QRS_THRESH_NUM = 7
const QRS_THRESH_DEN = 10

type QRSPhase int

const (
	Calibrating QRSPhase = iota
	Detecting
)

func (p QRSPhase) String() string {
	if p == Detecting {
		return "detecting"
	}
	return "calibrating"
}

type QRSConfig struct {
	SampleRate        int `yaml:"sample_rate"`
	CalibrationWindow int `yaml:"calibration_window"` // Samples.  Default 2 seconds.
	SearchWindow      int `yaml:"search_window"`
	SkipWindow        int `yaml:"skip_window"`
	MaxPeaks          int `yaml:"max_peaks"`
	MaxHeartRate      int `yaml:"max_heart_rate"`
}

func DefaultQRSConfig() QRSConfig {
	return QRSConfig{
		SampleRate:        SAMPLE_RATE,
		CalibrationWindow: 2 * SAMPLE_RATE,
		SearchWindow:      MAX_SEARCH_WINDOW,
		SkipWindow:        MIN_SKIP_WINDOW,
		MaxPeaks:          MAX_PEAKS_TO_FIND,
		MaxHeartRate:      MAX_HEART_RATE,
	}
}

func (c *QRSConfig) fillDefaults() {
	var d = DefaultQRSConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.CalibrationWindow <= 0 {
		c.CalibrationWindow = 2 * c.SampleRate
	}
	if c.SearchWindow <= 0 {
		c.SearchWindow = d.SearchWindow
	}
	if c.SkipWindow <= 0 {
		c.SkipWindow = d.SkipWindow
	}
	if c.MaxPeaks < 2 {
		c.MaxPeaks = d.MaxPeaks
	}
	if c.MaxHeartRate <= 0 {
		c.MaxHeartRate = d.MaxHeartRate
	}
}

type searchState int

const (
	searchIdle searchState = iota
	searchOpen
)

// QRSState is everything the detector remembers between samples.
type QRSState struct {
	Smooth [QRS_SMOOTH_LEN]int32 // Newest first.
	Delay  [DELAY_LINE_LEN]int32 // Oldest first.

	MaxDerivative int32
	Counter       int // Always in [0, CalibrationWindow).

	Threshold    int32 // Active.
	OldThreshold int32
	NewThreshold int32

	Phase QRSPhase

	Peaks []uint64 // Sample numbers of accepted peaks, oldest first.
}

type QRSDetector struct {
	cfg   QRSConfig
	state QRSState

	n uint64 // Samples seen since reset.

	search      searchState
	searchCount int
	candidate   int32
	candidateAt uint64
	quietUntil  uint64 // No new search before this sample.
	prevDeriv   int32

	heartRate    int
	onPeakAccept func(at uint64, rate int)
}

func NewQRSDetector(cfg QRSConfig) *QRSDetector {
	cfg.fillDefaults()

	var q = &QRSDetector{cfg: cfg}
	q.Reset()
	return q
}

func (q *QRSDetector) Reset() {
	q.state = QRSState{Peaks: make([]uint64, 0, q.cfg.MaxPeaks)}
	q.n = 0
	q.search = searchIdle
	q.searchCount = 0
	q.candidate = 0
	q.candidateAt = 0
	q.quietUntil = 0
	q.prevDeriv = 0
	q.heartRate = 0
}

// State returns a copy, for display and tests.
func (q *QRSDetector) State() QRSState {
	var s = q.state
	s.Peaks = append([]uint64(nil), q.state.Peaks...)
	return s
}

func (q *QRSDetector) HeartRate() int {
	return q.heartRate
}

// Process takes one filtered ECG sample and returns the heart rate,
// which is 0 until two peaks have been accepted.
func (q *QRSDetector) Process(x int16) int {
	var s = q.smooth(x)

	copy(q.state.Delay[0:], q.state.Delay[1:])
	q.state.Delay[DELAY_LINE_LEN-1] = s

	var d = q.state.Delay[3] - q.state.Delay[1]
	if d < 0 {
		d = -d
	}

	q.calibrate(d)

	if q.state.Phase == Detecting {
		q.detect(d)
	}

	q.prevDeriv = d
	q.n++
	return q.heartRate
}

func (q *QRSDetector) smooth(x int16) int32 {
	var r = &q.state.Smooth

	copy(r[1:], r[:QRS_SMOOTH_LEN-1])
	r[0] = int32(x)

	var sum int32
	for _, v := range r {
		sum += v
	}

	return sum >> QRS_SMOOTH_SHIFT
}

/*-------------------------------------------------------------------
 *
 * Name:        calibrate
 *
 * Purpose:     Track the largest derivative and refresh the threshold
 *		at the end of every calibration window.
 *
 * Description:	The first rollover moves the detector to Detecting.
 *		There is no way back short of Reset.
 *
 *--------------------------------------------------------------------*/

func (q *QRSDetector) calibrate(d int32) {
	if d > q.state.MaxDerivative {
		q.state.MaxDerivative = d
	}

	q.state.Counter++
	if q.state.Counter < q.cfg.CalibrationWindow {
		return
	}

	var t = int32(int64(q.state.MaxDerivative) * QRS_THRESH_NUM / QRS_THRESH_DEN)
	q.state.NewThreshold = t
	q.state.OldThreshold = t
	q.state.Threshold = t

	q.state.MaxDerivative = 0
	q.state.Counter = 0
	q.state.Phase = Detecting
}

func (q *QRSDetector) detect(d int32) {
	var thr = q.state.Threshold

	switch q.search {
	case searchIdle:
		if d > thr && q.prevDeriv <= thr && q.n >= q.quietUntil {
			q.search = searchOpen
			q.searchCount = 1
			q.candidate = d
			q.candidateAt = q.n
		}

	case searchOpen:
		if d <= thr {
			q.closeSearch(q.n - 1)
			return
		}
		q.searchCount++
		if d > q.candidate {
			q.candidate = d
			q.candidateAt = q.n
		}
		if q.searchCount >= q.cfg.SearchWindow {
			q.closeSearch(q.n)
		}
	}
}

// closeSearch accepts the candidate.  lastAbove is the last sample of
// the lobe that was over the threshold.
func (q *QRSDetector) closeSearch(lastAbove uint64) {
	q.acceptPeak(q.candidateAt)

	q.search = searchIdle
	q.searchCount = 0
	q.quietUntil = max(q.candidateAt+uint64(q.cfg.SkipWindow), lastAbove+QRS_SMOOTH_LEN+1)
}

func (q *QRSDetector) acceptPeak(at uint64) {
	var p = q.state.Peaks
	if len(p) == q.cfg.MaxPeaks {
		copy(p, p[1:])
		p = p[:len(p)-1]
	}
	p = append(p, at)
	q.state.Peaks = p

	if len(p) >= 2 {
		var span = p[len(p)-1] - p[0]
		if span > 0 {
			var num = uint64(60*q.cfg.SampleRate) * uint64(len(p)-1)
			var rate = int((num + span/2) / span)
			if rate > q.cfg.MaxHeartRate {
				rate = q.cfg.MaxHeartRate
			}
			q.heartRate = rate
		}
	}

	if q.onPeakAccept != nil {
		q.onPeakAccept(at, q.heartRate)
	}
}
