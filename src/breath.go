package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	Breath rate from threshold crossings of the smoothed
 *		respiration wave.
 *
 * Description:	Simple enough to run on the receiving side of the
 *		serial link (cmd/vitalmon) or to be plugged straight
 *		into the pipeline.
 *
 *		- Min and max are tracked over windows of 500 samples.
 *		  A window with less than 400 counts between them is
 *		  treated as "not breathing / no signal" and stops the
 *		  calculation.
 *
 *		- The midpoint of the last good window is the threshold.
 *
 *		- An upward crossing is when the sample 3 back was below
 *		  the threshold and the current one is above it.  Downward
 *		  is the mirror image.  For each direction we count samples
 *		  since the previous crossing in that direction.
 *
 *		- Intervals outside (40, 700) samples are ignored.  After a
 *		  crossing the next 4 samples are skipped.
 *
 *		- When an upward and a downward interval are both available
 *		  and agree within 5 samples they are stored.  Once 8 are
 *		  stored, the rate is 60 * sample rate / average.
 *
 *---------------------------------------------------------------*/

const BREATH_WINDOW = 500
const BREATH_MIN_SWING = 400
const BREATH_MIN_INTERVAL = 40
const BREATH_MAX_INTERVAL = 700
const BREATH_COUNT_WRAP = 1000
const BREATH_SKIP = 4
const BREATH_PAIR_TOLERANCE = 5
const BREATH_INTERVALS = 8

type CrossingBreathDetector struct {
	sampleRate int

	running bool

	minNew, maxNew int32
	threshold      int32

	timeCnt int
	upCnt   int
	downCnt int

	upDetected, downDetected bool
	upInterval, downInterval int

	skip int

	prev1, prev2, prev3 int32

	intervals [BREATH_INTERVALS]int
	nIntervals int

	rate int
}

func NewCrossingBreathDetector(sampleRate int) *CrossingBreathDetector {
	if sampleRate <= 0 {
		sampleRate = SAMPLE_RATE
	}

	var c = &CrossingBreathDetector{sampleRate: sampleRate}
	c.Reset()
	return c
}

func (c *CrossingBreathDetector) Reset() {
	var sr = c.sampleRate
	*c = CrossingBreathDetector{sampleRate: sr}
	c.resetWindow()
}

func (c *CrossingBreathDetector) resetWindow() {
	c.minNew = 0x7fffffff
	c.maxNew = -0x80000000
}

func (c *CrossingBreathDetector) Rate() int {
	return c.rate
}

func (c *CrossingBreathDetector) Detect(x int32) int {
	c.upCnt++
	c.downCnt++
	c.timeCnt++

	if x < c.minNew {
		c.minNew = x
	}
	if x > c.maxNew {
		c.maxNew = x
	}

	if c.upCnt > BREATH_COUNT_WRAP {
		c.upCnt = 0
	}
	if c.downCnt > BREATH_COUNT_WRAP {
		c.downCnt = 0
	}

	if !c.running {
		if c.timeCnt >= BREATH_WINDOW {
			c.timeCnt = 0
			if c.swingOK() {
				c.running = true
				c.threshold = (c.maxNew + c.minNew) >> 1
				c.prev1, c.prev2, c.prev3 = x, x, x
			}
			c.resetWindow()
		}
		return c.rate
	}

	if c.timeCnt >= BREATH_WINDOW {
		c.timeCnt = 0
		if c.swingOK() {
			c.threshold = (c.maxNew + c.minNew) >> 1
		} else {
			c.running = false
			c.rate = 0
			c.nIntervals = 0
		}
		c.resetWindow()
		if !c.running {
			return c.rate
		}
	}

	var back3 = c.prev3
	c.prev3 = c.prev2
	c.prev2 = c.prev1
	c.prev1 = x

	if c.skip > 0 {
		c.skip--
		return c.rate
	}

	if back3 < c.threshold && x > c.threshold {
		if c.upCnt > BREATH_MIN_INTERVAL && c.upCnt < BREATH_MAX_INTERVAL {
			c.upDetected = true
			c.upInterval = c.upCnt
			c.skip = BREATH_SKIP
		}
		c.upCnt = 0
	}

	if back3 > c.threshold && x < c.threshold {
		if c.downCnt > BREATH_MIN_INTERVAL && c.downCnt < BREATH_MAX_INTERVAL {
			c.downDetected = true
			c.downInterval = c.downCnt
			c.skip = BREATH_SKIP
		}
		c.downCnt = 0
	}

	if c.upDetected && c.downDetected {
		c.upDetected = false
		c.downDetected = false

		var diff = c.upInterval - c.downInterval
		if diff < 0 {
			diff = -diff
		}
		if diff < BREATH_PAIR_TOLERANCE {
			c.store(c.upInterval)
			c.store(c.downInterval)
		}
	}

	return c.rate
}

func (c *CrossingBreathDetector) swingOK() bool {
	return int64(c.maxNew)-int64(c.minNew) > BREATH_MIN_SWING
}

func (c *CrossingBreathDetector) store(interval int) {
	c.intervals[c.nIntervals] = interval
	c.nIntervals++

	if c.nIntervals < BREATH_INTERVALS {
		return
	}
	c.nIntervals = 0

	var sum = 0
	for _, v := range c.intervals {
		sum += v
	}
	var avg = sum / BREATH_INTERVALS
	if avg > 0 {
		c.rate = 60 * c.sampleRate / avg
	}
}
