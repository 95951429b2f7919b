package heartwolf

import "math"

// DCRemoveAlphaQ15 is the leaky integrator pole, 0.992, in Q15.
// The pole sits about 0.16 Hz from DC at 125 samples/sec.
const DCRemoveAlphaQ15 = 32506

// DCRemover is a first order high pass:
//
//	dc[n] = (x[n] - x[n-1]) + alpha * dc[n-1]
//
// It takes out electrode offset and slow baseline wander before the FIR.
type DCRemover struct {
	alpha   int32
	prevRaw int32
	prevDC  int32
}

func NewDCRemover() *DCRemover {
	return &DCRemover{alpha: DCRemoveAlphaQ15}
}

func (d *DCRemover) Reset() {
	d.prevRaw = 0
	d.prevDC = 0
}

// Remove returns the conditioned sample at full precision.
// alpha * dc is truncated toward zero so silence decays all the way to 0.
func (d *DCRemover) Remove(raw int16) int32 {
	var p = int64(d.alpha) * int64(d.prevDC)
	var leak int64
	if p < 0 {
		leak = -((-p) >> 15)
	} else {
		leak = p >> 15
	}

	var dc = int64(raw) - int64(d.prevRaw) + leak
	d.prevDC = int32(clampInt64(dc, math.MinInt32, math.MaxInt32))
	d.prevRaw = int32(raw)

	return d.prevDC
}

func saturate16(v int32) int16 {
	return int16(clampInt64(int64(v), math.MinInt16, math.MaxInt16))
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
