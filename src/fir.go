package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	Fixed point FIR filter shared by the ECG and
 *		respiration paths.
 *
 * Description:	Coefficients are Q15.  Samples are 16 bit.  The sum of
 *		N products is kept in 64 bits, clamped to
 *		[-0x40000000, 0x3fffffff] and scaled back down by 2^15 so
 *		the result always fits in 16 bits.
 *
 *		The history lives in a buffer twice the filter order.
 *		Every new sample is written in two places:
 *
 *		  - the "active" half, at cursor cur, which starts at N-1,
 *		  - the "tail" half, at cursor start, over [0, N-1).
 *
 *		Both cursors advance together and wrap with the same
 *		period, N-1, so cur == start + N-1 at all times.  The
 *		window work[cur-N+1 .. cur] is then always the newest N
 *		samples in order and the convolution loop never has to
 *		think about wrap around.
 *
 *		The active half is written before filtering and the tail
 *		half after.  Slot start holds the oldest sample in the
 *		window until that second write replaces it.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
)

const FILTER_ORDER = 161

const ACC_MIN = -0x40000000
const ACC_MAX = 0x3fffffff

var ErrNoCoefficients = errors.New("fir: need at least 2 coefficients")

type FIRFilter struct {
	coeffs []int16

	work  []int16 // 2 * order, allocated on first use.
	start int     // Tail cursor, [0, order-1).
	cur   int     // Active cursor, [order-1, 2*order-2).
}

// NewFIRFilter makes a filter around a coefficient table.  The table is
// not copied and must not change afterwards.
func NewFIRFilter(coeffs []int16) (*FIRFilter, error) {
	if len(coeffs) < 2 {
		return nil, ErrNoCoefficients
	}

	return &FIRFilter{coeffs: coeffs}, nil
}

// Order is the number of taps.
func (f *FIRFilter) Order() int {
	return len(f.coeffs)
}

// Reset zeroes the history.
func (f *FIRFilter) Reset() {
	f.work = nil
	f.start = 0
	f.cur = 0
}

func (f *FIRFilter) lazyInit() {
	var n = len(f.coeffs)
	f.work = make([]int16, 2*n)
	f.start = 0
	f.cur = n - 1
}

/*-------------------------------------------------------------------
 *
 * Name:        Filter
 *
 * Purpose:     Add one sample and compute one output.
 *
 * Inputs:	x	- New sample.
 *
 * Returns:	sum(coeff[k] * x[n-k]) >> 15, saturated.
 *
 *--------------------------------------------------------------------*/

func (f *FIRFilter) Filter(x int16) int16 {
	if f.work == nil {
		f.lazyInit()
	}

	var n = len(f.coeffs)

	f.work[f.cur] = x
	var y = convolve(f.coeffs, f.work[f.cur-n+1:f.cur+1])
	f.work[f.start] = x

	f.start++
	if f.start >= n-1 {
		f.start = 0
	}
	f.cur++
	if f.cur >= 2*n-2 {
		f.cur = n - 1
	}

	return y
}

// convolve pairs coeff[k] with window[len-1-k], i.e. newest sample first.
func convolve(coeffs []int16, window []int16) int16 {
	var acc int64
	var last = len(window) - 1

	for k, c := range coeffs {
		acc += int64(c) * int64(window[last-k])
	}

	return int16(saturateAcc(acc) >> 15)
}

func saturateAcc(acc int64) int64 {
	if acc < ACC_MIN {
		return ACC_MIN
	}
	if acc > ACC_MAX {
		return ACC_MAX
	}
	return acc
}
