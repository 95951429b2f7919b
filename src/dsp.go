package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:     Generate the FIR coefficient tables used by the
 *		ECG and respiration paths.
 *
 * Description:	Windowed sinc kernels are designed in floating point
 *		then quantized to Q15 for the fixed point engine.
 *
 *----------------------------------------------------------------*/

import (
	"fmt"
	"math"
)

type WindowType int

const (
	WINDOW_TRUNCATED WindowType = iota
	WINDOW_COSINE
	WINDOW_HAMMING
	WINDOW_BLACKMAN
	WINDOW_FLATTOP
)

var windowNames = map[string]WindowType{
	"truncated": WINDOW_TRUNCATED,
	"cosine":    WINDOW_COSINE,
	"hamming":   WINDOW_HAMMING,
	"blackman":  WINDOW_BLACKMAN,
	"flattop":   WINDOW_FLATTOP,
}

func ParseWindowType(s string) (WindowType, error) {
	var w, ok = windowNames[s]
	if !ok {
		return WINDOW_TRUNCATED, fmt.Errorf("unknown window type %q", s)
	}
	return w, nil
}

/*------------------------------------------------------------------
 *
 * Name:        window
 *
 * Purpose:     Filter window shape functions.
 *
 * Inputs:   	windowType	- WINDOW_HAMMING, etc.
 *		size		- Number of filter taps.
 *		j		- Index in range of 0 to size-1.
 *
 * Returns:     Multiplier for the window shape.
 *
 *----------------------------------------------------------------*/

func window(windowType WindowType, _size int, _j int) float64 {
	var size = float64(_size)
	var j = float64(_j)

	var center = 0.5 * (size - 1)

	switch windowType {
	case WINDOW_COSINE:
		return math.Cos((j - center) / size * math.Pi)

	case WINDOW_HAMMING:
		return 0.53836 - 0.46164*math.Cos((j*2*math.Pi)/(size-1))

	case WINDOW_BLACKMAN:
		return 0.42659 - 0.49656*math.Cos((j*2*math.Pi)/(size-1)) +
			0.076849*math.Cos((j*4*math.Pi)/(size-1))

	case WINDOW_FLATTOP:
		return 1.0 - 1.93*math.Cos((j*2*math.Pi)/(size-1)) +
			1.29*math.Cos((j*4*math.Pi)/(size-1)) -
			0.388*math.Cos((j*6*math.Pi)/(size-1)) +
			0.028*math.Cos((j*8*math.Pi)/(size-1))

	default:
		return 1.0
	}
}

/*------------------------------------------------------------------
 *
 * Name:        GenLowpass
 *
 * Purpose:     Generate low pass filter kernel.
 *
 * Inputs:   	fc		- Cutoff frequency as fraction of sampling frequency.
 *		filterSize	- Number of filter taps.
 *		wtype		- Window type.
 *
 * Returns:	Kernel normalized for unity gain at DC.
 *
 *----------------------------------------------------------------*/

func GenLowpass(fc float64, filterSize int, wtype WindowType) []float64 {
	var lp = make([]float64, filterSize)
	var center = 0.5 * float64(filterSize-1)

	for j := 0; j < filterSize; j++ {
		var sinc float64

		if float64(j)-center == 0 {
			sinc = 2 * fc
		} else {
			sinc = math.Sin(2*math.Pi*(fc*(float64(j)-center))) / (math.Pi * (float64(j) - center))
		}

		lp[j] = sinc * window(wtype, filterSize, j)
	}

	var G float64
	for j := range lp {
		G += lp[j]
	}
	for j := range lp {
		lp[j] /= G
	}

	return lp
}

/*------------------------------------------------------------------
 *
 * Name:        GenBandpass
 *
 * Purpose:     Generate band pass filter kernel.
 *
 * Inputs:   	f1		- Lower cutoff frequency as fraction of sampling frequency.
 *		f2		- Upper cutoff frequency...
 *		filterSize	- Number of filter taps.
 *		wtype		- Window type.
 *
 * Returns:	Kernel normalized for unity gain in the middle of the passband.
 *
 * Reference:	http://www.labbookpages.co.uk/audio/firWindowing.html
 *
 *----------------------------------------------------------------*/

func GenBandpass(f1 float64, f2 float64, filterSize int, wtype WindowType) []float64 {
	var bp = make([]float64, filterSize)
	var center = 0.5 * float64(filterSize-1)

	for j := 0; j < filterSize; j++ {
		var sinc float64

		if float64(j)-center == 0 {
			sinc = 2 * (f2 - f1)
		} else {
			sinc = math.Sin(2*math.Pi*f2*(float64(j)-center))/(math.Pi*(float64(j)-center)) -
				math.Sin(2*math.Pi*f1*(float64(j)-center))/(math.Pi*(float64(j)-center))
		}

		bp[j] = sinc * window(wtype, filterSize, j)
	}

	// Can't normalize the same way as lowpass.
	// Compute gain in middle of passband instead.
	// See http://dsp.stackexchange.com/questions/4693/fir-filter-gain
	var w = 2 * math.Pi * (f1 + f2) / 2
	var G float64
	for j := range bp {
		G += 2 * bp[j] * math.Cos((float64(j)-center)*w)
	}
	for j := range bp {
		bp[j] /= G
	}

	return bp
}

// QuantizeQ15 rounds a floating point kernel to Q15, clamping anything
// outside the 16 bit range.
func QuantizeQ15(taps []float64) []int16 {
	var q = make([]int16, len(taps))

	for i, t := range taps {
		var v = math.Round(t * 32768)
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		q[i] = int16(v)
	}

	return q
}

// FilterDesign describes how to build one coefficient table.
// Low == 0 means low pass at High.
type FilterDesign struct {
	LowHz  float64 `yaml:"low_hz"`
	HighHz float64 `yaml:"high_hz"`
	Taps   int     `yaml:"taps"`
	Window string  `yaml:"window"`
}

var DefaultECGDesign = FilterDesign{LowHz: 0, HighHz: 40, Taps: FILTER_ORDER, Window: "hamming"}
var DefaultRespDesign = FilterDesign{LowHz: 0.1, HighHz: 2, Taps: FILTER_ORDER, Window: "hamming"}

// Coefficients designs the table for a given sample rate.
func (d FilterDesign) Coefficients(sampleRate int) ([]int16, error) {
	if d.Taps < 3 {
		return nil, fmt.Errorf("filter needs at least 3 taps, got %d", d.Taps)
	}
	if d.HighHz <= d.LowHz || d.HighHz >= float64(sampleRate)/2 {
		return nil, fmt.Errorf("bad filter edges %.2f..%.2f Hz for %d samples/sec", d.LowHz, d.HighHz, sampleRate)
	}

	var wtype = WINDOW_HAMMING
	if d.Window != "" {
		var err error
		wtype, err = ParseWindowType(d.Window)
		if err != nil {
			return nil, err
		}
	}

	var fs = float64(sampleRate)
	if d.LowHz <= 0 {
		return QuantizeQ15(GenLowpass(d.HighHz/fs, d.Taps, wtype)), nil
	}
	return QuantizeQ15(GenBandpass(d.LowHz/fs, d.HighHz/fs, d.Taps, wtype)), nil
}
