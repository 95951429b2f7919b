package heartwolf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gainAt(taps []float64, f float64) float64 {
	var re, im float64
	for j, c := range taps {
		re += c * math.Cos(2*math.Pi*f*float64(j))
		im -= c * math.Sin(2*math.Pi*f*float64(j))
	}
	return math.Hypot(re, im)
}

func TestGenLowpass(t *testing.T) {
	var lp = GenLowpass(40.0/125, FILTER_ORDER, WINDOW_HAMMING)

	require.Len(t, lp, FILTER_ORDER)
	assert.InDelta(t, 1.0, gainAt(lp, 0), 1e-9)
	assert.InDelta(t, 1.0, gainAt(lp, 10.0/125), 0.01)
	assert.Less(t, gainAt(lp, 55.0/125), 0.01)

	// Symmetric, so linear phase.
	for j := range lp {
		assert.InDelta(t, lp[j], lp[len(lp)-1-j], 1e-12)
	}
}

func TestQuantizeQ15(t *testing.T) {
	assert.Equal(t, []int16{16384, -16384, 32767, -32768, 0}, QuantizeQ15([]float64{0.5, -0.5, 2, -2, 0.00001}))
}

func TestParseWindowType(t *testing.T) {
	var w, err = ParseWindowType("blackman")
	require.NoError(t, err)
	assert.Equal(t, WINDOW_BLACKMAN, w)

	_, err = ParseWindowType("kaiser")
	assert.Error(t, err)
}

func TestFilterDesignCoefficients(t *testing.T) {
	var c, err = DefaultRespDesign.Coefficients(SAMPLE_RATE)
	require.NoError(t, err)
	assert.Len(t, c, FILTER_ORDER)

	_, err = FilterDesign{HighHz: 70, Taps: 31}.Coefficients(SAMPLE_RATE)
	assert.Error(t, err, "above Nyquist")

	_, err = FilterDesign{HighHz: 10, Taps: 2}.Coefficients(SAMPLE_RATE)
	assert.Error(t, err)

	_, err = FilterDesign{HighHz: 10, Taps: 31, Window: "nope"}.Coefficients(SAMPLE_RATE)
	assert.Error(t, err)
}
