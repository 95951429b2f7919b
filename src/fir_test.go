package heartwolf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// directFIR is the textbook convolution over the full input history.
func directFIR(coeffs []int16, in []int16) []int16 {
	var out = make([]int16, len(in))
	for n := range in {
		var acc int64
		for k, c := range coeffs {
			if n-k < 0 {
				break
			}
			acc += int64(c) * int64(in[n-k])
		}
		out[n] = int16(saturateAcc(acc) >> 15)
	}
	return out
}

func TestNewFIRFilterNeedsCoefficients(t *testing.T) {
	var _, err = NewFIRFilter(nil)
	assert.ErrorIs(t, err, ErrNoCoefficients)

	_, err = NewFIRFilter([]int16{1})
	assert.ErrorIs(t, err, ErrNoCoefficients)
}

func TestFIRImpulseResponse(t *testing.T) {
	var coeffs = []int16{100, 200, 300, 400, 500}
	var f, err = NewFIRFilter(coeffs)
	require.NoError(t, err)

	// Several impulses spaced so they land on different cursor positions,
	// including across both wraps.
	for rep := 0; rep < 7; rep++ {
		var out = []int16{f.Filter(32767)}
		for i := 0; i < len(coeffs)+rep; i++ {
			out = append(out, f.Filter(0))
		}

		for k, c := range coeffs {
			assert.Equal(t, int16((int64(c)*32767)>>15), out[k], "rep %d tap %d", rep, k)
		}
		for _, v := range out[len(coeffs):] {
			assert.Zero(t, v)
		}
	}
}

func TestFIRMatchesDirectConvolution(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var coeffs = rapid.SliceOfN(rapid.Int16(), 2, 40).Draw(t, "coeffs")
		var in = rapid.SliceOfN(rapid.Int16(), 1, 300).Draw(t, "in")

		var f, err = NewFIRFilter(coeffs)
		require.NoError(t, err)

		var got = make([]int16, len(in))
		for i, x := range in {
			got[i] = f.Filter(x)
		}

		assert.Equal(t, directFIR(coeffs, in), got)
	})
}

func TestFIRFullOrder(t *testing.T) {
	var coeffs, err = DefaultECGDesign.Coefficients(SAMPLE_RATE)
	require.NoError(t, err)
	require.Len(t, coeffs, FILTER_ORDER)

	var f, ferr = NewFIRFilter(coeffs)
	require.NoError(t, ferr)

	var in = make([]int16, 5*FILTER_ORDER)
	for i := range in {
		in[i] = int16((i*7919)%20000 - 10000)
	}

	var want = directFIR(coeffs, in)
	for i, x := range in {
		require.Equal(t, want[i], f.Filter(x), "sample %d", i)
	}
}

func TestFIRSaturates(t *testing.T) {
	var coeffs = []int16{32767, 32767, 32767, 32767}
	var f, _ = NewFIRFilter(coeffs)

	var y int16
	for i := 0; i < 10; i++ {
		y = f.Filter(32767)
	}
	assert.Equal(t, int16(ACC_MAX>>15), y)

	for i := 0; i < 10; i++ {
		y = f.Filter(-32768)
	}
	assert.Equal(t, int16(ACC_MIN>>15), y)
}

func TestFIRReset(t *testing.T) {
	var f, _ = NewFIRFilter([]int16{16384, 16384, 16384})

	f.Filter(1000)
	f.Filter(1000)
	f.Reset()

	assert.Equal(t, int16(500), f.Filter(1000), "history must be gone after reset")
	assert.Equal(t, 3, f.Order())
}
