package heartwolf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDCRemoverStep(t *testing.T) {
	var d = NewDCRemover()

	// A step comes straight through then leaks away.
	assert.Equal(t, int32(1000), d.Remove(1000))

	var last = int32(1000)
	for i := 0; i < 2000; i++ {
		var y = d.Remove(1000)
		assert.LessOrEqual(t, y, last)
		assert.GreaterOrEqual(t, y, int32(0))
		last = y
	}
	assert.Zero(t, last, "constant input must settle at exactly 0")
}

func TestDCRemoverNegativeStep(t *testing.T) {
	var d = NewDCRemover()

	d.Remove(-1000)
	var y int32
	for i := 0; i < 2000; i++ {
		y = d.Remove(-1000)
	}
	assert.Zero(t, y, "truncation toward zero from below too")
}

func TestDCRemoverRecurrence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var in = rapid.SliceOfN(rapid.Int16(), 1, 200).Draw(t, "in")

		var d = NewDCRemover()
		var prevX, prevY int64
		for _, x := range in {
			var p = DCRemoveAlphaQ15 * prevY
			var leak = p / 32768 // Go division truncates toward zero.
			var want = int64(x) - prevX + leak

			var got = d.Remove(x)

			assert.Equal(t, want, int64(got))
			prevX, prevY = int64(x), int64(got)
		}
	})
}

func TestDCRemoverReset(t *testing.T) {
	var d = NewDCRemover()
	d.Remove(500)
	d.Remove(-700)
	d.Reset()

	assert.Equal(t, int32(42), d.Remove(42))
}

func TestSaturate16(t *testing.T) {
	assert.Equal(t, int16(32767), saturate16(100000))
	assert.Equal(t, int16(-32768), saturate16(-100000))
	assert.Equal(t, int16(-5), saturate16(-5))
}
