package heartwolf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDetector remembers everything it was given.
type recordingDetector struct {
	seen   []int32
	rate   int
	resets int
}

func (r *recordingDetector) Detect(x int32) int {
	r.seen = append(r.seen, x)
	return r.rate
}

func (r *recordingDetector) Reset() {
	r.seen = nil
	r.resets++
}

func TestRespirationSmoothingAndDelay(t *testing.T) {
	var det = &recordingDetector{rate: 12}
	var r = NewRespirationDetector(det)

	var waves []int32
	for i := 0; i < 100; i++ {
		var w, rate = r.Process(10)
		assert.Equal(t, 12, rate)
		waves = append(waves, w)
	}

	// Sum of the last 64 samples halved, seen one sample late.
	assert.Equal(t, int32(0), waves[0])
	assert.Equal(t, int32(5), waves[1])
	assert.Equal(t, int32(10), waves[2])
	assert.Equal(t, int32(320), waves[64])
	assert.Equal(t, int32(320), waves[99])

	assert.Equal(t, waves, det.seen, "the detector sees exactly the reported wave")
	assert.Equal(t, 12, r.BreathRate())
}

func TestRespirationDefaultDetector(t *testing.T) {
	var r = NewRespirationDetector(nil)

	var held, ok = r.Detector().(*HeldBreathRate)
	require.True(t, ok)

	var _, rate = r.Process(100)
	assert.Zero(t, rate)

	held.Set(16)
	_, rate = r.Process(100)
	assert.Equal(t, 16, rate)

	r.Reset()
	assert.Zero(t, r.BreathRate())
	_, rate = r.Process(100)
	assert.Zero(t, rate, "reset clears the held rate")
}

func TestRespirationReset(t *testing.T) {
	var det = &recordingDetector{}
	var r = NewRespirationDetector(det)

	for i := 0; i < 10; i++ {
		r.Process(1000)
	}
	r.Reset()

	assert.Equal(t, 1, det.resets)

	var w, _ = r.Process(1000)
	assert.Zero(t, w)
	w, _ = r.Process(1000)
	assert.Equal(t, int32(500), w)
}
