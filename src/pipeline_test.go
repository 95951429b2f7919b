package heartwolf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, src FrameSource) *Pipeline {
	t.Helper()

	var p, err = NewPipeline(src, DefaultPipelineConfig())
	require.NoError(t, err)
	return p
}

func TestPipelineNoSource(t *testing.T) {
	var p = newTestPipeline(t, nil)

	var _, ok, err = p.PollSample()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestPipelineNotReady(t *testing.T) {
	var src = &SliceSource{
		Frames:   []SampleFrame{EncodeFrame(STATUS_PREAMBLE, 0x100, 0x200)},
		NotReady: 2,
	}
	var p = newTestPipeline(t, src)

	for i := 0; i < 2; i++ {
		var _, ok, err = p.PollSample()
		require.NoError(t, err)
		assert.False(t, ok, "poll %d", i)
	}
	assert.Zero(t, p.Vitals().Sample)

	var s, ok, err = p.PollSample()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(0x200), s.Channels[1])
	assert.Equal(t, uint64(1), p.Vitals().Sample)
}

func TestPipelineReadError(t *testing.T) {
	var boom = errors.New("spi fell over")
	var p = newTestPipeline(t, &SliceSource{Err: boom})

	var _, ok, err = p.PollSample()
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, p.Vitals().Sample)
}

func TestPipelineStrictStatus(t *testing.T) {
	var src = &SliceSource{Frames: []SampleFrame{
		EncodeFrame(0x000000, 1, 2),
		EncodeFrame(STATUS_PREAMBLE, 1, 2),
	}}

	var cfg = DefaultPipelineConfig()
	cfg.StrictStatus = true
	var p, err = NewPipeline(src, cfg)
	require.NoError(t, err)

	var _, ok, perr = p.PollSample()
	assert.False(t, ok)
	var fe *FrameError
	require.ErrorAs(t, perr, &fe)
	assert.ErrorIs(t, perr, ErrStatusPreamble)
	assert.Zero(t, p.Vitals().Sample, "rejected frames are not processed")

	_, ok, perr = p.PollSample()
	require.NoError(t, perr)
	assert.True(t, ok)
}

func TestPipelineLenientStatus(t *testing.T) {
	var p = newTestPipeline(t, &SliceSource{Frames: []SampleFrame{EncodeFrame(0x000000, 1, 2)}})

	var _, ok, err = p.PollSample()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPipelineBadConfig(t *testing.T) {
	var cfg = DefaultPipelineConfig()
	cfg.ECGChannel = MAX_CHANNELS
	var _, err = NewPipeline(nil, cfg)
	assert.Error(t, err)

	cfg = DefaultPipelineConfig()
	cfg.ECGCoeffs = []int16{1}
	_, err = NewPipeline(nil, cfg)
	assert.ErrorIs(t, err, ErrNoCoefficients)
}

func TestPipelineHeartRate(t *testing.T) {
	var synth = NewSynth(DefaultSynthConfig())
	var p = newTestPipeline(t, synth)

	for i := 0; i < 20*SAMPLE_RATE; i++ {
		var _, ok, err = p.PollSample()
		require.NoError(t, err)
		require.True(t, ok)
	}

	assert.Equal(t, Detecting, p.Phase())
	assert.InDelta(t, 75, p.HeartRate(), 2)
	assert.Equal(t, p.HeartRate(), p.Vitals().HeartRate)
	assert.NotEmpty(t, p.QRSState().Peaks)
}

func TestPipelineHeartRateRange(t *testing.T) {
	for _, rate := range []int{40, 60, 110, 125, 140, 160, 180} {
		var cfg = DefaultSynthConfig()
		cfg.HeartRate = float64(rate)
		var p = newTestPipeline(t, NewSynth(cfg))

		for i := 0; i < 40*SAMPLE_RATE; i++ {
			var _, _, err = p.PollSample()
			require.NoError(t, err)
		}

		assert.InDelta(t, rate, p.HeartRate(), 2, "%d beats per minute", rate)
	}
}

func TestPipelineRatesAreHeld(t *testing.T) {
	var p = newTestPipeline(t, nil)

	var held, ok = p.BreathDetector().(*HeldBreathRate)
	require.True(t, ok)

	var s = DecodeFrame(EncodeFrame(STATUS_PREAMBLE, 0, 0))

	held.Set(18)
	assert.Equal(t, 18, p.Process(s).BreathRate)

	held.Set(0)
	assert.Equal(t, 18, p.Process(s).BreathRate, "0 means no new estimate, not zero breaths")
	assert.Equal(t, 18, p.BreathRate())

	p.Reset()
	assert.Zero(t, p.BreathRate())
	assert.Zero(t, p.HeartRate())
	assert.Equal(t, Calibrating, p.Phase())
	assert.Equal(t, Vitals{}, p.Vitals())
}

func TestPipelineLeadOff(t *testing.T) {
	var cfg = DefaultSynthConfig()
	cfg.LeadOffFrom = 10
	cfg.LeadOffTo = 20
	var p = newTestPipeline(t, NewSynth(cfg))

	for i := 0; i < 30; i++ {
		p.PollSample()
		assert.Equal(t, i >= 10 && i < 20, p.Vitals().LeadOff, "sample %d", i)
	}
}

func TestPipelineResetIsRepeatable(t *testing.T) {
	var run = func(p *Pipeline, frames []SampleFrame) []Vitals {
		var out []Vitals
		for _, f := range frames {
			out = append(out, p.Process(DecodeFrame(f)))
		}
		return out
	}

	var synth = NewSynth(DefaultSynthConfig())
	var frames = make([]SampleFrame, 600)
	for i := range frames {
		frames[i] = synth.Next()
	}

	var p = newTestPipeline(t, nil)
	var first = run(p, frames)
	p.Reset()
	var second = run(p, frames)

	assert.Equal(t, first, second)
}
