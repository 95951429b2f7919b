package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	Make up ADS1292R frames for testing without a patient.
 *
 * Description:	ECG is the usual sum of gaussians for P, Q, R, S and T
 *		placed within each beat.  Not clinically accurate, but it
 *		has a sharp R wave where a real one would be.
 *
 *		Respiration is a sine on top of a DC offset.
 *
 *		Both go out as 24 bit channel values with a proper
 *		status word, so the receiving side can't tell the
 *		difference from the real chip.
 *
 *---------------------------------------------------------------*/

import (
	"math"
	"math/rand/v2"
)

type SynthConfig struct {
	SampleRate int     `yaml:"sample_rate"`
	HeartRate  float64 `yaml:"heart_rate"`  // Beats per minute.
	BreathRate float64 `yaml:"breath_rate"` // Breaths per minute.

	// Peak amplitudes in 24 bit counts.
	ECGAmplitude  int32 `yaml:"ecg_amplitude"`
	RespAmplitude int32 `yaml:"resp_amplitude"`
	ECGOffset     int32 `yaml:"ecg_offset"`
	RespOffset    int32 `yaml:"resp_offset"`

	Noise float64 `yaml:"noise"` // Fraction of ECG amplitude.
	Seed  uint64  `yaml:"seed"`

	// Samples in [LeadOffFrom, LeadOffTo) carry lead-off status and a
	// flat line, like the real thing with an electrode pulled.
	LeadOffFrom uint64 `yaml:"lead_off_from"`
	LeadOffTo   uint64 `yaml:"lead_off_to"`
}

func DefaultSynthConfig() SynthConfig {
	return SynthConfig{
		SampleRate:    SAMPLE_RATE,
		HeartRate:     75,
		BreathRate:    15,
		ECGAmplitude:  1 << 20,
		RespAmplitude: 1 << 20,
		ECGOffset:     1 << 18,
		RespOffset:    1 << 19,
	}
}

type Synth struct {
	cfg SynthConfig
	rng *rand.Rand

	n         uint64
	beat      float64 // Position within the current beat, 0..1.
	respPhase float64 // Radians.
}

func NewSynth(cfg SynthConfig) *Synth {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = SAMPLE_RATE
	}
	return &Synth{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

func gauss(x, mu, sigma float64) float64 {
	var z = (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

// ecgShape is one beat, t in 0..1, peak of R at 1.0.
func ecgShape(t float64) float64 {
	var p = 0.08 * gauss(t, 0.18, 0.03)
	var q = -0.12 * gauss(t, 0.30, 0.01)
	var r = 1.00 * gauss(t, 0.32, 0.008)
	var s = -0.25 * gauss(t, 0.35, 0.012)
	var tw = 0.25 * gauss(t, 0.60, 0.06)

	return p + q + r + s + tw
}

// Sample is the next pair of channel values and the status word.
func (s *Synth) Sample() (status uint32, resp int32, ecg int32) {
	var fs = float64(s.cfg.SampleRate)

	var e = ecgShape(s.beat)
	if s.cfg.Noise > 0 {
		e += s.cfg.Noise * (2*s.rng.Float64() - 1)
	}

	var r = math.Sin(s.respPhase)

	status = STATUS_PREAMBLE
	ecg = clamp24(float64(s.cfg.ECGOffset) + e*float64(s.cfg.ECGAmplitude))
	resp = clamp24(float64(s.cfg.RespOffset) + r*float64(s.cfg.RespAmplitude))

	if s.n >= s.cfg.LeadOffFrom && s.n < s.cfg.LeadOffTo {
		status |= 0x1f << STATUS_LEAD_SHIFT
		ecg = s.cfg.ECGOffset
		resp = s.cfg.RespOffset
	}

	s.n++
	s.beat += s.cfg.HeartRate / 60 / fs
	if s.beat >= 1 {
		s.beat -= 1
	}
	s.respPhase += 2 * math.Pi * s.cfg.BreathRate / 60 / fs
	if s.respPhase >= 2*math.Pi {
		s.respPhase -= 2 * math.Pi
	}

	return status, resp, ecg
}

func (s *Synth) Next() SampleFrame {
	return EncodeFrame(s.Sample())
}

// Count is the number of samples generated so far.
func (s *Synth) Count() uint64 {
	return s.n
}

// Ready always says yes.  A Synth never runs dry.
func (s *Synth) Ready() (bool, error) {
	return true, nil
}

func (s *Synth) ReadFrame() (SampleFrame, error) {
	return s.Next(), nil
}

func clamp24(v float64) int32 {
	return int32(clampInt64(int64(math.Round(v)), -(1 << 23), (1<<23)-1))
}

func put24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// EncodeFrame is the inverse of DecodeFrame for the two populated
// channels.  Values outside 24 bits are truncated.
func EncodeFrame(status uint32, ch0 int32, ch1 int32) SampleFrame {
	var f SampleFrame
	put24(f[0:3], status)
	put24(f[3:6], uint32(ch0))
	put24(f[6:9], uint32(ch1))
	return f
}
