package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	One complete acquisition and analysis chain for one
 *		monitored patient.
 *
 * Description:	Per sample period:
 *
 *			FrameSource -> DecodeFrame
 *			  ECG:  DC removal >> 2 -> low pass FIR -> QRS detector
 *			  Resp: DC removal      -> band pass FIR -> respiration detector
 *
 *		Everything runs on the caller's goroutine, one PollSample
 *		call per sample period.  A Pipeline owns all of its
 *		state.  Separate pipelines can run on separate goroutines
 *		without any locking.  A single Pipeline is not safe for
 *		concurrent use.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// FrameSource is whatever delivers raw frames: the AFE driver, a capture
// file, a test fake.
type FrameSource interface {
	// Ready reports whether a frame is waiting.  It must not block.
	Ready() (bool, error)

	// ReadFrame fetches the frame.  Only called after Ready said true.
	ReadFrame() (SampleFrame, error)
}

var ErrNoSource = errors.New("pipeline has no frame source")

const ECG_CHANNEL = 1

type PipelineConfig struct {
	ECGChannel   int  // Index into DecodedSample.Channels.
	StrictStatus bool // Reject frames without the status preamble.

	QRS QRSConfig

	ECGCoeffs  []int16 // Default: DefaultECGDesign at the QRS sample rate.
	RespCoeffs []int16 // Default: DefaultRespDesign.

	BreathDetector BreathDetector // Default: HeldBreathRate.

	Logger  *log.Logger
	Metrics *Metrics
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ECGChannel: ECG_CHANNEL,
		QRS:        DefaultQRSConfig(),
	}
}

// Vitals is the latest output of a pipeline.
type Vitals struct {
	Sample     uint64 // Samples processed since reset.
	ECG        int16  // Filtered ECG.
	Resp       int32  // Smoothed respiration wave.
	HeartRate  int
	BreathRate int
	LeadOff    bool
}

type Pipeline struct {
	src FrameSource
	cfg PipelineConfig
	log *log.Logger
	met *Metrics

	ecgDC   *DCRemover
	ecgFIR  *FIRFilter
	respDC  *DCRemover
	respFIR *FIRFilter

	qrs  *QRSDetector
	resp *RespirationDetector

	vitals Vitals
}

/*-------------------------------------------------------------------
 *
 * Name:        NewPipeline
 *
 * Purpose:     Build a pipeline.
 *
 * Inputs:	src	- Frame source.  May be nil if only Process is used.
 *
 *		cfg	- Usually from DefaultPipelineConfig.  Missing
 *			  coefficient tables and QRS settings get defaults.
 *
 * Returns:	Error if a coefficient table can't be built.
 *
 *--------------------------------------------------------------------*/

func NewPipeline(src FrameSource, cfg PipelineConfig) (*Pipeline, error) {
	cfg.QRS.fillDefaults()

	if cfg.ECGChannel < 0 || cfg.ECGChannel >= MAX_CHANNELS {
		return nil, fmt.Errorf("ECG channel %d out of range", cfg.ECGChannel)
	}
	if cfg.ECGCoeffs == nil {
		var c, err = DefaultECGDesign.Coefficients(cfg.QRS.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("ECG filter: %w", err)
		}
		cfg.ECGCoeffs = c
	}
	if cfg.RespCoeffs == nil {
		var c, err = DefaultRespDesign.Coefficients(cfg.QRS.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("respiration filter: %w", err)
		}
		cfg.RespCoeffs = c
	}

	var ecgFIR, ecgErr = NewFIRFilter(cfg.ECGCoeffs)
	if ecgErr != nil {
		return nil, fmt.Errorf("ECG filter: %w", ecgErr)
	}
	var respFIR, respErr = NewFIRFilter(cfg.RespCoeffs)
	if respErr != nil {
		return nil, fmt.Errorf("respiration filter: %w", respErr)
	}

	var logger = cfg.Logger
	if logger == nil {
		logger = quietLogger()
	}

	var p = &Pipeline{
		src:     src,
		cfg:     cfg,
		log:     logger,
		met:     cfg.Metrics,
		ecgDC:   NewDCRemover(),
		ecgFIR:  ecgFIR,
		respDC:  NewDCRemover(),
		respFIR: respFIR,
		qrs:     NewQRSDetector(cfg.QRS),
		resp:    NewRespirationDetector(cfg.BreathDetector),
	}

	p.qrs.onPeakAccept = func(at uint64, rate int) {
		p.log.Debug("QRS peak", "sample", at, "bpm", rate)
	}

	return p, nil
}

/*-------------------------------------------------------------------
 *
 * Name:        PollSample
 *
 * Purpose:     Fetch, decode and process one frame if there is one.
 *
 * Returns:	ok false and nil error when the source has nothing yet.
 *		That is normal.  The caller decides when to try again.
 *
 *		A *FrameError for frames that arrived but failed checks.
 *		Those are not processed.
 *
 *--------------------------------------------------------------------*/

func (p *Pipeline) PollSample() (DecodedSample, bool, error) {
	if p.src == nil {
		return DecodedSample{}, false, ErrNoSource
	}

	var ready, readyErr = p.src.Ready()
	if readyErr != nil {
		p.met.frameError()
		return DecodedSample{}, false, fmt.Errorf("data ready: %w", readyErr)
	}
	if !ready {
		p.met.notReady()
		return DecodedSample{}, false, nil
	}

	var f, readErr = p.src.ReadFrame()
	if readErr != nil {
		p.met.frameError()
		return DecodedSample{}, false, fmt.Errorf("read frame: %w", readErr)
	}

	if p.cfg.StrictStatus {
		var err = ValidateFrame(f)
		if err != nil {
			p.met.frameError()
			p.log.Warn("Frame rejected", "err", err)
			return DecodedSample{}, false, err
		}
	}

	var s = DecodeFrame(f)
	p.met.frameDecoded()
	p.Process(s)

	return s, true, nil
}

// Process runs an already decoded sample through the filters and detectors.
func (p *Pipeline) Process(s DecodedSample) Vitals {
	var ecgIn = saturate16(p.ecgDC.Remove(s.ECG16(p.cfg.ECGChannel)) >> 2)
	var ecg = p.ecgFIR.Filter(ecgIn)
	var hr = p.qrs.Process(ecg)

	var respIn = saturate16(p.respDC.Remove(s.Resp16()))
	var respFiltered = p.respFIR.Filter(respIn)
	var wave, br = p.resp.Process(respFiltered)

	if s.LeadOff != p.vitals.LeadOff {
		if s.LeadOff {
			p.log.Warn("Lead off", "status", fmt.Sprintf("%05b", s.LeadStatus))
		} else {
			p.log.Info("Leads connected")
		}
	}
	if s.LeadOff {
		p.met.leadOff()
	}

	p.vitals.Sample++
	p.vitals.ECG = ecg
	p.vitals.Resp = wave
	p.vitals.LeadOff = s.LeadOff

	// Rates are held until a new one is worked out.
	if hr > 0 {
		p.vitals.HeartRate = hr
	}
	if br > 0 {
		p.vitals.BreathRate = br
	}
	p.met.rates(p.vitals.HeartRate, p.vitals.BreathRate)

	return p.vitals
}

func (p *Pipeline) HeartRate() int {
	return p.vitals.HeartRate
}

func (p *Pipeline) BreathRate() int {
	return p.vitals.BreathRate
}

func (p *Pipeline) Vitals() Vitals {
	return p.vitals
}

func (p *Pipeline) Phase() QRSPhase {
	return p.qrs.state.Phase
}

func (p *Pipeline) QRSState() QRSState {
	return p.qrs.State()
}

func (p *Pipeline) BreathDetector() BreathDetector {
	return p.resp.Detector()
}

// Reset discards all filter history and detector state and goes back to
// calibrating.  The source is left alone.
func (p *Pipeline) Reset() {
	p.ecgDC.Reset()
	p.ecgFIR.Reset()
	p.respDC.Reset()
	p.respFIR.Reset()
	p.qrs.Reset()
	p.resp.Reset()
	p.vitals = Vitals{}
	p.met.rates(0, 0)
}
