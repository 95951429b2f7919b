package heartwolf

/*------------------------------------------------------------------
 *
 * Purpose:   	Decode one ADS1292R data burst into channel values,
 *		respiration and lead-off status.
 *
 * Description:	In continuous read mode the AFE clocks out 9 bytes
 *		per sample period, all big endian:
 *
 *			bytes 0..2	Status word.
 *					1100 + LOFF_STAT[4:0] + GPIO[1:0] + 13 zeros.
 *
 *			bytes 3..4..5	Channel 1.  On the ADS1292R this is where
 *					the respiration demodulator output lands.
 *
 *			bytes 6..7..8	Channel 2.  ECG.
 *
 *		Each channel is a 24 bit two's complement value.
 *		We widen it to 32 bits by putting it in the top of a
 *		word and shifting back down arithmetically.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
)

const FRAME_SIZE = 9

const MAX_CHANNELS = 8 // Only the first two are populated.

const STATUS_LEAD_MASK = 0x0F8000
const STATUS_LEAD_SHIFT = 15

const STATUS_PREAMBLE_MASK = 0xF00000
const STATUS_PREAMBLE = 0xC00000

// SampleFrame is one raw burst exactly as read from the data output.
type SampleFrame [FRAME_SIZE]byte

// DecodedSample is the typed form of a SampleFrame.
type DecodedSample struct {
	Channels   [MAX_CHANNELS]int32
	Resp       int32
	LeadOff    bool
	LeadStatus uint8  // LOFF_STAT bits, 5 of them.
	Status     uint32 // Raw 24 bit status word.
}

var ErrStatusPreamble = errors.New("status word preamble is not 1100")
var ErrShortFrame = errors.New("short frame")

// FrameError reports a frame that arrived but can't be trusted.
// It is never used for "no data yet".
type FrameError struct {
	Frame SampleFrame
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("bad frame % x: %s", e.Frame[:], e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// signExtend24 widens a 24 bit two's complement value held in the
// low bits of w.  Anything above bit 23 is discarded.
func signExtend24(w uint32) int32 {
	return int32(w<<8) >> 8
}

func be24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

/*-------------------------------------------------------------------
 *
 * Name:        DecodeFrame
 *
 * Purpose:     Convert one raw frame.
 *
 * Inputs:	f	- 9 bytes from the AFE.
 *
 * Returns:	Channels[0] from bytes 3..5, Channels[1] from bytes 6..8.
 *
 *		Resp is taken from the same bytes as channel 1 but
 *		the least significant byte is dropped first, so it is
 *		coarser than the ECG by 8 bits.  Downstream scaling
 *		depends on that.
 *
 *		LeadOff is set when any of the 5 LOFF_STAT bits are set.
 *
 *--------------------------------------------------------------------*/

func DecodeFrame(f SampleFrame) DecodedSample {
	var s DecodedSample

	var ch = 0
	for i := 3; i < FRAME_SIZE; i += 3 {
		s.Channels[ch] = signExtend24(be24(f[i : i+3]))
		ch++
	}

	s.Status = be24(f[0:3])
	s.LeadStatus = uint8((s.Status & STATUS_LEAD_MASK) >> STATUS_LEAD_SHIFT)
	s.LeadOff = s.LeadStatus&0x1f != 0

	var resp = uint32(f[3])<<16 | uint32(f[4])<<8 // f[5] deliberately not used.
	s.Resp = signExtend24(resp)

	return s
}

// ValidateFrame checks the fixed 1100 preamble at the top of the
// status word.  The protocol has no checksum so this is all we get.
func ValidateFrame(f SampleFrame) error {
	if be24(f[0:3])&STATUS_PREAMBLE_MASK != STATUS_PREAMBLE {
		return &FrameError{Frame: f, Err: ErrStatusPreamble}
	}
	return nil
}

// ECG16 gives the ECG channel at the 16 bit scale the filters expect.
func (s DecodedSample) ECG16(channel int) int16 {
	return int16(s.Channels[channel] >> 8)
}

// Resp16 gives the respiration value at the 16 bit scale the filters expect.
func (s DecodedSample) Resp16() int16 {
	return int16(s.Resp >> 8)
}
